package models

import "github.com/golang-jwt/jwt/v5"

// ViewerClaims are the claims the host platform places in the access
// tokens it issues. The service never issues tokens itself; it only
// reads the viewer's identity and role scope for tenancy filtering.
type ViewerClaims struct {
	UserID    int64   `json:"uid"`
	RoleIDs   []int64 `json:"role_ids"`
	SiteAdmin bool    `json:"site_admin"`
	jwt.RegisteredClaims
}

// HasRole reports whether the viewer holds the given role id.
func (c *ViewerClaims) HasRole(roleID int64) bool {
	if c == nil {
		return false
	}
	for _, id := range c.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}
