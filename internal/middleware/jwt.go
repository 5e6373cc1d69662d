package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/clearview-lms/clearview-api/internal/models"
	appErrors "github.com/clearview-lms/clearview-api/pkg/errors"
	"github.com/clearview-lms/clearview-api/pkg/response"
)

// ContextUserKey is the gin context key storing viewer claims.
const ContextUserKey = "currentViewer"

// JWT protects routes by requiring a valid access token issued by the
// host platform. The service only verifies; it never issues tokens.
func JWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := parseViewerToken(parts[1], secret)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid access token"))
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// Viewer returns the claims stored on the context, nil when absent.
func Viewer(c *gin.Context) *models.ViewerClaims {
	if v, exists := c.Get(ContextUserKey); exists {
		if claims, ok := v.(*models.ViewerClaims); ok {
			return claims
		}
	}
	return nil
}

func parseViewerToken(raw, secret string) (*models.ViewerClaims, error) {
	claims := &models.ViewerClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// RequireSiteAdmin blocks viewers without the site admin claim.
func RequireSiteAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer := Viewer(c)
		if viewer == nil || !viewer.SiteAdmin {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
