package models

// Context levels as stored by the host platform.
const (
	ContextLevelSystem = 10
	ContextLevelCourse = 50
)

// Category is a read-only snapshot of one course category row. The
// fully-qualified name (FQN) is the slash-joined path from the root
// category down to this one.
type Category struct {
	ID       int64  `db:"id" json:"id"`
	ParentID int64  `db:"parent_id" json:"parent_id"`
	Name     string `db:"name" json:"name"`
	FQN      string `db:"fqn" json:"fqn"`
}

// Course belongs to exactly one category.
type Course struct {
	ID         int64  `db:"id" json:"id"`
	IDNumber   string `db:"idnumber" json:"idnumber"`
	FullName   string `db:"fullname" json:"fullname"`
	CategoryID int64  `db:"category_id" json:"category_id"`
	StartDate  int64  `db:"start_date" json:"start_date"`
}

// RoleAssignment is one role held by a user within a course context.
type RoleAssignment struct {
	RoleID    int64  `db:"role_id" json:"role_id"`
	ShortName string `db:"shortname" json:"shortname"`
	ContextID int64  `db:"context_id" json:"context_id"`
}

// EnrolledUser is one enrolment row joined with the user's identity
// fields and role assignments within the course context. The fetcher
// returns the full role set; callers decide who counts as a student.
type EnrolledUser struct {
	ID         int64  `db:"id" json:"id"`
	IDNumber   string `db:"idnumber" json:"idnumber"`
	FirstName  string `db:"firstname" json:"firstname"`
	LastName   string `db:"lastname" json:"lastname"`
	Email      string `db:"email" json:"email"`
	PictureURL string `db:"picture_url" json:"picture_url"`
	Suspended  bool   `db:"suspended" json:"suspended"`
	Deleted    bool   `db:"deleted" json:"deleted"`

	Roles []RoleAssignment `json:"roles"`
}

// HasRole reports whether the user holds any of the given role ids.
func (u EnrolledUser) HasRole(roleIDs map[int64]struct{}) bool {
	for _, role := range u.Roles {
		if _, ok := roleIDs[role.RoleID]; ok {
			return true
		}
	}
	return false
}
