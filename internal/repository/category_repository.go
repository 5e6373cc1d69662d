package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/clearview-lms/clearview-api/internal/models"
)

// CategoryRepository exposes read-only queries over the host platform's
// course, enrolment and completion tables. All writes stay with the host;
// this service only aggregates.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository instantiates the repository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// ListCategories returns every course category with its fully-qualified
// name resolved from the parent chain, ordered by id.
func (r *CategoryRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	query := `WITH RECURSIVE category_path AS (
        SELECT id, parent_id, name, name::text AS fqn
        FROM course_categories WHERE parent_id = 0
        UNION ALL
        SELECT c.id, c.parent_id, c.name, p.fqn || ' / ' || c.name
        FROM course_categories c
        JOIN category_path p ON c.parent_id = p.id
    )
    SELECT id, parent_id, name, fqn FROM category_path ORDER BY id`

	var categories []models.Category
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	return categories, nil
}

// CoursesByCategory returns the courses directly inside the category,
// ordered by id. Courses of descendant categories are not included.
func (r *CategoryRepository) CoursesByCategory(ctx context.Context, categoryID int64) ([]models.Course, error) {
	query := `SELECT id, idnumber, fullname, category_id, start_date
        FROM courses WHERE category_id = $1 ORDER BY id`

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, categoryID); err != nil {
		return nil, fmt.Errorf("query courses for category %d: %w", categoryID, err)
	}
	return courses, nil
}

// EnrolledUsers returns every user enrolled in the course together with
// their role assignments in the course context. Suspended and deleted
// flags are returned as-is; filtering is the aggregator's call.
func (r *CategoryRepository) EnrolledUsers(ctx context.Context, courseID int64) ([]models.EnrolledUser, error) {
	userQuery := `SELECT DISTINCT u.id, u.idnumber, u.firstname, u.lastname, u.email,
            u.picture_url, u.suspended, u.deleted
        FROM users u
        JOIN user_enrolments ue ON ue.user_id = u.id
        JOIN enrolments e ON e.id = ue.enrolment_id
        WHERE e.course_id = $1
        ORDER BY u.id`

	var users []models.EnrolledUser
	if err := r.db.SelectContext(ctx, &users, userQuery, courseID); err != nil {
		return nil, fmt.Errorf("query enrolled users for course %d: %w", courseID, err)
	}
	if len(users) == 0 {
		return users, nil
	}

	type roleRow struct {
		UserID    int64  `db:"user_id"`
		RoleID    int64  `db:"role_id"`
		ShortName string `db:"shortname"`
		ContextID int64  `db:"context_id"`
	}

	roleQuery := `SELECT ra.user_id, ra.role_id, r.shortname, ra.context_id
        FROM role_assignments ra
        JOIN roles r ON r.id = ra.role_id
        JOIN contexts ctx ON ctx.id = ra.context_id
        WHERE ctx.context_level = $1 AND ctx.instance_id = $2
        ORDER BY ra.user_id, ra.role_id`

	var roles []roleRow
	if err := r.db.SelectContext(ctx, &roles, roleQuery, models.ContextLevelCourse, courseID); err != nil {
		return nil, fmt.Errorf("query role assignments for course %d: %w", courseID, err)
	}

	byUser := make(map[int64][]models.RoleAssignment, len(users))
	for _, role := range roles {
		byUser[role.UserID] = append(byUser[role.UserID], models.RoleAssignment{
			RoleID:    role.RoleID,
			ShortName: role.ShortName,
			ContextID: role.ContextID,
		})
	}
	for i := range users {
		users[i].Roles = byUser[users[i].ID]
	}
	return users, nil
}

// StudentRoleIDs returns the ids of roles whose archetype marks their
// holders as students.
func (r *CategoryRepository) StudentRoleIDs(ctx context.Context) (map[int64]struct{}, error) {
	query := `SELECT id FROM roles WHERE archetype = 'student'`

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("query student roles: %w", err)
	}

	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// CompletionsByCourse returns the set of user ids with a recorded
// course completion. Completion is binary; the row's presence is the
// whole signal.
func (r *CategoryRepository) CompletionsByCourse(ctx context.Context, courseID int64) (map[int64]struct{}, error) {
	query := `SELECT user_id FROM course_completions
        WHERE course_id = $1 AND time_completed > 0`

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, courseID); err != nil {
		return nil, fmt.Errorf("query completions for course %d: %w", courseID, err)
	}

	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}
