package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCategoryRepositoryListCategories(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCategoryRepository(db)

	rows := sqlmock.NewRows([]string{"id", "parent_id", "name", "fqn"}).
		AddRow(1, 0, "Science", "Science").
		AddRow(2, 1, "Physics", "Science / Physics")
	mock.ExpectQuery("WITH RECURSIVE category_path").WillReturnRows(rows)

	categories, err := repo.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, categories, 2)
	require.Equal(t, "Science / Physics", categories[1].FQN)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepositoryCoursesByCategory(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCategoryRepository(db)

	rows := sqlmock.NewRows([]string{"id", "idnumber", "fullname", "category_id", "start_date"}).
		AddRow(10, "PHY-101", "Mechanics", 2, 1700000000)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, idnumber, fullname, category_id, start_date")).
		WithArgs(int64(2)).
		WillReturnRows(rows)

	courses, err := repo.CoursesByCategory(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.Equal(t, int64(10), courses[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepositoryEnrolledUsersJoinsRoles(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCategoryRepository(db)

	userRows := sqlmock.NewRows([]string{"id", "idnumber", "firstname", "lastname", "email", "picture_url", "suspended", "deleted"}).
		AddRow(7, "S-7", "Ada", "Lovelace", "ada@example.org", "", false, false).
		AddRow(8, "S-8", "Alan", "Turing", "alan@example.org", "", false, false)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT u.id")).
		WithArgs(int64(10)).
		WillReturnRows(userRows)

	roleRows := sqlmock.NewRows([]string{"user_id", "role_id", "shortname", "context_id"}).
		AddRow(7, 5, "student", 100).
		AddRow(8, 3, "editingteacher", 100)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT ra.user_id, ra.role_id")).
		WithArgs(50, int64(10)).
		WillReturnRows(roleRows)

	users, err := repo.EnrolledUsers(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Len(t, users[0].Roles, 1)
	require.Equal(t, "student", users[0].Roles[0].ShortName)
	require.Equal(t, "editingteacher", users[1].Roles[0].ShortName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepositoryStudentRoleIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCategoryRepository(db)

	rows := sqlmock.NewRows([]string{"id"}).AddRow(5)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM roles WHERE archetype = 'student'")).
		WillReturnRows(rows)

	ids, err := repo.StudentRoleIDs(context.Background())
	require.NoError(t, err)
	require.Contains(t, ids, int64(5))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepositoryCompletionsByCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCategoryRepository(db)

	rows := sqlmock.NewRows([]string{"user_id"}).AddRow(7)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM course_completions")).
		WithArgs(int64(10)).
		WillReturnRows(rows)

	completed, err := repo.CompletionsByCourse(context.Background(), 10)
	require.NoError(t, err)
	require.Contains(t, completed, int64(7))
	require.NotContains(t, completed, int64(8))
	require.NoError(t, mock.ExpectationsWereMet())
}
