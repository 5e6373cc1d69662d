package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestAdvancedReportRepositoryOutstandingAssignmentsSiteWide(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAdvancedReportRepository(db)

	rows := sqlmock.NewRows([]string{"firstname", "lastname", "email", "course_fullname", "assignment_name", "due_date"}).
		AddRow("Ada", "Lovelace", "ada@example.org", "Mechanics", "Lab report 1", 1700000000)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT u.firstname, u.lastname, u.email")).
		WillReturnRows(rows)

	result, err := repo.OutstandingAssignments(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Equal(t, "Lab report 1", result[0].AssignmentName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvancedReportRepositoryOutstandingAssignmentsScopedToCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAdvancedReportRepository(db)

	rows := sqlmock.NewRows([]string{"firstname", "lastname", "email", "course_fullname", "assignment_name", "due_date"})
	mock.ExpectQuery(regexp.QuoteMeta("AND c.id = $1")).
		WithArgs(int64(10)).
		WillReturnRows(rows)

	result, err := repo.OutstandingAssignments(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, result)
	require.NoError(t, mock.ExpectationsWereMet())
}
