package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/clearview-lms/clearview-api/pkg/errors"
)

func newExportFixture(t *testing.T) (*ExportService, *mockCategoryRepo, *stubCache) {
	t.Helper()
	reports, repo, cacheRepo := newReportFixture(t)
	return NewExportService(reports, zap.NewNop()), repo, cacheRepo
}

func TestExportCategoryReportCoursesCSV(t *testing.T) {
	svc, _, _ := newExportFixture(t)

	file, err := svc.CategoryReport(context.Background(), 2, nil, ExportViewCourses, ExportFormatCSV, false)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(file.ContentType, "text/csv"))
	assert.True(t, strings.HasSuffix(file.Filename, ".csv"))
	assert.True(t, bytes.HasPrefix(file.Data, []byte{0xEF, 0xBB, 0xBF}))

	body := string(bytes.TrimPrefix(file.Data, []byte{0xEF, 0xBB, 0xBF}))
	lines := strings.Split(strings.TrimRight(body, "\r\n"), "\r\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Course ID;ID number;Course name;Start date;Completion average", lines[0])
	assert.Contains(t, lines[1], "Mechanics")
	assert.Contains(t, lines[1], ";50")
}

func TestExportCategoryReportStudentsCSV(t *testing.T) {
	svc, _, _ := newExportFixture(t)

	file, err := svc.CategoryReport(context.Background(), 2, nil, ExportViewStudents, ExportFormatCSV, false)
	require.NoError(t, err)

	body := string(bytes.TrimPrefix(file.Data, []byte{0xEF, 0xBB, 0xBF}))
	lines := strings.Split(strings.TrimRight(body, "\r\n"), "\r\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "Ada")
	assert.Contains(t, lines[3], "Grace")
}

func TestExportExtendedStudentsCSV(t *testing.T) {
	svc, repo, cacheRepo := newExportFixture(t)
	warmCache(t, svc.reports, repo, cacheRepo)

	file, err := svc.CategoryReport(context.Background(), 1, nil, ExportViewStudents, ExportFormatCSV, true)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(file.Filename, "category_1_extended_students_"))

	body := string(bytes.TrimPrefix(file.Data, []byte{0xEF, 0xBB, 0xBF}))
	lines := strings.Split(strings.TrimRight(body, "\r\n"), "\r\n")
	require.Len(t, lines, 4)

	// Alan's row carries his merged cross-category average.
	assert.Contains(t, lines[2], "Alan")
	assert.Contains(t, lines[2], ";50")
	assert.Contains(t, lines[3], "Grace")
	assert.Contains(t, lines[3], ";100")
}

func TestExportExtendedCoursesCSV(t *testing.T) {
	svc, repo, cacheRepo := newExportFixture(t)
	warmCache(t, svc.reports, repo, cacheRepo)

	file, err := svc.CategoryReport(context.Background(), 1, nil, ExportViewCourses, ExportFormatCSV, true)
	require.NoError(t, err)

	body := string(bytes.TrimPrefix(file.Data, []byte{0xEF, 0xBB, 0xBF}))
	lines := strings.Split(strings.TrimRight(body, "\r\n"), "\r\n")

	// Courses from both subcategories appear in the merged view.
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "Mechanics")
	assert.Contains(t, lines[3], "Kinetics")
}

func TestExportExtendedNotReady(t *testing.T) {
	svc, _, _ := newExportFixture(t)

	_, err := svc.CategoryReport(context.Background(), 1, nil, ExportViewStudents, ExportFormatCSV, true)
	assert.ErrorIs(t, err, appErrors.ErrCacheNotReady)
}

func TestExportCategoryReportPDF(t *testing.T) {
	svc, _, _ := newExportFixture(t)

	file, err := svc.CategoryReport(context.Background(), 2, nil, ExportViewCourses, ExportFormatPDF, false)
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))
}

func TestExportCategoryReportInvalidArguments(t *testing.T) {
	svc, _, _ := newExportFixture(t)

	_, err := svc.CategoryReport(context.Background(), 2, nil, "grades", ExportFormatCSV, false)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.CategoryReport(context.Background(), 2, nil, ExportViewCourses, "xlsx", false)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExportFilenamesAreUnique(t *testing.T) {
	a := exportFilename(2, ExportViewCourses, ExportFormatCSV, false)
	b := exportFilename(2, ExportViewCourses, ExportFormatCSV, false)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "category_2_courses_"))
}
