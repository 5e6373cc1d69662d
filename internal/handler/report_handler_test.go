package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clearview-lms/clearview-api/internal/middleware"
	"github.com/clearview-lms/clearview-api/internal/models"
	"github.com/clearview-lms/clearview-api/internal/service"
	"github.com/clearview-lms/clearview-api/pkg/config"
	appErrors "github.com/clearview-lms/clearview-api/pkg/errors"
)

type stubCategoryRepo struct {
	categories []models.Category
	courses    map[int64][]models.Course
	users      map[int64][]models.EnrolledUser
	completed  map[int64]map[int64]struct{}
}

func (s *stubCategoryRepo) ListCategories(context.Context) ([]models.Category, error) {
	return s.categories, nil
}

func (s *stubCategoryRepo) CoursesByCategory(_ context.Context, categoryID int64) ([]models.Course, error) {
	return s.courses[categoryID], nil
}

func (s *stubCategoryRepo) EnrolledUsers(_ context.Context, courseID int64) ([]models.EnrolledUser, error) {
	return s.users[courseID], nil
}

func (s *stubCategoryRepo) StudentRoleIDs(context.Context) (map[int64]struct{}, error) {
	return map[int64]struct{}{5: {}}, nil
}

func (s *stubCategoryRepo) CompletionsByCourse(_ context.Context, courseID int64) (map[int64]struct{}, error) {
	if set, ok := s.completed[courseID]; ok {
		return set, nil
	}
	return map[int64]struct{}{}, nil
}

type memoryCache struct {
	store map[string][]byte
}

func (m *memoryCache) CategoryKey(categoryID int64) string {
	return fmt.Sprintf("test:catcache:%d", categoryID)
}

func (m *memoryCache) ReportKey(kindID string) string {
	return "test:catcache:advreport:" + kindID
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) (time.Time, error) {
	payload, ok := m.store[key]
	if !ok {
		return time.Time{}, appErrors.ErrCacheMiss
	}
	return time.Now().UTC(), json.Unmarshal(payload, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if m.store == nil {
		m.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.store[key] = payload
	return nil
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	delete(m.store, key)
	return nil
}

func (m *memoryCache) PurgeAll(context.Context) error {
	m.store = make(map[string][]byte)
	return nil
}

func newReportHandler(t *testing.T) *ReportHandler {
	t.Helper()
	repo := &stubCategoryRepo{
		categories: []models.Category{
			{ID: 1, ParentID: 0, Name: "All", FQN: "All"},
			{ID: 2, ParentID: 1, Name: "Physics", FQN: "All / Physics"},
		},
		courses: map[int64][]models.Course{
			2: {{ID: 10, IDNumber: "PHY-101", FullName: "Mechanics", CategoryID: 2}},
		},
		users: map[int64][]models.EnrolledUser{
			10: {{ID: 7, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.org",
				Roles: []models.RoleAssignment{{RoleID: 5, ShortName: "student"}}}},
		},
		completed: map[int64]map[int64]struct{}{10: {7: {}}},
	}

	cacheSvc := service.NewCacheService(&memoryCache{}, nil, zap.NewNop(), true)
	aggregator := service.NewAggregationService(repo, nil, zap.NewNop())
	tenancy := service.NewTenancyService(config.TenancyConfig{}, zap.NewNop())
	reports := service.NewReportService(aggregator, cacheSvc, tenancy, zap.NewNop())
	exports := service.NewExportService(reports, zap.NewNop())
	return NewReportHandler(reports, exports)
}

func testContext(t *testing.T, target string, categoryID string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	if categoryID != "" {
		c.Params = gin.Params{{Key: "id", Value: categoryID}}
	}
	return c, recorder
}

func TestReportHandlerListCategories(t *testing.T) {
	h := newReportHandler(t)
	c, recorder := testContext(t, "/api/v1/categories", "")

	h.ListCategories(c)

	require.Equal(t, http.StatusOK, recorder.Code)

	var envelope struct {
		Data []models.Category `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 2)
}

func TestReportHandlerCategoryReport(t *testing.T) {
	h := newReportHandler(t)
	c, recorder := testContext(t, "/api/v1/categories/2/report", "2")

	h.CategoryReport(c)

	require.Equal(t, http.StatusOK, recorder.Code)

	var envelope struct {
		Data models.CategoryAggregation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.Equal(t, int64(2), envelope.Data.CategoryID)
	assert.Equal(t, 100, envelope.Data.CompletionAverage)
}

func TestReportHandlerInvalidCategoryID(t *testing.T) {
	h := newReportHandler(t)
	c, recorder := testContext(t, "/api/v1/categories/abc/report", "abc")

	h.CategoryReport(c)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestReportHandlerUnknownCategory(t *testing.T) {
	h := newReportHandler(t)
	c, recorder := testContext(t, "/api/v1/categories/999/report", "999")

	h.CategoryReport(c)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestReportHandlerExtendedNotReady(t *testing.T) {
	h := newReportHandler(t)
	c, recorder := testContext(t, "/api/v1/categories/1/report?extended=true", "1")

	h.CategoryReport(c)

	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.NotEmpty(t, recorder.Header().Get("Retry-After"))
}

func TestReportHandlerExportCSV(t *testing.T) {
	h := newReportHandler(t)
	c, recorder := testContext(t, "/api/v1/categories/2/report/export?format=csv&view=students", "2")

	h.Export(c)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, recorder.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, recorder.Body.String(), "Ada")
}

func TestReportHandlerExportExtendedNotReady(t *testing.T) {
	h := newReportHandler(t)
	c, recorder := testContext(t, "/api/v1/categories/1/report/export?format=csv&view=students&extended=true", "1")

	h.Export(c)

	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.NotEmpty(t, recorder.Header().Get("Retry-After"))
}

func TestReportHandlerExportRejectsUnknownFormat(t *testing.T) {
	h := newReportHandler(t)
	c, recorder := testContext(t, "/api/v1/categories/2/report/export?format=xlsx", "2")

	h.Export(c)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestReportHandlerAppliesViewerFromContext(t *testing.T) {
	repo := &stubCategoryRepo{
		categories: []models.Category{{ID: 2, ParentID: 0, Name: "Physics", FQN: "Physics"}},
		courses:    map[int64][]models.Course{2: {{ID: 10, FullName: "Mechanics", CategoryID: 2}}},
		users: map[int64][]models.EnrolledUser{
			10: {
				{ID: 7, FirstName: "Ada", Roles: []models.RoleAssignment{{RoleID: 5}}},
				{ID: 13, FirstName: "Grace", Roles: []models.RoleAssignment{{RoleID: 5}, {RoleID: 6}}},
			},
		},
		completed: map[int64]map[int64]struct{}{10: {13: {}}},
	}
	tenancyCfg := config.TenancyConfig{Rules: []config.TenancyRule{
		{AuthorityRoleID: 9, SubordinateRoleIDs: []int64{6}},
	}}

	cacheSvc := service.NewCacheService(&memoryCache{}, nil, zap.NewNop(), true)
	aggregator := service.NewAggregationService(repo, nil, zap.NewNop())
	tenancy := service.NewTenancyService(tenancyCfg, zap.NewNop())
	reports := service.NewReportService(aggregator, cacheSvc, tenancy, zap.NewNop())
	h := NewReportHandler(reports, nil)

	c, recorder := testContext(t, "/api/v1/categories/2/report", "2")
	c.Set(middleware.ContextUserKey, &models.ViewerClaims{UserID: 99, RoleIDs: []int64{9}})

	h.CategoryReport(c)

	require.Equal(t, http.StatusOK, recorder.Code)

	var envelope struct {
		Data models.CategoryAggregation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.Equal(t, []int64{13}, envelope.Data.StudentIDs)
	assert.Equal(t, 100, envelope.Data.CompletionAverage)
}
