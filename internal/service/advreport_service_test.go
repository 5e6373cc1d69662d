package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clearview-lms/clearview-api/internal/models"
	"github.com/clearview-lms/clearview-api/internal/repository"
	appErrors "github.com/clearview-lms/clearview-api/pkg/errors"
)

type mockAdvancedReportRepo struct {
	rows  []repository.OutstandingAssignmentRow
	calls int
}

func (m *mockAdvancedReportRepo) OutstandingAssignments(context.Context, int64) ([]repository.OutstandingAssignmentRow, error) {
	m.calls++
	return m.rows, nil
}

func newAdvReportFixture(host string) (*AdvancedReportService, *mockAdvancedReportRepo, *stubCache) {
	repo := &mockAdvancedReportRepo{rows: []repository.OutstandingAssignmentRow{
		{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.org", CourseFullName: "Mechanics", AssignmentName: "Lab report 1", DueDate: 1700000000},
		{FirstName: "Alan", LastName: "Turing", Email: "alan@example.org", CourseFullName: "Mechanics", AssignmentName: "Lab report 1"},
	}}
	cacheRepo := &stubCache{}
	cacheSvc := NewCacheService(cacheRepo, nil, zap.NewNop(), true)
	registry := BuildRegistry([]string{KindOutstandingAssignments})
	return NewAdvancedReportService(repo, registry, cacheSvc, host, zap.NewNop()), repo, cacheRepo
}

func TestBuildRegistryFiltersUnknownKinds(t *testing.T) {
	registry := BuildRegistry([]string{"nonexistent", KindOutstandingAssignments})
	kinds := registry.All()
	require.Len(t, kinds, 1)
	assert.Equal(t, KindOutstandingAssignments, kinds[0].ID)
}

func TestAdvancedReportUnknownKind(t *testing.T) {
	svc, _, _ := newAdvReportFixture("school.example.org")

	_, _, err := svc.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAdvancedReportSystemKindNotReady(t *testing.T) {
	svc, repo, _ := newAdvReportFixture("school.example.org")

	_, _, err := svc.Get(context.Background(), KindOutstandingAssignments)
	assert.ErrorIs(t, err, appErrors.ErrCacheNotReady)
	// System-scope kinds never query inline.
	assert.Zero(t, repo.calls)
}

func TestAdvancedReportSystemKindServedFromCache(t *testing.T) {
	svc, _, cacheRepo := newAdvReportFixture("school.example.org")
	ctx := context.Background()

	kind, _ := svc.registry.Get(KindOutstandingAssignments)
	built, err := svc.Build(ctx, kind)
	require.NoError(t, err)
	require.NoError(t, cacheRepo.Set(ctx, cacheRepo.ReportKey(kind.ID), built, 0))

	data, cacheHit, err := svc.Get(ctx, KindOutstandingAssignments)
	require.NoError(t, err)
	assert.True(t, cacheHit)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, []string{"Ada", "Lovelace", "ada@example.org", "Mechanics", "Lab report 1", "2023-11-14"}, data.Rows[0])
	// A zero due date renders empty.
	assert.Equal(t, "", data.Rows[1][5])
}

func TestAdvancedReportHostRestriction(t *testing.T) {
	repo := &mockAdvancedReportRepo{}
	cacheSvc := NewCacheService(&stubCache{}, nil, zap.NewNop(), true)
	registry := models.NewReportRegistry([]models.ReportKind{{
		ID:          KindOutstandingAssignments,
		Title:       "Outstanding assignments",
		Columns:     []string{"First name"},
		Scope:       models.ReportScopeSystem,
		HostPattern: "campus-a",
	}})
	svc := NewAdvancedReportService(repo, registry, cacheSvc, "campus-b.example.org", zap.NewNop())

	assert.Empty(t, svc.Kinds())
	assert.Empty(t, svc.SystemKinds())
	_, _, err := svc.Get(context.Background(), KindOutstandingAssignments)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestReportKindMatchesHost(t *testing.T) {
	kind := models.ReportKind{HostPattern: models.HostPatternAll}
	assert.True(t, kind.MatchesHost("anything.example.org"))

	kind.HostPattern = "campus-a"
	assert.True(t, kind.MatchesHost("campus-a.example.org"))
	assert.False(t, kind.MatchesHost("campus-b.example.org"))

	kind.HostPattern = ""
	assert.True(t, kind.MatchesHost("campus-b.example.org"))
}
