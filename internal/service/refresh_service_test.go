package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clearview-lms/clearview-api/internal/models"
	appErrors "github.com/clearview-lms/clearview-api/pkg/errors"
)

func newRefreshFixture(t *testing.T) (*RefreshService, *mockCategoryRepo, *stubCache) {
	t.Helper()
	repo := newFixtureRepo()
	cacheRepo := &stubCache{}
	cacheSvc := NewCacheService(cacheRepo, nil, zap.NewNop(), true)
	aggregator := NewAggregationService(repo, nil, zap.NewNop())

	advRepo := &mockAdvancedReportRepo{}
	registry := BuildRegistry([]string{KindOutstandingAssignments})
	advreports := NewAdvancedReportService(advRepo, registry, cacheSvc, "school.example.org", zap.NewNop())

	svc := NewRefreshService(aggregator, advreports, cacheSvc, nil, zap.NewNop(), time.Hour, 2)
	return svc, repo, cacheRepo
}

func TestRefreshAllPopulatesEveryCategory(t *testing.T) {
	svc, repo, cacheRepo := newRefreshFixture(t)

	require.NoError(t, svc.RefreshAll(context.Background()))

	for _, category := range repo.categories {
		_, ok := cacheRepo.store[cacheRepo.CategoryKey(category.ID)]
		assert.True(t, ok, "category %d missing from cache", category.ID)
	}
	_, ok := cacheRepo.store[cacheRepo.ReportKey(KindOutstandingAssignments)]
	assert.True(t, ok, "system report missing from cache")

	// Three categories plus the one system report, nothing else.
	assert.Len(t, cacheRepo.store, len(repo.categories)+1)

	var never models.CategoryAggregation
	_, err := cacheRepo.Get(context.Background(), cacheRepo.CategoryKey(4), &never)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestRefreshAllPurgesStaleEntries(t *testing.T) {
	svc, _, cacheRepo := newRefreshFixture(t)
	ctx := context.Background()

	require.NoError(t, cacheRepo.Set(ctx, cacheRepo.CategoryKey(999), &models.CategoryAggregation{CategoryID: 999}, 0))

	require.NoError(t, svc.RefreshAll(ctx))

	_, ok := cacheRepo.store[cacheRepo.CategoryKey(999)]
	assert.False(t, ok, "stale entry survived the purge")
}

func TestRefreshAllProducesServableData(t *testing.T) {
	refreshSvc, repo, cacheRepo := newRefreshFixture(t)
	require.NoError(t, refreshSvc.RefreshAll(context.Background()))

	cacheSvc := NewCacheService(cacheRepo, nil, zap.NewNop(), true)
	aggregator := NewAggregationService(repo, nil, zap.NewNop())
	tenancy := NewTenancyService(mentorRules(), zap.NewNop())
	reports := NewReportService(aggregator, cacheSvc, tenancy, zap.NewNop())

	extended, err := reports.ExtendedReport(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 75, extended.CategoryCompletionAverage)
}

func TestRefreshNotRunningAfterCompletion(t *testing.T) {
	svc, _, _ := newRefreshFixture(t)

	assert.False(t, svc.Running())
	require.NoError(t, svc.RefreshAll(context.Background()))
	assert.False(t, svc.Running())
}
