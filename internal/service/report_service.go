package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/clearview-lms/clearview-api/internal/models"
	appErrors "github.com/clearview-lms/clearview-api/pkg/errors"
)

// ReportService assembles category completion reports from cached
// aggregations, falling back to an inline build for the direct view.
type ReportService struct {
	aggregator *AggregationService
	cache      *CacheService
	tenancy    *TenancyService
	logger     *zap.Logger
}

// NewReportService constructs the report service.
func NewReportService(aggregator *AggregationService, cache *CacheService, tenancy *TenancyService, logger *zap.Logger) *ReportService {
	return &ReportService{aggregator: aggregator, cache: cache, tenancy: tenancy, logger: logger}
}

// ListCategories returns every known category ordered by id.
func (s *ReportService) ListCategories(ctx context.Context) ([]models.Category, error) {
	tree, err := s.aggregator.CategoryTree(ctx)
	if err != nil {
		return nil, err
	}
	return tree.Categories(), nil
}

// CategoryReport returns the direct (single category) view. A cache
// miss triggers an inline rebuild so the first request after a purge
// still succeeds, at the cost of latency. The result is scoped to the
// viewer before it is returned.
func (s *ReportService) CategoryReport(ctx context.Context, categoryID int64, viewer *models.ViewerClaims) (*models.CategoryAggregation, bool, error) {
	tree, err := s.aggregator.CategoryTree(ctx)
	if err != nil {
		return nil, false, err
	}
	category, ok := tree.Category(categoryID)
	if !ok {
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "category not found")
	}

	agg, hit, err := s.loadOrBuild(ctx, category)
	if err != nil {
		return nil, false, err
	}
	return s.tenancy.FilterForViewer(viewer, agg), hit, nil
}

// ExtendedReport returns the category merged with its whole subtree.
// The extended view only reads cached aggregations: rebuilding a full
// subtree inline could hold a request for minutes, so any missing
// entry reports the data as not ready instead.
func (s *ReportService) ExtendedReport(ctx context.Context, categoryID int64, viewer *models.ViewerClaims) (*models.ExtendedAggregation, error) {
	tree, err := s.aggregator.CategoryTree(ctx)
	if err != nil {
		return nil, err
	}
	if !tree.Contains(categoryID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
	}

	ids := append([]int64{categoryID}, tree.DescendantIDs(categoryID)...)

	aggregations := make([]*models.CategoryAggregation, 0, len(ids))
	for _, id := range ids {
		var agg models.CategoryAggregation
		hit, _, err := s.cache.Get(ctx, s.cache.CategoryKey(id), &agg)
		if err != nil {
			return nil, err
		}
		if !hit {
			if s.logger != nil {
				s.logger.Info("extended report missing cached category",
					zap.Int64("root_id", categoryID), zap.Int64("category_id", id))
			}
			return nil, appErrors.ErrCacheNotReady
		}
		aggregations = append(aggregations, s.tenancy.FilterForViewer(viewer, &agg))
	}

	return mergeAggregations(aggregations), nil
}

func (s *ReportService) loadOrBuild(ctx context.Context, category models.Category) (*models.CategoryAggregation, bool, error) {
	key := s.cache.CategoryKey(category.ID)

	var cached models.CategoryAggregation
	hit, _, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		return nil, false, err
	}
	if hit {
		return &cached, true, nil
	}

	agg, err := s.aggregator.BuildCategoryAggregation(ctx, category)
	if err != nil {
		return nil, false, err
	}
	if err := s.cache.Set(ctx, key, agg, 0); err != nil && s.logger != nil {
		s.logger.Warn("failed to store rebuilt aggregation", zap.Int64("category_id", category.ID), zap.Error(err))
	}
	return agg, false, nil
}

// mergeAggregations folds the root and its descendants into one
// extended view. The first aggregation is the root; the slice keeps
// ascending category-id order.
func mergeAggregations(aggregations []*models.CategoryAggregation) *models.ExtendedAggregation {
	extended := &models.ExtendedAggregation{
		Courses:  make(map[int64]*models.CourseAggregate),
		Students: make(map[int64]*models.StudentAggregate),
	}
	if len(aggregations) == 0 {
		return extended
	}
	extended.Root = aggregations[0]

	var categorySum, categoryCount int
	for _, agg := range aggregations {
		extended.CategoryIDs = append(extended.CategoryIDs, agg.CategoryID)

		// Categories without courses say nothing about completion and
		// are left out of the combined average.
		if agg.HasCourses() {
			categorySum += agg.CompletionAverage
			categoryCount++
		}

		for _, courseID := range agg.CourseIDs {
			extended.Courses[courseID] = agg.Courses[courseID]
			extended.CourseIDs = append(extended.CourseIDs, courseID)
		}

		for _, studentID := range agg.StudentIDs {
			incoming := agg.Students[studentID]
			existing, ok := extended.Students[studentID]
			if !ok {
				merged := *incoming
				if incoming.Completions != nil {
					merged.Completions = make(map[int64]models.CompletionRecord, len(incoming.Completions))
					for courseID, record := range incoming.Completions {
						merged.Completions[courseID] = record
					}
				}
				extended.Students[studentID] = &merged
				extended.StudentIDs = append(extended.StudentIDs, studentID)
				continue
			}
			// Completion records only merge when both sides carry a map;
			// a student without one keeps their entry untouched.
			if existing.Completions != nil && incoming.Completions != nil {
				for courseID, record := range incoming.Completions {
					existing.Completions[courseID] = record
				}
			}
		}
	}

	sort.Slice(extended.CourseIDs, func(i, j int) bool { return extended.CourseIDs[i] < extended.CourseIDs[j] })
	sort.Slice(extended.StudentIDs, func(i, j int) bool { return extended.StudentIDs[i] < extended.StudentIDs[j] })

	var studentSum int
	for _, id := range extended.StudentIDs {
		student := extended.Students[id]
		student.CompletionAverage = studentAverage(student)
		studentSum += student.CompletionAverage
	}

	extended.CategoryCompletionAverage = roundMean(categorySum, categoryCount)
	extended.StudentCompletionAverage = roundMean(studentSum, len(extended.StudentIDs))
	return extended
}
