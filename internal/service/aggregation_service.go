package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/clearview-lms/clearview-api/internal/models"
)

// CategoryFetcher abstracts the read queries the aggregator needs.
type CategoryFetcher interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	CoursesByCategory(ctx context.Context, categoryID int64) ([]models.Course, error)
	EnrolledUsers(ctx context.Context, courseID int64) ([]models.EnrolledUser, error)
	StudentRoleIDs(ctx context.Context) (map[int64]struct{}, error)
	CompletionsByCourse(ctx context.Context, courseID int64) (map[int64]struct{}, error)
}

// AggregationService rolls raw enrolment and completion rows up into
// per-category report payloads.
type AggregationService struct {
	repo    CategoryFetcher
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAggregationService constructs the aggregation service.
func NewAggregationService(repo CategoryFetcher, metrics *MetricsService, logger *zap.Logger) *AggregationService {
	return &AggregationService{repo: repo, metrics: metrics, logger: logger}
}

// CategoryTree loads every category and assembles the lookup tree.
func (s *AggregationService) CategoryTree(ctx context.Context) (*models.CategoryTree, error) {
	start := time.Now()
	categories, err := s.repo.ListCategories(ctx)
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("list_categories", time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	return models.NewCategoryTree(categories), nil
}

// BuildCategoryAggregation computes the completion rollup for a single
// category. Courses of descendant categories are not included; merging
// the subtree is the report service's concern.
func (s *AggregationService) BuildCategoryAggregation(ctx context.Context, category models.Category) (*models.CategoryAggregation, error) {
	studentRoles, err := s.repo.StudentRoleIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load student roles: %w", err)
	}

	courses, err := s.repo.CoursesByCategory(ctx, category.ID)
	if err != nil {
		return nil, err
	}

	agg := &models.CategoryAggregation{
		CategoryID: category.ID,
		Name:       category.Name,
		FQN:        category.FQN,
		Courses:    make(map[int64]*models.CourseAggregate, len(courses)),
		Students:   make(map[int64]*models.StudentAggregate),
	}

	for _, course := range courses {
		courseAgg, err := s.buildCourseAggregate(ctx, course, studentRoles, agg.Students)
		if err != nil {
			return nil, err
		}
		agg.Courses[course.ID] = courseAgg
		agg.CourseIDs = append(agg.CourseIDs, course.ID)
	}
	sort.Slice(agg.CourseIDs, func(i, j int) bool { return agg.CourseIDs[i] < agg.CourseIDs[j] })

	for id, student := range agg.Students {
		student.CompletionAverage = studentAverage(student)
		agg.StudentIDs = append(agg.StudentIDs, id)
	}
	sort.Slice(agg.StudentIDs, func(i, j int) bool { return agg.StudentIDs[i] < agg.StudentIDs[j] })

	agg.CompletionAverage = categoryAverage(agg)

	if s.logger != nil {
		s.logger.Debug("category aggregated",
			zap.Int64("category_id", category.ID),
			zap.Int("courses", len(agg.CourseIDs)),
			zap.Int("students", len(agg.StudentIDs)))
	}
	return agg, nil
}

func (s *AggregationService) buildCourseAggregate(ctx context.Context, course models.Course, studentRoles map[int64]struct{}, flat map[int64]*models.StudentAggregate) (*models.CourseAggregate, error) {
	start := time.Now()
	users, err := s.repo.EnrolledUsers(ctx, course.ID)
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("enrolled_users", time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	completed, err := s.repo.CompletionsByCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}

	courseAgg := &models.CourseAggregate{
		Info: models.CourseInfo{
			ID:         course.ID,
			IDNumber:   sanitizeIdentity(course.IDNumber),
			FullName:   sanitizeIdentity(course.FullName),
			CategoryID: course.CategoryID,
			StartDate:  course.StartDate,
		},
		Students: make(map[int64]*models.StudentAggregate),
	}

	var scoreSum, scoreCount int
	for _, user := range users {
		if user.Deleted || user.Suspended {
			continue
		}
		if !user.HasRole(studentRoles) {
			continue
		}

		record := models.CompletionRecord{CourseID: course.ID, Score: models.CompletionScoreIncomplete}
		if _, ok := completed[user.ID]; ok {
			record.Complete = true
			record.Score = models.CompletionScoreComplete
		}
		scoreSum += record.Score
		scoreCount++

		courseAgg.Students[user.ID] = &models.StudentAggregate{
			Info:              studentInfo(user),
			PictureURL:        user.PictureURL,
			Roles:             user.Roles,
			Completions:       map[int64]models.CompletionRecord{course.ID: record},
			CompletionAverage: record.Score,
		}
		courseAgg.StudentIDs = append(courseAgg.StudentIDs, user.ID)

		// Identity fields keep their first-seen values when a student
		// shows up in several courses of the category.
		if existing, ok := flat[user.ID]; ok {
			existing.Completions[course.ID] = record
		} else {
			flat[user.ID] = &models.StudentAggregate{
				Info:        studentInfo(user),
				PictureURL:  user.PictureURL,
				Roles:       user.Roles,
				Completions: map[int64]models.CompletionRecord{course.ID: record},
			}
		}
	}
	sort.Slice(courseAgg.StudentIDs, func(i, j int) bool { return courseAgg.StudentIDs[i] < courseAgg.StudentIDs[j] })

	if scoreCount > 0 {
		courseAgg.CompletionAverage = roundMean(scoreSum, scoreCount)
	}
	return courseAgg, nil
}

func studentInfo(user models.EnrolledUser) models.StudentInfo {
	return models.StudentInfo{
		ID:        user.ID,
		IDNumber:  sanitizeIdentity(user.IDNumber),
		FirstName: sanitizeIdentity(user.FirstName),
		LastName:  sanitizeIdentity(user.LastName),
		Email:     sanitizeIdentity(user.Email),
	}
}

// sanitizeIdentity strips control characters and trims surrounding
// whitespace from identity fields before they enter an aggregation.
func sanitizeIdentity(value string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
	return strings.TrimSpace(cleaned)
}

// studentAverage returns the rounded mean of the student's scores
// across every course they appear in, 0 with no records.
func studentAverage(student *models.StudentAggregate) int {
	if student == nil || len(student.Completions) == 0 {
		return 0
	}
	var sum int
	for _, record := range student.Completions {
		sum += record.Score
	}
	return roundMean(sum, len(student.Completions))
}

// categoryAverage returns the rounded mean of the per-course averages,
// 0 when the category has no courses.
func categoryAverage(agg *models.CategoryAggregation) int {
	if agg == nil || len(agg.CourseIDs) == 0 {
		return 0
	}
	var sum int
	for _, id := range agg.CourseIDs {
		sum += agg.Courses[id].CompletionAverage
	}
	return roundMean(sum, len(agg.CourseIDs))
}

// roundMean rounds half away from zero, matching how the category
// pages have always displayed percentages.
func roundMean(sum, count int) int {
	if count == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(count)))
}
