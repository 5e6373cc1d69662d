package service

import (
	"go.uber.org/zap"

	"github.com/clearview-lms/clearview-api/internal/models"
	"github.com/clearview-lms/clearview-api/pkg/config"
)

// TenancyService narrows report payloads down to the students a viewer
// is entitled to see. Every rule whose authority role the viewer holds
// is applied in configured order, and each pass keeps only students
// holding one of that rule's subordinate roles, so multiple matching
// rules can only narrow the result further. Site admins and viewers
// with no matching rule see everything.
type TenancyService struct {
	rules  []config.TenancyRule
	logger *zap.Logger
}

// NewTenancyService constructs the tenancy service.
func NewTenancyService(cfg config.TenancyConfig, logger *zap.Logger) *TenancyService {
	return &TenancyService{rules: cfg.Rules, logger: logger}
}

// matchingRoleSets returns one subordinate role set per rule whose
// authority role the viewer holds, in configured order. Empty means no
// rule applies and the viewer keeps the full view.
func (s *TenancyService) matchingRoleSets(viewer *models.ViewerClaims) []map[int64]struct{} {
	if viewer == nil || viewer.SiteAdmin {
		return nil
	}

	var sets []map[int64]struct{}
	for _, rule := range s.rules {
		if !viewer.HasRole(rule.AuthorityRoleID) {
			continue
		}
		allowed := make(map[int64]struct{}, len(rule.SubordinateRoleIDs))
		for _, roleID := range rule.SubordinateRoleIDs {
			allowed[roleID] = struct{}{}
		}
		sets = append(sets, allowed)
	}
	return sets
}

// FilterForViewer removes students outside the viewer's scope from the
// aggregation, in place, and recomputes the category average over the
// remaining students. The per-course averages keep their unfiltered
// values; they describe the course, not the viewer's slice of it.
func (s *TenancyService) FilterForViewer(viewer *models.ViewerClaims, agg *models.CategoryAggregation) *models.CategoryAggregation {
	if agg == nil {
		return nil
	}
	sets := s.matchingRoleSets(viewer)
	if len(sets) == 0 {
		return agg
	}

	removed := 0
	for _, allowed := range sets {
		for _, courseID := range agg.CourseIDs {
			course := agg.Courses[courseID]
			course.StudentIDs = filterIDs(course.StudentIDs, course.Students, allowed)
		}
		before := len(agg.StudentIDs)
		agg.StudentIDs = filterIDs(agg.StudentIDs, agg.Students, allowed)
		removed += before - len(agg.StudentIDs)

		var sum int
		for _, id := range agg.StudentIDs {
			sum += agg.Students[id].CompletionAverage
		}
		agg.CompletionAverage = roundMean(sum, len(agg.StudentIDs))
	}

	if s.logger != nil && removed > 0 {
		s.logger.Debug("tenancy filter applied",
			zap.Int64("category_id", agg.CategoryID),
			zap.Int("rules", len(sets)),
			zap.Int("students_removed", removed))
	}
	return agg
}

func filterIDs(ids []int64, students map[int64]*models.StudentAggregate, allowed map[int64]struct{}) []int64 {
	kept := ids[:0]
	for _, id := range ids {
		student := students[id]
		if student != nil && holdsAllowedRole(student, allowed) {
			kept = append(kept, id)
			continue
		}
		delete(students, id)
	}
	return kept
}

func holdsAllowedRole(student *models.StudentAggregate, allowed map[int64]struct{}) bool {
	for _, role := range student.Roles {
		if _, ok := allowed[role.RoleID]; ok {
			return true
		}
	}
	return false
}
