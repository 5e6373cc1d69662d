package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clearview-lms/clearview-api/internal/models"
	"github.com/clearview-lms/clearview-api/internal/repository"
	appErrors "github.com/clearview-lms/clearview-api/pkg/errors"
)

// KindOutstandingAssignments lists students with assignments they have
// never submitted.
const KindOutstandingAssignments = "outstanding_assignments"

// AdvancedReportFetcher abstracts the queries behind advanced reports.
type AdvancedReportFetcher interface {
	OutstandingAssignments(ctx context.Context, courseID int64) ([]repository.OutstandingAssignmentRow, error)
}

// AdvancedReportService resolves advanced report kinds against the
// registry and serves their data, cached for system-scope kinds and
// built on demand for course-scope ones.
type AdvancedReportService struct {
	repo     AdvancedReportFetcher
	registry *models.ReportRegistry
	cache    *CacheService
	host     string
	logger   *zap.Logger
}

// NewAdvancedReportService constructs the advanced report service.
func NewAdvancedReportService(repo AdvancedReportFetcher, registry *models.ReportRegistry, cache *CacheService, host string, logger *zap.Logger) *AdvancedReportService {
	return &AdvancedReportService{repo: repo, registry: registry, cache: cache, host: host, logger: logger}
}

// Kinds returns the registered kinds applicable to this deployment.
func (s *AdvancedReportService) Kinds() []models.ReportKind {
	var out []models.ReportKind
	for _, kind := range s.registry.All() {
		if kind.MatchesHost(s.host) {
			out = append(out, kind)
		}
	}
	return out
}

// SystemKinds returns the system-scope kinds the refresh cycle must
// prebuild for this deployment.
func (s *AdvancedReportService) SystemKinds() []models.ReportKind {
	return s.registry.SystemKinds(s.host)
}

// Get serves one advanced report. System-scope kinds come from cache
// only; until the refresh cycle has produced them the data is reported
// as not ready. Course-scope kinds run their query directly.
func (s *AdvancedReportService) Get(ctx context.Context, kindID string) (*models.ReportData, bool, error) {
	kind, ok := s.registry.Get(kindID)
	if !ok || !kind.MatchesHost(s.host) {
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "unknown report")
	}

	if kind.Scope == models.ReportScopeSystem {
		var data models.ReportData
		hit, _, err := s.cache.Get(ctx, s.cache.ReportKey(kind.ID), &data)
		if err != nil {
			return nil, false, err
		}
		if !hit {
			return nil, false, appErrors.ErrCacheNotReady
		}
		return &data, true, nil
	}

	data, err := s.Build(ctx, kind)
	if err != nil {
		return nil, false, err
	}
	return data, false, nil
}

// Build runs the query for the given kind and shapes the rows.
func (s *AdvancedReportService) Build(ctx context.Context, kind models.ReportKind) (*models.ReportData, error) {
	switch kind.ID {
	case KindOutstandingAssignments:
		rows, err := s.repo.OutstandingAssignments(ctx, kind.CourseID)
		if err != nil {
			return nil, err
		}
		data := &models.ReportData{
			KindID:  kind.ID,
			Title:   kind.Title,
			Columns: kind.Columns,
			Rows:    make([][]string, 0, len(rows)),
		}
		for _, row := range rows {
			data.Rows = append(data.Rows, []string{
				row.FirstName,
				row.LastName,
				row.Email,
				row.CourseFullName,
				row.AssignmentName,
				formatDueDate(row.DueDate),
			})
		}
		return data, nil
	default:
		return nil, fmt.Errorf("no builder for report kind %q", kind.ID)
	}
}

// DefaultReportKinds lists every kind this build knows how to produce.
func DefaultReportKinds() []models.ReportKind {
	return []models.ReportKind{
		{
			ID:          KindOutstandingAssignments,
			Title:       "Outstanding assignments",
			Columns:     []string{"First name", "Last name", "Email", "Course", "Assignment", "Due date"},
			Scope:       models.ReportScopeSystem,
			HostPattern: models.HostPatternAll,
		},
	}
}

// BuildRegistry filters the known kinds down to the configured set,
// preserving configuration order.
func BuildRegistry(enabledKinds []string) *models.ReportRegistry {
	known := make(map[string]models.ReportKind)
	for _, kind := range DefaultReportKinds() {
		known[kind.ID] = kind
	}

	var kinds []models.ReportKind
	for _, id := range enabledKinds {
		if kind, ok := known[id]; ok {
			kinds = append(kinds, kind)
		}
	}
	return models.NewReportRegistry(kinds)
}

func formatDueDate(unix int64) string {
	if unix <= 0 {
		return ""
	}
	return time.Unix(unix, 0).UTC().Format("2006-01-02")
}
