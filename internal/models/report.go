package models

import "regexp"

// ReportScope tells where an advanced report applies.
type ReportScope string

const (
	// ReportScopeSystem reports run over the whole site and are
	// refreshed into the cache by the scheduled job.
	ReportScopeSystem ReportScope = "system"
	// ReportScopeCourse reports run against a single course and are
	// always built on demand.
	ReportScopeCourse ReportScope = "course"
)

// HostPatternAll matches every deployment host.
const HostPatternAll = "*"

// ReportKind describes one advanced report as plain data: its scope and
// host applicability travel with the kind instead of living on a type.
type ReportKind struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Columns     []string    `json:"columns"`
	Scope       ReportScope `json:"scope"`
	HostPattern string      `json:"host_pattern"`
	CourseID    int64       `json:"course_id"`
}

// MatchesHost reports whether this kind applies to the given deployment
// host. Multi-tenant installs restrict kinds to hosts matching the
// configured pattern.
func (k ReportKind) MatchesHost(host string) bool {
	if k.HostPattern == "" || k.HostPattern == HostPatternAll {
		return true
	}
	matched, err := regexp.MatchString(".*"+k.HostPattern+".*", host)
	if err != nil {
		return false
	}
	return matched
}

// ReportRegistry maps report kind ids to their definitions.
type ReportRegistry struct {
	kinds []ReportKind
	byID  map[string]ReportKind
}

// NewReportRegistry builds a registry preserving configured order.
func NewReportRegistry(kinds []ReportKind) *ReportRegistry {
	registry := &ReportRegistry{
		kinds: append([]ReportKind(nil), kinds...),
		byID:  make(map[string]ReportKind, len(kinds)),
	}
	for _, kind := range kinds {
		registry.byID[kind.ID] = kind
	}
	return registry
}

// Get returns the kind for the given id.
func (r *ReportRegistry) Get(id string) (ReportKind, bool) {
	kind, ok := r.byID[id]
	return kind, ok
}

// All returns every registered kind in configured order.
func (r *ReportRegistry) All() []ReportKind {
	return append([]ReportKind(nil), r.kinds...)
}

// SystemKinds returns the system-scope kinds applicable to the host.
func (r *ReportRegistry) SystemKinds(host string) []ReportKind {
	var out []ReportKind
	for _, kind := range r.kinds {
		if kind.Scope == ReportScopeSystem && kind.MatchesHost(host) {
			out = append(out, kind)
		}
	}
	return out
}

// ReportData is the two-dimensional payload of one advanced report.
type ReportData struct {
	KindID  string     `json:"kind_id"`
	Title   string     `json:"title"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}
