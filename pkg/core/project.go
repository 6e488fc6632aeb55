package core

import (
	"math"
	"strings"
	"unicode"
)

// RequiresDelimiter separates prerequisite identifiers in tabular input.
const RequiresDelimiter = ";"

// Project is a candidate for selection.
type Project struct {
	// ID is the unique, stable identifier of the project.
	ID string `json:"id" yaml:"id"`

	// Name is a human readable label.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Cost is charged against the budget when the project is selected.
	Cost float64 `json:"cost" yaml:"cost"`

	// Benefit is the primary value criterion.
	Benefit float64 `json:"benefit" yaml:"benefit"`

	// Region is the category label used by regional quotas.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Requires lists the projects that must be selected whenever this one is.
	Requires []string `json:"requires,omitempty" yaml:"requires,omitempty"`

	// ExclusiveGroup is an optional label; at most one project per label is selected.
	ExclusiveGroup string `json:"exclusive_group,omitempty" yaml:"exclusive_group,omitempty"`

	// Resources maps a resource name (e.g. "labour", "land") to the amount consumed.
	// Resources absent from the map are consumed at 0.
	Resources map[string]float64 `json:"resources,omitempty" yaml:"resources,omitempty"`

	// Priority is informational and does not enter the model.
	Priority *int `json:"priority,omitempty" yaml:"priority,omitempty"`

	// SocialScore is the secondary value criterion blended by multi_crit_alpha.
	SocialScore *float64 `json:"social_score,omitempty" yaml:"social_score,omitempty"`
}

// Consumption returns the amount of the named resource consumed by the project.
func (p *Project) Consumption(resource string) float64 {
	return p.Resources[resource]
}

// Social returns the social score, defaulting to 0 when unset.
func (p *Project) Social() float64 {
	if p.SocialScore == nil {
		return 0
	}
	return *p.SocialScore
}

// ParseRequires splits a semicolon-delimited prerequisite list, dropping blanks.
func ParseRequires(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, RequiresDelimiter)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if id := strings.TrimSpace(p); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// FormatRequires is the inverse of ParseRequires.
func FormatRequires(ids []string) string {
	return strings.Join(ids, RequiresDelimiter)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// malformedGroup reports whether an exclusivity label tries to name several groups
// or carries control characters.
func malformedGroup(label string) bool {
	if strings.Contains(label, RequiresDelimiter) {
		return true
	}
	return strings.IndexFunc(label, unicode.IsControl) >= 0
}
