package v1alpha1

import (
	"go.uber.org/multierr"
	"k8s.io/utils/ptr"

	"github.com/capbudget/portfolio/pkg/config"
	"github.com/capbudget/portfolio/pkg/core"
)

// ProjectRecord is one catalog row as exchanged over the API.
type ProjectRecord struct {
	// ID uniquely identifies the project.
	// +required
	ID string `json:"id,omitempty"`

	// LegacyID is accepted in place of ID for records exported by older tools.
	// +optional
	LegacyID string `json:"proj_id,omitempty"`

	// +optional
	Name string `json:"name,omitempty"`

	// Cost is charged against the budget. Must be finite and >= 0.
	// +required
	Cost *float64 `json:"cost"`

	// Benefit is the primary value criterion.
	// +required
	Benefit *float64 `json:"benefit"`

	// +optional
	Region string `json:"region,omitempty"`

	// Requires is a semicolon separated list of prerequisite project ids.
	// +optional
	Requires string `json:"requires,omitempty"`

	// +optional
	ExclusiveGroup string `json:"exclusive_group,omitempty"`

	// Resources maps a resource name to the amount consumed.
	// +optional
	Resources map[string]float64 `json:"resources,omitempty"`

	// +optional
	Priority *int `json:"priority,omitempty"`

	// +optional
	SocialScore *float64 `json:"social_score,omitempty"`
}

// CatalogDocument is the body of the catalog endpoints.
type CatalogDocument struct {
	Projects []ProjectRecord `json:"projects"`
}

// RegionQuota bounds the number of selected projects of one region.
type RegionQuota struct {
	// +optional
	Min *int `json:"min,omitempty"`
	// +optional
	Max *int `json:"max,omitempty"`
}

// SolveRequest carries the configuration of one solve. Fields left out fall back to
// the selected profile and then to the defaults.
type SolveRequest struct {
	Budget *float64 `json:"budget,omitempty"`

	// +optional
	ResourceCaps map[string]float64 `json:"resource_caps,omitempty"`

	// +optional
	RegionalQuota map[string]RegionQuota `json:"regional_quota,omitempty"`

	// +optional
	CardinalityK *int `json:"cardinality_k,omitempty"`

	// TimeLimit is the overall budget in seconds, enumeration included.
	// +optional
	TimeLimit *float64 `json:"time_limit,omitempty"`

	// PoolSize is the number of distinct solutions requested.
	// +optional
	PoolSize *int `json:"pool_size,omitempty"`

	// +optional
	MultiCritAlpha *float64 `json:"multi_crit_alpha,omitempty"`
}

// SolveResponse is the outcome of a solve request.
type SolveResponse struct {
	SessionID string `json:"session_id"`
	RequestID string `json:"request_id"`

	// Status is one of Optimal, Feasible, Infeasible, TimedOutNoSolution, Cancelled
	// or Error.
	Status string `json:"status"`

	Objective   float64  `json:"objective"`
	SelectedIDs []string `json:"selected_ids"`

	Pool []core.Solution `json:"pool"`

	RequestedPoolSize int `json:"requested_pool_size"`
	AchievedPoolSize  int `json:"achieved_pool_size"`

	// Partial is set when fewer solutions than requested were found for a reason
	// other than the model having no more.
	Partial    bool   `json:"partial"`
	StopReason string `json:"stop_reason"`
	Rounds     int    `json:"rounds"`

	// +optional
	Message string `json:"message,omitempty"`

	ElapsedSeconds float64 `json:"elapsed_seconds"`

	RegionSummary []core.RegionSummary `json:"region_summary"`
}

// SessionStatus describes the solve session of a server.
type SessionStatus struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Projects  int    `json:"projects"`
}

// ProfileList names the solve profiles a server knows.
type ProfileList struct {
	Profiles []string `json:"profiles"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`

	// Reason classifies the error, see the Reason constants.
	Reason string `json:"reason"`

	// +optional
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail locates one validation problem.
type ErrorDetail struct {
	// +optional
	ProjectID string `json:"project_id,omitempty"`
	Field     string `json:"field"`
	Message   string `json:"message"`
}

// enumeration of ErrorResponse reasons
const (
	ReasonDataValidation = "DataValidation"
	ReasonConfiguration  = "Configuration"
	ReasonBusy           = "Busy"
	ReasonNoCatalog      = "NoCatalog"
	ReasonNotFound       = "NotFound"
	ReasonBadRequest     = "BadRequest"
	ReasonInternal       = "Internal"
)

// ToProject converts the record. Prerequisites are split on semicolons. A record
// without cost or benefit is a DataValidationError; the project is still returned so
// that the remaining fields can be validated.
func (r *ProjectRecord) ToProject() (core.Project, error) {
	id := r.ID
	if id == "" {
		id = r.LegacyID
	}
	var errs error
	if r.Cost == nil {
		errs = multierr.Append(errs, core.NewDataValidationError(id, "cost", "is required"))
	}
	if r.Benefit == nil {
		errs = multierr.Append(errs, core.NewDataValidationError(id, "benefit", "is required"))
	}
	p := core.Project{
		ID:             id,
		Name:           r.Name,
		Cost:           ptr.Deref(r.Cost, 0),
		Benefit:        ptr.Deref(r.Benefit, 0),
		Region:         r.Region,
		Requires:       core.ParseRequires(r.Requires),
		ExclusiveGroup: r.ExclusiveGroup,
		Priority:       r.Priority,
		SocialScore:    r.SocialScore,
	}
	if len(r.Resources) > 0 {
		p.Resources = make(map[string]float64, len(r.Resources))
		for k, v := range r.Resources {
			p.Resources[k] = v
		}
	}
	return p, errs
}

// FromProject is the inverse of ToProject.
func FromProject(p *core.Project) ProjectRecord {
	r := ProjectRecord{
		ID:             p.ID,
		Name:           p.Name,
		Cost:           ptr.To(p.Cost),
		Benefit:        ptr.To(p.Benefit),
		Region:         p.Region,
		Requires:       core.FormatRequires(p.Requires),
		ExclusiveGroup: p.ExclusiveGroup,
		Priority:       p.Priority,
		SocialScore:    p.SocialScore,
	}
	if len(p.Resources) > 0 {
		r.Resources = make(map[string]float64, len(p.Resources))
		for k, v := range p.Resources {
			r.Resources[k] = v
		}
	}
	return r
}

// NewCatalog validates the records into a catalog. Missing fields and catalog
// validation problems are reported together.
func (d *CatalogDocument) NewCatalog() (*core.Catalog, error) {
	projects := make([]core.Project, len(d.Projects))
	var errs error
	for i := range d.Projects {
		var err error
		projects[i], err = d.Projects[i].ToProject()
		errs = multierr.Append(errs, err)
	}
	catalog, err := core.NewCatalog(projects)
	if errs = multierr.Append(errs, err); errs != nil {
		return nil, errs
	}
	return catalog, nil
}

// FromCatalog lists the catalog in catalog order. A nil catalog yields no records.
func FromCatalog(c *core.Catalog) CatalogDocument {
	doc := CatalogDocument{Projects: []ProjectRecord{}}
	if c == nil {
		return doc
	}
	for _, p := range c.Projects() {
		doc.Projects = append(doc.Projects, FromProject(&p))
	}
	return doc
}

// ToConfig converts the request into a solve configuration. Absent fields stay unset
// so that they can be filled from a profile.
func (r *SolveRequest) ToConfig() *config.SolveConfig {
	cfg := &config.SolveConfig{
		Budget:         r.Budget,
		ResourceCaps:   r.ResourceCaps,
		CardinalityK:   r.CardinalityK,
		TimeLimit:      r.TimeLimit,
		PoolSize:       r.PoolSize,
		MultiCritAlpha: r.MultiCritAlpha,
	}
	if len(r.RegionalQuota) > 0 {
		cfg.RegionalQuota = make(map[string]config.RegionQuota, len(r.RegionalQuota))
		for region, q := range r.RegionalQuota {
			cfg.RegionalQuota[region] = config.RegionQuota{Min: q.Min, Max: q.Max}
		}
	}
	return cfg.DeepCopy()
}
