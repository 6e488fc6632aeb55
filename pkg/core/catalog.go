package core

import (
	"errors"
	"sort"
	"strings"

	"go.uber.org/multierr"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Catalog is a validated, read-only list of projects. Variable indices of the
// optimization model follow catalog order.
type Catalog struct {
	projects []Project
	index    map[string]int

	regions   map[string][]int
	groups    map[string][]int
	resources []string

	// dependencyOrder lists project ids with prerequisites before dependents.
	dependencyOrder []string
}

// NewCatalog validates the projects and builds a Catalog. All violations found are
// returned together; each one is a *DataValidationError.
func NewCatalog(projects []Project) (*Catalog, error) {
	c := &Catalog{
		projects: make([]Project, 0, len(projects)),
		index:    make(map[string]int, len(projects)),
		regions:  make(map[string][]int),
		groups:   make(map[string][]int),
	}

	var errs error
	for _, p := range projects {
		p = normalizeProject(p)
		if err := validateProject(&p); err != nil {
			errs = multierr.Append(errs, err)
		}
		if p.ID == "" {
			continue
		}
		if _, dup := c.index[p.ID]; dup {
			errs = multierr.Append(errs, NewDataValidationError(p.ID, "id", "duplicate project id"))
			continue
		}
		c.index[p.ID] = len(c.projects)
		c.projects = append(c.projects, p)
	}

	if err := c.validateRequires(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if errs != nil {
		return nil, errs
	}

	order, err := c.sortDependencies()
	if err != nil {
		return nil, err
	}
	c.dependencyOrder = order

	resources := make(map[string]struct{})
	for i := range c.projects {
		p := &c.projects[i]
		c.regions[p.Region] = append(c.regions[p.Region], i)
		if p.ExclusiveGroup != "" {
			c.groups[p.ExclusiveGroup] = append(c.groups[p.ExclusiveGroup], i)
		}
		for name := range p.Resources {
			resources[name] = struct{}{}
		}
	}
	for name := range resources {
		c.resources = append(c.resources, name)
	}
	sort.Strings(c.resources)
	return c, nil
}

func normalizeProject(p Project) Project {
	p.ID = strings.TrimSpace(p.ID)
	p.Region = strings.TrimSpace(p.Region)
	p.ExclusiveGroup = strings.TrimSpace(p.ExclusiveGroup)

	seen := make(map[string]struct{}, len(p.Requires))
	requires := make([]string, 0, len(p.Requires))
	for _, r := range p.Requires {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		requires = append(requires, r)
	}
	p.Requires = requires

	if p.Resources != nil {
		resources := make(map[string]float64, len(p.Resources))
		for k, v := range p.Resources {
			resources[strings.TrimSpace(k)] = v
		}
		p.Resources = resources
	}
	return p
}

func validateProject(p *Project) error {
	var errs error
	if p.ID == "" {
		errs = multierr.Append(errs, NewDataValidationError("", "id", "project id is empty (name %q)", p.Name))
	}
	if !isFinite(p.Cost) {
		errs = multierr.Append(errs, NewDataValidationError(p.ID, "cost", "must be a finite number"))
	} else if p.Cost < 0 {
		errs = multierr.Append(errs, NewDataValidationError(p.ID, "cost", "must be >= 0, got %g", p.Cost))
	}
	if !isFinite(p.Benefit) {
		errs = multierr.Append(errs, NewDataValidationError(p.ID, "benefit", "must be a finite number"))
	}
	if p.SocialScore != nil && !isFinite(*p.SocialScore) {
		errs = multierr.Append(errs, NewDataValidationError(p.ID, "social_score", "must be a finite number"))
	}

	names := make([]string, 0, len(p.Resources))
	for name := range p.Resources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := p.Resources[name]
		switch {
		case name == "":
			errs = multierr.Append(errs, NewDataValidationError(p.ID, "resources", "resource name is empty"))
		case !isFinite(v):
			errs = multierr.Append(errs, NewDataValidationError(p.ID, name, "must be a finite number"))
		case v < 0:
			errs = multierr.Append(errs, NewDataValidationError(p.ID, name, "must be >= 0, got %g", v))
		}
	}

	if p.ExclusiveGroup != "" && malformedGroup(p.ExclusiveGroup) {
		errs = multierr.Append(errs, NewDataValidationError(p.ID, "exclusive_group",
			"malformed group label %q: a project belongs to at most one group", p.ExclusiveGroup))
	}
	return errs
}

func (c *Catalog) validateRequires() error {
	var errs error
	for i := range c.projects {
		p := &c.projects[i]
		for _, r := range p.Requires {
			if r == p.ID {
				errs = multierr.Append(errs, NewDataValidationError(p.ID, "requires", "project requires itself"))
				continue
			}
			if _, ok := c.index[r]; !ok {
				errs = multierr.Append(errs, NewDataValidationError(p.ID, "requires", "unknown project %q", r))
			}
		}
	}
	return errs
}

// sortDependencies orders projects so that prerequisites precede dependents and
// rejects cycles in the requirement graph.
func (c *Catalog) sortDependencies() ([]string, error) {
	g := simple.NewDirectedGraph()
	for i := range c.projects {
		g.AddNode(simple.Node(i))
	}
	for i := range c.projects {
		for _, r := range c.projects[i].Requires {
			g.SetEdge(g.NewEdge(simple.Node(c.index[r]), simple.Node(i)))
		}
	}

	sorted, err := topo.SortStabilized(g, byID)
	if err != nil {
		var cycles topo.Unorderable
		if !errors.As(err, &cycles) {
			return nil, err
		}
		var errs error
		for _, component := range cycles {
			ids := make([]string, 0, len(component))
			for _, n := range component {
				ids = append(ids, c.projects[n.ID()].ID)
			}
			sort.Strings(ids)
			errs = multierr.Append(errs, NewDataValidationError(ids[0], "requires",
				"dependency cycle between %s", strings.Join(ids, ", ")))
		}
		return nil, errs
	}

	order := make([]string, 0, len(sorted))
	for _, n := range sorted {
		order = append(order, c.projects[n.ID()].ID)
	}
	return order, nil
}

func byID(nodes []graph.Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
}

// Len returns the number of projects.
func (c *Catalog) Len() int {
	return len(c.projects)
}

// Project returns the project at index i.
func (c *Catalog) Project(i int) *Project {
	return &c.projects[i]
}

// Projects returns a copy of the project list in catalog order.
func (c *Catalog) Projects() []Project {
	out := make([]Project, len(c.projects))
	copy(out, c.projects)
	return out
}

// Index returns the catalog index of the project with the given id.
func (c *Catalog) Index(id string) (int, bool) {
	i, ok := c.index[id]
	return i, ok
}

// IDs returns the project ids in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.projects))
	for i := range c.projects {
		ids[i] = c.projects[i].ID
	}
	return ids
}

// IDsOf maps catalog indices to project ids.
func (c *Catalog) IDsOf(indices []int) []string {
	ids := make([]string, len(indices))
	for k, i := range indices {
		ids[k] = c.projects[i].ID
	}
	return ids
}

// Regions returns the region labels present in the catalog, sorted.
func (c *Catalog) Regions() []string {
	out := make([]string, 0, len(c.regions))
	for r := range c.regions {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// RegionMembers returns the catalog indices of the projects in a region.
func (c *Catalog) RegionMembers(region string) []int {
	return append([]int(nil), c.regions[region]...)
}

// ExclusiveGroups returns the exclusivity labels present in the catalog, sorted.
func (c *Catalog) ExclusiveGroups() []string {
	out := make([]string, 0, len(c.groups))
	for g := range c.groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// GroupMembers returns the catalog indices of the projects sharing a label.
func (c *Catalog) GroupMembers(label string) []int {
	return append([]int(nil), c.groups[label]...)
}

// ResourceNames returns every resource consumed by at least one project, sorted.
func (c *Catalog) ResourceNames() []string {
	return append([]string(nil), c.resources...)
}

// DependencyOrder lists project ids with every prerequisite before its dependents.
func (c *Catalog) DependencyOrder() []string {
	return append([]string(nil), c.dependencyOrder...)
}
