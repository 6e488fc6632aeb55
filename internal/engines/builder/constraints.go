package builder

import (
	"fmt"
	"math"

	"github.com/capbudget/portfolio/pkg/config"
	"github.com/capbudget/portfolio/pkg/core"
	"github.com/capbudget/portfolio/pkg/solver"
)

// Constraints derives the constraint set for a catalog and a solve configuration.
// Constraints are emitted in a fixed order: budget, resource caps, exclusivity,
// dependencies, regional quotas, cardinality. Within each family the order is sorted
// by name (catalog order for dependencies), so identical inputs always give identical
// models.
func Constraints(catalog *core.Catalog, cfg *config.SolveConfig) ([]solver.Constraint, error) {
	budget, err := budgetConstraint(catalog, cfg)
	if err != nil {
		return nil, err
	}
	out := []solver.Constraint{budget}

	resources, err := resourceConstraints(catalog, cfg)
	if err != nil {
		return nil, err
	}
	out = append(out, resources...)
	out = append(out, exclusivityConstraints(catalog)...)
	out = append(out, dependencyConstraints(catalog)...)

	quotas, err := quotaConstraints(catalog, cfg)
	if err != nil {
		return nil, err
	}
	out = append(out, quotas...)

	if cfg.CardinalityK != nil {
		if *cfg.CardinalityK < 0 {
			return nil, core.NewConfigurationError("cardinality_k", "must be >= 0, got %d", *cfg.CardinalityK)
		}
		out = append(out, solver.LessOrEqual("cardinality", ones(allIndices(catalog.Len())), float64(*cfg.CardinalityK)))
	}
	return out, nil
}

func budgetConstraint(catalog *core.Catalog, cfg *config.SolveConfig) (solver.Constraint, error) {
	if cfg.Budget == nil {
		return solver.Constraint{}, core.NewConfigurationError("budget", "is required")
	}
	budget := *cfg.Budget
	if math.IsNaN(budget) || math.IsInf(budget, 0) || budget < 0 {
		return solver.Constraint{}, core.NewConfigurationError("budget", "must be a finite number >= 0, got %g", budget)
	}
	terms := make([]solver.Term, 0, catalog.Len())
	for i := 0; i < catalog.Len(); i++ {
		if cost := catalog.Project(i).Cost; cost != 0 {
			terms = append(terms, solver.Term{Var: i, Coeff: cost})
		}
	}
	return solver.LessOrEqual("budget", terms, budget), nil
}

func resourceConstraints(catalog *core.Catalog, cfg *config.SolveConfig) ([]solver.Constraint, error) {
	var out []solver.Constraint
	for _, name := range sortedKeys(cfg.ResourceCaps) {
		capacity := cfg.ResourceCaps[name]
		if math.IsNaN(capacity) || math.IsInf(capacity, 0) || capacity < 0 {
			return nil, core.NewDataValidationError("", fmt.Sprintf("resource_caps[%s]", name), "must be a finite number >= 0, got %g", capacity)
		}
		var terms []solver.Term
		for i := 0; i < catalog.Len(); i++ {
			if use := catalog.Project(i).Consumption(name); use != 0 {
				terms = append(terms, solver.Term{Var: i, Coeff: use})
			}
		}
		out = append(out, solver.LessOrEqual(fmt.Sprintf("resource[%s]", name), terms, capacity))
	}
	return out, nil
}

func exclusivityConstraints(catalog *core.Catalog) []solver.Constraint {
	var out []solver.Constraint
	for _, label := range catalog.ExclusiveGroups() {
		members := catalog.GroupMembers(label)
		if len(members) < 2 {
			continue
		}
		out = append(out, solver.LessOrEqual(fmt.Sprintf("exclusive[%s]", label), ones(members), 1))
	}
	return out
}

// dependencyConstraints emits x_p - x_r <= 0 for every prerequisite r of p.
func dependencyConstraints(catalog *core.Catalog) []solver.Constraint {
	var out []solver.Constraint
	for i := 0; i < catalog.Len(); i++ {
		p := catalog.Project(i)
		for _, req := range p.Requires {
			r, ok := catalog.Index(req)
			if !ok {
				// NewCatalog rejects unknown requirements
				continue
			}
			terms := []solver.Term{{Var: i, Coeff: 1}, {Var: r, Coeff: -1}}
			out = append(out, solver.LessOrEqual(fmt.Sprintf("requires[%s:%s]", p.ID, req), terms, 0))
		}
	}
	return out
}

func quotaConstraints(catalog *core.Catalog, cfg *config.SolveConfig) ([]solver.Constraint, error) {
	var out []solver.Constraint
	for _, region := range sortedKeys(cfg.RegionalQuota) {
		q := cfg.RegionalQuota[region]
		field := fmt.Sprintf("regional_quota[%s]", region)
		members := catalog.RegionMembers(region)

		if q.Min != nil {
			switch {
			case *q.Min < 0:
				return nil, core.NewConfigurationError(field, "min must be >= 0, got %d", *q.Min)
			case *q.Min > len(members):
				return nil, core.NewConfigurationError(field, "min %d exceeds the %d projects available in the region", *q.Min, len(members))
			}
		}
		if q.Max != nil && *q.Max < 0 {
			return nil, core.NewConfigurationError(field, "max must be >= 0, got %d", *q.Max)
		}
		if q.Min != nil && q.Max != nil && *q.Min > *q.Max {
			return nil, core.NewConfigurationError(field, "min (%d) exceeds max (%d)", *q.Min, *q.Max)
		}

		terms := ones(members)
		if q.Min != nil && *q.Min > 0 {
			out = append(out, solver.GreaterOrEqual(field+".min", terms, float64(*q.Min)))
		}
		if q.Max != nil && *q.Max < len(members) {
			out = append(out, solver.LessOrEqual(field+".max", terms, float64(*q.Max)))
		}
	}
	return out, nil
}

func ones(indices []int) []solver.Term {
	terms := make([]solver.Term, len(indices))
	for k, i := range indices {
		terms[k] = solver.Term{Var: i, Coeff: 1}
	}
	return terms
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
