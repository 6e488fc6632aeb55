package builder

import (
	"context"
	"sort"

	"github.com/capbudget/portfolio/internal/logging"
	"github.com/capbudget/portfolio/pkg/config"
	"github.com/capbudget/portfolio/pkg/core"
	"github.com/capbudget/portfolio/pkg/solver"
)

// ModelName names every model built from a catalog.
const ModelName = "portfolio"

// Build turns a catalog and a solve configuration into a binary model: one variable
// per project in catalog order, the weighted objective and the derived constraints.
// The configuration is validated first; a *core.ConfigurationError or
// *core.DataValidationError is returned before any model exists.
func Build(ctx context.Context, catalog *core.Catalog, cfg *config.SolveConfig) (*solver.Model, error) {
	logger := logging.FromContext(ctx)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	weights, err := Weights(catalog, cfg.Alpha())
	if err != nil {
		return nil, err
	}
	constraints, err := Constraints(catalog, cfg)
	if err != nil {
		return nil, err
	}

	model := &solver.Model{
		Name:        ModelName,
		VarNames:    catalog.IDs(),
		Objective:   weights,
		Constraints: constraints,
	}
	logger.V(logging.DEBUG).Info("Built portfolio model",
		"variables", model.NumVars(),
		"constraints", len(model.Constraints),
		"alpha", cfg.Alpha())
	if logger.V(logging.TRACE).Enabled() {
		for _, c := range model.Constraints {
			logger.V(logging.TRACE).Info("Model constraint", "constraint", c.String())
		}
	}
	return model, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
