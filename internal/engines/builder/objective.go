package builder

import (
	"math"

	"github.com/capbudget/portfolio/pkg/core"
)

// Weights returns the objective coefficient of every project:
//
//	alpha*benefit + (1-alpha)*social_score
//
// A missing social score counts as zero.
func Weights(catalog *core.Catalog, alpha float64) ([]float64, error) {
	if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
		return nil, core.NewConfigurationError("multi_crit_alpha", "must be between 0 and 1, got %g", alpha)
	}
	weights := make([]float64, catalog.Len())
	for i := range weights {
		p := catalog.Project(i)
		weights[i] = alpha*p.Benefit + (1-alpha)*p.Social()
	}
	return weights, nil
}
