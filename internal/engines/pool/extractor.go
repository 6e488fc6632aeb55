package pool

import (
	"context"
	"math"
	"sort"

	"github.com/capbudget/portfolio/internal/logging"
	"github.com/capbudget/portfolio/pkg/solver"
)

// Extract normalizes what a capability returned into distinct candidates, best first,
// at most limit of them (limit <= 0 keeps everything).
//
// Native pool entries are read first and the best assignment is merged in, so an
// adapter that leaves the incumbent out of its pool does not lose it. Entries that
// cannot be trusted are dropped one by one: a non-finite objective, the wrong number
// of values, values that are not 0/1, or an assignment that violates the model or the
// request cuts. A result without usable entries yields no candidates, which is not an
// error.
func Extract(ctx context.Context, req *solver.Request, res *solver.Result, limit int) []solver.Candidate {
	logger := logging.FromContext(ctx)
	if res == nil || !res.Status.HasSolution() || req == nil || req.Model == nil {
		return nil
	}

	entries := make([]solver.Assignment, 0, len(res.Pool)+1)
	entries = append(entries, res.Pool...)
	if res.Best != nil {
		entries = append(entries, *res.Best)
	}

	n := req.Model.NumVars()
	byKey := make(map[string]int, len(entries))
	var out []solver.Candidate
	discarded := 0
	for _, a := range entries {
		c, ok := candidateOf(req, a, n)
		if !ok {
			discarded++
			continue
		}
		key := c.Key()
		if i, dup := byKey[key]; dup {
			if c.Objective > out[i].Objective {
				out[i].Objective = c.Objective
			}
			continue
		}
		byKey[key] = len(out)
		out = append(out, c)
	}
	if discarded > 0 {
		logger.V(logging.DEBUG).Info("Discarded unusable pool entries",
			"discarded", discarded,
			"status", res.Status)
	}

	Sort(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func candidateOf(req *solver.Request, a solver.Assignment, n int) (solver.Candidate, bool) {
	if math.IsNaN(a.Objective) || math.IsInf(a.Objective, 0) || len(a.Values) != n {
		return solver.Candidate{}, false
	}
	selected, ok := solver.SelectionFromValues(a.Values)
	if !ok {
		return solver.Candidate{}, false
	}
	c := solver.Candidate{Selected: selected, Objective: a.Objective}
	if req.Model.Violated(c.Mask(n), req.Cuts...) != nil {
		return solver.Candidate{}, false
	}
	return c, true
}

// Sort orders candidates by objective, highest first. Equal objectives are ordered by
// selection key so that the order does not depend on the engine.
func Sort(candidates []solver.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Objective != candidates[j].Objective {
			return candidates[i].Objective > candidates[j].Objective
		}
		return candidates[i].Key() < candidates[j].Key()
	})
}
