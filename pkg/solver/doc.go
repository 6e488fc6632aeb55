// Package solver defines the binary optimization model and the solving capability
// contract used by the portfolio selector.
//
// Key Components:
//
//   - Model: binary variables, linear constraints and a linear objective to maximize
//   - Capability: the black-box contract "solve this binary program, maximize the
//     objective, respect the time budget"
//   - Status: the tagged outcome of a solve (Optimal, Feasible, Infeasible,
//     TimedOutNoSolution, Cancelled, Error)
//   - NoGoodCut: the exclusion constraint forbidding an exact repeat of a selection
//
// The default Capability lives in the bnb subpackage. Other engines plug in by
// implementing Capability; every engine-specific fallback (for instance reading
// alternative solutions in several ways) belongs inside the adapter, never in callers.
//
// Example usage:
//
//	model := &solver.Model{
//	    Name:      "portfolio",
//	    VarNames:  []string{"P1", "P2"},
//	    Objective: []float64{5, 4},
//	    Constraints: []solver.Constraint{
//	        solver.LessOrEqual("budget", []solver.Term{{Var: 0, Coeff: 10}, {Var: 1, Coeff: 10}}, 10),
//	    },
//	}
//	result, err := engine.Solve(ctx, &solver.Request{Model: model, TimeLimit: 5 * time.Second})
//	if err != nil {
//	    return err
//	}
//	if result.Status.HasSolution() {
//	    log.Info("best selection", "objective", result.Best.Objective)
//	}
//
// Models are immutable once built. Enumeration rounds pass extra cuts through
// Request.Cuts rather than mutating the model.
package solver
