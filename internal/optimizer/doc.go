// Package optimizer implements the solve session of the portfolio selector.
//
// A Session owns a catalog and a solving capability and runs at most one solve at a
// time. Each solve request goes through the same pipeline:
//
//	Configuration → Model Builder → Capability → Pool Extractor → Enumerator
//	  (SolveConfig)    (builder)      (solver)        (pool)        (enumerator)
//
// The enumerator only runs when the extractor yields fewer distinct solutions than
// requested and the primary solve found at least one.
//
// Example usage:
//
//	session := optimizer.NewSession(catalog, bnb.New(),
//	    optimizer.WithRecorder(recorder),
//	)
//
//	result, err := session.Solve(ctx, cfg)
//	if err != nil {
//	    // validation, configuration or ErrSessionBusy
//	    return err
//	}
//
//	log.Info("solve complete",
//	    "status", result.Status,
//	    "objective", result.Objective,
//	    "requested", result.RequestedPoolSize,
//	    "achieved", result.AchievedPoolSize,
//	    "partial", result.Partial)
//
// Session States:
//
//	Idle → Building → Solving → {Optimal, Feasible, Infeasible,
//	                             TimedOutNoSolution, Cancelled, Error} → Idle
//
// Enumeration rounds re-enter the capability without leaving Solving, so callers see
// exactly one terminal state per request. A request that fails validation goes from
// Building straight back to Idle.
//
// Concurrency:
//
//   - A second Solve while one is running fails with ErrSessionBusy
//   - Cancel stops the running solve; the capability returns its best so far and the
//     enumerator stops before the next round, tagging the pool as partial
//   - ReplaceCatalog fails with ErrSessionBusy while a solve holds the session
//
// Error Handling:
//
// Validation and configuration failures are returned as errors and leave the session
// usable. Solver outcomes (infeasible, timeouts, capability errors) are part of the
// Result, never errors.
package optimizer
