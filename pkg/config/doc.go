// Package config provides the solve-request configuration of the portfolio selector.
//
// A SolveConfig carries the knobs that turn a catalog into an optimization model and
// drive the solve: budget, resource capacities, regional quotas, the cardinality bound,
// the time limit, the requested pool size and the multi-criteria weight.
//
// Configuration Sources:
//
//  1. Solve requests (JSON over HTTP, YAML files for the CLI)
//  2. Named solve profiles merged underneath the request (internal/config)
//  3. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.ParseSolveConfig(data)
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    // *core.ConfigurationError or *core.DataValidationError
//	    return err
//	}
//	log.Info("solve configuration",
//	    "budget", *cfg.Budget,
//	    "poolSize", cfg.RequestedPoolSize(),
//	    "timeLimit", cfg.TimeLimitDuration())
//
// Configuration Validation:
//
// Validate rejects, before any model is built:
//   - a missing or non-finite budget, a negative budget
//   - multi_crit_alpha outside [0, 1]
//   - a non-positive time limit, a negative pool size or cardinality bound
//   - quota bounds that are negative or where min exceeds max
//   - negative or non-finite resource capacities (as data validation errors)
//
// Quotas that exceed the projects available in a region can only be detected against a
// catalog; the model builder reports those.
package config
