// Package core provides the fundamental data structures of the portfolio selector.
//
// This package contains the domain models shared by the model builder, the solving
// engines and the solve session:
//
//   - Project: a candidate project with its cost, benefit, region, prerequisites,
//     exclusivity group and resource consumption
//   - Catalog: a validated, read-only set of projects indexed by identifier
//   - Solution: an immutable ranked selection returned to callers
//   - DataValidationError / ConfigurationError: the request-level error taxonomy
//
// Example usage:
//
//	catalog, err := core.NewCatalog([]core.Project{
//	    {ID: "P1", Name: "Bridge", Cost: 120, Benefit: 300, Region: "North"},
//	    {ID: "P2", Name: "Road", Cost: 80, Benefit: 150, Region: "North", Requires: []string{"P1"}},
//	})
//	if err != nil {
//	    var dve *core.DataValidationError
//	    if errors.As(err, &dve) {
//	        log.Info("invalid project", "project", dve.ProjectID, "field", dve.Field)
//	    }
//	    return err
//	}
//
// A Catalog is never mutated after construction. Replacing the data of a session
// means building a new Catalog, which keeps concurrent readers safe.
package core
