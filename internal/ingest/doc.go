// Package ingest loads project catalogs from tabular files.
//
// Every format is a Source; sources share one conversion from a header row and data
// rows into core.Project records:
//
//	src, err := ingest.OpenFile("projects.xlsx")
//	catalog, err := ingest.LoadCatalog(ctx, src)
//
// # Columns
//
// Headers are matched case-insensitively, with spaces read as underscores. The
// columns id (or the legacy proj_id), cost and benefit are required; name, region,
// requires (a semicolon separated list of ids), exclusive_group (or group), priority
// and social_score are optional. Any other column holding at least one number, or
// named after a common resource such as labour or land, is a resource consumed by
// the project; every non-empty cell of it must then be a number. Other text columns
// are ignored.
//
// Cells that should hold a number but do not are reported as
// core.DataValidationError, all of them at once.
package ingest
