// Package v1alpha1 contains the wire types of the portfolio HTTP API: catalog
// records, solve requests and solve responses.
package v1alpha1
