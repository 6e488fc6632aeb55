// Package bnb is the default solver.Capability: a depth-first branch-and-bound over
// binary variables.
//
// Nodes are pruned when a constraint can no longer be met by any completion of the
// partial assignment, and bounded by the linear relaxation of the remaining free
// variables (gonum's simplex). When a request asks for a pool the engine keeps the
// best N leaves it visits, which makes it a capability with native pooling. Time
// limits are read from an injectable clock; a done context stops the search with the
// best assignment found so far.
package bnb
