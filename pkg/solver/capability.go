package solver

import (
	"context"
	"errors"
	"time"
)

// ErrNoResult is reported for a capability that returned neither a result nor an
// error.
var ErrNoResult = errors.New("capability returned no result")

// Status is the outcome of a solve.
type Status string

// enumeration of Status
const (
	StatusOptimal            Status = "Optimal"
	StatusFeasible           Status = "Feasible"
	StatusInfeasible         Status = "Infeasible"
	StatusTimedOutNoSolution Status = "TimedOutNoSolution"
	StatusCancelled          Status = "Cancelled"
	StatusError              Status = "Error"
)

// HasSolution reports whether a result with this status may carry assignments.
func (s Status) HasSolution() bool {
	switch s {
	case StatusOptimal, StatusFeasible, StatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status stops a search that wants more solutions.
func (s Status) Terminal() bool {
	return s != StatusOptimal && s != StatusFeasible
}

func (s Status) String() string {
	return string(s)
}

// Request asks a Capability to maximize Model.
type Request struct {
	Model *Model

	// TimeLimit bounds the wall time of this call. Zero means no limit.
	TimeLimit time.Duration

	// Cuts are added to the model constraints for this call only.
	Cuts []Constraint

	// PoolSize is a hint for how many alternative assignments to keep. Engines
	// without native pooling ignore it.
	PoolSize int
}

// Assignment is a 0/1 value per model variable and the objective it reaches.
type Assignment struct {
	Values    []float64
	Objective float64
}

// Result is what a Capability returns.
type Result struct {
	Status Status

	// Best is the incumbent when Status.HasSolution(), nil otherwise.
	Best *Assignment

	// Pool holds alternative assignments found natively, best first. It may be empty
	// and may contain entries callers have to discard.
	Pool []Assignment

	// Message explains an Error status.
	Message string

	Elapsed time.Duration
}

// Capability solves binary maximization programs.
//
// Implementations must return, not block, once ctx is done: the result then carries
// StatusCancelled and the best assignment found so far.
type Capability interface {
	Solve(ctx context.Context, req *Request) (*Result, error)
}

// CapabilityFunc adapts a function to the Capability interface.
type CapabilityFunc func(ctx context.Context, req *Request) (*Result, error)

// Solve calls f(ctx, req).
func (f CapabilityFunc) Solve(ctx context.Context, req *Request) (*Result, error) {
	return f(ctx, req)
}

// ErrorResult converts a capability error into an Error result.
func ErrorResult(err error) *Result {
	return &Result{Status: StatusError, Message: err.Error()}
}

// Invoke calls c. A failed call, or one without a result, becomes an Error result, so
// the returned result is never nil.
func Invoke(ctx context.Context, c Capability, req *Request) *Result {
	res, err := c.Solve(ctx, req)
	switch {
	case err != nil:
		return ErrorResult(err)
	case res == nil:
		return ErrorResult(ErrNoResult)
	}
	return res
}
