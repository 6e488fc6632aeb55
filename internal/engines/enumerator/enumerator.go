package enumerator

import (
	"context"
	"time"

	"k8s.io/utils/clock"

	"github.com/capbudget/portfolio/internal/engines/pool"
	"github.com/capbudget/portfolio/internal/logging"
	"github.com/capbudget/portfolio/pkg/solver"
)

// StopReason tells why enumeration ended.
type StopReason string

// enumeration of StopReason
const (
	StopPoolFilled StopReason = "PoolFilled"
	StopExhausted  StopReason = "Exhausted"
	StopTimeBudget StopReason = "TimeBudget"
	StopCancelled  StopReason = "Cancelled"
	StopError      StopReason = "Error"
)

// DefaultMinRoundTime is the smallest time slice handed to a single round, unless the
// remaining budget is smaller.
const DefaultMinRoundTime = 250 * time.Millisecond

// Enumerator synthesizes additional distinct solutions by re-solving a model with one
// no-good cut per solution already found.
type Enumerator struct {
	capability   solver.Capability
	clock        clock.PassiveClock
	minRoundTime time.Duration
}

// Option configures an Enumerator.
type Option func(*Enumerator)

// WithClock sets the time source of the cumulative budget.
func WithClock(c clock.PassiveClock) Option {
	return func(e *Enumerator) {
		e.clock = c
	}
}

// WithMinRoundTime overrides DefaultMinRoundTime.
func WithMinRoundTime(d time.Duration) Option {
	return func(e *Enumerator) {
		e.minRoundTime = d
	}
}

// New creates an Enumerator driving capability.
func New(capability solver.Capability, opts ...Option) *Enumerator {
	e := &Enumerator{
		capability:   capability,
		clock:        clock.RealClock{},
		minRoundTime: DefaultMinRoundTime,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Budget is the time allowance of a run.
type Budget struct {
	// TimeLimit is the overall limit of the solve request. Each round is allotted
	// TimeLimit divided by the requested count.
	TimeLimit time.Duration

	// Remaining is what is left of TimeLimit when the run starts.
	Remaining time.Duration
}

// Outcome is the result of a run.
type Outcome struct {
	// Candidates holds the found solutions and the ones synthesized, best first.
	Candidates []solver.Candidate

	Rounds int
	Reason StopReason

	// LastStatus is the status of the last round, empty when no round ran.
	LastStatus solver.Status

	// Message carries the capability message of an Error round.
	Message string
}

// Run extends found until it holds requested distinct candidates, the model has no
// further solution, the budget runs out, or ctx is done. Cancellation is observed
// between rounds; a round in flight ends with whatever the capability returns.
func (e *Enumerator) Run(ctx context.Context, model *solver.Model, found []solver.Candidate, requested int, budget Budget) Outcome {
	logger := logging.FromContext(ctx)
	start := e.clock.Now()
	deadline := start.Add(budget.Remaining)

	acc := append([]solver.Candidate(nil), found...)
	seen := make(map[string]struct{}, requested)
	for i := range acc {
		seen[acc[i].Key()] = struct{}{}
	}
	out := Outcome{}

	for {
		if len(acc) >= requested {
			out.Reason = StopPoolFilled
			break
		}
		if ctx.Err() != nil {
			out.Reason = StopCancelled
			break
		}
		remaining := deadline.Sub(e.clock.Now())
		if remaining <= 0 {
			out.Reason = StopTimeBudget
			break
		}

		req := &solver.Request{
			Model:     model,
			TimeLimit: e.roundTime(budget.TimeLimit, requested, remaining),
			Cuts:      cuts(acc, model.NumVars()),
			PoolSize:  requested - len(acc),
		}
		res := solver.Invoke(ctx, e.capability, req)
		out.Rounds++
		out.LastStatus = res.Status

		added := 0
		for _, c := range pool.Extract(ctx, req, res, requested-len(acc)) {
			if _, dup := seen[c.Key()]; dup {
				continue
			}
			seen[c.Key()] = struct{}{}
			acc = append(acc, c)
			added++
		}
		logger.V(logging.DEBUG).Info("Enumeration round finished",
			"round", out.Rounds,
			"status", res.Status,
			"added", added,
			"found", len(acc),
			"requested", requested)

		reason, stop := stopFor(res.Status, added)
		if stop {
			out.Reason = reason
			out.Message = res.Message
			if reason == StopError && out.Message == "" {
				out.Message = "capability reported a solution without a usable assignment"
			}
			break
		}
	}

	pool.Sort(acc)
	out.Candidates = acc
	return out
}

func stopFor(status solver.Status, added int) (StopReason, bool) {
	switch status {
	case solver.StatusOptimal, solver.StatusFeasible:
		if added == 0 {
			return StopError, true
		}
		return "", false
	case solver.StatusInfeasible:
		return StopExhausted, true
	case solver.StatusTimedOutNoSolution:
		return StopTimeBudget, true
	case solver.StatusCancelled:
		return StopCancelled, true
	default:
		return StopError, true
	}
}

func (e *Enumerator) roundTime(timeLimit time.Duration, requested int, remaining time.Duration) time.Duration {
	round := e.minRoundTime
	if requested > 0 && timeLimit/time.Duration(requested) > round {
		round = timeLimit / time.Duration(requested)
	}
	if round > remaining {
		round = remaining
	}
	return round
}

func cuts(found []solver.Candidate, n int) []solver.Constraint {
	out := make([]solver.Constraint, len(found))
	for i := range found {
		out[i] = solver.NoGoodCut(found[i].Selected, n)
	}
	return out
}
