package bnb

import (
	"context"
	"errors"
	"sort"
	"time"

	"k8s.io/utils/clock"

	"github.com/capbudget/portfolio/pkg/solver"
)

// Engine is the default in-process solving capability.
type Engine struct {
	clock      clock.PassiveClock
	nativePool bool
	lpBound    bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used for time limits.
func WithClock(c clock.PassiveClock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithNativePool toggles keeping alternative incumbents during the search. When
// disabled the engine behaves like a single-solution solver and callers have to
// enumerate alternatives themselves.
func WithNativePool(enabled bool) Option {
	return func(e *Engine) {
		e.nativePool = enabled
	}
}

// WithLPBound toggles the linear relaxation bound. Without it nodes are bounded by the
// sum of the positive free weights only.
func WithLPBound(enabled bool) Option {
	return func(e *Engine) {
		e.lpBound = enabled
	}
}

// New creates an Engine. By default it uses the real clock, keeps a native pool and
// bounds with the linear relaxation.
func New(opts ...Option) *Engine {
	e := &Engine{
		clock:      clock.RealClock{},
		nativePool: true,
		lpBound:    true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ solver.Capability = (*Engine)(nil)

// Solve maximizes req.Model subject to its constraints and req.Cuts.
func (e *Engine) Solve(ctx context.Context, req *solver.Request) (*solver.Result, error) {
	if req == nil || req.Model == nil {
		return nil, errors.New("bnb: request has no model")
	}
	start := e.clock.Now()
	if err := req.Model.Validate(); err != nil {
		return &solver.Result{Status: solver.StatusError, Message: err.Error()}, nil
	}
	for i := range req.Cuts {
		if err := req.Model.ValidateConstraint(&req.Cuts[i]); err != nil {
			return &solver.Result{Status: solver.StatusError, Message: err.Error()}, nil
		}
	}

	s := newSearch(e, req, start)
	s.branch(ctx, 0, 0)

	res := s.result()
	res.Elapsed = e.clock.Since(start)
	return res, nil
}

type stopReason int

const (
	running stopReason = iota
	deadlineReached
	cancelled
)

type incumbent struct {
	x         []bool
	objective float64
}

type search struct {
	engine *Engine
	model  *solver.Model
	rows   []solver.Constraint

	order []int
	value []int8

	poolCap int
	pool    []incumbent

	deadline    time.Time
	hasDeadline bool

	stopped stopReason
}

const free int8 = -1

func newSearch(e *Engine, req *solver.Request, start time.Time) *search {
	m := req.Model
	n := m.NumVars()
	s := &search{
		engine:  e,
		model:   m,
		rows:    make([]solver.Constraint, 0, len(m.Constraints)+len(req.Cuts)),
		order:   make([]int, n),
		value:   make([]int8, n),
		poolCap: 1,
	}
	s.rows = append(s.rows, m.Constraints...)
	s.rows = append(s.rows, req.Cuts...)
	for j := range s.order {
		s.order[j] = j
		s.value[j] = free
	}
	// highest weight first, index breaks ties
	sort.SliceStable(s.order, func(a, b int) bool {
		return m.Objective[s.order[a]] > m.Objective[s.order[b]]
	})
	if e.nativePool && req.PoolSize > 1 {
		s.poolCap = req.PoolSize
	}
	if req.TimeLimit > 0 {
		s.deadline = start.Add(req.TimeLimit)
		s.hasDeadline = true
	}
	return s
}

func (s *search) branch(ctx context.Context, depth int, objective float64) {
	if s.interrupted(ctx) {
		return
	}
	if !s.consistent() {
		return
	}
	if depth == len(s.order) {
		s.offer(objective)
		return
	}
	if len(s.pool) == s.poolCap && !s.promising(objective) {
		return
	}

	j := s.order[depth]
	for _, v := range [...]int8{1, 0} {
		s.value[j] = v
		next := objective
		if v == 1 {
			next += s.model.Objective[j]
		}
		s.branch(ctx, depth+1, next)
		if s.stopped != running {
			break
		}
	}
	s.value[j] = free
}

func (s *search) interrupted(ctx context.Context) bool {
	if s.stopped != running {
		return true
	}
	if ctx.Err() != nil {
		s.stopped = cancelled
		return true
	}
	if s.hasDeadline && !s.engine.clock.Now().Before(s.deadline) {
		s.stopped = deadlineReached
		return true
	}
	return false
}

// consistent checks every row against the range of activities still reachable from
// the current partial assignment.
func (s *search) consistent() bool {
	for i := range s.rows {
		c := &s.rows[i]
		var lo, hi float64
		for _, t := range c.Terms {
			switch s.value[t.Var] {
			case 1:
				lo += t.Coeff
				hi += t.Coeff
			case free:
				if t.Coeff > 0 {
					hi += t.Coeff
				} else {
					lo += t.Coeff
				}
			}
		}
		switch c.Sense {
		case solver.SenseLE:
			if lo > c.RHS+solver.Tolerance {
				return false
			}
		case solver.SenseGE:
			if hi < c.RHS-solver.Tolerance {
				return false
			}
		default:
			if lo > c.RHS+solver.Tolerance || hi < c.RHS-solver.Tolerance {
				return false
			}
		}
	}
	return true
}

func (s *search) promising(objective float64) bool {
	worst := s.pool[len(s.pool)-1].objective
	threshold := worst + boundSlack(worst)

	optimistic := objective
	for j, v := range s.value {
		if v == free && s.model.Objective[j] > 0 {
			optimistic += s.model.Objective[j]
		}
	}
	if optimistic <= threshold {
		return false
	}
	if !s.engine.lpBound {
		return true
	}
	bound, feasible := s.relaxationBound(objective, optimistic)
	return feasible && bound > threshold
}

func boundSlack(v float64) float64 {
	if v < 0 {
		v = -v
	}
	if v < 1 {
		v = 1
	}
	return 1e-7 * v
}

func (s *search) offer(objective float64) {
	x := make([]bool, len(s.value))
	for j, v := range s.value {
		x[j] = v == 1
	}
	pos := sort.Search(len(s.pool), func(i int) bool {
		return s.pool[i].objective < objective
	})
	if pos >= s.poolCap {
		return
	}
	s.pool = append(s.pool, incumbent{})
	copy(s.pool[pos+1:], s.pool[pos:])
	s.pool[pos] = incumbent{x: x, objective: objective}
	if len(s.pool) > s.poolCap {
		s.pool = s.pool[:s.poolCap]
	}
}

func (s *search) result() *solver.Result {
	res := &solver.Result{}
	switch {
	case s.stopped == cancelled:
		res.Status = solver.StatusCancelled
	case s.stopped == deadlineReached && len(s.pool) > 0:
		res.Status = solver.StatusFeasible
	case s.stopped == deadlineReached:
		res.Status = solver.StatusTimedOutNoSolution
	case len(s.pool) > 0:
		res.Status = solver.StatusOptimal
	default:
		res.Status = solver.StatusInfeasible
	}
	if len(s.pool) == 0 {
		return res
	}
	res.Best = &solver.Assignment{Values: solver.ValuesFromMask(s.pool[0].x), Objective: s.pool[0].objective}
	if s.poolCap > 1 {
		res.Pool = make([]solver.Assignment, 0, len(s.pool))
		for _, inc := range s.pool {
			res.Pool = append(res.Pool, solver.Assignment{Values: solver.ValuesFromMask(inc.x), Objective: inc.objective})
		}
	}
	return res
}
