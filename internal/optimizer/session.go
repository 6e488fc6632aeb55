package optimizer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"k8s.io/utils/clock"

	"github.com/capbudget/portfolio/internal/engines/builder"
	"github.com/capbudget/portfolio/internal/engines/common"
	"github.com/capbudget/portfolio/internal/engines/enumerator"
	"github.com/capbudget/portfolio/internal/engines/pool"
	"github.com/capbudget/portfolio/internal/logging"
	"github.com/capbudget/portfolio/internal/metrics"
	"github.com/capbudget/portfolio/pkg/config"
	"github.com/capbudget/portfolio/pkg/core"
	"github.com/capbudget/portfolio/pkg/solver"
)

var (
	// ErrSessionBusy is returned when a solve is already running on the session.
	ErrSessionBusy = errors.New("a solve is already running on this session")

	// ErrNoCatalog is returned when solving a session without a catalog.
	ErrNoCatalog = errors.New("session has no catalog")
)

// State is the state of a Session. Besides the states below, a session passes
// through State(status) for the terminal solver status of every request.
type State string

// enumeration of State
const (
	StateIdle     State = "Idle"
	StateBuilding State = "Building"
	StateSolving  State = "Solving"
)

// Result is the outcome of one solve request.
type Result struct {
	SessionID string
	RequestID string

	Status solver.Status

	// Objective and SelectedIDs describe the best solution, Pool[0].
	Objective   float64
	SelectedIDs []string

	// Pool holds distinct solutions ranked from 1, objectives non-increasing.
	Pool []core.Solution

	RequestedPoolSize int
	AchievedPoolSize  int

	// Partial is set when the pool is short for a reason other than the model having
	// no further solutions.
	Partial    bool
	StopReason enumerator.StopReason
	Rounds     int
	Message    string

	// Regions summarizes the best solution per region.
	Regions []core.RegionSummary

	Elapsed time.Duration
}

// Session runs solve requests against a catalog, one at a time.
type Session struct {
	id           string
	capability   solver.Capability
	clock        clock.PassiveClock
	recorder     *metrics.Recorder
	minRoundTime time.Duration
	onTransition func(State)
	results      *common.Cache[*Result]

	guard *semaphore.Weighted

	mu      sync.RWMutex
	catalog *core.Catalog
	state   State
	cancel  context.CancelFunc
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the time source for budgets and elapsed times.
func WithClock(c clock.PassiveClock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithRecorder publishes solve metrics.
func WithRecorder(r *metrics.Recorder) Option {
	return func(s *Session) {
		s.recorder = r
	}
}

// WithMinRoundTime sets the smallest time slice of an enumeration round.
func WithMinRoundTime(d time.Duration) Option {
	return func(s *Session) {
		s.minRoundTime = d
	}
}

// WithResultCache stores results in a cache shared with other sessions, keyed by
// session id.
func WithResultCache(c *common.Cache[*Result]) Option {
	return func(s *Session) {
		s.results = c
	}
}

// WithTransitionHook calls fn on every state change, after the change.
func WithTransitionHook(fn func(State)) Option {
	return func(s *Session) {
		s.onTransition = fn
	}
}

// NewSession creates an idle session. catalog may be nil and set later.
func NewSession(catalog *core.Catalog, capability solver.Capability, opts ...Option) *Session {
	s := &Session{
		id:           uuid.NewString(),
		capability:   capability,
		clock:        clock.RealClock{},
		minRoundTime: enumerator.DefaultMinRoundTime,
		results:      common.NewCache[*Result](),
		guard:        semaphore.NewWeighted(1),
		catalog:      catalog,
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID identifies the session in logs and results.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Catalog returns the current catalog, which callers must treat as read-only.
func (s *Session) Catalog() *core.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// ReplaceCatalog swaps the catalog. It fails with ErrSessionBusy while a solve runs.
func (s *Session) ReplaceCatalog(catalog *core.Catalog) error {
	if !s.guard.TryAcquire(1) {
		return ErrSessionBusy
	}
	defer s.guard.Release(1)
	s.mu.Lock()
	s.catalog = catalog
	s.mu.Unlock()
	s.results.Delete(s.id)
	return nil
}

// Cancel stops the running solve, if any, and reports whether there was one.
func (s *Session) Cancel() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// Last returns the result of the most recent solve on the current catalog.
func (s *Session) Last() (*Result, bool) {
	return s.results.Get(s.id)
}

// Solve builds the model for cfg, solves it and fills the solution pool. It returns
// an error only for invalid input or a busy session; every solver outcome is a Result.
func (s *Session) Solve(ctx context.Context, cfg *config.SolveConfig) (*Result, error) {
	if !s.guard.TryAcquire(1) {
		s.recorder.RejectedSolve()
		return nil, ErrSessionBusy
	}
	defer s.guard.Release(1)

	requestID := uuid.NewString()
	logger := logging.FromContext(ctx).WithValues("session", s.id, "request", requestID)
	ctx = logging.IntoContext(ctx, logger)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	catalog := s.catalog
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		s.transition(StateIdle)
	}()

	start := s.clock.Now()
	s.transition(StateBuilding)
	if catalog == nil {
		return nil, ErrNoCatalog
	}
	model, err := builder.Build(ctx, catalog, cfg)
	if err != nil {
		logger.Info("Rejected solve request", "error", err.Error())
		return nil, err
	}

	s.transition(StateSolving)
	result := s.run(ctx, logger, model, cfg, start)
	result.SessionID = s.id
	result.RequestID = requestID
	s.present(catalog, result)
	s.transition(State(result.Status))

	s.results.Set(s.id, result)

	s.recorder.ObserveSolve(metrics.Solve{
		Status:     string(result.Status),
		StopReason: string(result.StopReason),
		Elapsed:    result.Elapsed,
		Rounds:     result.Rounds,
		Requested:  result.RequestedPoolSize,
		Achieved:   result.AchievedPoolSize,
	})
	logger.Info("Solve finished",
		"status", result.Status,
		"objective", result.Objective,
		"requested", result.RequestedPoolSize,
		"achieved", result.AchievedPoolSize,
		"partial", result.Partial,
		"stopReason", result.StopReason,
		"elapsed", result.Elapsed)
	return result, nil
}

// run performs the primary solve and, when the pool is short, the enumeration.
func (s *Session) run(ctx context.Context, logger logr.Logger, model *solver.Model, cfg *config.SolveConfig, start time.Time) *Result {
	requested := cfg.RequestedPoolSize()
	timeLimit := cfg.TimeLimitDuration()

	req := &solver.Request{Model: model, TimeLimit: timeLimit, PoolSize: requested}
	res := solver.Invoke(ctx, s.capability, req)
	candidates := pool.Extract(ctx, req, res, requested)
	logger.V(logging.DEBUG).Info("Primary solve finished",
		"status", res.Status,
		"candidates", len(candidates),
		"requested", requested)

	result := &Result{Status: res.Status, Message: res.Message, RequestedPoolSize: requested}
	switch {
	case len(candidates) >= requested:
		result.StopReason = enumerator.StopPoolFilled
	case res.Status == solver.StatusOptimal || res.Status == solver.StatusFeasible:
		e := enumerator.New(s.capability, enumerator.WithClock(s.clock), enumerator.WithMinRoundTime(s.minRoundTime))
		out := e.Run(ctx, model, candidates, requested, enumerator.Budget{
			TimeLimit: timeLimit,
			Remaining: timeLimit - s.clock.Since(start),
		})
		candidates = out.Candidates
		result.Rounds = out.Rounds
		result.StopReason = out.Reason
		switch out.Reason {
		case enumerator.StopCancelled:
			result.Status = solver.StatusCancelled
		case enumerator.StopError:
			result.Status = solver.StatusError
			result.Message = out.Message
		}
	default:
		result.StopReason = stopReasonOf(res.Status)
	}

	result.Partial = len(candidates) < requested && result.StopReason != enumerator.StopExhausted
	result.Pool = make([]core.Solution, 0, len(candidates))
	for i := range candidates {
		result.Pool = append(result.Pool, core.Solution{
			SelectedIDs: model.VarNamesOf(candidates[i].Selected),
			Objective:   candidates[i].Objective,
			Rank:        i + 1,
		})
	}
	result.AchievedPoolSize = len(candidates)
	result.Elapsed = s.clock.Since(start)
	return result
}

// present fills the fields derived from the best solution.
func (s *Session) present(catalog *core.Catalog, result *Result) {
	result.SelectedIDs = []string{}
	if len(result.Pool) == 0 {
		return
	}
	best := result.Pool[0]
	result.Objective = best.Objective
	result.SelectedIDs = append(result.SelectedIDs, best.SelectedIDs...)
	result.Regions = catalog.Summarize(best.SelectedIDs)
}

func stopReasonOf(status solver.Status) enumerator.StopReason {
	switch status {
	case solver.StatusInfeasible:
		return enumerator.StopExhausted
	case solver.StatusTimedOutNoSolution:
		return enumerator.StopTimeBudget
	case solver.StatusCancelled:
		return enumerator.StopCancelled
	default:
		return enumerator.StopError
	}
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	s.state = to
	s.mu.Unlock()
	if s.onTransition != nil {
		s.onTransition(to)
	}
}
