package optimizer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"k8s.io/utils/ptr"

	"github.com/capbudget/portfolio/internal/engines/enumerator"
	"github.com/capbudget/portfolio/internal/metrics"
	"github.com/capbudget/portfolio/pkg/config"
	"github.com/capbudget/portfolio/pkg/core"
	"github.com/capbudget/portfolio/pkg/solver"
	"github.com/capbudget/portfolio/pkg/solver/bnb"
)

func groupedCatalog() *core.Catalog {
	catalog, err := core.NewCatalog([]core.Project{
		{ID: "A", Cost: 10, Benefit: 5, Region: "North", ExclusiveGroup: "g"},
		{ID: "B", Cost: 10, Benefit: 4, Region: "North", ExclusiveGroup: "g"},
		{ID: "C", Cost: 10, Benefit: 3, Region: "South"},
	})
	Expect(err).NotTo(HaveOccurred())
	return catalog
}

// blockingCapability holds every call until release is closed or ctx is done. Once
// released it solves with the branch-and-bound engine; cancelled, it reports the
// first project as its best.
type blockingCapability struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingCapability() *blockingCapability {
	return &blockingCapability{entered: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingCapability) Solve(ctx context.Context, req *solver.Request) (*solver.Result, error) {
	b.once.Do(func() { close(b.entered) })
	x := make([]bool, req.Model.NumVars())
	x[0] = true
	best := &solver.Assignment{Values: solver.ValuesFromMask(x), Objective: req.Model.Evaluate(x)}
	select {
	case <-ctx.Done():
		return &solver.Result{Status: solver.StatusCancelled, Best: best}, nil
	case <-b.release:
		return bnb.New(bnb.WithNativePool(false)).Solve(ctx, req)
	}
}

func collectPoolIDs(result *Result) [][]string {
	out := make([][]string, len(result.Pool))
	for i, s := range result.Pool {
		out[i] = s.SelectedIDs
	}
	return out
}

var _ = Describe("Session", func() {
	var (
		ctx context.Context
		cfg *config.SolveConfig
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = &config.SolveConfig{Budget: ptr.To(10.0), TimeLimit: ptr.To(10.0)}
	})

	Context("with the branch-and-bound capability", func() {
		It("should return one solution per grouped project when asked for two", func() {
			session := NewSession(groupedCatalog(), bnb.New(bnb.WithNativePool(false)))
			cfg.PoolSize = ptr.To(2)

			result, err := session.Solve(ctx, cfg)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(solver.StatusOptimal))
			Expect(result.RequestedPoolSize).To(Equal(2))
			Expect(result.AchievedPoolSize).To(Equal(2))
			Expect(result.Partial).To(BeFalse())
			Expect(result.StopReason).To(Equal(enumerator.StopPoolFilled))
			Expect(result.Rounds).To(Equal(1))
			Expect(collectPoolIDs(result)).To(Equal([][]string{{"A"}, {"B"}}))
			Expect(result.Pool[0].Rank).To(Equal(1))
			Expect(result.Pool[1].Rank).To(Equal(2))
			Expect(result.SelectedIDs).To(Equal([]string{"A"}))
			Expect(result.Objective).To(Equal(5.0))
			Expect(result.Regions).To(Equal([]core.RegionSummary{{Region: "North", Count: 1, Cost: 10, Benefit: 5}}))
		})

		It("should use the native pool without enumerating", func() {
			session := NewSession(groupedCatalog(), bnb.New())
			cfg.PoolSize = ptr.To(3)

			result, err := session.Solve(ctx, cfg)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Rounds).To(BeZero())
			Expect(collectPoolIDs(result)).To(Equal([][]string{{"A"}, {"B"}, {"C"}}))
		})

		It("should report an exhausted pool as complete", func() {
			session := NewSession(groupedCatalog(), bnb.New(bnb.WithNativePool(false)))
			cfg.PoolSize = ptr.To(10)

			result, err := session.Solve(ctx, cfg)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(solver.StatusOptimal))
			Expect(result.AchievedPoolSize).To(Equal(4))
			Expect(result.StopReason).To(Equal(enumerator.StopExhausted))
			Expect(result.Partial).To(BeFalse())
			Expect(result.Pool[3].SelectedIDs).To(BeEmpty())
		})

		It("should select nothing on a zero budget", func() {
			session := NewSession(groupedCatalog(), bnb.New())
			cfg.Budget = ptr.To(0.0)

			result, err := session.Solve(ctx, cfg)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(solver.StatusOptimal))
			Expect(result.SelectedIDs).To(BeEmpty())
			Expect(result.SelectedIDs).NotTo(BeNil())
			Expect(result.Objective).To(BeZero())
			Expect(result.AchievedPoolSize).To(Equal(1))
		})

		It("should keep every pooled solution within the constraints", func() {
			catalog, err := core.NewCatalog([]core.Project{
				{ID: "P1", Cost: 40, Benefit: 9, Region: "North", Resources: map[string]float64{"labour": 3}},
				{ID: "P2", Cost: 30, Benefit: 7, Region: "North", ExclusiveGroup: "bridge"},
				{ID: "P3", Cost: 20, Benefit: 4, Region: "South", ExclusiveGroup: "bridge", Requires: []string{"P4"}},
				{ID: "P4", Cost: 10, Benefit: 2, Region: "South", Resources: map[string]float64{"labour": 2}},
				{ID: "P5", Cost: 25, Benefit: 6, Region: "East"},
			})
			Expect(err).NotTo(HaveOccurred())
			cfg = &config.SolveConfig{
				Budget:       ptr.To(70.0),
				ResourceCaps: map[string]float64{"labour": 4},
				PoolSize:     ptr.To(6),
			}

			result, err := NewSession(catalog, bnb.New(bnb.WithNativePool(false))).Solve(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.AchievedPoolSize).To(Equal(6))

			seen := map[string]bool{}
			for i, s := range result.Pool {
				var cost, labour float64
				selected := map[string]bool{}
				for _, id := range s.SelectedIDs {
					selected[id] = true
				}
				for _, id := range s.SelectedIDs {
					idx, _ := catalog.Index(id)
					p := catalog.Project(idx)
					cost += p.Cost
					labour += p.Consumption("labour")
					for _, req := range p.Requires {
						Expect(selected).To(HaveKey(req))
					}
				}
				Expect(cost).To(BeNumerically("<=", 70))
				Expect(labour).To(BeNumerically("<=", 4))
				Expect(selected["P2"] && selected["P3"]).To(BeFalse())
				if i > 0 {
					Expect(s.Objective).To(BeNumerically("<=", result.Pool[i-1].Objective))
				}
				key := core.FormatRequires(s.SelectedIDs)
				Expect(seen).NotTo(HaveKey(key))
				seen[key] = true
			}
		})
	})

	Context("with invalid input", func() {
		It("should reject a quota that cannot be met and stay usable", func() {
			var states []State
			session := NewSession(groupedCatalog(), bnb.New(), WithTransitionHook(func(s State) { states = append(states, s) }))
			cfg.RegionalQuota = map[string]config.RegionQuota{"South": {Min: ptr.To(2)}}

			_, err := session.Solve(ctx, cfg)

			Expect(errors.Is(err, core.ErrConfiguration)).To(BeTrue())
			Expect(states).To(Equal([]State{StateBuilding, StateIdle}))

			cfg.RegionalQuota = nil
			result, err := session.Solve(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(solver.StatusOptimal))
		})

		It("should fail without a catalog", func() {
			_, err := NewSession(nil, bnb.New()).Solve(ctx, cfg)
			Expect(err).To(MatchError(ErrNoCatalog))
		})
	})

	Context("state machine", func() {
		It("should pass through one terminal state per request", func() {
			var states []State
			session := NewSession(groupedCatalog(), bnb.New(bnb.WithNativePool(false)), WithTransitionHook(func(s State) { states = append(states, s) }))
			cfg.PoolSize = ptr.To(3)

			_, err := session.Solve(ctx, cfg)

			Expect(err).NotTo(HaveOccurred())
			Expect(states).To(Equal([]State{StateBuilding, StateSolving, State(solver.StatusOptimal), StateIdle}))
			Expect(session.State()).To(Equal(StateIdle))
		})

		It("should surface capability errors as a result", func() {
			failing := solver.CapabilityFunc(func(context.Context, *solver.Request) (*solver.Result, error) {
				return nil, errors.New("engine crashed")
			})
			session := NewSession(groupedCatalog(), failing)

			result, err := session.Solve(ctx, cfg)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(solver.StatusError))
			Expect(result.Message).To(Equal("engine crashed"))
			Expect(result.Pool).To(BeEmpty())
			Expect(result.Partial).To(BeTrue())

			resp := result.Response()
			Expect(resp.Status).To(Equal("Error"))
			Expect(resp.StopReason).To(Equal(string(enumerator.StopError)))
			Expect(resp.Pool).NotTo(BeNil())
			Expect(resp.SelectedIDs).NotTo(BeNil())
			Expect(resp.RegionSummary).NotTo(BeNil())
		})

		It("should report a capability without a result as an error", func() {
			empty := solver.CapabilityFunc(func(context.Context, *solver.Request) (*solver.Result, error) {
				return nil, nil
			})
			session := NewSession(groupedCatalog(), empty)

			result, err := session.Solve(ctx, cfg)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(solver.StatusError))
			Expect(result.Message).To(Equal(solver.ErrNoResult.Error()))
			Expect(result.Pool).To(BeEmpty())
			Expect(session.State()).To(Equal(StateIdle))
		})
	})

	Context("concurrency", func() {
		var (
			capability *blockingCapability
			session    *Session
			registry   *prometheus.Registry
			recorder   *metrics.Recorder
			done       chan *Result
		)

		BeforeEach(func() {
			var err error
			registry = prometheus.NewRegistry()
			recorder, err = metrics.NewRecorder(registry)
			Expect(err).NotTo(HaveOccurred())

			capability = newBlockingCapability()
			session = NewSession(groupedCatalog(), capability, WithRecorder(recorder))
			cfg.PoolSize = ptr.To(3)
			done = make(chan *Result, 1)
			go func() {
				defer GinkgoRecover()
				result, err := session.Solve(ctx, cfg)
				Expect(err).NotTo(HaveOccurred())
				done <- result
			}()
			Eventually(capability.entered).Should(BeClosed())
		})

		It("should reject a second solve and a catalog replacement while solving", func() {
			Expect(session.State()).To(Equal(StateSolving))

			_, err := session.Solve(ctx, cfg)
			Expect(err).To(MatchError(ErrSessionBusy))
			Expect(session.ReplaceCatalog(groupedCatalog())).To(MatchError(ErrSessionBusy))

			close(capability.release)
			var result *Result
			Eventually(done, 5*time.Second).Should(Receive(&result))
			Expect(result.Status).To(Equal(solver.StatusOptimal))

			Expect(result.AchievedPoolSize).To(Equal(3))
			Expect(testutil.GatherAndCompare(registry, strings.NewReader(`
# HELP portfolio_rejected_solves_total Solve requests rejected because another solve was active.
# TYPE portfolio_rejected_solves_total counter
portfolio_rejected_solves_total 1
`), "portfolio_rejected_solves_total")).To(Succeed())
			Expect(session.ReplaceCatalog(groupedCatalog())).To(Succeed())
			_, ok := session.Last()
			Expect(ok).To(BeFalse())
		})

		It("should return a partial pool when cancelled", func() {
			Expect(session.Cancel()).To(BeTrue())

			var result *Result
			Eventually(done, 5*time.Second).Should(Receive(&result))
			Expect(result.Status).To(Equal(solver.StatusCancelled))
			Expect(result.Partial).To(BeTrue())
			Expect(result.StopReason).To(Equal(enumerator.StopCancelled))
			Expect(result.SelectedIDs).To(Equal([]string{"A"}))
			Expect(result.AchievedPoolSize).To(Equal(1))

			last, ok := session.Last()
			Expect(ok).To(BeTrue())
			Expect(last).To(BeIdenticalTo(result))
			Expect(session.Cancel()).To(BeFalse())
		})
	})
})
