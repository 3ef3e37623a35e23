// Package orchestrator drives one execution cycle: it takes the selected
// cases of a ranked plan, fans them out to the executor pool under a
// concurrency cap, reconciles replica outcomes into consensus verdicts, and
// feeds those verdicts back into the knowledge store.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gametester/internal/consensus"
	"gametester/internal/types"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrCycleInProgress is returned when a cycle is requested while another is
// still running. Callers surface this as a conflict, not a failure.
var ErrCycleInProgress = errors.New("an execution cycle is already in progress")

// State is the orchestrator lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// ExecutionPool runs one test case as N independent replicas. The executor
// pool satisfies it.
type ExecutionPool interface {
	Execute(ctx context.Context, tc types.TestCase, replicas int) ([]types.RunOutcome, error)
	HealthCheck(ctx context.Context) error
}

// VerdictSink receives consensus verdicts for persistence. The knowledge
// store satisfies it; a nil sink disables recording.
type VerdictSink interface {
	RecordVerdict(ctx context.Context, targetURL string, category types.Category, v types.ConsensusVerdict) (string, error)
}

// Config holds the cycle parameters.
type Config struct {
	TargetURL      string
	ConcurrencyCap int
	ReplicaCount   int
}

// Progress is a point-in-time snapshot of the current (or last) cycle. It is
// always safe to read while a cycle runs.
type Progress struct {
	State      State     `json:"state"`
	PlanID     string    `json:"plan_id,omitempty"`
	TotalTests int       `json:"total_tests"`
	Completed  int       `json:"completed"`
	InFlight   []string  `json:"in_flight,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Error      string    `json:"error,omitempty"`
}

// Orchestrator runs at most one execution cycle at a time.
type Orchestrator struct {
	pool   ExecutionPool
	sink   VerdictSink
	cfg    Config
	logger *zap.Logger

	mu         sync.Mutex
	state      State
	planID     string
	total      int
	completed  int
	inFlight   map[string]struct{}
	startedAt  time.Time
	finishedAt time.Time
	errMsg     string
	cancel     context.CancelFunc
}

// New creates an orchestrator. sink may be nil.
func New(pool ExecutionPool, sink VerdictSink, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.ConcurrencyCap < 1 {
		cfg.ConcurrencyCap = 3
	}
	if cfg.ReplicaCount < 1 {
		cfg.ReplicaCount = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		pool:     pool,
		sink:     sink,
		cfg:      cfg,
		logger:   logger,
		state:    StateIdle,
		inFlight: make(map[string]struct{}),
	}
}

// Run executes the plan's selected cases and returns their consensus
// verdicts in plan order. It blocks until the cycle finishes; only one cycle
// may run at a time. Individual test failures never abort the cycle, but a
// dead executor or a cancelled context does.
func (o *Orchestrator) Run(ctx context.Context, plan *types.TestPlan) ([]types.ConsensusVerdict, error) {
	if plan == nil {
		return nil, fmt.Errorf("no test plan to execute")
	}
	selected := plan.SelectedCases()

	if err := o.begin(plan.ID, len(selected)); err != nil {
		return nil, err
	}

	if len(selected) == 0 {
		o.finish(StateCompleted, "")
		return []types.ConsensusVerdict{}, nil
	}

	if err := o.pool.HealthCheck(ctx); err != nil {
		o.finish(StateFailed, fmt.Sprintf("executor unavailable: %v", err))
		return nil, fmt.Errorf("executor health check failed: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()

	o.logger.Info("execution cycle started",
		zap.String("plan", plan.ID),
		zap.Int("tests", len(selected)),
		zap.Int("concurrency", o.cfg.ConcurrencyCap),
		zap.Int("replicas", o.cfg.ReplicaCount))

	verdicts := make([]types.ConsensusVerdict, len(selected))
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(o.cfg.ConcurrencyCap)

	for i, tc := range selected {
		g.Go(func() error {
			if gctx.Err() != nil {
				verdicts[i] = cancelledVerdict(tc)
				o.markDone(tc.ID)
				return nil
			}
			o.markInFlight(tc.ID)
			verdicts[i] = o.runTest(gctx, tc)
			o.markDone(tc.ID)
			return nil
		})
	}
	_ = g.Wait()

	if err := runCtx.Err(); err != nil {
		o.finish(StateFailed, "execution cycle cancelled")
		return verdicts, fmt.Errorf("execution cycle cancelled: %w", err)
	}

	o.finish(StateCompleted, "")
	o.logger.Info("execution cycle finished", zap.String("plan", plan.ID))
	return verdicts, nil
}

// runTest executes one case's replicas and reconciles them. Errors are
// folded into the verdict so one bad test cannot sink the cycle.
func (o *Orchestrator) runTest(ctx context.Context, tc types.TestCase) types.ConsensusVerdict {
	outcomes, err := o.pool.Execute(ctx, tc, o.cfg.ReplicaCount)
	if err != nil {
		o.logger.Error("test execution failed",
			zap.String("test", tc.ID), zap.Error(err))
		v := consensus.Aggregate(nil)
		v.TestID = tc.ID
		v.TestName = tc.Name
		v.TriageNotes = append(v.TriageNotes, fmt.Sprintf("execution error: %v", err))
		return v
	}

	v := consensus.Aggregate(outcomes)
	v.TestName = tc.Name

	if o.sink != nil {
		if _, err := o.sink.RecordVerdict(ctx, o.cfg.TargetURL, tc.Category, v); err != nil {
			o.logger.Warn("failed to record verdict",
				zap.String("test", tc.ID), zap.Error(err))
		}
	}

	o.logger.Info("test verdict",
		zap.String("test", tc.ID),
		zap.String("verdict", string(v.Verdict)),
		zap.Float64("reproducibility", v.ReproducibilityScore))
	return v
}

func cancelledVerdict(tc types.TestCase) types.ConsensusVerdict {
	v := consensus.Aggregate(nil)
	v.TestID = tc.ID
	v.TestName = tc.Name
	v.TriageNotes = append(v.TriageNotes, "skipped: execution cycle cancelled")
	return v
}

// Cancel requests a cooperative stop of the running cycle. In-flight
// replicas are interrupted through their contexts; already-finished verdicts
// are kept.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Progress returns a consistent snapshot without blocking the cycle.
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()

	p := Progress{
		State:      o.state,
		PlanID:     o.planID,
		TotalTests: o.total,
		Completed:  o.completed,
		StartedAt:  o.startedAt,
		FinishedAt: o.finishedAt,
		Error:      o.errMsg,
	}
	for id := range o.inFlight {
		p.InFlight = append(p.InFlight, id)
	}
	sort.Strings(p.InFlight)
	return p
}

func (o *Orchestrator) begin(planID string, total int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateRunning {
		return ErrCycleInProgress
	}
	o.state = StateRunning
	o.planID = planID
	o.total = total
	o.completed = 0
	o.inFlight = make(map[string]struct{})
	o.startedAt = time.Now().UTC()
	o.finishedAt = time.Time{}
	o.errMsg = ""
	o.cancel = nil
	return nil
}

func (o *Orchestrator) finish(state State, errMsg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = state
	o.errMsg = errMsg
	o.finishedAt = time.Now().UTC()
	o.cancel = nil
}

func (o *Orchestrator) markInFlight(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight[id] = struct{}{}
}

func (o *Orchestrator) markDone(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, id)
	o.completed++
}
