package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"gametester/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakePool scripts pool behavior and records the peak number of concurrent
// Execute calls.
type fakePool struct {
	mu        sync.Mutex
	inFlight  int
	peak      int
	delay     time.Duration
	healthErr error
	failTests map[string]bool // test IDs whose replicas all fail
	errTests  map[string]bool // test IDs whose Execute errors outright
}

func (f *fakePool) HealthCheck(ctx context.Context) error { return f.healthErr }

func (f *fakePool) Execute(ctx context.Context, tc types.TestCase, replicas int) ([]types.RunOutcome, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.errTests[tc.ID] {
		return nil, fmt.Errorf("browser crashed")
	}

	status := types.RunPass
	if f.failTests[tc.ID] {
		status = types.RunFail
	}
	outcomes := make([]types.RunOutcome, replicas)
	for i := range outcomes {
		outcomes[i] = types.RunOutcome{TestID: tc.ID, Replica: i, Status: status, StepsCompleted: 2}
	}
	return outcomes, nil
}

// fakeSink records verdicts it receives.
type fakeSink struct {
	mu       sync.Mutex
	verdicts []types.ConsensusVerdict
	err      error
}

func (f *fakeSink) RecordVerdict(ctx context.Context, targetURL string, category types.Category, v types.ConsensusVerdict) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verdicts = append(f.verdicts, v)
	return "rec_1", f.err
}

func plan(n int) *types.TestPlan {
	p := &types.TestPlan{ID: "plan_test", TotalCases: n}
	for i := 0; i < n; i++ {
		p.TestCases = append(p.TestCases, types.TestCase{
			ID:       fmt.Sprintf("tc_%03d", i),
			Name:     fmt.Sprintf("case %d", i),
			Category: types.CategoryFunctionality,
			Rank:     i + 1,
			Selected: true,
		})
	}
	return p
}

func TestRun_AllPass(t *testing.T) {
	pool := &fakePool{}
	sink := &fakeSink{}
	o := New(pool, sink, Config{TargetURL: "http://target", ConcurrencyCap: 3, ReplicaCount: 3}, nil)

	verdicts, err := o.Run(context.Background(), plan(4))
	require.NoError(t, err)
	require.Len(t, verdicts, 4)

	for i, v := range verdicts {
		assert.Equal(t, fmt.Sprintf("tc_%03d", i), v.TestID, "verdicts keep plan order")
		assert.Equal(t, types.VerdictPass, v.Verdict)
		assert.NotEmpty(t, v.TestName)
	}
	assert.Len(t, sink.verdicts, 4)

	p := o.Progress()
	assert.Equal(t, StateCompleted, p.State)
	assert.Equal(t, 4, p.Completed)
	assert.Empty(t, p.InFlight)
}

func TestRun_ConcurrencyCap(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := &fakePool{delay: 30 * time.Millisecond}
	o := New(pool, nil, Config{ConcurrencyCap: 2, ReplicaCount: 1}, nil)

	_, err := o.Run(context.Background(), plan(8))
	require.NoError(t, err)
	assert.LessOrEqual(t, pool.peak, 2, "no more than the cap may run at once")
	assert.Greater(t, pool.peak, 0)
}

func TestRun_EmptyPlanCompletesImmediately(t *testing.T) {
	o := New(&fakePool{}, nil, Config{}, nil)

	verdicts, err := o.Run(context.Background(), &types.TestPlan{ID: "plan_empty"})
	require.NoError(t, err)
	assert.Empty(t, verdicts)
	assert.Equal(t, StateCompleted, o.Progress().State)
}

func TestRun_HealthCheckFailure(t *testing.T) {
	pool := &fakePool{healthErr: fmt.Errorf("no browser")}
	o := New(pool, nil, Config{}, nil)

	_, err := o.Run(context.Background(), plan(2))
	require.Error(t, err)

	p := o.Progress()
	assert.Equal(t, StateFailed, p.State)
	assert.Contains(t, p.Error, "executor unavailable")
}

func TestRun_PartialFailureTolerance(t *testing.T) {
	pool := &fakePool{
		failTests: map[string]bool{"tc_001": true},
		errTests:  map[string]bool{"tc_002": true},
	}
	o := New(pool, nil, Config{ConcurrencyCap: 1, ReplicaCount: 2}, nil)

	verdicts, err := o.Run(context.Background(), plan(3))
	require.NoError(t, err, "one bad test must not abort the cycle")
	require.Len(t, verdicts, 3)

	assert.Equal(t, types.VerdictPass, verdicts[0].Verdict)
	assert.Equal(t, types.VerdictFail, verdicts[1].Verdict)
	assert.Equal(t, types.VerdictFail, verdicts[2].Verdict)
	assert.NotEmpty(t, verdicts[2].TriageNotes)
	assert.Equal(t, StateCompleted, o.Progress().State)
}

func TestRun_RejectsConcurrentCycle(t *testing.T) {
	pool := &fakePool{delay: 100 * time.Millisecond}
	o := New(pool, nil, Config{ConcurrencyCap: 1, ReplicaCount: 1}, nil)

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		_, err := o.Run(context.Background(), plan(2))
		done <- err
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	_, err := o.Run(context.Background(), plan(1))
	assert.ErrorIs(t, err, ErrCycleInProgress)

	require.NoError(t, <-done)
}

func TestRun_Cancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := &fakePool{delay: time.Second}
	o := New(pool, nil, Config{ConcurrencyCap: 2, ReplicaCount: 1}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := o.Run(context.Background(), plan(4))
		done <- err
	}()

	// Wait until the cycle is visibly running, then cancel it.
	require.Eventually(t, func() bool {
		return o.Progress().State == StateRunning
	}, time.Second, 5*time.Millisecond)
	o.Cancel()

	err := <-done
	require.Error(t, err)
	p := o.Progress()
	assert.Equal(t, StateFailed, p.State)
	assert.Contains(t, p.Error, "cancelled")
}

func TestProgress_SnapshotDuringRun(t *testing.T) {
	pool := &fakePool{delay: 80 * time.Millisecond}
	o := New(pool, nil, Config{ConcurrencyCap: 2, ReplicaCount: 1}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = o.Run(context.Background(), plan(4))
	}()

	require.Eventually(t, func() bool {
		p := o.Progress()
		return p.State == StateRunning && len(p.InFlight) > 0
	}, time.Second, 5*time.Millisecond)

	p := o.Progress()
	assert.Equal(t, 4, p.TotalTests)
	assert.LessOrEqual(t, len(p.InFlight), 2)
	assert.False(t, p.StartedAt.IsZero())

	<-done
	assert.Equal(t, StateCompleted, o.Progress().State)
}
