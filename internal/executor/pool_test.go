package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"gametester/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriver scripts per-replica behavior so pool semantics can be tested
// without a browser.
type fakeDriver struct {
	mu    sync.Mutex
	calls int

	// behavior, keyed by replica index. Missing entries pass.
	failReplicas  map[int]bool
	errReplicas   map[int]bool
	hangReplicas  map[int]bool
	panicReplicas map[int]bool
}

func (f *fakeDriver) Run(ctx context.Context, tc types.TestCase, replica int) (RunResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	switch {
	case f.panicReplicas[replica]:
		panic("scripted panic")
	case f.hangReplicas[replica]:
		<-ctx.Done()
		return RunResult{}, ctx.Err()
	case f.errReplicas[replica]:
		return RunResult{}, fmt.Errorf("browser unreachable")
	case f.failReplicas[replica]:
		return RunResult{Status: types.RunFail, StepsCompleted: 1, Error: "step 2 failed"}, nil
	default:
		return RunResult{Status: types.RunPass, StepsCompleted: 3}, nil
	}
}

func (f *fakeDriver) HealthCheck(ctx context.Context) error { return nil }

func testCase() types.TestCase {
	return types.TestCase{ID: "tc_001", Name: "start game", Steps: []string{"a", "b", "c"}}
}

func TestExecute_ReplicaCount(t *testing.T) {
	p := NewPool(&fakeDriver{}, DefaultConfig("http://target"), nil)

	outcomes, err := p.Execute(context.Background(), testCase(), 3)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	for i, o := range outcomes {
		assert.Equal(t, i, o.Replica)
		assert.Equal(t, "tc_001", o.TestID)
		assert.Equal(t, types.RunPass, o.Status)
	}
}

func TestExecute_RejectsNonPositiveReplicas(t *testing.T) {
	p := NewPool(&fakeDriver{}, DefaultConfig("http://target"), nil)

	_, err := p.Execute(context.Background(), testCase(), 0)
	assert.Error(t, err)
}

func TestExecute_FailureIsolation(t *testing.T) {
	driver := &fakeDriver{
		failReplicas: map[int]bool{1: true},
		errReplicas:  map[int]bool{2: true},
	}
	p := NewPool(driver, DefaultConfig("http://target"), nil)

	outcomes, err := p.Execute(context.Background(), testCase(), 3)
	require.NoError(t, err)

	assert.Equal(t, types.RunPass, outcomes[0].Status)
	assert.Equal(t, types.RunFail, outcomes[1].Status)
	assert.Equal(t, "step 2 failed", outcomes[1].Error)
	assert.Equal(t, types.RunError, outcomes[2].Status)
	assert.Contains(t, outcomes[2].Error, "browser unreachable")
}

func TestExecute_ReplicaTimeout(t *testing.T) {
	driver := &fakeDriver{hangReplicas: map[int]bool{0: true}}
	cfg := DefaultConfig("http://target")
	cfg.ReplicaTimeout = 50 * time.Millisecond
	p := NewPool(driver, cfg, nil)

	outcomes, err := p.Execute(context.Background(), testCase(), 2)
	require.NoError(t, err)

	assert.Equal(t, types.RunError, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Error, "timed out")
	assert.Equal(t, types.RunPass, outcomes[1].Status, "a timeout must not touch siblings")
}

func TestExecute_DriverPanicBecomesErrorOutcome(t *testing.T) {
	driver := &fakeDriver{panicReplicas: map[int]bool{0: true}}
	p := NewPool(driver, DefaultConfig("http://target"), nil)

	outcomes, err := p.Execute(context.Background(), testCase(), 2)
	require.NoError(t, err)

	assert.Equal(t, types.RunError, outcomes[0].Status)
	assert.True(t, strings.Contains(outcomes[0].Error, "panic"), "got %q", outcomes[0].Error)
	assert.Equal(t, types.RunPass, outcomes[1].Status)
}

func TestExecute_Cancellation(t *testing.T) {
	driver := &fakeDriver{hangReplicas: map[int]bool{0: true, 1: true}}
	p := NewPool(driver, DefaultConfig("http://target"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	outcomes, err := p.Execute(ctx, testCase(), 2)
	require.NoError(t, err)

	for _, o := range outcomes {
		assert.Equal(t, types.RunError, o.Status)
		assert.Contains(t, o.Error, "cancelled")
	}
}
