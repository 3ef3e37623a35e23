package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gametester/internal/types"

	"go.uber.org/zap"
)

// Pool turns one test case into exactly replicas independent RunOutcomes.
// Replicas run concurrently; each gets its own wall-clock budget and its
// failure never touches a sibling.
type Pool struct {
	driver Driver
	cfg    Config
	logger *zap.Logger
}

// NewPool creates an execution pool over a driver.
func NewPool(driver Driver, cfg Config, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{driver: driver, cfg: cfg, logger: logger}
}

// HealthCheck reports whether the underlying driver is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	return p.driver.HealthCheck(ctx)
}

// Execute runs the test case replicas times and returns exactly that many
// outcomes, indexed by replica. A non-positive replica count is a caller
// error, not something to coerce.
func (p *Pool) Execute(ctx context.Context, tc types.TestCase, replicas int) ([]types.RunOutcome, error) {
	if replicas < 1 {
		return nil, fmt.Errorf("replica count must be >= 1, got %d", replicas)
	}

	outcomes := make([]types.RunOutcome, replicas)
	var wg sync.WaitGroup
	for i := 0; i < replicas; i++ {
		wg.Add(1)
		go func(replica int) {
			defer wg.Done()
			outcomes[replica] = p.runReplica(ctx, tc, replica)
		}(i)
	}
	wg.Wait()

	return outcomes, nil
}

// runReplica performs one attempt under the replica timeout, converting
// driver errors, panics, and deadline hits into error outcomes instead of
// letting them escape.
func (p *Pool) runReplica(ctx context.Context, tc types.TestCase, replica int) types.RunOutcome {
	timeout := p.cfg.replicaTimeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	outcome := types.RunOutcome{
		TestID:  tc.ID,
		Replica: replica,
	}

	type result struct {
		res RunResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("driver panic: %v", r)}
			}
		}()
		res, err := p.driver.Run(runCtx, tc, replica)
		done <- result{res: res, err: err}
	}()

	select {
	case r := <-done:
		outcome.Duration = time.Since(start)
		if r.err != nil {
			p.logger.Warn("replica errored",
				zap.String("test", tc.ID), zap.Int("replica", replica), zap.Error(r.err))
			outcome.Status = types.RunError
			outcome.Error = r.err.Error()
			return outcome
		}
		outcome.Status = r.res.Status
		outcome.StepsCompleted = r.res.StepsCompleted
		outcome.Artifacts = r.res.Artifacts
		outcome.Error = r.res.Error
		return outcome

	case <-runCtx.Done():
		outcome.Duration = time.Since(start)
		outcome.Status = types.RunError
		if ctx.Err() != nil {
			outcome.Error = "execution cancelled"
		} else {
			outcome.Error = fmt.Sprintf("replica timed out after %s", timeout)
		}
		p.logger.Warn("replica did not finish",
			zap.String("test", tc.ID), zap.Int("replica", replica), zap.String("reason", outcome.Error))
		return outcome
	}
}
