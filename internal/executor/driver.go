// Package executor runs test cases against the live target through a browser
// automation driver and fans each case out into independent replica attempts.
package executor

import (
	"context"
	"time"

	"gametester/internal/types"
)

// RunResult is what one driver pass produces before the pool wraps it into a
// RunOutcome.
type RunResult struct {
	Status         types.RunStatus
	StepsCompleted int
	Artifacts      types.Artifacts
	Error          string
}

// Driver executes one full pass of a test case's steps against the target.
// A returned error means the driver infrastructure itself failed (browser
// unreachable, session could not be created); a test that merely failed its
// steps is reported through RunResult.
type Driver interface {
	// Run performs one isolated attempt of the test case. The replica index
	// is used only to namespace artifacts.
	Run(ctx context.Context, tc types.TestCase, replica int) (RunResult, error)

	// HealthCheck verifies the driver can reach its browser at all. The
	// orchestrator uses this to distinguish a dead collaborator (cycle
	// failure) from individual test failures.
	HealthCheck(ctx context.Context) error
}

// Config holds executor settings shared by the driver and the pool.
type Config struct {
	TargetURL      string
	Headless       bool
	ArtifactDir    string
	ReplicaTimeout time.Duration
	// StepSettle is the pause after each step so the page can react before
	// the next screenshot.
	StepSettle time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(targetURL string) Config {
	return Config{
		TargetURL:      targetURL,
		Headless:       true,
		ArtifactDir:    "artifacts",
		ReplicaTimeout: 90 * time.Second,
		StepSettle:     time.Second,
	}
}

func (c Config) replicaTimeout() time.Duration {
	if c.ReplicaTimeout <= 0 {
		return 90 * time.Second
	}
	return c.ReplicaTimeout
}
