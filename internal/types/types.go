// Package types provides shared type definitions used across gametester packages.
// This package exists to break import cycles between the planner, orchestrator,
// and knowledge layers. Types here are foundational data structures with no
// complex dependencies.
package types

import (
	"time"
)

// =============================================================================
// TEST PLANNING TYPES
// =============================================================================

// Category classifies what aspect of the target a test case exercises.
type Category string

const (
	CategoryFunctionality Category = "functionality"
	CategoryEdgeCase      Category = "edge_case"
	CategoryErrorHandling Category = "error_handling"
	CategoryUIUX          Category = "ui_ux"
	CategoryPerformance   Category = "performance"
)

// Priority is the planner's coarse importance label for a test case.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// TestCase is one candidate test against the target. The planner fills
// everything except Score/Rank/Selected, which the ranker assigns. A case is
// immutable once ranked except for those three fields.
type TestCase struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Category          Category `json:"category"`
	Steps             []string `json:"steps"`
	ExpectedOutcome   string   `json:"expected_outcome,omitempty"`
	Priority          Priority `json:"priority"`
	EstimatedDuration int      `json:"estimated_duration"` // seconds
	Score             float64  `json:"score"`
	Rank              int      `json:"rank"`
	Selected          bool     `json:"selected"`
}

// TestPlan is an ordered, ranked set of test cases produced by one planning
// cycle. Plans are superseded by the next generation, never mutated.
type TestPlan struct {
	ID          string     `json:"id"`
	TestCases   []TestCase `json:"test_cases"`
	TotalCases  int        `json:"total_cases"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// SelectedCases returns the cases the ranker flagged for execution, in rank
// order.
func (p *TestPlan) SelectedCases() []TestCase {
	var out []TestCase
	for _, tc := range p.TestCases {
		if tc.Selected {
			out = append(out, tc)
		}
	}
	return out
}

// =============================================================================
// EXECUTION TYPES
// =============================================================================

// RunStatus is the raw outcome of one replica attempt.
type RunStatus string

const (
	RunPass  RunStatus = "pass"
	RunFail  RunStatus = "fail"
	RunError RunStatus = "error"
)

// Artifacts holds opaque references to evidence captured during one replica
// run. Paths are meaningful only to the artifact storage layer.
type Artifacts struct {
	Screenshots []string `json:"screenshots,omitempty"`
	ConsoleLog  string   `json:"console_log,omitempty"`
}

// RunOutcome records a single replica attempt of a test case. Produced once
// per attempt, immutable afterwards.
type RunOutcome struct {
	TestID         string        `json:"test_id"`
	Replica        int           `json:"replica"`
	Status         RunStatus     `json:"status"`
	Duration       time.Duration `json:"duration"`
	StepsCompleted int           `json:"steps_completed"`
	Artifacts      Artifacts     `json:"artifacts"`
	Error          string        `json:"error,omitempty"`
}

// Verdict is the consensus classification of a test across its replicas.
type Verdict string

const (
	VerdictPass  Verdict = "PASS"
	VerdictFail  Verdict = "FAIL"
	VerdictFlaky Verdict = "FLAKY"
)

// ConsensusVerdict is the single reconciled result for one test case, derived
// purely from its replica outcome set. Recomputing from the same set yields
// an identical verdict.
type ConsensusVerdict struct {
	TestID               string       `json:"test_id"`
	TestName             string       `json:"test_name,omitempty"`
	Verdict              Verdict      `json:"verdict"`
	SuccessCount         int          `json:"success_count"`
	TotalCount           int          `json:"total_count"`
	ReproducibilityScore float64      `json:"reproducibility_score"`
	Confidence           float64      `json:"confidence"`
	TriageNotes          []string     `json:"triage_notes"`
	Outcomes             []RunOutcome `json:"outcomes,omitempty"`
}

// =============================================================================
// REPORTING TYPES
// =============================================================================

// Summary aggregates verdict counts for one execution cycle.
type Summary struct {
	TotalTests             int     `json:"total_tests"`
	Passed                 int     `json:"passed"`
	Failed                 int     `json:"failed"`
	Flaky                  int     `json:"flaky"`
	PassRate               float64 `json:"pass_rate"`
	AverageReproducibility float64 `json:"average_reproducibility"`
}

// Report is the persisted bundle for one completed execution cycle.
type Report struct {
	ReportID        string             `json:"report_id"`
	Timestamp       time.Time          `json:"timestamp"`
	TestPlanID      string             `json:"test_plan_id"`
	TargetURL       string             `json:"target_url"`
	TotalPlanned    int                `json:"total_planned_tests"`
	TestsExecuted   int                `json:"tests_executed"`
	Summary         Summary            `json:"summary"`
	TestResults     []ConsensusVerdict `json:"test_results"`
	Recommendations []string           `json:"recommendations"`
}
