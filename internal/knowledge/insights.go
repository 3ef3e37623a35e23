package knowledge

import (
	"context"
	"fmt"
	"strings"

	"gametester/internal/types"
)

// Insights aggregates what the store has learned about one target. Counters
// are recomputed from the record collections on every call; nothing is
// cached.
type Insights struct {
	Available       bool `json:"available"`
	TotalTests      int  `json:"total_tests"`
	SuccessfulTests int  `json:"successful_tests"`
	FailedTests     int  `json:"failed_tests"`
	FlakyTests      int  `json:"flaky_tests"`
	FeedbackCount   int  `json:"feedback_count"`
	AnalysisEntries int  `json:"game_knowledge_entries"`
}

// Insights scans the test-history and feedback collections for records
// matching the target and returns aggregate counters.
func (s *Store) Insights(ctx context.Context, targetURL string) (Insights, error) {
	ins := Insights{Available: s.Available()}

	history, err := s.All(ctx, KindTestHistory)
	if err != nil {
		return ins, fmt.Errorf("failed to read test history: %w", err)
	}
	for _, rec := range history {
		if rec.Context["target"] != targetURL {
			continue
		}
		ins.TotalTests++
		switch types.Verdict(rec.Context["verdict"]) {
		case types.VerdictPass:
			ins.SuccessfulTests++
		case types.VerdictFail:
			ins.FailedTests++
		case types.VerdictFlaky:
			ins.FlakyTests++
		}
	}

	feedback, err := s.All(ctx, KindFeedback)
	if err != nil {
		return ins, fmt.Errorf("failed to read feedback: %w", err)
	}
	for _, rec := range feedback {
		if rec.Context["target"] == targetURL || rec.Context["target"] == "" {
			ins.FeedbackCount++
		}
	}

	analyses, err := s.All(ctx, KindGameAnalysis)
	if err != nil {
		return ins, fmt.Errorf("failed to read game analyses: %w", err)
	}
	for _, rec := range analyses {
		if rec.Context["target"] == targetURL {
			ins.AnalysisEntries++
		}
	}

	return ins, nil
}

// RecordVerdict appends a test-history record for a consensus verdict. The
// category feeds the ranker's historical-risk weighting on later cycles.
func (s *Store) RecordVerdict(ctx context.Context, targetURL string, category types.Category, v types.ConsensusVerdict) (string, error) {
	var errs []string
	for _, o := range v.Outcomes {
		if o.Error != "" {
			errs = append(errs, o.Error)
		}
	}
	payload := fmt.Sprintf(
		"Test %s (%s) on %s: verdict=%s reproducibility=%.2f success=%d/%d errors=%s",
		v.TestID, v.TestName, targetURL, v.Verdict,
		v.ReproducibilityScore, v.SuccessCount, v.TotalCount,
		strings.Join(errs, "; "))

	return s.Append(ctx, Record{
		Kind:    KindTestHistory,
		Payload: payload,
		Context: map[string]string{
			"target":   targetURL,
			"test_id":  v.TestID,
			"category": string(category),
			"verdict":  string(v.Verdict),
		},
	})
}

// RecordFeedback appends a human feedback record for a test.
func (s *Store) RecordFeedback(ctx context.Context, targetURL, testID, feedback string, extra map[string]string) (string, error) {
	payload := fmt.Sprintf("Feedback for test %s on %s: %s", testID, targetURL, feedback)
	recCtx := map[string]string{
		"target":  targetURL,
		"test_id": testID,
	}
	for k, v := range extra {
		recCtx[k] = v
	}
	return s.Append(ctx, Record{
		Kind:    KindFeedback,
		Payload: payload,
		Context: recCtx,
	})
}

// RecordAnalysis appends a game-analysis record for a target.
func (s *Store) RecordAnalysis(ctx context.Context, targetURL, analysis string) (string, error) {
	return s.Append(ctx, Record{
		Kind:    KindGameAnalysis,
		Payload: analysis,
		Context: map[string]string{"target": targetURL},
	})
}
