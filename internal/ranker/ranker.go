// Package ranker scores and orders candidate test cases into an executable
// plan. Scoring is deterministic for identical inputs: ties keep the
// planner's original generation order.
package ranker

import (
	"context"
	"time"

	"gametester/internal/knowledge"
	"gametester/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Scoring weights. Category and priority dominate; duration only breaks
// near-ties in favor of cheaper tests.
const (
	categoryWeight = 0.4
	priorityWeight = 0.4
	durationWeight = 0.2

	// riskBoostMax is the largest historical-risk addition a category can
	// earn when every recorded run of it ended FAIL or FLAKY.
	riskBoostMax = 0.5
)

var categoryScores = map[types.Category]float64{
	types.CategoryFunctionality: 3.0,
	types.CategoryErrorHandling: 2.5,
	types.CategoryEdgeCase:      2.0,
	types.CategoryUIUX:          1.5,
	types.CategoryPerformance:   1.0,
}

var priorityScores = map[types.Priority]float64{
	types.PriorityHigh:   3.0,
	types.PriorityMedium: 2.0,
	types.PriorityLow:    1.0,
}

// History supplies past verdict records for historical-risk weighting. The
// knowledge store satisfies it; a nil History means neutral weighting.
type History interface {
	All(ctx context.Context, kind knowledge.RecordKind) ([]knowledge.Record, error)
}

// Ranker orders candidate test cases and selects the top K for execution.
type Ranker struct {
	history   History
	targetURL string
	topK      int
	logger    *zap.Logger
}

// New creates a ranker. history may be nil; topK <= 0 falls back to 10.
func New(history History, targetURL string, topK int, logger *zap.Logger) *Ranker {
	if topK <= 0 {
		topK = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ranker{
		history:   history,
		targetURL: targetURL,
		topK:      topK,
		logger:    logger,
	}
}

// Rank assigns a score and rank to every candidate and returns a plan with
// the top K flagged as selected. An empty candidate set yields an empty
// plan, not an error.
func (r *Ranker) Rank(ctx context.Context, candidates []types.TestCase) (*types.TestPlan, error) {
	plan := &types.TestPlan{
		ID:          "plan_" + uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
	}
	if len(candidates) == 0 {
		plan.TestCases = []types.TestCase{}
		return plan, nil
	}

	risk := r.categoryRisk(ctx)

	scored := make([]types.TestCase, len(candidates))
	copy(scored, candidates)
	for i := range scored {
		scored[i].Score = r.score(scored[i], risk)
	}

	// Insertion sort keeps equal scores in generation order, which makes
	// ranking reproducible for identical inputs.
	for i := 1; i < len(scored); i++ {
		for j := i; j > 0 && scored[j].Score > scored[j-1].Score; j-- {
			scored[j], scored[j-1] = scored[j-1], scored[j]
		}
	}

	for i := range scored {
		scored[i].Rank = i + 1
		scored[i].Selected = i < r.topK
	}

	plan.TestCases = scored
	plan.TotalCases = len(scored)
	r.logger.Info("ranked test cases",
		zap.Int("candidates", len(scored)),
		zap.Int("selected", min(r.topK, len(scored))))
	return plan, nil
}

func (r *Ranker) score(tc types.TestCase, risk map[types.Category]float64) float64 {
	cat, ok := categoryScores[tc.Category]
	if !ok {
		cat = 2.0
	}
	prio, ok := priorityScores[tc.Priority]
	if !ok {
		prio = 2.0
	}

	var duration float64
	switch {
	case tc.EstimatedDuration < 15:
		duration = 3.0
	case tc.EstimatedDuration < 30:
		duration = 2.0
	default:
		duration = 1.0
	}

	return categoryWeight*cat + priorityWeight*prio + durationWeight*duration + risk[tc.Category]
}

// categoryRisk computes, per category, the share of recorded verdicts for
// this target that ended FAIL or FLAKY, scaled by riskBoostMax. Missing or
// unreadable history degrades to neutral (zero boost).
func (r *Ranker) categoryRisk(ctx context.Context) map[types.Category]float64 {
	boost := make(map[types.Category]float64)
	if r.history == nil {
		return boost
	}

	records, err := r.history.All(ctx, knowledge.KindTestHistory)
	if err != nil {
		r.logger.Warn("history unavailable, ranking without risk weighting", zap.Error(err))
		return boost
	}

	type tally struct{ total, risky int }
	counts := make(map[types.Category]*tally)
	for _, rec := range records {
		if rec.Context["target"] != r.targetURL {
			continue
		}
		cat := types.Category(rec.Context["category"])
		if cat == "" {
			continue
		}
		t, ok := counts[cat]
		if !ok {
			t = &tally{}
			counts[cat] = t
		}
		t.total++
		switch types.Verdict(rec.Context["verdict"]) {
		case types.VerdictFail, types.VerdictFlaky:
			t.risky++
		}
	}

	for cat, t := range counts {
		if t.total > 0 {
			boost[cat] = riskBoostMax * float64(t.risky) / float64(t.total)
		}
	}
	return boost
}
