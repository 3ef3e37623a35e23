// Package planner produces candidate test cases for the target game. Cases
// come from an LLM generator when one is configured, topped up from a
// built-in catalog; without a generator the catalog alone is used, so a
// planning cycle always yields candidates.
package planner

import (
	"context"
	"fmt"

	"gametester/internal/types"

	"go.uber.org/zap"
)

// Generator drafts candidate test cases from a target description. The
// genai-backed generator satisfies it.
type Generator interface {
	Draft(ctx context.Context, targetURL, analysis string, count int) ([]types.TestCase, error)
}

// AnalysisSink persists target analyses for later planning cycles. The
// knowledge store satisfies it; nil disables persistence.
type AnalysisSink interface {
	RecordAnalysis(ctx context.Context, targetURL, analysis string) (string, error)
}

// Planner generates candidate test cases for one target.
type Planner struct {
	generator Generator // nil means catalog only
	analyzer  *Analyzer // nil skips target analysis
	sink      AnalysisSink
	targetURL string
	count     int
	logger    *zap.Logger
}

// New creates a planner. generator, analyzer, and sink may each be nil;
// count <= 0 falls back to 20.
func New(generator Generator, analyzer *Analyzer, sink AnalysisSink, targetURL string, count int, logger *zap.Logger) *Planner {
	if count <= 0 {
		count = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		generator: generator,
		analyzer:  analyzer,
		sink:      sink,
		targetURL: targetURL,
		count:     count,
		logger:    logger,
	}
}

// GenerateCandidates produces up to count candidate cases with sequential
// IDs. Analyzer and generator failures degrade to the catalog rather than
// failing the planning cycle.
func (p *Planner) GenerateCandidates(ctx context.Context) ([]types.TestCase, error) {
	analysis := p.analyzeTarget(ctx)

	var cases []types.TestCase
	if p.generator != nil {
		drafted, err := p.generator.Draft(ctx, p.targetURL, analysis, p.count)
		if err != nil {
			p.logger.Warn("LLM draft failed, falling back to catalog", zap.Error(err))
		} else {
			cases = sanitize(drafted)
			p.logger.Info("LLM drafted candidates", zap.Int("count", len(cases)))
		}
	}

	// Top up from the catalog, skipping names the LLM already used.
	if len(cases) < p.count {
		seen := make(map[string]bool, len(cases))
		for _, tc := range cases {
			seen[tc.Name] = true
		}
		for _, tc := range catalog() {
			if len(cases) >= p.count {
				break
			}
			if seen[tc.Name] {
				continue
			}
			cases = append(cases, tc)
		}
	}
	if len(cases) > p.count {
		cases = cases[:p.count]
	}

	for i := range cases {
		cases[i].ID = fmt.Sprintf("tc_%03d", i+1)
	}

	p.logger.Info("generated candidates",
		zap.String("target", p.targetURL), zap.Int("count", len(cases)))
	return cases, nil
}

// analyzeTarget inspects the live page and records what it finds. Any
// failure degrades to an empty analysis.
func (p *Planner) analyzeTarget(ctx context.Context) string {
	if p.analyzer == nil {
		return ""
	}
	analysis, err := p.analyzer.Analyze(ctx, p.targetURL)
	if err != nil {
		p.logger.Warn("target analysis failed", zap.Error(err))
		return ""
	}

	summary := analysis.Summary()
	if p.sink != nil {
		if _, err := p.sink.RecordAnalysis(ctx, p.targetURL, summary); err != nil {
			p.logger.Warn("failed to record analysis", zap.Error(err))
		}
	}
	return summary
}

// sanitize drops drafts missing essentials and normalizes loose LLM output
// into valid categories and priorities.
func sanitize(drafts []types.TestCase) []types.TestCase {
	var out []types.TestCase
	for _, tc := range drafts {
		if tc.Name == "" || len(tc.Steps) == 0 {
			continue
		}
		switch tc.Category {
		case types.CategoryFunctionality, types.CategoryEdgeCase,
			types.CategoryErrorHandling, types.CategoryUIUX, types.CategoryPerformance:
		default:
			tc.Category = types.CategoryFunctionality
		}
		switch tc.Priority {
		case types.PriorityHigh, types.PriorityMedium, types.PriorityLow:
		default:
			tc.Priority = types.PriorityMedium
		}
		if tc.EstimatedDuration <= 0 {
			tc.EstimatedDuration = 20
		}
		out = append(out, tc)
	}
	return out
}
