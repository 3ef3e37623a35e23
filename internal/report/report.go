// Package report builds and persists the result bundle of one execution
// cycle: verdict summary, per-test results, and actionable recommendations.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gametester/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Generator builds reports and persists them as JSON bundles under dir.
type Generator struct {
	dir    string
	logger *zap.Logger
}

// NewGenerator creates a report generator writing to dir.
func NewGenerator(dir string, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{dir: dir, logger: logger}
}

// Build assembles a report for one finished cycle. It is pure; Save persists.
func (g *Generator) Build(plan *types.TestPlan, targetURL string, verdicts []types.ConsensusVerdict) *types.Report {
	r := &types.Report{
		ReportID:      "report_" + uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		TargetURL:     targetURL,
		TestsExecuted: len(verdicts),
		TestResults:   verdicts,
	}
	if plan != nil {
		r.TestPlanID = plan.ID
		r.TotalPlanned = plan.TotalCases
	}
	r.Summary = summarize(verdicts)
	r.Recommendations = recommend(r.Summary, verdicts)
	return r
}

// Save writes the report bundle to <dir>/<report_id>.json.
func (g *Generator) Save(ctx context.Context, r *types.Report) (string, error) {
	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(g.dir, r.ReportID+".json")
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	g.logger.Info("report saved",
		zap.String("report", r.ReportID),
		zap.Int("tests", r.TestsExecuted),
		zap.Float64("pass_rate", r.Summary.PassRate))
	return path, nil
}

// List returns the persisted report IDs, newest first.
func (g *Generator) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(g.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read report directory: %w", err)
	}

	type stamped struct {
		id  string
		mod time.Time
	}
	var found []stamped
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, stamped{
			id:  strings.TrimSuffix(e.Name(), ".json"),
			mod: info.ModTime(),
		})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].mod.After(found[j].mod) })

	ids := make([]string, len(found))
	for i, f := range found {
		ids[i] = f.id
	}
	return ids, nil
}

// Load reads one persisted report by ID.
func (g *Generator) Load(ctx context.Context, id string) (*types.Report, error) {
	// IDs come from callers; keep them from escaping the report dir.
	if id != filepath.Base(id) || strings.Contains(id, "..") {
		return nil, fmt.Errorf("invalid report id %q", id)
	}

	data, err := os.ReadFile(filepath.Join(g.dir, id+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read report %s: %w", id, err)
	}
	var r types.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", id, err)
	}
	return &r, nil
}

func summarize(verdicts []types.ConsensusVerdict) types.Summary {
	s := types.Summary{TotalTests: len(verdicts)}
	if len(verdicts) == 0 {
		return s
	}

	var reproSum float64
	for _, v := range verdicts {
		switch v.Verdict {
		case types.VerdictPass:
			s.Passed++
		case types.VerdictFail:
			s.Failed++
		case types.VerdictFlaky:
			s.Flaky++
		}
		reproSum += v.ReproducibilityScore
	}
	s.PassRate = float64(s.Passed) / float64(s.TotalTests)
	s.AverageReproducibility = reproSum / float64(s.TotalTests)
	return s
}

// recommend derives follow-up advice from the verdict set.
func recommend(s types.Summary, verdicts []types.ConsensusVerdict) []string {
	recs := []string{}
	if s.TotalTests == 0 {
		return append(recs, "No tests were executed; check the planner output and executor health.")
	}

	if s.Failed > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d test(s) failed in every replica; prioritize fixing these reproducible defects.", s.Failed))
	}
	if s.Flaky > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d test(s) were flaky; review their triage notes and stabilize timing-sensitive behavior.", s.Flaky))
	}
	if s.AverageReproducibility < 0.8 {
		recs = append(recs, fmt.Sprintf(
			"Average reproducibility is %.2f; the game's behavior varies noticeably between identical runs.",
			s.AverageReproducibility))
	}

	timeouts := 0
	for _, v := range verdicts {
		for _, note := range v.TriageNotes {
			if strings.Contains(note, "timeout") {
				timeouts++
				break
			}
		}
	}
	if timeouts > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d test(s) hit execution timeouts; consider raising the replica timeout or checking target latency.", timeouts))
	}

	if s.PassRate == 1.0 {
		recs = append(recs, "All tests passed; consider expanding coverage with more edge case and error handling tests.")
	}
	return recs
}
