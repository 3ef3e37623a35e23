package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"gametester/internal/orchestrator"
	"gametester/internal/types"

	"go.uber.org/zap"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleConfig reports the effective configuration with secrets blanked,
// plus the knowledge store availability flag.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg := *s.cfg
	cfg.Planner.APIKey = ""
	cfg.Embedding.GenAIAPIKey = ""

	available := s.insights != nil && s.insights.Available()
	writeJSON(w, http.StatusOK, map[string]any{
		"target":              cfg.Target,
		"planner":             cfg.Planner,
		"execution":           cfg.Execution,
		"knowledge_available": available,
		"embedding": map[string]string{
			"provider": cfg.Embedding.Provider,
			"model":    cfg.Embedding.OllamaModel,
		},
	})
}

// handleGeneratePlan runs one planning cycle: candidates, ranked plan,
// stored as the current plan.
func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	candidates, err := s.planner.GenerateCandidates(ctx)
	if err != nil {
		s.logger.Error("plan generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to generate candidates: "+err.Error())
		return
	}

	plan, err := s.ranker.Rank(ctx, candidates)
	if err != nil {
		s.logger.Error("ranking failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to rank candidates: "+err.Error())
		return
	}

	s.setCurrentPlan(plan)
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleCurrentPlan(w http.ResponseWriter, r *http.Request) {
	plan := s.getCurrentPlan()
	if plan == nil {
		writeError(w, http.StatusNotFound, "no plan generated yet")
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// handleExecuteTests starts an asynchronous execution cycle over the current
// plan. A cycle already in flight yields 409; a missing plan yields 400.
func (s *Server) handleExecuteTests(w http.ResponseWriter, r *http.Request) {
	plan := s.getCurrentPlan()
	if plan == nil {
		writeError(w, http.StatusBadRequest, "generate a plan before executing")
		return
	}
	if s.runner.Progress().State == orchestrator.StateRunning {
		writeError(w, http.StatusConflict, "an execution cycle is already in progress")
		return
	}

	go s.runCycle(plan)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   "started",
		"plan_id":  plan.ID,
		"selected": len(plan.SelectedCases()),
	})
}

// runCycle drives one background cycle to completion and persists its
// report. It detaches from the request context on purpose: the cycle must
// outlive the HTTP request that started it.
func (s *Server) runCycle(plan *types.TestPlan) {
	ctx := context.Background()

	verdicts, err := s.runner.Run(ctx, plan)
	if err != nil {
		s.logger.Error("execution cycle failed", zap.String("plan", plan.ID), zap.Error(err))
		if len(verdicts) == 0 {
			return
		}
		// Partial verdicts from a cancelled cycle are still worth a report.
	}

	report := s.reporter.Build(plan, s.cfg.Target.URL, verdicts)
	if _, err := s.reporter.Save(ctx, report); err != nil {
		s.logger.Error("failed to save report", zap.Error(err))
		return
	}
	s.setLastReportID(report.ReportID)
}

// executionStatus is the status payload: cycle progress plus the report of
// the most recently completed cycle, when one exists.
type executionStatus struct {
	orchestrator.Progress
	ReportID string `json:"report_id,omitempty"`
}

func (s *Server) handleExecutionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, executionStatus{
		Progress: s.runner.Progress(),
		ReportID: s.getLastReportID(),
	})
}

func (s *Server) handleCancelExecution(w http.ResponseWriter, r *http.Request) {
	if s.runner.Progress().State != orchestrator.StateRunning {
		writeError(w, http.StatusConflict, "no execution cycle in progress")
		return
	}
	s.runner.Cancel()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	ids, err := s.reporter.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reports: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": ids})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	report, err := s.reporter.Load(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "report not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if s.insights == nil {
		writeJSON(w, http.StatusOK, map[string]any{"available": false})
		return
	}
	ins, err := s.insights.Insights(r.Context(), s.cfg.Target.URL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read insights: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ins)
}

type feedbackRequest struct {
	TestID   string            `json:"test_id"`
	Feedback string            `json:"feedback"`
	Extra    map[string]string `json:"extra,omitempty"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if s.insights == nil {
		writeError(w, http.StatusServiceUnavailable, "knowledge store is not available")
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid feedback payload")
		return
	}
	if strings.TrimSpace(req.Feedback) == "" {
		writeError(w, http.StatusBadRequest, "feedback must not be empty")
		return
	}

	id, err := s.insights.RecordFeedback(r.Context(), s.cfg.Target.URL, req.TestID, req.Feedback, req.Extra)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record feedback: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"record_id": id})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
