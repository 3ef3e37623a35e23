// Package server exposes the planning and execution pipeline over a small
// JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"gametester/internal/config"
	"gametester/internal/knowledge"
	"gametester/internal/orchestrator"
	"gametester/internal/types"

	"go.uber.org/zap"
)

// PlanService produces candidate test cases.
type PlanService interface {
	GenerateCandidates(ctx context.Context) ([]types.TestCase, error)
}

// RankService orders candidates into an executable plan.
type RankService interface {
	Rank(ctx context.Context, candidates []types.TestCase) (*types.TestPlan, error)
}

// RunService executes a plan and reports cycle progress.
type RunService interface {
	Run(ctx context.Context, plan *types.TestPlan) ([]types.ConsensusVerdict, error)
	Progress() orchestrator.Progress
	Cancel()
}

// ReportService builds and persists cycle reports.
type ReportService interface {
	Build(plan *types.TestPlan, targetURL string, verdicts []types.ConsensusVerdict) *types.Report
	Save(ctx context.Context, r *types.Report) (string, error)
	List(ctx context.Context) ([]string, error)
	Load(ctx context.Context, id string) (*types.Report, error)
}

// InsightService serves accumulated knowledge about the target.
type InsightService interface {
	Available() bool
	Insights(ctx context.Context, targetURL string) (knowledge.Insights, error)
	RecordFeedback(ctx context.Context, targetURL, testID, feedback string, extra map[string]string) (string, error)
}

// Server wires the pipeline components behind HTTP handlers.
type Server struct {
	cfg      *config.Config
	planner  PlanService
	ranker   RankService
	runner   RunService
	reporter ReportService
	insights InsightService
	logger   *zap.Logger

	mu           sync.Mutex
	currentPlan  *types.TestPlan
	lastReportID string

	httpServer *http.Server
}

// New creates the API server. insights may be nil when the knowledge store
// is disabled.
func New(cfg *config.Config, planner PlanService, ranker RankService, runner RunService,
	reporter ReportService, insights InsightService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		planner:  planner,
		ranker:   ranker,
		runner:   runner,
		reporter: reporter,
		insights: insights,
		logger:   logger,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/config", s.handleConfig)

	mux.HandleFunc("POST /api/generate-plan", s.handleGeneratePlan)
	mux.HandleFunc("GET /api/current-plan", s.handleCurrentPlan)

	mux.HandleFunc("POST /api/execute-tests", s.handleExecuteTests)
	mux.HandleFunc("GET /api/execution-status", s.handleExecutionStatus)
	mux.HandleFunc("POST /api/cancel-execution", s.handleCancelExecution)

	mux.HandleFunc("GET /api/reports", s.handleListReports)
	mux.HandleFunc("GET /api/reports/{id}", s.handleGetReport)

	mux.HandleFunc("GET /api/rag/insights", s.handleInsights)
	mux.HandleFunc("POST /api/rag/feedback", s.handleFeedback)

	return s.logRequests(mux)
}

// Start begins serving on the configured address and blocks until the
// listener stops.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server listening", zap.String("addr", s.cfg.Server.Addr))

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener and cancels any running cycle.
func (s *Server) Shutdown(ctx context.Context) error {
	s.runner.Cancel()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}

func (s *Server) setCurrentPlan(p *types.TestPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPlan = p
}

func (s *Server) getCurrentPlan() *types.TestPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPlan
}

func (s *Server) setLastReportID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReportID = id
}

func (s *Server) getLastReportID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReportID
}
