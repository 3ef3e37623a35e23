package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gametester/internal/config"
	"gametester/internal/embedding"
	"gametester/internal/executor"
	"gametester/internal/knowledge"
	"gametester/internal/logging"
	"gametester/internal/orchestrator"
	"gametester/internal/planner"
	"gametester/internal/ranker"
	"gametester/internal/report"
	"gametester/internal/server"
	"gametester/internal/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serverShutdownTimeout = 15 * time.Second

var (
	// Global flags
	configPath string
	verbose    bool
	targetURL  string

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "gametester",
	Short: "Automated exploratory testing for browser games",
	Long: `gametester plans, executes, and reconciles exploratory test cases
against a browser game. Candidate cases are ranked by category, priority,
and historical risk; each selected case runs as multiple independent browser
replicas whose outcomes are reconciled into a consensus verdict.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return err
		}
		if targetURL != "" {
			cfg.Target.URL = targetURL
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate and rank a test plan, printing it as JSON",
	RunE:  runPlan,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full cycle: plan, execute, and report",
	RunE:  runCycle,
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Show accumulated knowledge about the target",
	RunE:  runInsights,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "gametester.yaml", "path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&targetURL, "target", "t", "", "override the target URL")

	rootCmd.AddCommand(serveCmd, planCmd, runCmd, insightsCmd)
}

// components is the wired pipeline shared by the subcommands.
type components struct {
	store    *knowledge.Store
	planner  *planner.Planner
	ranker   *ranker.Ranker
	driver   *executor.RodDriver
	orch     *orchestrator.Orchestrator
	reporter *report.Generator
}

func buildComponents(ctx context.Context) (*components, error) {
	engine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		logger.Warn("embedding engine unavailable, knowledge features degraded", zap.Error(err))
		engine = nil
	}

	store, err := knowledge.Open(cfg.Knowledge.DatabasePath, engine, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge store: %w", err)
	}

	var gen planner.Generator
	if cfg.Planner.Provider == "genai" && cfg.Planner.APIKey != "" {
		g, err := planner.NewGenAIGenerator(cfg.Planner.APIKey, cfg.Planner.Model)
		if err != nil {
			logger.Warn("LLM planner unavailable, using built-in catalog", zap.Error(err))
		} else {
			gen = g
		}
	}
	analyzer := planner.NewAnalyzer(cfg.Execution.Headless, logger)
	pln := planner.New(gen, analyzer, store, cfg.Target.URL, cfg.Planner.CandidateCount, logger)

	rnk := ranker.New(store, cfg.Target.URL, cfg.Execution.TopK, logger)

	execCfg := executor.DefaultConfig(cfg.Target.URL)
	execCfg.Headless = cfg.Execution.Headless
	execCfg.ArtifactDir = cfg.Execution.ArtifactDir
	execCfg.ReplicaTimeout = cfg.GetReplicaTimeout()
	driver := executor.NewRodDriver(execCfg, logger)
	pool := executor.NewPool(driver, execCfg, logger)

	orch := orchestrator.New(pool, store, orchestrator.Config{
		TargetURL:      cfg.Target.URL,
		ConcurrencyCap: cfg.Execution.ConcurrencyCap,
		ReplicaCount:   cfg.Execution.ReplicaCount,
	}, logger)

	reporter := report.NewGenerator(cfg.Execution.ReportDir, logger)

	return &components{
		store:    store,
		planner:  pln,
		ranker:   rnk,
		driver:   driver,
		orch:     orch,
		reporter: reporter,
	}, nil
}

func (c *components) close() {
	if err := c.driver.Close(); err != nil {
		logger.Warn("failed to close browser", zap.Error(err))
	}
	if err := c.store.Close(); err != nil {
		logger.Warn("failed to close knowledge store", zap.Error(err))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx)
	if err != nil {
		return err
	}
	defer comps.close()

	srv := server.New(cfg, comps.planner, comps.ranker, comps.orch, comps.reporter, comps.store, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx)
	if err != nil {
		return err
	}
	defer comps.close()

	plan, err := generatePlan(ctx, comps)
	if err != nil {
		return err
	}
	return printJSON(plan)
}

func runCycle(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx)
	if err != nil {
		return err
	}
	defer comps.close()

	plan, err := generatePlan(ctx, comps)
	if err != nil {
		return err
	}
	logger.Info("plan ready",
		zap.String("plan", plan.ID),
		zap.Int("candidates", plan.TotalCases),
		zap.Int("selected", len(plan.SelectedCases())))

	verdicts, err := comps.orch.Run(ctx, plan)
	if err != nil {
		return fmt.Errorf("execution cycle failed: %w", err)
	}

	rep := comps.reporter.Build(plan, cfg.Target.URL, verdicts)
	path, err := comps.reporter.Save(ctx, rep)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	logger.Info("cycle complete", zap.String("report", path))
	return printJSON(rep.Summary)
}

func runInsights(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx)
	if err != nil {
		return err
	}
	defer comps.close()

	ins, err := comps.store.Insights(ctx, cfg.Target.URL)
	if err != nil {
		return err
	}
	return printJSON(ins)
}

func generatePlan(ctx context.Context, comps *components) (*types.TestPlan, error) {
	candidates, err := comps.planner.GenerateCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate candidates: %w", err)
	}
	plan, err := comps.ranker.Rank(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to rank candidates: %w", err)
	}
	return plan, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
