// Package config loads gametester configuration from YAML with environment
// variable overrides for anything deployment-specific.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all gametester configuration.
type Config struct {
	// Target is the game under test.
	Target TargetConfig `yaml:"target"`

	// Planner configures candidate generation.
	Planner PlannerConfig `yaml:"planner"`

	// Execution configures the orchestrator and worker pool.
	Execution ExecutionConfig `yaml:"execution"`

	// Knowledge configures the persistent knowledge store.
	Knowledge KnowledgeConfig `yaml:"knowledge"`

	// Embedding configures the embedding engine backend.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// TargetConfig identifies the application under test.
type TargetConfig struct {
	URL string `yaml:"url"`
}

// PlannerConfig configures candidate test generation.
type PlannerConfig struct {
	// Provider: "genai" for LLM-drafted cases, "catalog" for built-in only.
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	// CandidateCount is the number of candidates a planning cycle produces.
	CandidateCount int `yaml:"candidate_count"`
}

// ExecutionConfig configures the orchestrator and executor pool.
type ExecutionConfig struct {
	// ConcurrencyCap is the maximum number of tests in flight at once.
	ConcurrencyCap int `yaml:"concurrency_cap"`
	// ReplicaCount is how many independent attempts each test gets.
	ReplicaCount int `yaml:"replica_count"`
	// TopK is how many ranked cases are selected for execution.
	TopK int `yaml:"top_k"`
	// ReplicaTimeout bounds one replica attempt.
	ReplicaTimeout string `yaml:"replica_timeout"`
	// Headless controls the browser launch mode.
	Headless bool `yaml:"headless"`
	// ArtifactDir is where screenshots and console logs are written.
	ArtifactDir string `yaml:"artifact_dir"`
	// ReportDir is where report bundles are persisted.
	ReportDir string `yaml:"report_dir"`
}

// KnowledgeConfig configures the knowledge store.
type KnowledgeConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	// Provider: "ollama" or "genai".
	Provider       string `yaml:"provider"`
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Target: TargetConfig{
			URL: "https://play.ezygamers.com/",
		},
		Planner: PlannerConfig{
			Provider:       "catalog",
			Model:          "gemini-2.5-flash",
			CandidateCount: 20,
		},
		Execution: ExecutionConfig{
			ConcurrencyCap: 3,
			ReplicaCount:   3,
			TopK:           10,
			ReplicaTimeout: "90s",
			Headless:       true,
			ArtifactDir:    "artifacts",
			ReportDir:      "reports",
		},
		Knowledge: KnowledgeConfig{
			DatabasePath: filepath.Join("knowledge_base", "knowledge.db"),
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults;
// environment overrides are applied either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Target.URL == "" {
		return fmt.Errorf("target.url must not be empty")
	}
	if c.Execution.ConcurrencyCap < 1 {
		return fmt.Errorf("execution.concurrency_cap must be >= 1, got %d", c.Execution.ConcurrencyCap)
	}
	if c.Execution.ReplicaCount < 1 {
		return fmt.Errorf("execution.replica_count must be >= 1, got %d", c.Execution.ReplicaCount)
	}
	if c.Execution.TopK < 0 {
		return fmt.Errorf("execution.top_k must be >= 0, got %d", c.Execution.TopK)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("GAMETESTER_TARGET_URL"); url != "" {
		c.Target.URL = url
	}
	if path := os.Getenv("GAMETESTER_DB"); path != "" {
		c.Knowledge.DatabasePath = path
	}
	if dir := os.Getenv("GAMETESTER_ARTIFACT_DIR"); dir != "" {
		c.Execution.ArtifactDir = dir
	}
	if dir := os.Getenv("GAMETESTER_REPORT_DIR"); dir != "" {
		c.Execution.ReportDir = dir
	}
	if addr := os.Getenv("GAMETESTER_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if v := os.Getenv("GAMETESTER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Execution.ConcurrencyCap = n
		}
	}
	if v := os.Getenv("GAMETESTER_REPLICAS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Execution.ReplicaCount = n
		}
	}
	if model := os.Getenv("GAMETESTER_EMBED_MODEL"); model != "" {
		c.Embedding.OllamaModel = model
	}

	// A Gemini key enables both the LLM planner and the genai embedder.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Planner.APIKey = key
		c.Planner.Provider = "genai"
		c.Embedding.GenAIAPIKey = key
	}
}

// GetReplicaTimeout returns the per-replica timeout as a duration.
func (c *Config) GetReplicaTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.ReplicaTimeout)
	if err != nil || d <= 0 {
		return 90 * time.Second
	}
	return d
}
