package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://play.ezygamers.com/", cfg.Target.URL)
	assert.Equal(t, 3, cfg.Execution.ConcurrencyCap)
	assert.Equal(t, 3, cfg.Execution.ReplicaCount)
	assert.Equal(t, 10, cfg.Execution.TopK)
	assert.Equal(t, ":8000", cfg.Server.Addr)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "gametester.yaml")

	cfg := DefaultConfig()
	cfg.Target.URL = "https://example.com/game"
	cfg.Execution.ReplicaCount = 5
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/game", loaded.Target.URL)
	assert.Equal(t, 5, loaded.Execution.ReplicaCount)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target: [not a mapping"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Target.URL = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Execution.ConcurrencyCap = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Execution.ReplicaCount = 0
	assert.Error(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GAMETESTER_TARGET_URL", "https://other.example.com/")
	t.Setenv("GAMETESTER_CONCURRENCY", "7")
	t.Setenv("GAMETESTER_REPLICAS", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://other.example.com/", cfg.Target.URL)
	assert.Equal(t, 7, cfg.Execution.ConcurrencyCap)
	assert.Equal(t, 3, cfg.Execution.ReplicaCount, "unparseable override is ignored")
}

func TestGetReplicaTimeout(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 90*time.Second, cfg.GetReplicaTimeout())

	cfg.Execution.ReplicaTimeout = "2m"
	assert.Equal(t, 2*time.Minute, cfg.GetReplicaTimeout())

	cfg.Execution.ReplicaTimeout = "garbage"
	assert.Equal(t, 90*time.Second, cfg.GetReplicaTimeout())
}
