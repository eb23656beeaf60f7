package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "HEURISTIC", cfg.Scheduler.Strategy)
	assert.Equal(t, float64(30), cfg.Scheduler.TimeLimitSeconds)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scheduler:
  strategy: ALL_INSTANCE_CP_WARM
  time_limit_seconds: 12
  sigma: 2
logging:
  level: debug
  format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ALL_INSTANCE_CP_WARM", cfg.Scheduler.Strategy)
	assert.Equal(t, float64(12), cfg.Scheduler.TimeLimitSeconds)
	assert.Equal(t, 2, cfg.Scheduler.Sigma)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	cfg := defaults()
	cfg.Scheduler.Strategy = "NOT_A_STRATEGY"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown scheduler.strategy")
}

func TestValidateRejectsNonPositiveTimeLimit(t *testing.T) {
	cfg := defaults()
	cfg.Scheduler.TimeLimitSeconds = 0
	err := cfg.Validate()
	require.Error(t, err)
}
