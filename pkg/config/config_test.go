package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/asyncgit/pkg/commitfilter"
	"github.com/Sumatoshi-tech/asyncgit/pkg/config"
)

func TestDefaultOptionsShowsUntrackedAndSearchesSummary(t *testing.T) {
	t.Parallel()

	opts := config.DefaultOptions()

	assert.True(t, opts.ShowUntracked)
	assert.True(t, opts.Search.Fields.Contains(commitfilter.SearchMessageSummary))
	assert.Equal(t, 3, opts.Diff.ContextLines)
}

func TestLoadDaemonConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadDaemonConfig("")
	require.NoError(t, err)

	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 200*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadDaemonConfigFromFile(t *testing.T) {
	t.Parallel()

	content := `
metrics:
  enabled: true
  port: 9999

pool:
  size: 4

watch:
  debounce: "500ms"

logging:
  level: "debug"
`

	dir := t.TempDir()
	path := filepath.Join(dir, "asyncgit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.LoadDaemonConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9999, cfg.Metrics.Port)
	assert.Equal(t, 4, cfg.Pool.Size)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadDaemonConfigFromEnvironment(t *testing.T) {
	t.Setenv("ASYNCGIT_METRICS_PORT", "7000")
	t.Setenv("ASYNCGIT_LOGGING_LEVEL", "warn")

	cfg, err := config.LoadDaemonConfig("")
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Metrics.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadDaemonConfigRejectsInvalidMetricsPort(t *testing.T) {
	t.Parallel()

	content := `
metrics:
  enabled: true
  port: 0
`

	dir := t.TempDir()
	path := filepath.Join(dir, "asyncgit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := config.LoadDaemonConfig(path)
	require.ErrorIs(t, err, config.ErrInvalidPort)
}
