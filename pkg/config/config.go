// Package config provides the per-request options struct a UI keeps (diff,
// search and untracked-file settings), plus daemon-level configuration
// (logging, metrics endpoint) for cmd/asyncgitd, loaded the way the
// teacher's server config is loaded.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/asyncgit/pkg/commitfilter"
)

// Sentinel validation errors.
var (
	ErrInvalidPort        = errors.New("invalid metrics port")
	ErrInvalidPoolSize    = errors.New("pool size must not be negative")
	ErrInvalidDebounce    = errors.New("watch debounce must be positive")
	ErrInvalidContextLine = errors.New("diff context lines must not be negative")
)

// Default configuration values.
const (
	defaultMetricsPort  = 9090
	defaultMetricsHost  = "0.0.0.0"
	defaultPoolSize     = 0 // 0 means runtime.NumCPU(), per asyncjob.NewPool.
	defaultWatchDebounce = 200 * time.Millisecond
	defaultContextLines = 3
	maxPort             = 65535
)

// DiffOptions mirrors git2go's own DiffOptions surface (the fields a caller
// can actually influence): how many unchanged lines of context to keep
// around a hunk, how many lines separate two hunks before they merge, and
// whether to ignore whitespace-only changes.
type DiffOptions struct {
	ContextLines     int  `mapstructure:"context_lines"`
	InterhunkLines   int  `mapstructure:"interhunk_lines"`
	IgnoreWhitespace bool `mapstructure:"ignore_whitespace"`
}

// Options is the per-request options struct; it owns no global state. No
// gitjobs request type takes it: DiffJob reads gitlib.DiffOptions from its
// DiffParams, and cmd/asyncgitd's diff command takes its default diff flags
// from DefaultOptions().Diff.
type Options struct {
	Diff          DiffOptions                `mapstructure:"diff"`
	Search        commitfilter.SearchParams  `mapstructure:"search"`
	ShowUntracked bool                       `mapstructure:"show_untracked"`
}

// DefaultOptions returns the options a fresh UI session starts with.
func DefaultOptions() Options {
	return Options{
		Diff: DiffOptions{
			ContextLines:   defaultContextLines,
			InterhunkLines: 0,
		},
		Search: commitfilter.SearchParams{
			Fields: commitfilter.SearchMessageSummary,
		},
		ShowUntracked: true,
	}
}

// DaemonConfig holds the ambient configuration cmd/asyncgitd loads at
// startup: nothing here is passed into a job request, it only governs how
// the process itself runs.
type DaemonConfig struct {
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Pool     PoolConfig     `mapstructure:"pool"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Defaults Options        `mapstructure:"defaults"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// PoolConfig configures the shared asyncjob.Pool.
type PoolConfig struct {
	Size int `mapstructure:"size"` // 0 means runtime.NumCPU().
}

// WatchConfig configures the pkg/watch filesystem watcher.
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// LoggingConfig configures pkg/observability's slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadDaemonConfig loads cmd/asyncgitd's configuration from file and
// environment variables, following the teacher's viper-based LoadConfig
// precisely (same config-path search order, same ASYNCGIT_ env prefix
// convention in place of CODEFANG_).
func LoadDaemonConfig(configPath string) (*DaemonConfig, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("asyncgit")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("/etc/asyncgit")
	}

	viperCfg.SetEnvPrefix("ASYNCGIT")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if readErr := viperCfg.ReadInConfig(); readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("read config file: %w", readErr)
		}
	}

	var cfg DaemonConfig

	if err := viperCfg.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("metrics.enabled", false)
	viperCfg.SetDefault("metrics.host", defaultMetricsHost)
	viperCfg.SetDefault("metrics.port", defaultMetricsPort)

	viperCfg.SetDefault("pool.size", defaultPoolSize)

	viperCfg.SetDefault("watch.enabled", true)
	viperCfg.SetDefault("watch.debounce", defaultWatchDebounce.String())

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "json")

	viperCfg.SetDefault("defaults.diff.context_lines", defaultContextLines)
	viperCfg.SetDefault("defaults.show_untracked", true)
}

func validateConfig(cfg *DaemonConfig) error {
	if cfg.Metrics.Enabled && (cfg.Metrics.Port <= 0 || cfg.Metrics.Port > maxPort) {
		return fmt.Errorf("%w: %d", ErrInvalidPort, cfg.Metrics.Port)
	}

	if cfg.Pool.Size < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPoolSize, cfg.Pool.Size)
	}

	if cfg.Watch.Enabled && cfg.Watch.Debounce <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDebounce, cfg.Watch.Debounce)
	}

	if cfg.Defaults.Diff.ContextLines < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidContextLine, cfg.Defaults.Diff.ContextLines)
	}

	return nil
}
