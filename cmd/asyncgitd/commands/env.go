// Package commands implements asyncgitd's CLI command handlers: one
// subcommand per pkg/gitjobs job, driven the same way a UI event loop
// drives the job layer (spawn, wait on the bus, render the notification).
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sumatoshi-tech/asyncgit/pkg/asyncjob"
	"github.com/Sumatoshi-tech/asyncgit/pkg/config"
	"github.com/Sumatoshi-tech/asyncgit/pkg/gitjobs"
	"github.com/Sumatoshi-tech/asyncgit/pkg/gitlib"
	"github.com/Sumatoshi-tech/asyncgit/pkg/observability"
)

// notificationWait is how long a command waits for its job's notification
// before giving up. It is one fixed limit for every job kind, fetch and
// push included; for the jobs that only read the local repository,
// anything slower than this points at a stuck libgit2 call.
const notificationWait = 2 * time.Minute

// env bundles the runtime dependencies one CLI invocation needs: the repo
// path (every job opens its own handle from this rather than sharing one),
// a small convenience handle for the command's own direct reads (resolving
// "HEAD" before a job is even spawned), the shared worker pool, a
// notification bus instrumented with RED metrics, and the observability
// providers that must be flushed on exit.
type env struct {
	repoPath  string
	repo      *gitlib.Repository
	pool      *asyncjob.Pool
	bus       *asyncjob.Bus[gitjobs.Notification]
	metrics   *gitjobs.InstrumentedBus
	providers observability.Providers
	daemonCfg *config.DaemonConfig
	logger    *slog.Logger
}

// openEnv opens repoPath and wires the job layer exactly as cmd/asyncgitd's
// long-running counterpart would, but scoped to a single command
// invocation: one pool, one bus, one repository handle, torn down by
// close() before the process exits.
func openEnv(repoPath, configPath string) (*env, error) {
	daemonCfg, err := config.LoadDaemonConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.Mode = observability.ModeCLI

	level := slog.LevelInfo
	if parseErr := level.UnmarshalText([]byte(daemonCfg.Logging.Level)); parseErr == nil {
		obsCfg.LogLevel = level
	}

	obsCfg.LogJSON = daemonCfg.Logging.Format == "json"

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	repo, err := gitlib.OpenRepository(repoPath)
	if err != nil {
		shutdownErr := providers.Shutdown(context.Background())

		return nil, fmt.Errorf("open repository %q: %w", repoPath, joinShutdownErr(err, shutdownErr))
	}

	pool := asyncjob.NewPool(daemonCfg.Pool.Size, providers.Logger)
	bus := asyncjob.NewBus[gitjobs.Notification](16, providers.Logger)

	red, redErr := observability.NewREDMetrics(providers.Meter)
	if redErr != nil {
		providers.Logger.Warn("red metrics unavailable, running uninstrumented", "error", redErr)
	}

	return &env{
		repoPath:  repoPath,
		repo:      repo,
		pool:      pool,
		bus:       bus,
		metrics:   gitjobs.NewInstrumentedBus(bus, red),
		providers: providers,
		daemonCfg: daemonCfg,
		logger:    providers.Logger,
	}, nil
}

// joinShutdownErr folds a best-effort shutdown error into a primary error's
// message, for the one call site that needs a single wrapped error rather
// than errors.Join's multi-line %w list.
func joinShutdownErr(primary, shutdown error) error {
	if shutdown == nil {
		return primary
	}

	return fmt.Errorf("%w (observability shutdown also failed: %s)", primary, shutdown)
}

// close releases the repository, stops the worker pool, and flushes
// observability providers. Best-effort: logs but does not fail the
// command's own exit code on shutdown errors.
func (e *env) close() {
	e.bus.Close()
	e.pool.Close()
	e.repo.Free()

	if err := e.providers.Shutdown(context.Background()); err != nil {
		e.logger.Warn("observability shutdown failed", "error", err)
	}
}

// loadDaemonConfigOrDefault loads configPath the same way openEnv does,
// for commands (like watch) that need the daemon config but not the full
// job-layer wiring.
func loadDaemonConfigOrDefault(configPath string) (*config.DaemonConfig, error) {
	cfg, err := config.LoadDaemonConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

// waitFor blocks until a notification of kind (or KindFinishUnchanged)
// arrives on the bus or notificationWait elapses. Other kinds are ignored,
// the same filtering a
// UI event loop does when several jobs share one bus.
func waitFor(ctx context.Context, e *env, kind gitjobs.Kind) (gitjobs.Notification, error) {
	deadline := time.NewTimer(notificationWait)
	defer deadline.Stop()

	for {
		select {
		case n := <-e.bus.Recv():
			e.metrics.Record(ctx, n)

			if n.Kind == kind || n.Kind == gitjobs.KindFinishUnchanged {
				return n, nil
			}
		case <-deadline.C:
			return gitjobs.Notification{}, fmt.Errorf("timed out waiting for job kind %d", kind)
		case <-ctx.Done():
			return gitjobs.Notification{}, ctx.Err()
		}
	}
}
