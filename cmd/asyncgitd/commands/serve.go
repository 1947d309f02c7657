package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/asyncgit/pkg/gitlib"
	"github.com/Sumatoshi-tech/asyncgit/pkg/observability"
)

type serveCommand struct {
	repoPath   string
	configPath string
}

// NewServeCommand builds `asyncgitd serve`, a long-running process that
// opens a repository and exposes /healthz, /readyz, and /metrics until
// interrupted. Nothing in DaemonConfig.Metrics matters to the one-shot
// job commands; this is the mode that turns it on.
func NewServeCommand() *cobra.Command {
	sc := &serveCommand{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a long-lived process exposing health and metrics endpoints",
		RunE:  sc.run,
	}

	cmd.Flags().StringVarP(&sc.repoPath, "repo", "r", ".", "Path to the repository")
	cmd.Flags().StringVar(&sc.configPath, "config", "", "Config file path")

	return cmd
}

func (sc *serveCommand) run(cmd *cobra.Command, _ []string) error {
	daemonCfg, err := loadDaemonConfigOrDefault(sc.configPath)
	if err != nil {
		return err
	}

	if !daemonCfg.Metrics.Enabled {
		return fmt.Errorf("serve requires metrics.enabled in config (or ASYNCGIT_METRICS_ENABLED=true)")
	}

	repo, err := gitlib.OpenRepository(sc.repoPath)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer repo.Free()

	addr := fmt.Sprintf("%s:%d", daemonCfg.Metrics.Host, daemonCfg.Metrics.Port)

	diagServer, err := observability.NewDiagnosticsServer(addr, func(_ context.Context) error {
		_, headErr := repo.Head()

		return headErr
	})
	if err != nil {
		return fmt.Errorf("start diagnostics server: %w", err)
	}
	defer diagServer.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "serving /healthz /readyz /metrics on %s\n", diagServer.Addr())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	return nil
}
