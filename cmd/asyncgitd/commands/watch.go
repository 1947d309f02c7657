package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/asyncgit/pkg/gitlib"
	"github.com/Sumatoshi-tech/asyncgit/pkg/watch"
)

type watchCommand struct {
	repoPath   string
	configPath string
}

// NewWatchCommand builds `asyncgitd watch`, printing one line per debounced
// .git-state change until interrupted. This is the CLI's demonstration of
// the signal a UI event loop would otherwise use to decide when to
// re-spawn its status job.
func NewWatchCommand() *cobra.Command {
	wc := &watchCommand{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print a line each time .git state changes",
		RunE:  wc.run,
	}

	cmd.Flags().StringVarP(&wc.repoPath, "repo", "r", ".", "Path to the repository")
	cmd.Flags().StringVar(&wc.configPath, "config", "", "Config file path")

	return cmd
}

func (wc *watchCommand) run(cmd *cobra.Command, _ []string) error {
	repo, err := gitlib.OpenRepository(wc.repoPath)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer repo.Free()

	daemonCfg, err := loadDaemonConfigOrDefault(wc.configPath)
	if err != nil {
		return err
	}

	w, err := watch.New(repo, daemonCfg.Watch.Debounce, nil)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "watching for .git state changes, press ctrl-c to stop")

	count := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-w.Events():
			if !ok {
				return nil
			}

			count++

			fmt.Fprintf(out, "[%d] repository state changed\n", count)
		}
	}
}
