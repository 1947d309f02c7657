package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/asyncgit/pkg/gitjobs"
)

type blameCommand struct {
	repoPath   string
	configPath string
	path       string
	rev        string
}

// NewBlameCommand builds `asyncgitd blame`, attributing each line of a file
// to the commit that last touched it.
func NewBlameCommand() *cobra.Command {
	bc := &blameCommand{}

	cmd := &cobra.Command{
		Use:   "blame <path>",
		Short: "Show per-line attribution for a file",
		Args:  cobra.ExactArgs(1),
		RunE:  bc.run,
	}

	cmd.Flags().StringVarP(&bc.repoPath, "repo", "r", ".", "Path to the repository")
	cmd.Flags().StringVar(&bc.configPath, "config", "", "Config file path")
	cmd.Flags().StringVar(&bc.rev, "commit", "", "Starting commit hash (empty = HEAD)")

	return cmd
}

func (bc *blameCommand) run(cmd *cobra.Command, args []string) error {
	bc.path = args[0]

	e, err := openEnv(bc.repoPath, bc.configPath)
	if err != nil {
		return err
	}
	defer e.close()

	var startHash = zeroHashUnlessSet(bc.rev)

	job := gitjobs.NewBlameJob(e.repoPath, e.pool, e.bus)

	ctx := cmd.Context()

	e.metrics.MarkStart(gitjobs.KindBlame)
	job.Spawn(ctx, gitjobs.BlameParams{Path: bc.path, StartHash: startHash})

	n, err := waitFor(ctx, e, gitjobs.KindBlame)
	if err != nil {
		return err
	}

	if n.Err != nil {
		return fmt.Errorf("blame job: %w", n.Err)
	}

	result, _, _ := job.Last()

	out := cmd.OutOrStdout()

	for i, line := range result.Lines {
		attribution := "            "
		if line.Hunk != nil {
			attribution = line.Hunk.CommitHash.Short()
		}

		fmt.Fprintf(out, "%s  %4d  %s\n", color.CyanString(attribution), i+1, line.Text)
	}

	return nil
}
