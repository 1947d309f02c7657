package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/asyncgit/pkg/gitjobs"
)

type fileHistoryCommand struct {
	repoPath   string
	configPath string
	path       string
}

// NewFileHistoryCommand builds `asyncgitd file-history`, walking a file's
// commit history and following it across renames.
func NewFileHistoryCommand() *cobra.Command {
	fc := &fileHistoryCommand{}

	cmd := &cobra.Command{
		Use:   "file-history <path>",
		Short: "Walk a file's history, following renames",
		Args:  cobra.ExactArgs(1),
		RunE:  fc.run,
	}

	cmd.Flags().StringVarP(&fc.repoPath, "repo", "r", ".", "Path to the repository")
	cmd.Flags().StringVar(&fc.configPath, "config", "", "Config file path")

	return cmd
}

func (fc *fileHistoryCommand) run(cmd *cobra.Command, args []string) error {
	fc.path = args[0]

	e, err := openEnv(fc.repoPath, fc.configPath)
	if err != nil {
		return err
	}
	defer e.close()

	job := gitjobs.NewFileHistoryJob(e.repoPath, e.pool, e.bus)

	ctx := cmd.Context()

	e.metrics.MarkStart(gitjobs.KindFileHistory)
	job.Spawn(ctx, fc.path)

	n, err := waitFor(ctx, e, gitjobs.KindFileHistory)
	if err != nil {
		return err
	}

	if n.Err != nil {
		return fmt.Errorf("file history job: %w", n.Err)
	}

	result, _, _ := job.Last()

	tbl := table.NewWriter()
	tbl.SetOutputMirror(cmd.OutOrStdout())
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Commit", "Change", "Path"})

	for _, entry := range result.Entries {
		tbl.AppendRow(table.Row{entry.Commit.Short(), deltaLabel(entry.Delta), entry.FilePath})
	}

	tbl.Render()

	return nil
}

func deltaLabel(delta gitjobs.FileHistoryDelta) string {
	switch delta {
	case gitjobs.FileHistoryAdded:
		return "added"
	case gitjobs.FileHistoryDeleted:
		return "deleted"
	case gitjobs.FileHistoryModified:
		return "modified"
	default:
		return "none"
	}
}
