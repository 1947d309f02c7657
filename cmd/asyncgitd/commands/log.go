package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/asyncgit/pkg/commitfilter"
	"github.com/Sumatoshi-tech/asyncgit/pkg/gitjobs"
	"github.com/Sumatoshi-tech/asyncgit/pkg/logwalk"
)

// logCommand holds NewLogCommand's bound flags.
type logCommand struct {
	repoPath   string
	configPath string
	search     string
	path       string
	limit      int
}

// NewLogCommand builds `asyncgitd log`, walking commit history with an
// optional text search and/or path filter composed from pkg/commitfilter.
func NewLogCommand() *cobra.Command {
	lc := &logCommand{}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Walk commit history, optionally filtered by text or path",
		RunE:  lc.run,
	}

	cmd.Flags().StringVarP(&lc.repoPath, "repo", "r", ".", "Path to the repository")
	cmd.Flags().StringVar(&lc.configPath, "config", "", "Config file path")
	cmd.Flags().StringVar(&lc.search, "search", "", "Only include commits whose message or author matches this text")
	cmd.Flags().StringVar(&lc.path, "path", "", "Only include commits that touched this path")
	cmd.Flags().IntVar(&lc.limit, "limit", 0, "Maximum number of commits to return (0 = unbounded)")

	return cmd
}

func (lc *logCommand) run(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(lc.repoPath, lc.configPath)
	if err != nil {
		return err
	}
	defer e.close()

	job := gitjobs.NewLogJob(e.repoPath, e.pool, e.bus)

	ctx := cmd.Context()

	e.metrics.MarkStart(gitjobs.KindLog)
	job.Spawn(ctx, gitjobs.LogParams{
		Filter: buildLogFilter(lc.search, lc.path),
		Limit:  lc.limit,
	})

	n, err := waitFor(ctx, e, gitjobs.KindLog)
	if err != nil {
		return err
	}

	if n.Err != nil {
		return fmt.Errorf("log job: %w", n.Err)
	}

	result, _, _ := job.Last()

	tbl := table.NewWriter()
	tbl.SetOutputMirror(cmd.OutOrStdout())
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Commit"})

	for _, entry := range result.Entries {
		tbl.AppendRow(table.Row{entry.Hash.Short()})
	}

	tbl.Render()

	return nil
}

// buildLogFilter composes a logwalk.Filter from the --search and --path
// flags, ANDing them together when both are given, and returns nil when
// neither is set so LogJob walks unfiltered.
func buildLogFilter(search, path string) logwalk.Filter {
	var filters []logwalk.Filter

	if search != "" {
		filters = append(filters, commitfilter.ByText(commitfilter.SearchParams{
			Pattern: search,
			Fields:  commitfilter.SearchMessageSummary | commitfilter.SearchMessageBody | commitfilter.SearchAuthors,
		}))
	}

	if path != "" {
		filters = append(filters, commitfilter.DiffContainsPath(path))
	}

	switch len(filters) {
	case 0:
		return nil
	case 1:
		return filters[0]
	default:
		return commitfilter.And(filters...)
	}
}
