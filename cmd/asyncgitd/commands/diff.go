package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/asyncgit/pkg/config"
	"github.com/Sumatoshi-tech/asyncgit/pkg/gitjobs"
	"github.com/Sumatoshi-tech/asyncgit/pkg/gitlib"
)

// diffCommand holds NewDiffCommand's bound flags.
type diffCommand struct {
	repoPath         string
	configPath       string
	diffType         string
	path             string
	oldRev           string
	newRev           string
	contextLines     int
	interhunkLines   int
	ignoreWhitespace bool
}

// NewDiffCommand builds `asyncgitd diff`, which spawns a gitjobs.DiffJob for
// one of the four diff_type variants (workdir, staged, commit, commits) and
// prints the resulting change list.
func NewDiffCommand() *cobra.Command {
	dc := &diffCommand{}

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Diff the working dir, the index, or two revisions",
		RunE:  dc.run,
	}

	cmd.Flags().StringVarP(&dc.repoPath, "repo", "r", ".", "Path to the repository")
	cmd.Flags().StringVar(&dc.configPath, "config", "", "Config file path")
	cmd.Flags().StringVar(&dc.diffType, "type", "commits", "Diff type: workdir, staged, commit, or commits")
	cmd.Flags().StringVar(&dc.path, "path", "", "Restrict the diff to a single file")
	cmd.Flags().StringVar(&dc.oldRev, "old", "", "Old commit hash (empty = empty tree; diff_type commits)")
	cmd.Flags().StringVar(&dc.newRev, "new", "HEAD", "New/target commit hash, or HEAD (diff_type commit or commits)")

	defaults := config.DefaultOptions().Diff
	cmd.Flags().IntVar(&dc.contextLines, "context-lines", defaults.ContextLines, "Unchanged context lines around a hunk")
	cmd.Flags().IntVar(&dc.interhunkLines, "interhunk-lines", defaults.InterhunkLines, "Lines between hunks before they merge")
	cmd.Flags().BoolVar(&dc.ignoreWhitespace, "ignore-whitespace", defaults.IgnoreWhitespace, "Ignore whitespace-only changes")

	return cmd
}

func (dc *diffCommand) run(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(dc.repoPath, dc.configPath)
	if err != nil {
		return err
	}
	defer e.close()

	diffType, err := parseDiffType(dc.diffType)
	if err != nil {
		return err
	}

	params := gitjobs.DiffParams{
		Path: dc.path,
		Type: diffType,
		Options: gitlib.DiffOptions{
			ContextLines:     dc.contextLines,
			InterhunkLines:   dc.interhunkLines,
			IgnoreWhitespace: dc.ignoreWhitespace,
		},
	}

	switch diffType {
	case gitjobs.DiffCommit:
		params.Commit, err = dc.resolve(e, dc.newRev)
	case gitjobs.DiffCommits:
		params.OldCommit, err = dc.resolve(e, dc.oldRev)
		if err == nil {
			params.NewCommit, err = dc.resolve(e, dc.newRev)
		}
	case gitjobs.DiffWorkingDir, gitjobs.DiffStaged:
		// No commit hashes needed.
	}

	if err != nil {
		return err
	}

	job := gitjobs.NewDiffJob(e.repoPath, e.pool, e.bus)

	ctx := cmd.Context()

	e.metrics.MarkStart(gitjobs.KindDiff)
	job.Spawn(ctx, params)

	n, err := waitFor(ctx, e, gitjobs.KindDiff)
	if err != nil {
		return err
	}

	if n.Err != nil {
		return fmt.Errorf("diff job: %w", n.Err)
	}

	result, _, _ := job.Last()

	renderChanges(cmd.OutOrStdout(), result.Changes)

	return nil
}

// parseDiffType maps the --type flag's value onto a gitjobs.DiffType.
func parseDiffType(s string) (gitjobs.DiffType, error) {
	switch s {
	case "workdir":
		return gitjobs.DiffWorkingDir, nil
	case "staged":
		return gitjobs.DiffStaged, nil
	case "commit":
		return gitjobs.DiffCommit, nil
	case "commits":
		return gitjobs.DiffCommits, nil
	default:
		return 0, fmt.Errorf("unknown diff type %q: want workdir, staged, commit, or commits", s)
	}
}

// resolve turns an empty string or "HEAD" into the right hash, otherwise
// parses rev as a hex object id directly; asyncgitd has no revparse, so
// anything fancier than HEAD or a literal hash must be resolved by the
// caller first.
func (dc *diffCommand) resolve(e *env, rev string) (gitlib.Hash, error) {
	switch rev {
	case "":
		return gitlib.ZeroHash(), nil
	case "HEAD":
		return e.repo.Head()
	default:
		return gitlib.NewHash(rev), nil
	}
}

// renderChanges prints a change list as a go-pretty table, color-coding
// each row by ChangeAction the way a status pane would.
func renderChanges(w io.Writer, changes gitlib.Changes) {
	if len(changes) == 0 {
		fmt.Fprintln(w, "no changes")

		return
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Action", "Path", "Size"})

	for _, c := range changes {
		tbl.AppendRow(table.Row{actionLabel(c.Action), changePath(c), c.To.Size})
	}

	tbl.Render()
}

func actionLabel(action gitlib.ChangeAction) string {
	switch action {
	case gitlib.Insert:
		return color.GreenString("added")
	case gitlib.Delete:
		return color.RedString("deleted")
	case gitlib.Modify:
		return color.YellowString("modified")
	default:
		return "unknown"
	}
}

func changePath(c *gitlib.Change) string {
	if c.To.Name != "" {
		return c.To.Name
	}

	return c.From.Name
}
