package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/asyncgit/pkg/gitjobs"
	"github.com/Sumatoshi-tech/asyncgit/pkg/gitlib"
)

type commitFilesCommand struct {
	repoPath   string
	configPath string
	rev        string
}

// NewCommitFilesCommand builds `asyncgitd commit-files`, which lists the
// files a single commit touched relative to its first parent.
func NewCommitFilesCommand() *cobra.Command {
	cc := &commitFilesCommand{}

	cmd := &cobra.Command{
		Use:   "commit-files",
		Short: "List files changed by a commit",
		RunE:  cc.run,
	}

	cmd.Flags().StringVarP(&cc.repoPath, "repo", "r", ".", "Path to the repository")
	cmd.Flags().StringVar(&cc.configPath, "config", "", "Config file path")
	cmd.Flags().StringVar(&cc.rev, "commit", "HEAD", "Commit hash, or HEAD")

	return cmd
}

func (cc *commitFilesCommand) run(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(cc.repoPath, cc.configPath)
	if err != nil {
		return err
	}
	defer e.close()

	hash, err := resolveRev(e, cc.rev)
	if err != nil {
		return err
	}

	job := gitjobs.NewCommitFilesJob(e.repoPath, e.pool, e.bus)

	ctx := cmd.Context()

	e.metrics.MarkStart(gitjobs.KindCommitFiles)
	job.Spawn(ctx, hash)

	n, err := waitFor(ctx, e, gitjobs.KindCommitFiles)
	if err != nil {
		return err
	}

	if n.Err != nil {
		return fmt.Errorf("commit files job: %w", n.Err)
	}

	result, _, _ := job.Last()

	renderChanges(cmd.OutOrStdout(), result.Changes)

	return nil
}

// resolveRev parses rev as HEAD (also when empty) or a literal hex hash,
// for commit-files' --commit flag.
func resolveRev(e *env, rev string) (gitlib.Hash, error) {
	if rev == "HEAD" || rev == "" {
		return e.repo.Head()
	}

	return gitlib.NewHash(rev), nil
}
