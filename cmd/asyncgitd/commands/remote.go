package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/asyncgit/pkg/cred"
	"github.com/Sumatoshi-tech/asyncgit/pkg/gitjobs"
)

// stdinCredentialPrompt asks for a username/password pair on the terminal,
// the CLI's stand-in for the UI's credential popup. It only asks once: a
// rejected credential is never retried, per gitjobs.CredentialPrompt's
// one-shot contract.
func stdinCredentialPrompt(remoteName string) gitjobs.CredentialPrompt {
	return func(_ context.Context) (cred.BasicAuth, error) {
		reader := bufio.NewReader(os.Stdin)

		fmt.Fprintf(os.Stderr, "username for %s: ", remoteName)

		username, err := reader.ReadString('\n')
		if err != nil {
			return cred.BasicAuth{}, fmt.Errorf("read username: %w", err)
		}

		username = trimNewline(username)

		fmt.Fprintf(os.Stderr, "password for %s: ", remoteName)

		passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))

		fmt.Fprintln(os.Stderr)

		if err != nil {
			return cred.BasicAuth{}, fmt.Errorf("read password: %w", err)
		}

		password := string(passwordBytes)

		return cred.NewBasicAuth(&username, &password), nil
	}
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}

	return s
}

type fetchCommand struct {
	repoPath   string
	configPath string
	remote     string
}

// NewFetchCommand builds `asyncgitd fetch`.
func NewFetchCommand() *cobra.Command {
	fc := &fetchCommand{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch from a remote",
		RunE:  fc.run,
	}

	cmd.Flags().StringVarP(&fc.repoPath, "repo", "r", ".", "Path to the repository")
	cmd.Flags().StringVar(&fc.configPath, "config", "", "Config file path")
	cmd.Flags().StringVar(&fc.remote, "remote", "origin", "Remote name")

	return cmd
}

func (fc *fetchCommand) run(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(fc.repoPath, fc.configPath)
	if err != nil {
		return err
	}
	defer e.close()

	job := gitjobs.NewFetchJob(e.repoPath, e.pool, e.bus, stdinCredentialPrompt(fc.remote))

	ctx := cmd.Context()

	e.metrics.MarkStart(gitjobs.KindFetch)
	job.Spawn(ctx, fc.remote)

	n, err := waitFor(ctx, e, gitjobs.KindFetch)
	if err != nil {
		return err
	}

	if n.Err != nil {
		return fmt.Errorf("fetch job: %w", n.Err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "fetched from %s\n", fc.remote)

	return nil
}

type pushCommand struct {
	repoPath   string
	configPath string
	remote     string
	branch     string
	force      bool
	delete     bool
}

// NewPushCommand builds `asyncgitd push`.
func NewPushCommand() *cobra.Command {
	pc := &pushCommand{}

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push a branch to a remote",
		RunE:  pc.run,
	}

	cmd.Flags().StringVarP(&pc.repoPath, "repo", "r", ".", "Path to the repository")
	cmd.Flags().StringVar(&pc.configPath, "config", "", "Config file path")
	cmd.Flags().StringVar(&pc.remote, "remote", "origin", "Remote name")
	cmd.Flags().StringVar(&pc.branch, "branch", "", "Branch to push (required)")
	cmd.Flags().BoolVar(&pc.force, "force", false, "Force-push, overwriting the remote ref")
	cmd.Flags().BoolVar(&pc.delete, "delete", false, "Delete the branch on the remote instead of pushing to it")

	_ = cmd.MarkFlagRequired("branch")

	return cmd
}

func (pc *pushCommand) run(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(pc.repoPath, pc.configPath)
	if err != nil {
		return err
	}
	defer e.close()

	job := gitjobs.NewPushJob(e.repoPath, e.pool, e.bus, stdinCredentialPrompt(pc.remote))

	ctx := cmd.Context()

	e.metrics.MarkStart(gitjobs.KindPush)
	job.Spawn(ctx, gitjobs.PushParams{RemoteName: pc.remote, Branch: pc.branch, Force: pc.force, Delete: pc.delete})

	n, err := waitFor(ctx, e, gitjobs.KindPush)
	if err != nil {
		return err
	}

	if n.Err != nil {
		return fmt.Errorf("push job: %w", n.Err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "pushed %s to %s\n", pc.branch, pc.remote)

	return nil
}

type pushTagsCommand struct {
	repoPath   string
	configPath string
	remote     string
}

// NewPushTagsCommand builds `asyncgitd push-tags`.
func NewPushTagsCommand() *cobra.Command {
	tc := &pushTagsCommand{}

	cmd := &cobra.Command{
		Use:   "push-tags",
		Short: "Push all local tags to a remote",
		RunE:  tc.run,
	}

	cmd.Flags().StringVarP(&tc.repoPath, "repo", "r", ".", "Path to the repository")
	cmd.Flags().StringVar(&tc.configPath, "config", "", "Config file path")
	cmd.Flags().StringVar(&tc.remote, "remote", "origin", "Remote name")

	return cmd
}

func (tc *pushTagsCommand) run(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(tc.repoPath, tc.configPath)
	if err != nil {
		return err
	}
	defer e.close()

	job := gitjobs.NewPushTagsJob(e.repoPath, e.pool, e.bus, stdinCredentialPrompt(tc.remote))

	ctx := cmd.Context()

	e.metrics.MarkStart(gitjobs.KindPushTags)
	job.Spawn(ctx, tc.remote)

	n, err := waitFor(ctx, e, gitjobs.KindPushTags)
	if err != nil {
		return err
	}

	if n.Err != nil {
		return fmt.Errorf("push tags job: %w", n.Err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "pushed tags to %s\n", tc.remote)

	return nil
}
