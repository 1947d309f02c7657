package commands

import "github.com/spf13/cobra"

// NewRootCommand builds asyncgitd's root command: one subcommand per
// pkg/gitjobs job handle, a watch command for the filesystem-notify layer,
// and a serve command for the long-running diagnostics endpoint.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "asyncgitd",
		Short: "Exercise asyncgit's job layer from the command line",
		Long: `asyncgitd drives the async job layer that brokers long-running git
operations between a UI event loop and a background worker pool.

Commands:
  diff           Diff the working dir, the index, or two revisions
  log            Walk commit history, optionally filtered by text or path
  commit-files   List files changed by a commit
  blame          Show per-line attribution for a file
  file-history   Walk a file's history, following renames
  fetch          Fetch from a remote
  push           Push a branch to a remote
  push-tags      Push all local tags to a remote
  watch          Print a line each time .git state changes
  serve          Run a long-lived process exposing health and metrics endpoints`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		NewDiffCommand(),
		NewLogCommand(),
		NewCommitFilesCommand(),
		NewBlameCommand(),
		NewFileHistoryCommand(),
		NewFetchCommand(),
		NewPushCommand(),
		NewPushTagsCommand(),
		NewWatchCommand(),
		NewServeCommand(),
		NewVersionCommand(),
	)

	return root
}
