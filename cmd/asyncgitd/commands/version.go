package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/asyncgit/pkg/version"
)

// NewVersionCommand builds `asyncgitd version`.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "asyncgitd %s (commit: %s, built: %s)\n",
				version.Version, version.Commit, version.Date)
		},
	}
}
