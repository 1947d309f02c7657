// Command asyncgitd drives asyncgit's job layer from a terminal: one
// subcommand per pkg/gitjobs job, plus a filesystem watcher and a metrics
// diagnostics server, exercising the same wiring a full UI would.
package main

import (
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/asyncgit/cmd/asyncgitd/commands"
)

func main() {
	root := commands.NewRootCommand()

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
