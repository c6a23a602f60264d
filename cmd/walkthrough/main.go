// cmd/walkthrough/main.go
//
// Entry point for the walkthrough CLI. With no subcommand it opens the
// interactive player for the current directory.

package main

import (
	"os"

	"github.com/kingrea/walkthrough/cmd/walkthrough/commands"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	// Errors are printed by the printer package before we get here.
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
