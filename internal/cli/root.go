// Package cli implements the sowgen command line tool: one-shot scheme
// generation and offline validation without the HTTP server.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "sowgen",
	Short: "Scheme-of-work generation toolkit",
	Long: `sowgen drives the scheme-of-work generation pipeline from the command
line: draft an outline, generate every lesson in sequence, summarize the
metadata and assemble the final document, without going through the API
server or the database.

It also validates previously generated scheme documents offline.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sowgen %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
