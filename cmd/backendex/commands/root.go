package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "backendex",
		Short: "Backendex - APM backend inventory exporter",
		Long: `Backendex walks the metric tree of an APM controller and exports every
external call target (database, queue, remote service) discovered under the
matching applications into a flat inventory file.

Features:
  - OAuth or session-cookie controller authentication
  - Regex filtering of applications and backend types
  - Thread-task traversal with per-tier deduplication
  - CSV or SQLite output, optional SFTP delivery
  - OPA/rego exclusion policies`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "backendex.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newExportCommand(version))
	rootCmd.AddCommand(newWatchCommand(version))
	rootCmd.AddCommand(newValidateCommand())

	return rootCmd
}
