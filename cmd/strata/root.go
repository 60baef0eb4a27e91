package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/strata/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Strata turns tabular datasources into layered graphs",
	Long: `Strata executes plans: DAGs that import CSV datasources, build and
reshape graphs, and render them as Mermaid, DOT, JSON or tree artifacts.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
}

// newLogger builds the logger selected by the persistent flags. Logs go to
// stderr so reports and diagrams on stdout stay clean.
func newLogger(cmd *cobra.Command) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	return logging.New(logging.ParseLevel(level), format)
}
