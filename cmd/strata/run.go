package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/strata/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <plan.yaml>",
	Short: "Execute a plan against a directory of CSV files",
	Long: `Executes every node of a plan once. DataSet nodes read <sources>/<source>.csv
and rendered artifacts are written under <out>/<run>/<node>/.
With --watch the plan is executed again whenever it or a CSV changes.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := cli.RunOptions{PlanPath: args[0]}
		opts.SourcesDir, _ = cmd.Flags().GetString("sources")
		opts.OutDir, _ = cmd.Flags().GetString("out")
		opts.BatchSize, _ = cmd.Flags().GetInt("batch-size")
		opts.Watch, _ = cmd.Flags().GetBool("watch")
		opts.Debounce, _ = cmd.Flags().GetDuration("debounce")
		opts.Mermaid, _ = cmd.Flags().GetBool("mermaid")

		logger := newLogger(cmd)
		opts.Debug = logger.Enabled(cmd.Context(), slog.LevelDebug)

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		if err := cli.Run(ctx, opts, cmd.OutOrStdout(), logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if sig := ctx.Signal(); sig != nil {
			logger.Info("Stopped", "signal", sig)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("sources", "sources", "Directory containing the CSV datasources")
	runCmd.Flags().String("out", "", "Directory for rendered artifacts (kept in memory when empty)")
	runCmd.Flags().Int("batch-size", 500, "Rows per import batch")
	runCmd.Flags().BoolP("watch", "w", false, "Re-execute the plan when it or a CSV changes")
	runCmd.Flags().Duration("debounce", 0, "Quiet period before a watched change re-executes the plan")
	runCmd.Flags().Bool("mermaid", false, "Print the plan with node status as Mermaid after each run")
}
