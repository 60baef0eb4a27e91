package main

import (
	"fmt"
	"os"

	"github.com/aretw0/strata/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <plan.yaml>",
	Short: "Check a plan for consistency",
	Long:  `Parses a plan file and reports every defect of its DAG: unknown kinds, bad configs, dangling or mistyped edges and cycles.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := cli.Validate(args[0], cmd.OutOrStdout()); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Plan is valid!")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
