package main

import (
	"fmt"
	"os"

	"github.com/aretw0/strata/internal/cli"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <plan.yaml>",
	Short: "Export the plan DAG visualization",
	Long:  `Parses a plan file and outputs a Mermaid diagram (graph LR) of its nodes and edges.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := cli.PrintGraph(args[0], cmd.OutOrStdout()); err != nil {
			fmt.Fprintf(os.Stderr, "Error rendering plan: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
