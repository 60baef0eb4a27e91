package main

import (
	"fmt"
	"net"
	"os"

	"github.com/aretw0/strata/internal/cli"
	"github.com/aretw0/strata/internal/config"
	"github.com/aretw0/strata/internal/logging"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the collaboration server",
	Long: `Starts the project actors behind an HTTP API. Commands are posted as JSON
envelopes, deltas stream over SSE or WebSocket and metrics are served on /metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		applyServeFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
			os.Exit(1)
		}

		logger := logging.New(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)

		ln, err := net.Listen("tcp", cfg.HTTP.Addr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listening on %s: %v\n", cfg.HTTP.Addr, err)
			os.Exit(1)
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		if err := cli.Serve(ctx, ln, cfg, logger); err != nil {
			logger.Error("Server stopped", "err", err)
			os.Exit(1)
		}
		logger.Info("Signal handled", "signal", ctx.Signal())
	},
}

// applyServeFlags lets explicitly set flags override the config file.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.HTTP.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("backend") {
		cfg.Store.Backend, _ = flags.GetString("backend")
	}
	if flags.Changed("sources") {
		cfg.Sources.Dir, _ = flags.GetString("sources")
	}
	if flags.Changed("out") {
		cfg.Artifacts.Dir, _ = flags.GetString("out")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Log.Format, _ = flags.GetString("log-format")
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("config", "c", "", "Path to strata.yaml")
	serveCmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
	serveCmd.Flags().String("backend", "", "Store backend: memory, redis or badger (overrides store.backend)")
	serveCmd.Flags().String("sources", "", "Directory containing the CSV datasources (overrides sources.dir)")
	serveCmd.Flags().String("out", "", "Directory for rendered artifacts (overrides artifacts.dir)")
}
