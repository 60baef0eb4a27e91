package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/config"
	"github.com/aretw0/strata/pkg/adapters/csv"
	"github.com/aretw0/strata/pkg/adapters/file"
	httpadapter "github.com/aretw0/strata/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Serve runs the collaboration server on ln until ctx is done. Shutdown
// drains the project actors first, then closes the streams and waits for
// in-flight requests.
func Serve(ctx context.Context, ln net.Listener, cfg *config.Config, logger *slog.Logger) error {
	store, closeStore, err := OpenStore(cfg.Store, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("Store close failed", "err", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	streams := httpadapter.NewStreamManager(logger)
	engineOpts := []strata.Option{
		strata.WithStore(store),
		strata.WithRowSource(csv.New(cfg.Sources.Dir, csv.WithBatchSize(cfg.Sources.BatchSize))),
		strata.WithLogger(logger),
		strata.WithMetrics(registry),
		strata.WithBroadcaster(streams),
		strata.WithIdleTimeout(cfg.Collab.IdleTimeout),
		strata.WithDrainTimeout(cfg.Collab.DrainTimeout),
		strata.WithQueueSize(cfg.Collab.QueueSize),
	}
	if cfg.Artifacts.Dir != "" {
		engineOpts = append(engineOpts, strata.WithArtifactStore(file.New(cfg.Artifacts.Dir)))
	}
	engine := strata.New(engineOpts...)

	handler := httpadapter.NewHandler(engine.Coordinator(), streams,
		httpadapter.WithLogger(logger),
		httpadapter.WithGatherer(registry),
	)

	// Request contexts outlive ctx so that streams stay open while the
	// actors drain; cancelStreams ends them afterwards.
	streamCtx, cancelStreams := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelStreams()

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return streamCtx },
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", ln.Addr().String(), "backend", cfg.Store.Backend)
		serverErrors <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		_ = engine.Close(context.Background())
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down", "drain_timeout", cfg.Collab.DrainTimeout)

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Collab.DrainTimeout)
	defer cancelDrain()
	if err := engine.Close(drainCtx); err != nil {
		logger.Warn("Actors did not drain in time", "err", err)
	}

	cancelStreams()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown did not complete", "timeout", cfg.HTTP.ShutdownTimeout, "err", err)
		_ = srv.Close()
	}
	if err := <-serverErrors; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	logger.Info("Server stopped gracefully")
	return nil
}
