package cli

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/config"
	"github.com/aretw0/strata/pkg/adapters/badger"
	"github.com/aretw0/strata/pkg/adapters/csv"
	"github.com/aretw0/strata/pkg/adapters/file"
	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/adapters/redis"
	"github.com/aretw0/strata/pkg/observability"
	"github.com/aretw0/strata/pkg/ports"
)

// createEngine wires an engine for one-shot runs: rows come from the CSV
// directory and artifacts go to OutDir when it is set.
func createEngine(opts RunOptions, logger *slog.Logger) *strata.Engine {
	engineOpts := []strata.Option{
		strata.WithLogger(logger),
		strata.WithStore(memory.NewStore()),
		strata.WithRowSource(csv.New(opts.SourcesDir, csv.WithBatchSize(opts.BatchSize))),
	}
	if opts.Debug {
		engineOpts = append(engineOpts, strata.WithLifecycleHooks(observability.LoggingHooks(logger)))
	}
	if opts.OutDir != "" {
		engineOpts = append(engineOpts, strata.WithArtifactStore(file.New(opts.OutDir)))
	}
	return strata.New(engineOpts...)
}

// OpenStore builds the store selected by cfg.Backend. The returned close
// function releases its connections and is never nil.
func OpenStore(cfg config.StoreConfig, logger *slog.Logger) (ports.Store, func() error, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return memory.NewStore(), func() error { return nil }, nil

	case config.BackendRedis:
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, redis.WithPrefix(cfg.Redis.Prefix))
		return store, store.Close, nil

	case config.BackendBadger:
		bcfg := badger.DefaultConfig(cfg.Badger.Path)
		if cfg.Badger.InMemory {
			bcfg = badger.InMemoryConfig()
		}
		bcfg.SyncWrites = cfg.Badger.SyncWrites
		bcfg.GCInterval = cfg.Badger.GCInterval
		bcfg.Logger = logger
		store, err := badger.Open(bcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger store: %w", err)
		}
		return store, store.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
