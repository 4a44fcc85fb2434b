package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	votingengine "oikos/contexts/governance/voting-engine"
	"oikos/contexts/governance/voting-engine/adapters/memory"
	postgresadapter "oikos/contexts/governance/voting-engine/adapters/postgres"
	"oikos/internal/platform/config"
	"oikos/internal/platform/db"
	"oikos/internal/platform/httpserver"
	"oikos/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	governance   votingengine.Module
	pollInterval time.Duration
	sweepEnabled bool
	relayEnabled bool
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	// Local profile: no DSN wires everything in memory so the API runs
	// without infrastructure.
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		kafka, err := messaging.NewKafka(logger)
		if err != nil {
			return nil, err
		}
		module := votingengine.NewInMemoryModule(kafka, logger)
		server := httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort))
		return &APIApp{server: server, logger: logger}, nil
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	module := votingengine.NewModule(votingengine.Dependencies{
		Questions:   repo,
		Roster:      repo,
		Ballots:     repo,
		Registry:    repo,
		Tallies:     memory.NewStore(),
		Outbox:      repo,
		Clock:       postgresadapter.SystemClock{},
		IDGen:       postgresadapter.UUIDGenerator{},
		ResultTTL:   cfg.ResultCacheTTL,
		EventsTopic: cfg.KafkaTopic,
		Logger:      logger,
	})

	server := httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(logger)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	module := votingengine.NewModule(votingengine.Dependencies{
		Questions:   repo,
		Roster:      repo,
		Ballots:     repo,
		Registry:    repo,
		Tallies:     memory.NewStore(),
		Outbox:      repo,
		Publisher:   kafka,
		Clock:       postgresadapter.SystemClock{},
		IDGen:       postgresadapter.UUIDGenerator{},
		ResultTTL:   cfg.ResultCacheTTL,
		EventsTopic: cfg.KafkaTopic,
		Logger:      logger,
	})
	module.OutboxRelay.BatchSize = cfg.OutboxBatchSize

	return &WorkerApp{
		postgres:     pg,
		governance:   module,
		pollInterval: cfg.WorkerTickInterval,
		sweepEnabled: cfg.EnableLifecycleSweeper,
		relayEnabled: cfg.EnableOutboxRelay,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"lifecycle_sweeper", w.sweepEnabled,
		"outbox_relay", w.relayEnabled,
	)

	for {
		if w.sweepEnabled {
			if err := w.governance.LifecycleSweeper.RunOnce(ctx); err != nil {
				return err
			}
		}
		if w.relayEnabled {
			if err := w.governance.OutboxRelay.RunOnce(ctx); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
