package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	orderingservice "compass/contexts/work-tracking/ordering-service"
	postgresadapter "compass/contexts/work-tracking/ordering-service/adapters/postgres"
	workerapp "compass/contexts/work-tracking/ordering-service/application/workers"
	"compass/internal/platform/config"
	"compass/internal/platform/db"
	"compass/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type WorkerApp struct {
	postgres     *db.Postgres
	module       orderingservice.Module
	outboxRelay  workerapp.OutboxRelay
	pollInterval time.Duration
	logger       *slog.Logger
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

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	if cfg.EnsureSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
	}

	module := orderingservice.NewModule(orderingservice.Dependencies{
		Repo:   repo,
		Clock:  postgresadapter.SystemClock{},
		IDGen:  postgresadapter.UUIDGenerator{},
		Logger: logger,
	})

	return &WorkerApp{
		postgres: pg,
		module:   module,
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    repo,
			Publisher: kafka,
			Clock:     postgresadapter.SystemClock{},
			Topic:     cfg.OrderingTopic,
			BatchSize: cfg.RelayBatchSize,
			Logger:    logger,
		},
		pollInterval: cfg.RelayPollInterval,
		logger:       logger,
	}, nil
}

// Module exposes the wired ordering module so embedding processes can mount
// its handlers.
func (w *WorkerApp) Module() orderingservice.Module {
	return w.module
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if err := w.outboxRelay.RunOnce(ctx); err != nil {
			return err
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
