package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	payoutservice "paymaster/contexts/settlement/payout-service"
	"paymaster/contexts/settlement/payout-service/adapters/evm"
	"paymaster/contexts/settlement/payout-service/adapters/mirrornode"
	postgresadapter "paymaster/contexts/settlement/payout-service/adapters/postgres"
	"paymaster/contexts/settlement/payout-service/application/workers"
	"paymaster/internal/platform/config"
	"paymaster/internal/platform/db"
	"paymaster/internal/platform/httpserver"
	"paymaster/internal/platform/messaging"
	"paymaster/internal/shared/events"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/robfig/cron/v3"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres    *db.Postgres
	payoutJob   workers.PayoutJob
	outboxRelay workers.OutboxRelay
	bus         *messaging.Bus
	topic       string
	cronSpec    string
	logger      *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	module, pg, err := buildPayoutModule(cfg, logger)
	if err != nil {
		return nil, err
	}

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
	module, pg, err := buildPayoutModule(cfg, logger)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	bus := messaging.NewBus(logger)

	payoutJob := module.PayoutJob
	payoutJob.BatchSize = cfg.DueBatchLimit

	return &WorkerApp{
		postgres:  pg,
		payoutJob: payoutJob,
		outboxRelay: workers.OutboxRelay{
			Outbox:    repo,
			Publisher: bus,
			Clock:     postgresadapter.SystemClock{},
			Topic:     cfg.OutboxTopic,
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		bus:      bus,
		topic:    cfg.OutboxTopic,
		cronSpec: cfg.PayoutCronSpec,
		logger:   logger,
	}, nil
}

func buildPayoutModule(cfg config.Config, logger *slog.Logger) (payoutservice.Module, *db.Postgres, error) {
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return payoutservice.Module{}, nil, errors.New("POSTGRES_DSN is required")
	}
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return payoutservice.Module{}, nil, errors.New("RPC_URL is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return payoutservice.Module{}, nil, err
	}

	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		_ = pg.Close()
		return payoutservice.Module{}, nil, err
	}
	executor, err := evm.NewExecutor(client, cfg.ContractAddress, cfg.OperatorKey, cfg.ChainID, cfg.TokenDecimals, logger)
	if err != nil {
		_ = pg.Close()
		return payoutservice.Module{}, nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	mirror := mirrornode.NewClient(cfg.MirrorNodeURL, logger)

	module := payoutservice.NewModule(payoutservice.Dependencies{
		Repository:         repo,
		Executor:           executor,
		Hashes:             mirror,
		Addresses:          mirror,
		Holders:            executor,
		Cascade:            repo,
		Outbox:             repo,
		Clock:              postgresadapter.SystemClock{},
		IDGen:              postgresadapter.UUIDGenerator{},
		Logger:             logger,
		BatchSize:          cfg.PayoutBatchSize,
		ResolveConcurrency: cfg.ResolveConcurrency,
	})
	return module, pg, nil
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

// Run schedules the due-payout job on the configured cron spec and relays the
// outbox on every tick. Blocks until the context is cancelled.
func (w *WorkerApp) Run(ctx context.Context) error {
	if w.bus != nil {
		// Audit consumer for relayed payout events until an external broker
		// consumer takes over the topic.
		err := w.bus.Subscribe(ctx, w.topic, "payout-worker", func(_ context.Context, event events.Envelope) error {
			w.logger.Info("payout event consumed",
				"event", "bootstrap_payout_event_consumed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"topic", w.topic,
				"event_id", event.EventID,
				"event_type", event.EventType,
			)
			return nil
		})
		if err != nil {
			return err
		}
	}

	scheduler := cron.New()
	_, err := scheduler.AddFunc(w.cronSpec, func() {
		if err := w.payoutJob.RunOnce(ctx); err != nil {
			w.logger.Error("payout job run failed",
				"event", "bootstrap_payout_job_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
		if err := w.outboxRelay.RunOnce(ctx); err != nil {
			w.logger.Error("outbox relay run failed",
				"event", "bootstrap_outbox_relay_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
	})
	if err != nil {
		return err
	}

	scheduler.Start()
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"cron_spec", w.cronSpec,
	)

	<-ctx.Done()
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	return nil
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
