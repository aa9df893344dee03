package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bekzodov/kutubxona-bot/internal/config"
	"github.com/bekzodov/kutubxona-bot/internal/core/usecase"
	"github.com/bekzodov/kutubxona-bot/internal/infrastructure/accessgate"
	natsqueue "github.com/bekzodov/kutubxona-bot/internal/infrastructure/queue/nats"
	"github.com/bekzodov/kutubxona-bot/internal/infrastructure/repository/postgres"
	"github.com/bekzodov/kutubxona-bot/internal/infrastructure/resilience"
	"github.com/bekzodov/kutubxona-bot/internal/infrastructure/session"
	"github.com/bekzodov/kutubxona-bot/internal/infrastructure/transport/telegram"
	"github.com/bekzodov/kutubxona-bot/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Poller  *telegram.Poller
	Metrics *metrics.BotMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	catalog := postgres.NewCatalogRepository(db)
	if err := catalog.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	gate, err := accessgate.Load(cfg.AllowlistPath, cfg.UploaderIDs)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load allowlist: %w", err)
	}
	logger.Info("allowlist_loaded", "uploaders", gate.Size())

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	publisher, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init event publisher: %w", err)
	}

	sessions := session.NewMemoryStore()
	botMetrics := metrics.NewBotMetrics("kutubxona-bot", sessions.Len)

	transport := telegram.NewClient(cfg.TelegramAPIURL, cfg.BotToken, usecase.BackToken, executor, botMetrics)

	nav := usecase.NewNavigator(catalog)
	pacer := usecase.NewDeliveryPacer(catalog, transport, time.Duration(cfg.DeliveryIntervalMS)*time.Millisecond, logger)
	ingest := usecase.NewIngestion(catalog, gate, transport, publisher, usecase.IngestionOptions{
		CaptionStep: cfg.CaptionStepEnabled,
	}, logger)
	conversation := usecase.NewConversation(sessions, nav, ingest, pacer, transport, logger)

	poller := telegram.NewPoller(
		transport,
		conversation,
		executor,
		botMetrics,
		time.Duration(cfg.PollTimeoutSec)*time.Second,
		logger,
	)

	return &App{
		Config:  cfg,
		Poller:  poller,
		Metrics: botMetrics,

		closeFn: func() {
			publisher.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
