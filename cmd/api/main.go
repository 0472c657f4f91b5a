package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-core/internal/api/http"
	"github.com/spec-kit/support-core/internal/api/http/handlers"
	"github.com/spec-kit/support-core/internal/audit"
	"github.com/spec-kit/support-core/internal/auth"
	"github.com/spec-kit/support-core/internal/config"
	"github.com/spec-kit/support-core/internal/events"
	"github.com/spec-kit/support-core/internal/observability"
	"github.com/spec-kit/support-core/internal/persistence"
	"github.com/spec-kit/support-core/internal/push"
	"github.com/spec-kit/support-core/internal/repository"
	"github.com/spec-kit/support-core/internal/service"
	"github.com/spec-kit/support-core/internal/triage"
	"github.com/spec-kit/support-core/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	auditRepo := repository.NewAuditEventRepository(pool)
	operatorRepo := repository.NewOperatorRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	hub := push.NewHub(logger)
	push.NewBridge(hub).RegisterHandlers(dispatcher)
	go hub.RunHeartbeat(ctx, cfg.Push.HeartbeatInterval())

	var triageDispatcher triage.Dispatcher = triage.NewNoopDispatcher()
	if cfg.Triage.Enabled {
		triageDispatcher = triage.NewRedisDispatcher(redis.Client, cfg.Triage.Queue, logger)
	}

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		Auditor:     audit.NewChainWriter(auditRepo),
		Dispatcher:  dispatcher,
		Triage:      triageDispatcher,
		Policy:      cfg.SLA,
		Logger:      logger,
	})

	authService := service.NewAuthService(*cfg, operatorRepo)
	settingsService := service.NewSettingsService(settingsRepo, service.NewRedisSettingsCache(redis.Client), cfg.Settings, logger)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), operatorRepo)

	app := fiber.New(fiber.Config{DisableStartupMessage: cfg.App.Env == "production"})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Stream:         handlers.NewStreamHandler(hub, logger),
		Operators:      handlers.NewOperatorsHandler(authService),
		Settings:       handlers.NewSettingsHandler(settingsService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
