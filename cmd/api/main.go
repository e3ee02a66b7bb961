package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/deskflow/helpdesk-service/internal/api/http"
	"github.com/deskflow/helpdesk-service/internal/api/http/handlers"
	"github.com/deskflow/helpdesk-service/internal/auth"
	"github.com/deskflow/helpdesk-service/internal/config"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/notification"
	"github.com/deskflow/helpdesk-service/internal/observability"
	"github.com/deskflow/helpdesk-service/internal/persistence"
	"github.com/deskflow/helpdesk-service/internal/repository"
	"github.com/deskflow/helpdesk-service/internal/repository/memory"
	"github.com/deskflow/helpdesk-service/internal/service"
	"github.com/deskflow/helpdesk-service/internal/worker"
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

	var store repository.Store
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, persistence.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = repository.NewStore(pool)
	} else {
		logger.Warn("running on the in-memory store; data is lost on restart")
		mem := memory.New()
		if err := seedDevData(mem, cfg.Auth.BcryptCost); err != nil {
			logger.Fatal("failed to seed in-memory store", zap.Error(err))
		}
		store = mem
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	publisher := service.NewEventPublisher(dispatcher, logger, metrics)

	rules, err := notification.LoadRules(cfg.Notification.RulesPath)
	switch {
	case errors.Is(err, notification.ErrRulesNotFound):
		logger.Warn("notification rules not found; no mail will be sent", zap.String("path", cfg.Notification.RulesPath))
	case err != nil:
		logger.Fatal("invalid notification rules", zap.Error(err))
	}

	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		Store:      store,
		Rules:      rules,
		Mailer:     notification.NewLogMailer(logger),
		Logger:     logger,
		Config:     cfg.Notification,
	})
	worker.StartNotificationWorker(dispatcher, notificationService, events.NewRedisPublisher(redis.Client, cfg.Redis.EventsChannel))

	authService := service.NewAuthService(cfg.Auth, store.Users(), logger)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), store)

	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:     store,
		Publisher: publisher,
		Logger:    logger,
	})
	transitionService := service.NewTransitionService(service.TransitionDependencies{
		Store:        store,
		Publisher:    publisher,
		Logger:       logger,
		Metrics:      metrics,
		NoteMaxRunes: cfg.Transition.NoteMaxRunes,
	})
	autoCloseService := service.NewAutoCloseService(service.AutoCloseDependencies{
		Store:     store,
		Publisher: publisher,
		Logger:    logger,
		Metrics:   metrics,
		Dwell:     cfg.AutoClose.Dwell(),
		BatchSize: cfg.AutoClose.Batch(),
	})

	var autoClose *worker.AutoCloseWorker
	if cfg.AutoClose.Enabled {
		autoClose = worker.NewAutoCloseWorker(autoCloseService, cfg.AutoClose.Interval(), logger)
		autoClose.Start(ctx)
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	deps := map[string]handlers.Pinger{"postgres": nil, "redis": redis}
	if pg.PoolHandle() != nil {
		deps["postgres"] = pg
	}
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Transitions:    handlers.NewTransitionsHandler(transitionService),
		AuthMiddleware: authMiddleware.Handle,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	if autoClose != nil {
		autoClose.Stop()
	}
	publisher.Wait()
	logger.Info("shutdown complete", zap.Any("metrics", metrics.Snapshot()))
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
