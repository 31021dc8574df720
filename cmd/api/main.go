package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk/internal/api/http"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/notify"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/sla"
	"github.com/spec-kit/helpdesk/internal/worker"
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
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	commentRepo := repository.NewTicketCommentRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	teamRepo := repository.NewTeamRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	preferenceRepo := repository.NewPreferenceRepository(pool)
	analyticsRepo := repository.NewAnalyticsRepository(pool)
	policyRepo := repository.NewCachedSLAPolicyRepository(
		repository.NewSLAPolicyRepository(pool), redis.Client, cfg.SLA.PolicyCacheTTL(), logger)

	metrics := observability.NewMetrics()
	bus := events.NewInMemoryDispatcher()
	tracker := sla.NewTracker(policyRepo, cfg.SLA.WarningFraction, logger)

	lifecycleService := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo:   ticketRepo,
		CommentRepo:  commentRepo,
		CategoryRepo: categoryRepo,
		TeamRepo:     teamRepo,
		UserRepo:     userRepo,
		Tracker:      tracker,
		Dispatcher:   bus,
		Metrics:      metrics,
	})
	queryService := service.NewTicketQueryService(service.QueryDependencies{
		TicketRepo:    ticketRepo,
		CommentRepo:   commentRepo,
		HistoryRepo:   historyRepo,
		CategoryRepo:  categoryRepo,
		AnalyticsRepo: analyticsRepo,
	})
	notificationService := service.NewNotificationService(notificationRepo, preferenceRepo)
	authService := service.NewAuthService(*cfg, userRepo)
	authMiddleware := auth.NewMiddleware(authService.TokenManager(), userRepo)

	notifier := notify.NewDispatcher(notify.Dependencies{
		UserRepo:         userRepo,
		PreferenceRepo:   preferenceRepo,
		NotificationRepo: notificationRepo,
		Sender:           notify.NewSMTPSender(cfg.SMTP, logger),
		Metrics:          metrics,
		Logger:           logger,
		SendTimeout:      cfg.SMTP.SendTimeout(),
	})
	sweeper := sla.NewSweeper(ticketRepo, tracker, bus, metrics, logger, cfg.SLA)

	background, err := worker.Start(ctx, bus, notifier, sweeper)
	if err != nil {
		logger.Fatal("failed to start background workers", zap.Error(err))
	}
	defer background.Stop()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(lifecycleService, queryService),
		StaffTickets:   handlers.NewStaffTicketsHandler(lifecycleService, queryService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
