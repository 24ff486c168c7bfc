package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/birthday-service/internal/api/http"
	"github.com/spec-kit/birthday-service/internal/api/http/handlers"
	"github.com/spec-kit/birthday-service/internal/auth"
	"github.com/spec-kit/birthday-service/internal/config"
	"github.com/spec-kit/birthday-service/internal/events"
	"github.com/spec-kit/birthday-service/internal/notify"
	"github.com/spec-kit/birthday-service/internal/observability"
	"github.com/spec-kit/birthday-service/internal/persistence"
	"github.com/spec-kit/birthday-service/internal/repository"
	"github.com/spec-kit/birthday-service/internal/service"
	"github.com/spec-kit/birthday-service/internal/surface"
	"github.com/spec-kit/birthday-service/internal/worker"
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

	pool := pg.PoolHandle()
	if pool != nil && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var (
		birthdayRepo repository.BirthdayRepository
		ticketRepo   repository.TicketRepository
		guildRepo    repository.GuildRepository
		accountRepo  repository.AccountRepository
	)
	if pool != nil {
		birthdayRepo = repository.NewBirthdayRepository(pool)
		ticketRepo = repository.NewTicketRepository(pool)
		guildRepo = repository.NewGuildRepository(pool)
		accountRepo = repository.NewAccountRepository(pool)
	} else {
		logger.Warn("POSTGRES_DSN not set, using in-memory stores")
		birthdayRepo = repository.NewMemoryBirthdayRepository()
		ticketRepo = repository.NewMemoryTicketRepository()
		guildRepo = repository.NewMemoryGuildRepository()
		accountRepo = repository.NewMemoryAccountRepository()
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	var notifier notify.Notifier
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notify.WebhookURL, logger)
	} else {
		notifier = notify.NewLogNotifier(logger)
	}

	var guard service.DayGuard
	if redis.Configured() {
		guard = redis
	}

	engine := service.NewCelebrationEngine(service.CelebrationDependencies{
		BirthdayRepo: birthdayRepo,
		GuildRepo:    guildRepo,
		Notifier:     notifier,
		Guard:        guard,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})

	staffChecker := auth.NewGuildStaffChecker(guildRepo, accountRepo)

	workflow := service.NewTicketWorkflow(service.WorkflowDependencies{
		TicketRepo:   ticketRepo,
		BirthdayRepo: birthdayRepo,
		Engine:       engine,
		Staff:        staffChecker,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})

	birthdayService := service.NewBirthdayService(service.BirthdayDependencies{
		BirthdayRepo: birthdayRepo,
		Engine:       engine,
		Staff:        staffChecker,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})

	guildService := service.NewGuildService(guildRepo, staffChecker)
	authService := service.NewAuthService(cfg.Auth, accountRepo)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), accountRepo)

	notifications := service.NewNotificationService(ticketRepo, guildRepo, notifier, surface.NewLogSurface(logger), logger)
	notifications.RegisterHandlers(dispatcher)

	scheduler := worker.NewScheduler(worker.SchedulerDependencies{
		GuildRepo:    guildRepo,
		BirthdayRepo: birthdayRepo,
		Engine:       engine,
		Notifier:     notifier,
		Metrics:      metrics,
		Config:       cfg.Scheduler,
		Logger:       logger,
	})
	go scheduler.Run(ctx)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Accounts:       handlers.NewAccountsHandler(authService),
		Tickets:        handlers.NewTicketsHandler(workflow),
		StaffTickets:   handlers.NewStaffTicketsHandler(workflow, staffChecker),
		Birthdays:      handlers.NewBirthdaysHandler(birthdayService),
		Guilds:         handlers.NewGuildsHandler(guildService),
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
