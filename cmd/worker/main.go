package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/spec-kit/entitlement-service/internal/config"
	"github.com/spec-kit/entitlement-service/internal/events"
	"github.com/spec-kit/entitlement-service/internal/observability"
	"github.com/spec-kit/entitlement-service/internal/persistence"
	"github.com/spec-kit/entitlement-service/internal/repository"
	"github.com/spec-kit/entitlement-service/internal/service"
	"github.com/spec-kit/entitlement-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	logger = logger.With(zap.String("component", "worker"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	if pg.PoolHandle() == nil {
		logger.Fatal("worker requires POSTGRES_DSN")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	pool := pg.PoolHandle()
	entitlementRepo := repository.NewEntitlementRepository(pool)
	scheduleRepo := repository.NewScheduleRepository(pool)
	pushRepo := repository.NewPushRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, pushRepo, logger, cfg.Notification))

	schedules := service.NewScheduleService(cfg.Signing.Partition, cfg.Notification.Slot(), service.ScheduleDependencies{
		Schedules:    scheduleRepo,
		Entitlements: entitlementRepo,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})

	worker.NewRunner(logger).Run(ctx,
		worker.NotifyJob(schedules, cfg.Notification.Slot(), logger),
		worker.PurgeJob(schedules, cfg.Notification.PurgeInterval(), logger),
	)
	logger.Info("worker shut down")
}
