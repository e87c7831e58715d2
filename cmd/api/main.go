package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/entitlement-service/internal/api/http"
	"github.com/spec-kit/entitlement-service/internal/api/http/handlers"
	"github.com/spec-kit/entitlement-service/internal/auth"
	"github.com/spec-kit/entitlement-service/internal/config"
	"github.com/spec-kit/entitlement-service/internal/events"
	"github.com/spec-kit/entitlement-service/internal/keys"
	"github.com/spec-kit/entitlement-service/internal/observability"
	"github.com/spec-kit/entitlement-service/internal/persistence"
	"github.com/spec-kit/entitlement-service/internal/repository"
	"github.com/spec-kit/entitlement-service/internal/service"
	"github.com/spec-kit/entitlement-service/internal/token"
	"github.com/spec-kit/entitlement-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

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

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	signer, lookup, err := signingKeys(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to set up signing keys", zap.Error(err))
	}
	cachedLookup := keys.NewCachedLookup(redis.Cmdable(), lookup, cfg.Redis.KeyCacheTTL(), logger)

	receipts, err := token.NewReceiptVerifier(token.ReceiptConfig{PublicKeyPEM: []byte(cfg.Signing.ReceiptPublicKey)})
	if err != nil {
		logger.Fatal("invalid receipt public key", zap.Error(err))
	}
	minter := token.NewMinter(signer, token.MinterConfig{KeyID: cfg.Signing.KeyID})
	authorizer := token.NewAuthorizer(cachedLookup)

	pool := pg.PoolHandle()
	entitlementRepo := repository.NewEntitlementRepository(pool)
	scheduleRepo := repository.NewScheduleRepository(pool)
	pushRepo := repository.NewPushRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, pushRepo, logger, cfg.Notification))

	partition := cfg.Signing.Partition
	entitlementService := service.NewEntitlementService(partition, service.EntitlementDependencies{
		Receipts:     receipts,
		Minter:       minter,
		Entitlements: entitlementRepo,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	scheduleService := service.NewScheduleService(partition, cfg.Notification.Slot(), service.ScheduleDependencies{
		Schedules:    scheduleRepo,
		Entitlements: entitlementRepo,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	pushService := service.NewPushService(partition, pushRepo, logger)

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}, metrics),
		Entitlements:   handlers.NewEntitlementsHandler(entitlementService),
		Authorize:      handlers.NewAuthorizeHandler(authorizer, metrics, logger),
		Subscriber:     handlers.NewSubscriberHandler(scheduleService, pushService),
		AuthMiddleware: auth.NewAuthMiddleware(authorizer, cfg.Gateway, metrics, logger),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("key_id", cfg.Signing.KeyID))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

// signingKeys picks the local PEM signer when a key file is configured and
// KMS otherwise. The signer also serves as the public key lookup unless a
// pinned public key file is configured for KMS.
func signingKeys(ctx context.Context, cfg *config.Config) (token.Signer, token.KeyLookup, error) {
	if cfg.Signing.PrivateKeyFile != "" {
		local, err := keys.LoadLocalSigner(cfg.Signing.KeyID, cfg.Signing.PrivateKeyFile)
		if err != nil {
			return nil, nil, err
		}
		return local, local, nil
	}
	kms, err := keys.NewKMS(ctx, cfg.AWS)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Signing.PublicKeyFile != "" {
		pinned, err := keys.LoadStaticLookup(cfg.Signing.KeyID, cfg.Signing.PublicKeyFile)
		if err != nil {
			return nil, nil, err
		}
		return kms, pinned, nil
	}
	return kms, kms, nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
