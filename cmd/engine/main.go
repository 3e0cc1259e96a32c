package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"

	"github.com/kursadbilgin/notify-engine/internal/channel"
	"github.com/kursadbilgin/notify-engine/internal/config"
	"github.com/kursadbilgin/notify-engine/internal/dispatch"
	"github.com/kursadbilgin/notify-engine/internal/domain"
	"github.com/kursadbilgin/notify-engine/internal/handler"
	"github.com/kursadbilgin/notify-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/notify-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/notify-engine/internal/infra/redis"
	"github.com/kursadbilgin/notify-engine/internal/observability"
	"github.com/kursadbilgin/notify-engine/internal/preference"
	"github.com/kursadbilgin/notify-engine/internal/queue"
	"github.com/kursadbilgin/notify-engine/internal/repository"
	"github.com/kursadbilgin/notify-engine/internal/template"
	"github.com/kursadbilgin/notify-engine/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("engine exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}

	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL, cfg.RedisPoolSize)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		return fmt.Errorf("rate limiter initialization failed: %w", err)
	}

	broker, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer broker.Close()

	notifications := repository.NewGormNotificationRepo(db)
	preferences := repository.NewGormPreferenceRepo(db)
	templates := repository.NewGormTemplateRepo(db)
	inbox := repository.NewGormInboxRepo(db)

	registry, err := buildRegistry(cfg, limiter, inbox, logger)
	if err != nil {
		return fmt.Errorf("channel registry initialization failed: %w", err)
	}

	resolver, err := preference.NewStoreResolver(preferences, logger)
	if err != nil {
		return fmt.Errorf("preference resolver initialization failed: %w", err)
	}

	templateService, err := template.NewService(templates, cfg.DefaultLanguage, logger)
	if err != nil {
		return fmt.Errorf("template service initialization failed: %w", err)
	}

	orchestrator, err := dispatch.NewOrchestrator(notifications, resolver, registry, templateService, cfg.RetryLimit, logger)
	if err != nil {
		return fmt.Errorf("orchestrator initialization failed: %w", err)
	}

	bulk, err := dispatch.NewBulkDispatcher(orchestrator, notifications, cfg.BulkBatchSize, cfg.BulkDispatchTimeout, logger)
	if err != nil {
		return fmt.Errorf("bulk dispatcher initialization failed: %w", err)
	}

	sweeper, err := dispatch.NewSweeper(notifications, orchestrator, cfg.SweepInterval, cfg.PendingStaleAfter, 0, logger)
	if err != nil {
		return fmt.Errorf("sweeper initialization failed: %w", err)
	}

	metrics := observability.NewMetrics()
	orchestrator.SetMetrics(metrics)
	bulk.SetMetrics(metrics)
	sweeper.SetMetrics(metrics)

	publisher := queue.NewRabbitMQPublisher(broker)
	consumer := queue.NewRabbitMQConsumer(broker, cfg.WorkerConcurrency, logger)
	worker := queue.NewWorker(consumer, orchestrator, cfg.WorkerConcurrency, logger)

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb, broker.Ready)
	if err := handler.RegisterNotificationRoutes(app, orchestrator, bulk, inbox, publisher); err != nil {
		return fmt.Errorf("route registration failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 3)

	go func() {
		errCh <- sweeper.Start(ctx)
	}()
	go func() {
		errCh <- worker.Start(ctx)
	}()
	go func() {
		errCh <- app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	}()

	logger.Info("notify-engine started", zap.Int("port", cfg.APIPort))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("component failed, shutting down", zap.Error(err))
		}
	}

	stop()

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http server shutdown incomplete", zap.Error(err))
	}

	logger.Info("notify-engine stopped")
	return nil
}

func buildRegistry(cfg *config.Config, limiter *infraredis.RedisRateLimiter, inbox repository.InboxRepository, logger *zap.Logger) (*channel.Registry, error) {
	email, err := channel.NewGatewayChannel(domain.ChannelEmail, cfg.EmailGatewayURL, channel.GatewayOptions{
		Enabled: cfg.EmailEnabled,
		Limiter: limiter,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	sms, err := channel.NewGatewayChannel(domain.ChannelSMS, cfg.SMSGatewayURL, channel.GatewayOptions{
		Enabled: cfg.SMSEnabled,
		Limiter: limiter,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	push, err := channel.NewGatewayChannel(domain.ChannelPush, cfg.PushGatewayURL, channel.GatewayOptions{
		Enabled: cfg.PushEnabled,
		Limiter: limiter,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	inApp, err := channel.NewInAppChannel(inbox, cfg.InAppEnabled, 0, logger)
	if err != nil {
		return nil, err
	}

	return channel.NewRegistry(email, sms, push, inApp)
}
