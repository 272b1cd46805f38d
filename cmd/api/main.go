package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kursadbilgin/order-pipeline/internal/config"
	"github.com/kursadbilgin/order-pipeline/internal/domain"
	"github.com/kursadbilgin/order-pipeline/internal/events"
	"github.com/kursadbilgin/order-pipeline/internal/handler"
	"github.com/kursadbilgin/order-pipeline/internal/infra/postgresql"
	"github.com/kursadbilgin/order-pipeline/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/order-pipeline/internal/infra/redis"
	"github.com/kursadbilgin/order-pipeline/internal/observability"
	"github.com/kursadbilgin/order-pipeline/internal/provider"
	"github.com/kursadbilgin/order-pipeline/internal/queue"
	"github.com/kursadbilgin/order-pipeline/internal/repository"
	"github.com/kursadbilgin/order-pipeline/internal/service"
	"github.com/kursadbilgin/order-pipeline/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("order-pipeline exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	thresholds, err := cfg.StageThresholds()
	if err != nil {
		return err
	}
	defaults, err := cfg.QuietDefaults()
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()

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

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		return fmt.Errorf("rate limiter initialization failed: %w", err)
	}

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer rabbit.Close()

	publisher := queue.NewRabbitMQPublisher(rabbit)
	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.WorkerConcurrency, logger)

	var exporter events.Exporter
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		kafkaExporter, err := events.NewKafkaExporter(brokers, cfg.KafkaTopic)
		if err != nil {
			return fmt.Errorf("kafka exporter initialization failed: %w", err)
		}
		defer kafkaExporter.Close()
		exporter = kafkaExporter
	}

	orderRepo := repository.NewGormOrderRepo(db)
	transitionRepo := repository.NewGormTransitionRepo(db)
	preferenceRepo := repository.NewGormPreferenceRepo(db)
	queueRepo := repository.NewGormQueueRepo(db)
	subscriptionRepo := repository.NewGormSubscriptionRepo(db)
	directory := repository.NewGormUserDirectory(db)

	emailSender, err := provider.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	if err != nil {
		return fmt.Errorf("smtp sender initialization failed: %w", err)
	}
	smsSender, err := provider.NewSMSGatewaySender(cfg.SMSGatewayURL, cfg.SMSAPIToken)
	if err != nil {
		return fmt.Errorf("sms sender initialization failed: %w", err)
	}
	pushSender, err := provider.NewPushGatewaySender(cfg.PushGatewayURL)
	if err != nil {
		return fmt.Errorf("push sender initialization failed: %w", err)
	}
	senders := map[domain.DeliveryMethod]provider.Sender{
		domain.MethodEmail: emailSender,
		domain.MethodSMS:   smsSender,
		domain.MethodPush:  pushSender,
	}

	dispatcher, err := service.NewDispatcher(queueRepo, preferenceRepo, directory, publisher, service.DispatcherConfig{
		Defaults:            defaults,
		WeekdayMorning:      domain.TimeOfDay(cfg.WeekdayMorningHour * 60),
		MaxDeliveryAttempts: cfg.MaxDeliveryAttempts,
	}, logger)
	if err != nil {
		return err
	}
	dispatcher.SetMetrics(metrics)

	pipeline, err := service.NewPipelineService(orderRepo, transitionRepo, dispatcher, exporter, logger)
	if err != nil {
		return err
	}
	pipeline.SetMetrics(metrics)

	worker, err := service.NewDeliveryWorker(queueRepo, subscriptionRepo, directory, consumer, senders, rateLimiter, cfg.WorkerConcurrency, logger)
	if err != nil {
		return err
	}
	worker.SetMetrics(metrics)

	dispatchScanner, err := service.NewDispatchScanner(queueRepo, publisher,
		time.Duration(cfg.DispatchScanIntervalSec)*time.Second, 100, logger)
	if err != nil {
		return err
	}
	retryScanner, err := service.NewRetryScanner(queueRepo, publisher,
		time.Duration(cfg.RetryScanIntervalSec)*time.Second, 100, logger)
	if err != nil {
		return err
	}
	overdueScanner, err := service.NewOverdueScanner(orderRepo, dispatcher, thresholds,
		time.Duration(cfg.OverdueScanIntervalMin)*time.Minute, logger)
	if err != nil {
		return err
	}
	overdueScanner.SetMetrics(metrics)

	digest, err := service.NewDigestService(orderRepo, transitionRepo, preferenceRepo, queueRepo, publisher,
		thresholds, defaults, cfg.DigestHour, logger)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterOrderRoutes(app, pipeline); err != nil {
		return err
	}
	if err := handler.RegisterPreferenceRoutes(app, preferenceRepo, defaults); err != nil {
		return err
	}
	if err := handler.RegisterNotificationRoutes(app, queueRepo); err != nil {
		return err
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("order-pipeline api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})
	g.Go(func() error {
		<-groupCtx.Done()
		return app.Shutdown()
	})
	g.Go(func() error { return worker.Start(groupCtx) })
	g.Go(func() error { return dispatchScanner.Start(groupCtx) })
	g.Go(func() error { return retryScanner.Start(groupCtx) })
	g.Go(func() error { return overdueScanner.Start(groupCtx) })
	g.Go(func() error { return digest.Start(groupCtx) })

	if err := g.Wait(); err != nil && groupCtx.Err() == nil {
		return err
	}

	logger.Info("order-pipeline stopped")
	return nil
}
