package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/alert-dispatch/internal/config"
	"github.com/kursadbilgin/alert-dispatch/internal/dispatch"
	"github.com/kursadbilgin/alert-dispatch/internal/domain"
	"github.com/kursadbilgin/alert-dispatch/internal/format"
	"github.com/kursadbilgin/alert-dispatch/internal/handler"
	"github.com/kursadbilgin/alert-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/alert-dispatch/internal/infra/postgresql/migrations"
	"github.com/kursadbilgin/alert-dispatch/internal/observability"
	"github.com/kursadbilgin/alert-dispatch/internal/queue"
	"github.com/kursadbilgin/alert-dispatch/internal/ratelimit"
	"github.com/kursadbilgin/alert-dispatch/internal/repository"
	"github.com/kursadbilgin/alert-dispatch/internal/schedule"
	"github.com/kursadbilgin/alert-dispatch/internal/service"
	"github.com/kursadbilgin/alert-dispatch/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	shutdownTimeout = 10 * time.Second
	workerPrefetch  = 1
)

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			logger.Fatal("invalid configuration", zap.Error(err))
		}
		logger.Fatal("alert-dispatch stopped with error", zap.Error(err))
	}
	logger.Info("alert-dispatch stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	location, err := cfg.Location()
	if err != nil {
		return err
	}
	metrics := observability.NewMetrics()

	profiles, err := schedule.LoadProfiles(cfg.Window.ProfilesFile)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}

	var checks []handler.ReadinessCheck

	var db *gorm.DB
	if cfg.DatabaseDSN != "" {
		db, err = postgresql.NewPostgres(ctx, cfg.DatabaseDSN)
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
		checks = append(checks, handler.PostgresCheck(sqlDB))
	}

	store, storeChecks, closeStore, err := newCounterStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeStore()
	checks = append(checks, storeChecks...)

	limiter, err := ratelimit.NewLimiter(store, cfg.RateLimitConfig(), location)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}

	registry, err := newRegistry(cfg, logger)
	if err != nil {
		return err
	}

	engine, err := dispatch.New(dispatch.Config{
		Registry: registry,
		Limiter:  limiter,
		Schedule: cfg.Schedule(),
		Retry:    cfg.RetryPolicy(),
	}, logger, metrics)
	if err != nil {
		return err
	}

	var deliveries repository.DeliveryRepository = repository.NewMemoryDeliveryRepo()
	if db != nil {
		deliveries = repository.NewGormDeliveryRepo(db)
	}

	var publisher queue.Publisher
	var consumer queue.Consumer
	if cfg.RabbitMQURL != "" {
		mq, err := queue.NewRabbitMQ(ctx, cfg.RabbitMQURL, queue.Topology{
			AlertQueue:  cfg.AlertQueue,
			ResultQueue: cfg.ResultQueue,
		})
		if err != nil {
			return fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		defer mq.Close()

		publisher = queue.NewRabbitMQPublisher(mq)
		consumer = queue.NewRabbitMQConsumer(mq, workerPrefetch, logger)
		checks = append(checks, handler.RabbitMQCheck(mq))
	}

	alerts, err := service.NewAlertService(engine, format.NewFormatter(location), profiles, deliveries, publisher, logger)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, checks...)
	if err := handler.RegisterAlertRoutes(app, alerts); err != nil {
		return err
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		logger.Info("alert-dispatch api started",
			zap.String("addr", addr),
			zap.String("timezone", location.String()),
			zap.String("counterStore", cfg.CounterStore),
			zap.Strings("providers", engine.Providers()),
		)
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if consumer != nil {
		worker, err := service.NewWorkerService(consumer, alerts.HandleMessage, cfg.WorkerConcurrency, logger)
		if err != nil {
			return err
		}
		worker.SetMetrics(metrics)
		g.Go(func() error {
			return worker.Start(groupCtx)
		})
	}

	return g.Wait()
}
