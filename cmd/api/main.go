package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/pick-issue-service/internal/api/handlers"
	"github.com/wms-platform/pick-issue-service/internal/application"
	"github.com/wms-platform/pick-issue-service/internal/domain"
	mongoStore "github.com/wms-platform/pick-issue-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/pick-issue-service/internal/infrastructure/sqlstore"
	"github.com/wms-platform/pick-issue-service/pkg/cloudevents"
	"github.com/wms-platform/pick-issue-service/pkg/idempotency"
	"github.com/wms-platform/pick-issue-service/pkg/kafka"
	"github.com/wms-platform/pick-issue-service/pkg/logging"
	"github.com/wms-platform/pick-issue-service/pkg/metrics"
	"github.com/wms-platform/pick-issue-service/pkg/middleware"
	"github.com/wms-platform/pick-issue-service/pkg/mongodb"
	"github.com/wms-platform/pick-issue-service/pkg/outbox"
	"github.com/wms-platform/pick-issue-service/pkg/resilience"
	"github.com/wms-platform/pick-issue-service/pkg/tracing"
)

const serviceName = "pick-issue-service"

// storage is the backend selected by STORAGE_DRIVER
type storage struct {
	tx          domain.TransactionRunner
	reports     domain.IssueReportRepository
	keys        idempotency.KeyRepository
	healthCheck func(ctx context.Context) error
	closers     []func()
}

func (s *storage) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func main() {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting pick-issue-service API")

	config := loadConfig()
	ctx := context.Background()

	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	tracingConfig.Environment = getEnv("ENVIRONMENT", "development")
	tracingConfig.Enabled = getEnv("TRACING_ENABLED", "true") == "true"

	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		// keep serving without traces
		logger.WithError(err).Error("Failed to initialize tracing")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", tracingConfig.OTLPEndpoint, "enabled", tracingConfig.Enabled)
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))
	logger.Info("Metrics initialized")

	var store *storage
	switch config.StorageDriver {
	case StorageMongoDB:
		store, err = openMongoStorage(ctx, config, m, logger)
	case StorageSQLite:
		store, err = openSQLiteStorage(ctx, config, logger)
	default:
		err = fmt.Errorf("unknown storage driver %q", config.StorageDriver)
	}
	if err != nil {
		logger.WithError(err).Error("Failed to initialize storage", "driver", config.StorageDriver)
		os.Exit(1)
	}
	defer store.close()

	if err := idempotency.InitializeIndexes(ctx, store.keys); err != nil {
		logger.WithError(err).Warn("Failed to initialize idempotency indexes")
	}

	pickIssueService := application.NewPickIssueApplicationService(store.tx, store.reports, logger, m)

	router := gin.New()

	middlewareConfig := middleware.DefaultConfig(serviceName, logger.Logger)
	middlewareConfig.IdempotencyConfig = &idempotency.Config{
		ServiceName:  serviceName,
		Repository:   store.keys,
		RequireKey:   false,
		OnlyMutating: true,
		UserIDExtractor: func(c *gin.Context) string {
			return c.GetHeader(middleware.HeaderUserID)
		},
		MaxKeyLength:    idempotency.DefaultMaxKeyLength,
		LockTimeout:     idempotency.DefaultLockTimeout,
		RetentionPeriod: idempotency.DefaultRetentionPeriod,
		MaxResponseSize: idempotency.DefaultMaxResponseSize,
		MaxRequestSize:  idempotency.DefaultMaxRequestSize,
		Metrics:         idempotency.NewMetrics(m.Registry()),
	}
	middleware.Setup(router, middlewareConfig)

	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.Tracing(serviceName))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, store.healthCheck))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequireUser())
	handlers.NewPickIssueHandlers(pickIssueService, logger).RegisterRoutes(v1)

	srv := &http.Server{
		Addr:         config.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()
	logger.Info("Server started", "addr", config.ServerAddr, "storage", config.StorageDriver)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}

// openMongoStorage connects to the replica set and starts the outbox publisher
func openMongoStorage(ctx context.Context, config *Config, m *metrics.Metrics, logger *logging.Logger) (*storage, error) {
	var mongoClient *mongodb.Client
	err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) error {
		client, err := mongodb.NewClient(ctx, config.MongoDB)
		if err != nil {
			logger.WithError(err).Warn("MongoDB not reachable, retrying")
			return err
		}
		mongoClient = client
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	instrumentedMongo := mongodb.NewInstrumentedClient(mongoClient, m, logger)
	breakerClient := mongodb.NewCircuitBreakerClient(instrumentedMongo, logger, m)
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	s := &storage{
		keys:        idempotency.NewMongoKeyRepository(instrumentedMongo.Database()),
		healthCheck: breakerClient.HealthCheck,
	}
	s.closers = append(s.closers, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = instrumentedMongo.Close(closeCtx)
	})

	eventFactory := cloudevents.NewEventFactory(cloudevents.SourcePickIssue)
	pickIssueStore := mongoStore.NewStore(breakerClient, eventFactory, logger)
	if err := pickIssueStore.EnsureIndexes(ctx); err != nil {
		s.close()
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	s.tx = pickIssueStore
	s.reports = pickIssueStore.Reports()

	producer, kafkaWriter := kafka.NewProductionProducer(config.Kafka, m, logger)
	s.closers = append(s.closers, func() { _ = kafkaWriter.Close() })
	logger.Info("Kafka producer initialized", "brokers", config.Kafka.Brokers)

	publisherConfig := outbox.DefaultPublisherConfig()
	publisherConfig.PollInterval = config.OutboxPollInterval
	publisherConfig.BatchSize = config.OutboxBatchSize

	outboxPublisher := outbox.NewPublisher(pickIssueStore.Outbox(), producer, logger, m, publisherConfig)
	if err := outboxPublisher.Start(ctx); err != nil {
		s.close()
		return nil, fmt.Errorf("failed to start outbox publisher: %w", err)
	}
	s.closers = append(s.closers, func() { _ = outboxPublisher.Stop() })
	logger.Info("Outbox publisher started")

	return s, nil
}

// openSQLiteStorage opens the single-node store. Events are logged only.
func openSQLiteStorage(ctx context.Context, config *Config, logger *logging.Logger) (*storage, error) {
	db, err := sqlstore.Open(config.SQLiteDSN)
	if err != nil {
		return nil, err
	}

	sqlStore := sqlstore.NewStore(db, logger)
	if err := sqlStore.Migrate(ctx); err != nil {
		_ = sqlStore.Close()
		return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
	}
	logger.Info("Opened sqlite store", "dsn", config.SQLiteDSN)

	return &storage{
		tx:          sqlStore,
		reports:     sqlStore.Reports(),
		keys:        idempotency.NewGormKeyRepository(db),
		healthCheck: sqlStore.HealthCheck,
		closers:     []func(){func() { _ = sqlStore.Close() }},
	}, nil
}
