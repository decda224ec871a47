package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/nexus-academy/catalog-service/internal/cache"
	"github.com/nexus-academy/catalog-service/internal/config"
	"github.com/nexus-academy/catalog-service/internal/events"
	"github.com/nexus-academy/catalog-service/internal/handlers"
	"github.com/nexus-academy/catalog-service/internal/metrics"
	"github.com/nexus-academy/catalog-service/internal/notify"
	"github.com/nexus-academy/catalog-service/internal/repositories/casdoor"
	"github.com/nexus-academy/catalog-service/internal/repositories/postgres"
	"github.com/nexus-academy/catalog-service/internal/services"
	"github.com/nexus-academy/catalog-service/internal/storage"
	"github.com/nexus-academy/catalog-service/internal/utils"
	"github.com/nexus-academy/catalog-service/internal/validator"
	"github.com/nexus-academy/catalog-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(slogLogger)
	logger := utils.NewRollbarLogger(utils.NewSlogLogger(slogLogger), cfg.RollbarToken, cfg.Environment)
	defer utils.FlushReports()

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Redis is optional; without it every cached read goes to Postgres.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, running without cache", "error", err)
			redisClient = nil
		}
	}
	cacheManager := cache.NewCacheManager(redisClient)

	casdoorClient := casdoor.NewClient(casdoor.CasdoorConfig{
		Endpoint:         cfg.Casdoor.Endpoint,
		ClientID:         cfg.Casdoor.ClientID,
		ClientSecret:     cfg.Casdoor.ClientSecret,
		Certificate:      cfg.Casdoor.Cert,
		OrganizationName: cfg.Casdoor.Organization,
		ApplicationName:  cfg.Casdoor.Application,
	})

	repoManager := postgres.NewRepositoryManager(postgres.RepositoryConfig{
		DB:             db,
		RedisClient:    redisClient,
		CacheManager:   cacheManager,
		UserRepository: casdoor.NewUserCasdoorWithClient(casdoorClient, cacheManager.User),
	})
	if err := repoManager.Initialize(); err != nil {
		log.Fatalf("Failed to initialize repositories: %v", err)
	}
	repo := repoManager.GetRepository()

	bus, err := events.NewBus(events.BusConfig{
		Brokers:       cfg.Kafka.Brokers,
		ConsumerGroup: cfg.Kafka.ConsumerGroup,
	}, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize event bus: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	invalidator := events.NewCatalogInvalidator(bus.Subscriber, cacheManager, slogLogger)
	go func() {
		if err := invalidator.Run(ctx); err != nil {
			logger.Error("Catalog invalidator stopped", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewPrometheusCollector(registry)

	deps := services.ServiceDependencies{
		Publisher: events.NewWatermillPublisher(bus.Publisher, slogLogger),
		Recorder:  collector,
		Notifier:  newNotifier(cfg, slogLogger),
		Storage:   newObjectStorage(ctx, cfg, logger),
	}

	serviceManager := services.NewServiceManager(db, repo, slogLogger, validator.New(), deps, services.ServiceManagerConfig{
		CohortCount: cfg.Catalog.CohortCount,
	})
	if err := serviceManager.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	handlerManager := handlers.NewHandlerManager(serviceManager, logger, casdoorClient, repo.User(), handlers.RouterConfig{
		RateLimit: cfg.RateLimit,
		Collector: collector,
		Gatherer:  registry,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	stop()

	if err := serviceManager.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown services", "error", err)
	}
	if err := bus.Close(); err != nil {
		logger.Error("Failed to close event bus", "error", err)
	}
	if err := repoManager.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to close repositories", "error", err)
	}

	logger.Info("Server exited")
}

func newNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	if cfg.SendGrid.APIKey == "" {
		return notify.NopNotifier{Logger: logger}
	}
	return notify.NewSendGridNotifier(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName, logger)
}

// newObjectStorage returns S3 when a bucket is configured; cover uploads are
// rejected otherwise.
func newObjectStorage(ctx context.Context, cfg *config.Config, logger utils.Logger) storage.ObjectStorage {
	if cfg.S3.Bucket == "" {
		return storage.DisabledStorage{}
	}
	s3Storage, err := storage.NewS3Storage(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey)
	if err != nil {
		logger.Error("S3 unavailable, cover uploads disabled", "error", err)
		return storage.DisabledStorage{}
	}
	return s3Storage
}
