package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/openacre/land-exchange-backend/internal/api/rest"
	"github.com/openacre/land-exchange-backend/internal/infrastructure/cache"
	"github.com/openacre/land-exchange-backend/internal/infrastructure/config"
	"github.com/openacre/land-exchange-backend/internal/infrastructure/database"
	"github.com/openacre/land-exchange-backend/internal/infrastructure/repository"
	"github.com/openacre/land-exchange-backend/internal/infrastructure/telemetry"
	"github.com/openacre/land-exchange-backend/internal/service/fraud"
	"github.com/openacre/land-exchange-backend/internal/service/geovalidation"
	"github.com/openacre/land-exchange-backend/internal/service/overlap"
	"github.com/openacre/land-exchange-backend/internal/service/publication"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to set up logger: %v", err)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.InitializeOpenTelemetry(ctx, &telemetry.Config{
		ServiceName:    "land-exchange-api",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.OTLPEndpoint != "",
		SamplingRate:   cfg.Telemetry.SampleRate,
	})
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	// Infrastructure components log through zap.
	zapLogger, err := newZapLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("failed to set up infrastructure logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	pool, err := database.NewConnectionPool(&cfg.Database, zapLogger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	parcelRepo := repository.NewParcelRepository(pool.Pool(), zapLogger)
	signalRepo := repository.NewSignalRepository(pool.Pool(), zapLogger)
	profileRepo := repository.NewProfileRepository(pool.Pool(), parcelRepo, zapLogger)

	// Redis is optional; without it the fraud service falls back to
	// counting listings in Postgres and rate limits stay per-process.
	var velocityTracker fraud.VelocityTracker
	var velocityRecorder rest.VelocityRecorder
	var apiLimiter rest.ClientLimiter
	if cfg.Redis.URL != "" {
		redisClient, err := cache.NewRedisClient(&cfg.Redis, zapLogger)
		if err != nil {
			logger.Warn("redis unavailable, velocity tracking and shared rate limiting degraded", "error", err)
		} else {
			defer func() { _ = redisClient.Close() }()
			tracker := cache.NewListingVelocityTracker(redisClient, zapLogger)
			velocityTracker = tracker
			velocityRecorder = tracker
			apiLimiter = cache.NewPolicyLimiter(
				cache.NewRateLimiter(redisClient, zapLogger),
				cfg.Security.RateLimit.RequestsPerSecond,
				time.Second,
			)
		}
	}

	geoSvc := geovalidation.NewService(geovalidation.Config{
		MinParcelAreaM2: cfg.Geometry.MinParcelAreaM2,
		MaxVertices:     cfg.Geometry.MaxVertices,
		MaxAspectRatio:  cfg.Geometry.MaxAspectRatio,
	})
	overlapSvc := overlap.NewService(parcelRepo)
	fraudSvc := fraud.NewService(parcelRepo, signalRepo, profileRepo, velocityTracker, nil, fraud.Config{
		VelocityWindow:          cfg.Fraud.VelocityWindow,
		VelocityMaxListings:     cfg.Fraud.VelocityMaxListings,
		RepeatOffenderThreshold: cfg.Fraud.RepeatOffenderThreshold,
		DedupWindow:             cfg.Fraud.DedupWindow,
	}, logger)

	validator := instrumentedValidator{inner: geoSvc}
	overlapChecker := instrumentedOverlap{inner: overlapSvc}
	detector := instrumentedDetector{inner: fraudSvc}
	gateway := publication.NewService(parcelRepo, validator, overlapChecker, detector, logger)

	handler := rest.NewHandler(
		validator,
		overlapChecker,
		detector,
		instrumentedGateway{inner: gateway},
		parcelRepo,
		velocityRecorder,
		pool,
		cfg.Version,
		logger,
	)
	router := rest.NewRouter(handler, logger, rest.RouterConfig{
		RequestsPerSecond: cfg.Security.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.Security.RateLimit.BurstSize,
		Limiter:           apiLimiter,
	})

	server := rest.NewServer(&cfg.Server, instrumentHTTP(router), logger)
	if err := server.Start(ctx); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func newZapLogger(environment string) (*zap.Logger, error) {
	if environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
