/**
 * @description
 * This is the main entry point for the TherapAI backend. It initializes and
 * wires together all the components of the application: configuration,
 * database connection, vendor clients, optional Redis/RabbitMQ/S3 backends,
 * the service layer, and the HTTP router. Finally, it starts the HTTP server
 * and shuts it down gracefully on SIGINT/SIGTERM.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/therapai/backend/internal/api"
	"github.com/therapai/backend/internal/app"
	"github.com/therapai/backend/internal/config"
	"github.com/therapai/backend/internal/mediastore"
	"github.com/therapai/backend/internal/store"
	"github.com/therapai/backend/pkg/elevenlabsclient"
	"github.com/therapai/backend/pkg/geminiclient"
	"github.com/therapai/backend/pkg/rabbitmq"
	"github.com/therapai/backend/pkg/revenuecatclient"
	"github.com/therapai/backend/pkg/tavusclient"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	// If a platform-provided PORT is set (e.g., Railway/Render), prefer it
	if port := os.Getenv("PORT"); port != "" {
		cfg.ServerPort = port
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Establish connection to the PostgreSQL database
	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	dbConfig.MaxConns = 20
	dbConfig.MinConns = 2
	dbConfig.MaxConnLifetime = 30 * time.Minute
	dbConfig.MaxConnIdleTime = 5 * time.Minute
	// Use simple protocol so PgBouncer transaction pooling (Supabase) does not
	// trip over prepared statement caching (SQLSTATE 42P05).
	dbConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	repository := store.NewPostgresRepository(dbpool)
	if err := repository.EnsureSchema(ctx); err != nil {
		logger.Warn("failed ensuring tables (may already exist)", "error", err)
	}

	// RabbitMQ is optional: run with the no-op producer when unavailable.
	var producer rabbitmq.Publisher = &rabbitmq.NopProducer{}
	if cfg.RabbitMQURL != "" {
		if p, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err != nil {
			logger.Warn("failed to connect to RabbitMQ at startup, continuing without MQ", "error", err)
		} else {
			producer = p
			defer p.Close()
			logger.Info("rabbitmq producer connected")
		}
	}

	// Redis is optional: without it the rate limiter allows everything.
	var limiter app.RateLimiter = app.NopRateLimiter{}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Warn("invalid REDIS_URL, continuing without rate limiting", "error", err)
		} else {
			limiter = app.NewRedisRateLimiter(redis.NewClient(opts), "therapai:rate_limit")
			logger.Info("redis rate limiter enabled")
		}
	}

	// S3 media storage is optional: without it voice audio stays inline.
	var media app.MediaUploader
	if cfg.S3Configured() {
		uploader, err := mediastore.NewUploader(mediastore.Config{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			logger.Warn("failed to configure media storage, voice audio stays inline", "error", err)
		} else {
			media = uploader
			logger.Info("media storage enabled", "bucket", cfg.S3Bucket)
		}
	}

	// Billing provider is optional: without a key, status queries use local rows.
	var billing app.BillingProvider
	if cfg.RevenueCatAPIKey != "" {
		billing = revenuecatclient.NewClient(cfg.RevenueCatAPIKey)
	}
	if cfg.RevenueCatWebhookSecret == "" {
		logger.Warn("REVENUECAT_WEBHOOK_SECRET is not set, webhook signatures will not be verified")
	}

	// Initialize application layers
	userService := app.NewUserService(repository)
	subscriptionService := app.NewSubscriptionService(repository, billing, producer, logger)
	chatService := app.NewChatService(repository, geminiclient.NewClient(cfg.GeminiAPIKey), producer, logger)
	voiceService := app.NewVoiceService(elevenlabsclient.NewClient(cfg.ElevenLabsAPIKey), media, repository, logger)
	videoService := app.NewVideoService(tavusclient.NewClient(cfg.TavusAPIKey), nil, 0, 0, logger)
	communityService := app.NewCommunityService(repository)

	handler := api.NewHandler(userService, subscriptionService, chatService, voiceService, videoService, communityService, limiter, logger)
	webhookHandler := api.NewWebhookHandler(subscriptionService, cfg.RevenueCatWebhookSecret, logger)
	router := api.NewRouter(handler, webhookHandler, cfg.SupabaseJWTSecret, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
