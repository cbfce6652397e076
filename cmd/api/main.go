package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/consultdesk/booking-engine/internal/api/router"
	"github.com/consultdesk/booking-engine/internal/appointment"
	appconfig "github.com/consultdesk/booking-engine/internal/config"
	"github.com/consultdesk/booking-engine/internal/events"
	"github.com/consultdesk/booking-engine/internal/http/handlers"
	"github.com/consultdesk/booking-engine/internal/notify"
	"github.com/consultdesk/booking-engine/internal/observability/metrics"
	"github.com/consultdesk/booking-engine/internal/reservation"
	"github.com/consultdesk/booking-engine/internal/schedule"
	"github.com/consultdesk/booking-engine/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking engine API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool == nil {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := newRedisClient(cfg)
	defer func() { _ = redisClient.Close() }()

	registry := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(registry)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	scheduleStore := schedule.NewStore(redisClient)

	apptRepo := appointment.NewRepository(pool)
	apptSvc := appointment.NewService(apptRepo, logger, bookingMetrics)

	holdRepo := reservation.NewRepository(pool)
	manager := reservation.NewManager(holdRepo, scheduleStore, apptRepo, logger, bookingMetrics).
		WithTTL(cfg.HoldTTL)

	dispatcher := buildDispatcher(ctx, cfg, pool, logger, bookingMetrics)
	outboxStore := events.NewOutboxStore(pool)
	deliverer := events.NewDeliverer(outboxStore, dispatcher, logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxInterval)
	go deliverer.Start(ctx)

	routerCfg := &router.Config{
		Logger:             logger,
		Availability:       handlers.NewAvailabilityHandler(manager, logger),
		Reservations:       handlers.NewReservationHandler(manager, logger),
		AdminSchedule:      handlers.NewAdminScheduleHandler(scheduleStore, logger),
		AdminAppointments:  handlers.NewAdminAppointmentsHandler(apptSvc, manager, holdRepo, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSec:    cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// connectPostgresPool opens a pgx pool, or nil when no URL is configured.
func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if databaseURL == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		return nil
	}
	return pool
}

func newRedisClient(cfg *appconfig.Config) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

// buildDispatcher wires the notification targets the environment configures:
// SendGrid or SES for patient email, the partner webhook, and the SQS fanout
// queue. Missing configuration just disables a target.
func buildDispatcher(ctx context.Context, cfg *appconfig.Config, pool *pgxpool.Pool, logger *logging.Logger, m *metrics.BookingMetrics) *notify.Dispatcher {
	email := buildEmailSender(ctx, cfg, logger)

	webhook := notify.NewWebhookSender(notify.WebhookConfig{
		URL:    cfg.NotifyWebhookURL,
		Secret: cfg.NotifyWebhookSecret,
	}, logger)

	var queue notify.QueuePublisher
	if cfg.EventQueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Error("failed to load AWS config, queue fanout disabled", "error", err)
		} else {
			queue = notify.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.EventQueueURL)
		}
	}

	var sender notify.EventSender
	if webhook != nil {
		sender = webhook
	}
	return notify.NewDispatcher(email, sender, queue, events.NewProcessedStore(pool), logger, m)
}

// buildEmailSender prefers SendGrid, falls back to SES, then to the logging
// stub so confirmation flows stay observable in development.
func buildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		return sg
	}
	if cfg.SESFromEmail != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err == nil {
			if ses := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{FromEmail: cfg.SESFromEmail}, logger); ses != nil {
				return ses
			}
		} else {
			logger.Error("failed to load AWS config for SES", "error", err)
		}
	}
	return notify.NewStubEmailSender(logger)
}
