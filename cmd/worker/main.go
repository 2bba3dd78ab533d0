package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/lifeline-health/donor-api/internal/config"
	"github.com/lifeline-health/donor-api/internal/email"
	"github.com/lifeline-health/donor-api/internal/repository/postgres"
	"github.com/lifeline-health/donor-api/internal/service/notification"
	"github.com/lifeline-health/donor-api/internal/worker"
	"github.com/lifeline-health/donor-api/pkg/logger"
	"github.com/lifeline-health/donor-api/pkg/messaging/redis"
	"github.com/lifeline-health/donor-api/pkg/metrics"
	"github.com/lifeline-health/donor-api/pkg/notify"
)

// The worker consumes SOS alerts from Redis and texts hospitals. It needs
// the Postgres store and a Redis URL; the single-process memory setup runs
// the same notifier inside cmd/api.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if cfg.Redis.URL == "" || cfg.Database.Driver != "postgres" {
		log.Fatal().Msg("worker requires redis.url and the postgres driver")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Log.Console,
	}).WithFields(map[string]interface{}{"component": "sos-notifier"})
	log.Logger = appLogger.Zerolog()

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry, cfg.Monitoring.Namespace)

	db, err := postgres.NewDB(cfg.Database, cfg.Secrets.DatabasePassword)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	store := postgres.NewStore(db)

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, appLogger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Redis broker")
	}
	defer broker.Close()

	var sms notify.SMSSender
	if cfg.SMS.AccountSID != "" {
		sms = notify.NewSMSSender(notify.SMSConfig{
			BaseURL:    cfg.SMS.BaseURL,
			AccountSID: cfg.SMS.AccountSID,
			AuthToken:  cfg.Secrets.SMSAuthToken,
			From:       cfg.SMS.From,
			ToPrefix:   cfg.SMS.ToPrefix,
			Timeout:    10 * time.Second,
		}, m)
	}
	var mailer email.Service
	if cfg.SMTP.Host != "" {
		mailer = email.NewSMTPService(email.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.Secrets.SMTPPassword,
			From:     cfg.SMTP.From,
		})
	}

	notifier := worker.NewSOSNotifier(
		store,
		broker,
		notification.NewService(sms, mailer, appLogger),
		worker.SOSNotifierConfig{
			RetryAttempts: cfg.Worker.RetryAttempts,
			RetryDelay:    cfg.Worker.RetryDelay,
		},
		appLogger,
		m,
	)

	setupHealthCheck(cfg.Worker.HealthPort, registry, store)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := notifier.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Notifier stopped")
	}
	log.Info().Msg("Worker exited")
}

func setupHealthCheck(port int, registry *prometheus.Registry, store *postgres.Store) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/health/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
}
