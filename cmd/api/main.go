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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/lifeline-health/donor-api/internal/config"
	"github.com/lifeline-health/donor-api/internal/email"
	appointmentHandler "github.com/lifeline-health/donor-api/internal/handler/appointment"
	authHandler "github.com/lifeline-health/donor-api/internal/handler/auth"
	"github.com/lifeline-health/donor-api/internal/handler/bloodbank"
	eligibilityHandler "github.com/lifeline-health/donor-api/internal/handler/eligibility"
	"github.com/lifeline-health/donor-api/internal/handler/health"
	"github.com/lifeline-health/donor-api/internal/handler/hospital"
	sosHandler "github.com/lifeline-health/donor-api/internal/handler/sos"
	"github.com/lifeline-health/donor-api/internal/handler/uploads"
	"github.com/lifeline-health/donor-api/internal/handler/users"
	"github.com/lifeline-health/donor-api/internal/middleware"
	"github.com/lifeline-health/donor-api/internal/repository"
	"github.com/lifeline-health/donor-api/internal/repository/memory"
	"github.com/lifeline-health/donor-api/internal/repository/postgres"
	"github.com/lifeline-health/donor-api/internal/router"
	accountService "github.com/lifeline-health/donor-api/internal/service/account"
	appointmentService "github.com/lifeline-health/donor-api/internal/service/appointment"
	eligibilityService "github.com/lifeline-health/donor-api/internal/service/eligibility"
	"github.com/lifeline-health/donor-api/internal/service/notification"
	requestService "github.com/lifeline-health/donor-api/internal/service/request"
	sosService "github.com/lifeline-health/donor-api/internal/service/sos"
	stockService "github.com/lifeline-health/donor-api/internal/service/stock"
	"github.com/lifeline-health/donor-api/internal/worker"
	"github.com/lifeline-health/donor-api/pkg/auth"
	"github.com/lifeline-health/donor-api/pkg/eligibility"
	"github.com/lifeline-health/donor-api/pkg/logger"
	"github.com/lifeline-health/donor-api/pkg/matching"
	"github.com/lifeline-health/donor-api/pkg/messaging"
	"github.com/lifeline-health/donor-api/pkg/messaging/redis"
	"github.com/lifeline-health/donor-api/pkg/metrics"
	"github.com/lifeline-health/donor-api/pkg/notify"
	"github.com/lifeline-health/donor-api/pkg/receipt"
	"github.com/lifeline-health/donor-api/pkg/security"
	"github.com/lifeline-health/donor-api/pkg/storage"
	"github.com/lifeline-health/donor-api/pkg/validator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Log.Console,
	})
	log.Logger = appLogger.Zerolog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry, cfg.Monitoring.Namespace)

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer closeStore()

	broker, err := openBroker(cfg, appLogger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to broker")
	}
	defer broker.Close()

	if err := validator.RegisterGin(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}

	receipts, err := receipt.NewPDFRenderer(cfg.Receipts.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare receipts directory")
	}

	// Collaborators
	jwtSvc := auth.NewJWTService(cfg.Secrets.JWTSecret, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	matcher := matching.NewClient(matching.Config{
		BaseURL: cfg.Matching.BaseURL,
		APIKey:  cfg.Secrets.MatchingAPIKey,
		Timeout: cfg.Matching.Timeout,
	}, appLogger, m)
	checker := eligibility.NewClient(eligibility.Config{
		BaseURL: cfg.Eligibility.BaseURL,
		Model:   cfg.Eligibility.Model,
		APIKey:  cfg.Secrets.EligibilityAPIKey,
		Timeout: cfg.Eligibility.Timeout,
	}, appLogger, m)
	notifier := newNotifier(cfg, appLogger, m)
	uploader, err := newUploader(cfg, appLogger, m)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare uploads storage")
	}
	var verifier auth.IdentityVerifier
	if cfg.External.ProjectID != "" {
		verifier = auth.NewIdentityVerifier(auth.ExternalConfig{
			Issuer:   cfg.External.ResolvedIssuer(),
			Audience: cfg.External.ResolvedAudience(),
			JWKSURL:  cfg.External.JWKSURL,
			Timeout:  cfg.External.Timeout,
		}, m)
	}

	// Services
	accountSvc := accountService.NewService(store, security.NewBcryptHasher(cfg.Security.BcryptCost), jwtSvc, verifier, appLogger)
	stockSvc := stockService.NewService(store, appLogger, m)
	appointmentSvc := appointmentService.NewService(store, receipts, notifier, broker, appLogger, m)
	requestSvc := requestService.NewService(store, matcher, broker, appLogger, m)
	sosSvc := sosService.NewService(store, broker, appLogger, m)
	eligibilitySvc := eligibilityService.NewService(checker, cfg.Eligibility.CacheTTL, appLogger)

	// With Redis the notifier runs in cmd/worker instead.
	if cfg.Redis.URL == "" {
		sosNotifier := worker.NewSOSNotifier(store, broker, notifier, worker.SOSNotifierConfig{
			RetryAttempts: cfg.Worker.RetryAttempts,
			RetryDelay:    cfg.Worker.RetryDelay,
		}, appLogger, m)
		go func() {
			if err := sosNotifier.Start(ctx); err != nil {
				appLogger.Error(err, "sos notifier stopped")
			}
		}()
	}

	var metricsRegistry *prometheus.Registry
	if cfg.Monitoring.PrometheusEnabled {
		metricsRegistry = registry
	}

	r := router.NewRouter(
		middleware.NewAuthMiddleware(jwtSvc),
		[]router.Handler{
			health.NewHandler(store, metricsRegistry),
			authHandler.NewHandler(accountSvc, time.Duration(cfg.JWT.ExpiryHours)*time.Hour, cfg.Security.SecureCookies),
		},
		[]router.Handler{
			users.NewHandler(accountSvc),
			appointmentHandler.NewHandler(appointmentSvc),
			bloodbank.NewHandler(accountSvc, stockSvc, appointmentSvc, requestSvc),
			hospital.NewHandler(accountSvc, requestSvc),
			sosHandler.NewHandler(sosSvc),
			eligibilityHandler.NewHandler(eligibilitySvc),
			uploads.NewHandler(uploader, appLogger),
		},
		router.RouterConfig{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
			RequestTimeout:   cfg.Server.RequestTimeout,
			CORSConfig:       middleware.DefaultCORSConfig(cfg.Security.AllowedOrigins),
			Security:         middleware.DefaultSecurityConfig(cfg.Security.SecureCookies),
			SizeLimit:        middleware.DefaultSizeLimitConfig(),
			Metrics:          m,
		},
	)
	r.Setup()
	if cfg.Storage.CloudName == "" {
		r.Engine().Static(cfg.Storage.PublicPath, cfg.Storage.Dir)
	}

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     r.Engine(),
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout stays unset: the SOS stream is long-lived.
	}

	go func() {
		appLogger.Info("server listening", "addr", srv.Addr, "store", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	if cfg.Database.Driver == "memory" {
		return memory.NewStore(), func() {}, nil
	}

	db, err := postgres.NewDB(cfg.Database, cfg.Secrets.DatabasePassword)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { _ = db.Close() }
	if cfg.Database.ApplySchema {
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			closeDB()
			return nil, nil, err
		}
	}
	return postgres.NewStore(db), closeDB, nil
}

func openBroker(cfg *config.Config, log *logger.Logger) (messaging.Broker, error) {
	if cfg.Redis.URL == "" {
		return messaging.NewLocalBroker(), nil
	}
	return redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, log)
}

// newUploader uses the hosted image API when it is configured and the local
// uploads directory otherwise.
func newUploader(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (storage.Uploader, error) {
	if cfg.Storage.CloudName == "" {
		return storage.NewLocalStore(cfg.Storage.Dir, cfg.Storage.PublicPath)
	}
	return storage.NewCloudStore(storage.CloudConfig{
		BaseURL:   cfg.Storage.BaseURL,
		CloudName: cfg.Storage.CloudName,
		APIKey:    cfg.Storage.APIKey,
		APISecret: cfg.Secrets.StorageAPISecret,
		Folder:    cfg.Storage.Folder,
		Timeout:   cfg.Storage.Timeout,
	}, log, m), nil
}

// newNotifier enables each channel only when it is configured.
func newNotifier(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) notification.Service {
	var sms notify.SMSSender
	if cfg.SMS.AccountSID != "" && cfg.Secrets.SMSAuthToken != "" {
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
	return notification.NewService(sms, mailer, log)
}
