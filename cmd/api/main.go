// Package main is the entrypoint for the Quillscribe portal API server.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/quillscribe/portal/internal/auth"
	"github.com/quillscribe/portal/internal/cache"
	"github.com/quillscribe/portal/internal/config"
	"github.com/quillscribe/portal/internal/handler"
	"github.com/quillscribe/portal/internal/logbuffer"
	"github.com/quillscribe/portal/internal/metrics"
	"github.com/quillscribe/portal/internal/middleware"
	"github.com/quillscribe/portal/internal/notify"
	"github.com/quillscribe/portal/internal/outbox"
	"github.com/quillscribe/portal/internal/provider"
	"github.com/quillscribe/portal/internal/repository"
	"github.com/quillscribe/portal/internal/server"
	"github.com/quillscribe/portal/internal/service"
	"github.com/quillscribe/portal/internal/site"
	"github.com/quillscribe/portal/internal/snapshot"
)

func main() {
	// Initialize context
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, logRing := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.Options{PoolSize: cfg.RedisPoolSize})
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Metrics: in-memory counters for the admin overview, Prometheus for /metrics
	counters := metrics.NewInMemory()
	var recorder metrics.Recorder = counters
	var exporter *metrics.PrometheusRecorder
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		exporter = metrics.NewPrometheus(reg)
		recorder = metrics.NewTee(counters, exporter)
	}

	// Snapshot store
	store, closeStore, err := newSnapshotStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize snapshot store", "backend", cfg.SnapshotBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Provider listing clients
	httpClient := provider.NewHTTPClient(cfg.ProviderTimeout)
	listers := provider.NewRegistry(
		provider.NewOpenAI(provider.Config{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL, Timeout: cfg.ProviderTimeout, HTTPClient: httpClient}),
		provider.NewAnthropic(provider.Config{APIKey: cfg.AnthropicAPIKey, BaseURL: cfg.AnthropicBaseURL, Timeout: cfg.ProviderTimeout, HTTPClient: httpClient}),
		provider.NewGemini(provider.Config{APIKey: cfg.GoogleAPIKey, BaseURL: cfg.GeminiBaseURL, Timeout: cfg.ProviderTimeout, HTTPClient: httpClient}),
	)

	// Contact notifiers
	var notifiers []notify.Notifier
	var confirmations service.ConfirmationSender
	if cfg.ContactWebhookURL != "" {
		dev := cfg.IsDevelopment()
		if err := notify.ValidateTargetURL(cfg.ContactWebhookURL, dev); err != nil {
			logger.Error("invalid contact webhook url",
				"error", err,
				"host", notify.ExtractHost(cfg.ContactWebhookURL),
			)
			os.Exit(1)
		}
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.ContactWebhookURL, cfg.ContactWebhookSecret, notify.NewHTTPClient(dev), logger))
	}
	if cfg.SendGridAPIKey != "" {
		mailer := notify.NewSendGridNotifier(cfg.SendGridAPIKey, cfg.ContactFromEmail, cfg.ContactToEmail, logger)
		notifiers = append(notifiers, mailer)
		confirmations = mailer
	}

	// Initialize services
	sessions := auth.NewSessionManager(sessionSecret(cfg, logger), cfg.SessionTTL)
	authService := service.NewAuthService(service.AuthConfig{
		Users:               repo,
		Keys:                repo,
		Cache:               cacheClient,
		Sessions:            sessions,
		Sender:              confirmations,
		BaseURL:             cfg.BaseURL,
		RequireConfirmation: cfg.RequireEmailConfirmation,
		Metrics:             recorder,
		Logger:              logger,
	})
	modelService := service.NewModelService(store, cacheClient, cfg.SnapshotCacheTTL, recorder, logger)
	refreshService := service.NewRefreshService(listers, store, cacheClient, cfg.SnapshotCacheTTL, cacheClient, recorder, logger)
	settingsService := service.NewSettingsService(repo, modelService, logger)
	libraryService := service.NewLibraryService(repo)
	apiKeyService := service.NewAPIKeyService(repo, cacheClient, auth.EnvForAppEnv(cfg.AppEnv), logger)
	adminService := service.NewAdminService(repo, modelService)

	var publisher service.ContactPublisher
	if len(notifiers) > 0 {
		publisher = outbox.NewPublisher(cacheClient.Client(), logger, recorder)
	}
	contactService := service.NewContactService(repo, publisher, logger)

	// Public site
	pages, err := site.New(site.Config{
		Logger:  logger,
		Theme:   settingsService,
		DataDir: siteDataDir(cfg),
	})
	if err != nil {
		logger.Error("failed to load site templates", "error", err)
		os.Exit(1)
	}

	// Initialize handlers
	health := handler.NewHealthHandler(logger,
		handler.Dependency{Name: "postgres", Checker: repo},
		handler.Dependency{Name: "redis", Checker: cacheClient},
	)
	routerCfg := handler.RouterConfig{
		Logger:        logger,
		Metrics:       recorder,
		Authenticator: authService,
		Security: middleware.SecurityConfig{
			IsDevelopment:      cfg.IsDevelopment(),
			MaxRequestBodySize: cfg.MaxRequestBodySize,
		},
		CORS:     corsConfig(cfg),
		Health:   health,
		Exporter: handler.NewMetricsHandler(nil),
		Auth:     handler.NewAuthHandler(authService, !cfg.IsDevelopment(), logger),
		Models:   handler.NewModelHandler(modelService, refreshService, logger),
		Settings: handler.NewSettingsHandler(settingsService, logger),
		Library:  handler.NewLibraryHandler(libraryService, logger),
		Contact:  handler.NewContactHandler(contactService, logger),
		Admin:    handler.NewAdminHandler(adminService, logRing, counters, logger),
		APIKeys:  handler.NewAPIKeyHandler(apiKeyService, logger),
		Site:     pages,
	}
	if exporter != nil {
		routerCfg.Exporter = handler.NewMetricsHandler(exporter.Handler())
	}
	if cfg.RateLimitEnabled {
		routerCfg.Limiter = cacheClient
		routerCfg.AuthRatePerMinute = cfg.AuthRateLimitPerMinute
		routerCfg.ContactRatePerMinute = cfg.ContactRateLimitPerMinute
	}

	// Setup router
	r := handler.NewRouter(routerCfg)

	// Create server
	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Background workers. Registered first so they stop last.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	if len(notifiers) > 0 {
		worker := outbox.NewWorker(cacheClient.Client(), repo, notifiers, logger, outbox.NewConsumerID(), recorder)
		go func() {
			if err := worker.Run(workerCtx); err != nil {
				logger.Error("contact worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("contact-worker", worker.Shutdown)
	} else {
		logger.Info("no contact notifiers configured, messages are stored only")
	}

	refresher := service.NewBackgroundRefresher(refreshService, cfg.ModelRefreshInterval, logger)
	if err := refresher.Start(workerCtx); err != nil {
		logger.Error("failed to start background refresher", "error", err)
		os.Exit(1)
	}
	srv.OnShutdown("model-refresher", refresher.Shutdown)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
		"snapshot_backend", cfg.SnapshotBackend,
		"metrics_enabled", cfg.MetricsEnabled,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger builds the process logger. Every record is also kept in a ring
// for the admin log viewer.
func initLogger(cfg *config.Config) (*slog.Logger, *logbuffer.Ring) {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	ring := logbuffer.NewRing(cfg.LogBufferSize)
	logger := slog.New(logbuffer.NewHandler(h, ring))
	slog.SetDefault(logger)

	return logger, ring
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newSnapshotStore opens the configured snapshot backend. The returned func
// releases it.
func newSnapshotStore(ctx context.Context, cfg *config.Config) (snapshot.Store, func(), error) {
	if cfg.SnapshotBackend != config.SnapshotBackendGCS {
		return snapshot.NewFileStore(cfg.DataDir), func() {}, nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, err
	}
	return snapshot.NewGCSStore(client, cfg.GCSBucket, cfg.GCSPrefix), func() { _ = client.Close() }, nil
}

// siteDataDir is served under /data only for the file backend.
func siteDataDir(cfg *config.Config) string {
	if cfg.SnapshotBackend == config.SnapshotBackendFile {
		return cfg.DataDir
	}
	return ""
}

func corsConfig(cfg *config.Config) middleware.CORSConfig {
	c := middleware.DefaultCORSConfig()
	if origins := cfg.GetCORSAllowedOrigins(); len(origins) > 0 {
		c.AllowedOrigins = origins
		c.AllowCredentials = true
	}
	return c
}

// sessionSecret returns JWT_SECRET, or a random per-process secret in
// development. Sessions then do not survive a restart.
func sessionSecret(cfg *config.Config, logger *slog.Logger) string {
	if cfg.JWTSecret != "" {
		return cfg.JWTSecret
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		logger.Error("failed to generate session secret", "error", err)
		os.Exit(1)
	}
	logger.Warn("JWT_SECRET not set, using an ephemeral session secret")
	return hex.EncodeToString(b)
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
