package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	appconfig "crybsale/config"
	"crybsale/core"
	"crybsale/integrations/webhooks"
	"crybsale/observability/logging"
	telemetry "crybsale/observability/otel"
	"crybsale/services/saled/config"
	"crybsale/services/saled/journal"
	"crybsale/services/saled/middleware"
	"crybsale/services/saled/server"
	"crybsale/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/saled/saled.yaml", "path to saled configuration file")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("saled: load config: %v", err)
	}

	env := strings.TrimSpace(os.Getenv("CRYB_ENV"))
	logger := logging.Setup("saled", env, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	otelCfg := telemetry.FromEnv("saled", env)
	if otelCfg.Traces || otelCfg.Metrics {
		shutdownTelemetry, err := telemetry.Init(context.Background(), otelCfg)
		if err != nil {
			log.Fatalf("saled: init telemetry: %v", err)
		}
		defer func() { _ = shutdownTelemetry(context.Background()) }()
	}

	deployment, err := appconfig.Load(cfg.DeploymentPath)
	if err != nil {
		log.Fatalf("saled: load deployment: %v", err)
	}

	db, err := openState(cfg)
	if err != nil {
		log.Fatalf("saled: open state: %v", err)
	}
	runtime, err := core.NewRuntime(db, deployment, core.WithLogger(logger), core.WithMetrics())
	if err != nil {
		db.Close()
		log.Fatalf("saled: start runtime: %v", err)
	}
	defer runtime.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dsn, err := cfg.JournalDSNResolved()
	if err != nil {
		log.Fatalf("saled: resolve journal DSN: %v", err)
	}
	jr, err := journal.Open(dsn)
	if err != nil {
		log.Fatalf("saled: open journal: %v", err)
	}
	defer jr.Close()
	jr.SetLogger(logger)
	go runBackground(ctx, logger, "journal", func(ctx context.Context) error {
		return jr.Run(ctx, runtime.Events())
	})

	if url := strings.TrimSpace(cfg.Webhook.URL); url != "" {
		opts := []webhooks.Option{webhooks.WithLogger(logger), webhooks.WithTopics(cfg.Webhook.Events...)}
		if cfg.Webhook.MaxAttempts > 0 {
			opts = append(opts, webhooks.WithRetryPolicy(cfg.Webhook.MaxAttempts, 0, 0))
		}
		dispatcher, err := webhooks.NewDispatcher(url, []byte(cfg.Webhook.Secret), opts...)
		if err != nil {
			log.Fatalf("saled: configure webhook: %v", err)
		}
		defer dispatcher.Close()
		go runBackground(ctx, logger, "webhook", func(ctx context.Context) error {
			return dispatcher.Run(ctx, runtime.Events())
		})
	}

	limits := make(map[string]middleware.RateLimit, len(cfg.RateLimits))
	for name, limit := range cfg.RateLimits {
		limits[name] = middleware.RateLimit{RequestsPerMinute: limit.RequestsPerMinute, Burst: limit.Burst}
	}
	authenticator := middleware.NewAuthenticator(middleware.AuthConfig{
		HMACSecret: cfg.Auth.HMACSecret,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		ScopeClaim: cfg.Auth.ScopeClaim,
		ClockSkew:  cfg.Auth.ClockSkew.Duration,
	}, logger)

	var tlsConfig *tls.Config
	if !cfg.TLS.Disable {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	srv, err := server.New(server.Config{
		ListenAddress:   cfg.ListenAddress,
		AdminScope:      cfg.Auth.AdminScope,
		ShutdownTimeout: cfg.ShutdownTimeout.Duration,
		TLS: server.TLSConfig{
			Disabled: cfg.TLS.Disable,
			CertFile: cfg.TLS.CertPath,
			KeyFile:  cfg.TLS.KeyPath,
			Config:   tlsConfig,
		},
	}, server.Deps{
		Runtime:       runtime,
		Journal:       jr,
		Authenticator: authenticator,
		RateLimiter:   middleware.NewRateLimiter(limits),
		Observability: middleware.NewObservability(logger),
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("saled: configure server: %v", err)
	}

	logger.Info("saled: sale runtime ready",
		"deployment", cfg.DeploymentPath,
		"version", deployment.Version,
		"phases", len(deployment.Phases))
	if err := srv.Run(ctx); err != nil {
		logger.Error("saled: server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("saled: shutdown complete")
}

func runBackground(ctx context.Context, logger *slog.Logger, name string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("saled: background task stopped", "task", name, "error", err)
	}
}

func openState(cfg config.Config) (storage.Database, error) {
	if cfg.StateBackend == config.StateBackendBolt {
		if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "state.db"))
	}
	return storage.NewLevelDB(cfg.DataDir)
}
