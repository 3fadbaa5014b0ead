package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/settlement-core/api/controllers"
	"github.com/angelmondragon/settlement-core/api/routes"
	"github.com/angelmondragon/settlement-core/internal/app"
	"github.com/angelmondragon/settlement-core/pkg/config"
	"github.com/angelmondragon/settlement-core/pkg/db"
	"github.com/angelmondragon/settlement-core/pkg/logger"
	"github.com/angelmondragon/settlement-core/pkg/metrics"
	"github.com/angelmondragon/settlement-core/pkg/migrate"
	"github.com/angelmondragon/settlement-core/pkg/payments"
	"github.com/angelmondragon/settlement-core/pkg/redis"
	pkgstripe "github.com/angelmondragon/settlement-core/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := openDatabase(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(ctx, "redis not configured; idempotency keys and shipping cache disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	settlementMetrics := metrics.NewSettlementMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	gateway, parser, err := buildPayments(ctx, cfg, logg, settlementMetrics)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap payment gateway", err)
		os.Exit(1)
	}

	services, err := app.Build(app.Options{
		Config:  cfg,
		Logger:  logg,
		DB:      dbClient,
		Redis:   redisClient,
		Gateway: gateway,
		Parser:  parser,
		Metrics: settlementMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to build services", err)
		os.Exit(1)
	}

	params := routes.Params{
		Config:      cfg,
		Logger:      logg,
		DB:          dbClient,
		HTTPMetrics: httpMetrics,
		Gatherer:    registry,
		Services:    services,
	}
	if redisClient != nil {
		params.Redis = controllers.Pinger(redisClient)
		params.Idempotency = redisClient
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":            cfg.App.Env,
		"addr":           addr,
		"payments":       cfg.Payments.Provider,
		"payout_trigger": string(cfg.Settlement.PayoutTrigger),
		"settlement_ccy": cfg.Settlement.Currency,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(params),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "api server shutdown failed", err)
		}
	}
}

func openDatabase(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*db.Client, error) {
	if cfg.Features.UseSQLite {
		return db.NewSQLite(ctx, cfg.Features.SQLitePath, cfg.DB, logg)
	}
	return db.New(ctx, cfg.DB, logg)
}

// buildPayments picks the gateway and webhook parser for the configured
// provider and wraps the gateway in a circuit breaker.
func buildPayments(ctx context.Context, cfg *config.Config, logg *logger.Logger, recorder payments.FailureRecorder) (payments.Gateway, payments.EventParser, error) {
	var gateway payments.Gateway = payments.NoopGateway{}
	if cfg.Payments.Provider == config.PaymentProviderStripe {
		client, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return nil, nil, err
		}
		intents, err := pkgstripe.NewIntentGateway(client)
		if err != nil {
			return nil, nil, err
		}
		gateway = intents
	}

	guarded, err := payments.NewBreakerGateway(gateway, payments.BreakerSettings{
		Name:             cfg.Payments.Provider,
		Timeout:          cfg.Payments.BreakerTimeout,
		FailureThreshold: cfg.Payments.BreakerThreshold,
	}, logg, recorder)
	if err != nil {
		return nil, nil, err
	}
	return guarded, pkgstripe.NewWebhookParser(cfg.WebhookSigningSecret()), nil
}
