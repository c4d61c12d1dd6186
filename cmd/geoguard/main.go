package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/geoguard/geoguard/pkg/api"
	"github.com/geoguard/geoguard/pkg/app"
	"github.com/geoguard/geoguard/pkg/config"
	"github.com/geoguard/geoguard/pkg/middleware"
	"github.com/geoguard/geoguard/pkg/observability"
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, nil).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout).WithField("version", version)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("GeoGuard server stopped with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	defer shutdown.Shutdown(context.Background())

	otelProviders, err := observability.InitOTel(ctx, cfg.OTelConfig(), logger)
	if err != nil {
		return err
	}
	if otelProviders != nil {
		shutdown.Register("otel", func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	a, err := app.Build(ctx, cfg, app.Options{Logger: logger})
	if err != nil {
		return err
	}
	a.RegisterShutdown(shutdown)
	logger.WithField("store", cfg.Store.Type).Info("Store opened")

	rateLimit, credentialLimit := rateLimiters(ctx, a, logger)

	apiCfg := api.Config{
		Service:          a.Service,
		Logger:           logger,
		RateLimit:        rateLimit,
		CredentialLimit:  credentialLimit,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		SecureCookies:    cfg.Server.SecureCookies,
		TracingEnabled:   otelProviders != nil,
		TracingOperation: "geoguard.http",
	}
	if cfg.Observability.MetricsEnabled {
		apiCfg.Metrics = a.Metrics
	}
	// a nil verifier must stay a nil interface
	if a.OIDC != nil {
		apiCfg.OIDC = a.OIDC
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewServer(apiCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux(a),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return config.WatchLogLevel(gctx, cfg, logger) })
	g.Go(func() error { return serve(apiServer, "api", logger) })
	g.Go(func() error { return serve(healthServer, "health", logger) })
	g.Go(func() error {
		poolStats(gctx, a)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down servers")
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(apiServer.Shutdown(stopCtx), healthServer.Shutdown(stopCtx))
	})

	return g.Wait()
}

func serve(srv *http.Server, name string, logger *observability.Logger) error {
	logger.WithField("server", name).WithField("addr", srv.Addr).Info("Listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// rateLimiters shares counters through Redis when the store has a Redis
// client and falls back to per-process buckets otherwise
func rateLimiters(ctx context.Context, a *app.App, logger *observability.Logger) (api.RateLimiter, api.RateLimiter) {
	if client := a.Backend.Redis; client != nil {
		logger.Info("Using distributed rate limiting")
		return middleware.NewDistributedRateLimitMiddleware(client, logger),
			middleware.NewDistributedCredentialRateLimitMiddleware(client, logger)
	}

	general := middleware.NewRateLimitMiddleware()
	credential := middleware.NewCredentialRateLimitMiddleware()
	general.StartCleanup(ctx)
	credential.StartCleanup(ctx)
	return general, credential
}

// poolStats samples connection pool gauges until ctx is done
func poolStats(ctx context.Context, a *app.App) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.Backend.DB != nil {
				a.Metrics.UpdateDBStats(a.Backend.DB.Stats())
			}
			if a.Backend.Redis != nil {
				a.Metrics.UpdateRedisStats(a.Backend.Redis.PoolStats())
			}
		}
	}
}

func healthMux(a *app.App) *http.ServeMux {
	checker := observability.NewHealthChecker(version)
	if a.Backend.DB != nil {
		checker.AddCheck("database", true, observability.DatabaseCheck(a.Backend.DB))
	}
	if a.Backend.Redis != nil {
		// the cache degrades to L1 without redis
		checker.AddCheck("redis", false, observability.RedisCheck(a.Backend.Redis))
	}

	mux := http.NewServeMux()
	observability.RegisterHealthRoutes(mux, checker)
	if a.Config.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(mux, a.Registry)
	}
	return mux
}
