package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/geoguard/geoguard/pkg/app"
	"github.com/geoguard/geoguard/pkg/audit"
	"github.com/geoguard/geoguard/pkg/config"
	"github.com/geoguard/geoguard/pkg/janitor"
	"github.com/geoguard/geoguard/pkg/observability"
)

var (
	schedule    = flag.String("schedule", "0 2 * * *", "Cron schedule for purge passes (default: 02:00 daily)")
	runOnce     = flag.Bool("run-once", false, "Run one purge pass and exit")
	metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (empty disables)")
	logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	logger := setupLogger(*logLevel)
	logger.Info("Starting GeoGuard janitor")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.Build(ctx, cfg, app.Options{
		Logger:            observability.NewLogger(cfg.LogLevel(), os.Stderr),
		SkipCollaborators: true,
	})
	if err != nil {
		logger.Fatalf("Failed to open store: %v", err)
	}
	defer a.Close()

	j := &janitor.Janitor{
		Invitations: a.Invitations,
		Sessions:    a.Sessions,
		Audit:       a.AuditStore,
		Retention:   audit.RetentionPolicy{RetentionDays: cfg.Audit.RetentionDays},
		Metrics:     a.Metrics,
		Logger:      logger,
	}

	if *runOnce {
		if _, err := j.Run(ctx); err != nil {
			logger.Errorf("Purge pass failed: %v", err)
			a.Close()
			os.Exit(1)
		}
		logger.Info("Purge pass completed")
		return
	}

	if *metricsAddr != "" {
		go serveMetrics(ctx, a, logger)
	}

	c := cron.New()
	_, err = c.AddFunc(*schedule, func() {
		if _, err := j.Run(ctx); err != nil {
			logger.Errorf("Purge pass failed: %v", err)
		}
	})
	if err != nil {
		logger.Errorf("Failed to schedule purge: %v", err)
		a.Close()
		os.Exit(1)
	}

	c.Start()
	logger.WithField("schedule", *schedule).Info("Janitor scheduled")

	<-ctx.Done()
	logger.Info("Shutting down gracefully...")

	// wait for a running pass to finish
	<-c.Stop().Done()
	logger.Info("Janitor stopped")
}

func setupLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}

func serveMetrics(ctx context.Context, a *app.App, logger *logrus.Logger) {
	mux := http.NewServeMux()
	observability.RegisterMetricsEndpoint(mux, a.Registry)
	srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.WithField("addr", *metricsAddr).Info("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("Metrics server failed: %v", err)
	}
}
