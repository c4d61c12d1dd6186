// Package app assembles a Service and its collaborators from configuration.
// The server, janitor and admin binaries all start here.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/geoguard/geoguard/pkg/audit"
	"github.com/geoguard/geoguard/pkg/branding"
	"github.com/geoguard/geoguard/pkg/config"
	"github.com/geoguard/geoguard/pkg/docstore"
	"github.com/geoguard/geoguard/pkg/events"
	"github.com/geoguard/geoguard/pkg/identity"
	"github.com/geoguard/geoguard/pkg/invitations"
	"github.com/geoguard/geoguard/pkg/licenses"
	"github.com/geoguard/geoguard/pkg/observability"
	"github.com/geoguard/geoguard/pkg/onboarding"
	"github.com/geoguard/geoguard/pkg/tenants"
	"github.com/geoguard/geoguard/pkg/users"
)

// Options tune Build. A zero Options is valid.
type Options struct {
	Logger *observability.Logger
	// Registry receives the metrics; a fresh one is made when nil
	Registry *prometheus.Registry
	// SkipCollaborators leaves out AMQP, S3 and OIDC, for tools that only
	// touch the store
	SkipCollaborators bool
}

// App is a wired Service plus the handles its hosts need
type App struct {
	Config   *config.Config
	Service  *onboarding.Service
	Backend  *docstore.Backend
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	Logger   *observability.Logger

	Sessions    *identity.Sessions
	Invitations *invitations.Registry
	AuditStore  *audit.StoreLogger
	// OIDC is nil unless enabled
	OIDC *identity.OIDCVerifier

	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// Build opens the store and constructs every registry and collaborator the
// configuration enables. Close releases what Build opened.
func Build(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger(cfg.LogLevel(), nil)
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	a := &App{
		Config:   cfg,
		Registry: registry,
		Metrics:  observability.NewMetrics(registry),
		Logger:   logger,
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	backend, err := docstore.Open(ctx, cfg.DocstoreConfig(), a.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.Backend = backend
	// the cached store owns the redis client
	a.addCloser("store", backend.Store.Close)

	store := backend.Store
	dir := users.NewDirectory(store)
	tenantRegistry := tenants.NewRegistry(store, dir)
	binder := users.NewBinder(store, tenantRegistry)
	a.Invitations = invitations.NewRegistry(store, invitations.WithDefaultExpiryDays(cfg.Invitations.DefaultExpiryDays))

	provider := identity.NewLocalProvider(store, cfg.Auth.BcryptCost)
	a.Sessions, err = identity.NewSessions(store, cfg.Auth.SessionSecret, cfg.Auth.SessionIssuer, cfg.Auth.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions: %w", err)
	}

	a.AuditStore = audit.NewStoreLogger(store)
	var auditLogger audit.Logger = a.AuditStore
	if cfg.Audit.Directory != "" {
		fileLogger, err := audit.NewFileLogger(audit.DefaultFileLoggerConfig(cfg.Audit.Directory))
		if err != nil {
			return nil, fmt.Errorf("failed to open audit directory: %w", err)
		}
		a.addCloser("audit file", fileLogger.Close)
		auditLogger = audit.NewMultiLogger(a.AuditStore, fileLogger)
	}

	deps := onboarding.Deps{
		Licenses:    licenses.NewRegistry(store),
		Tenants:     tenantRegistry,
		Invitations: a.Invitations,
		Users:       binder,
		Identity:    provider,
		Sessions:    a.Sessions,
		Accounts:    provider,
		Audit:       auditLogger,
		AuditSearch: a.AuditStore,
		Metrics:     a.Metrics,
		Logger:      logger,
	}

	if !opts.SkipCollaborators {
		if err := a.collaborators(ctx, &deps); err != nil {
			return nil, err
		}
	}

	a.Service, err = onboarding.NewService(deps)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) collaborators(ctx context.Context, deps *onboarding.Deps) error {
	cfg := a.Config

	if cfg.Events.AMQPURL != "" {
		broker, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			return fmt.Errorf("failed to connect event broker: %w", err)
		}
		publisher := events.NewAsyncPublisher(broker, events.DefaultAsyncConfig(), a.Logger)
		a.addCloser("events", publisher.Close)
		deps.Events = publisher
		a.Logger.WithField("exchange", cfg.Events.Exchange).Info("publishing domain events")
	}

	if cfg.Branding.Enabled {
		logos, err := branding.NewS3LogoStore(ctx, cfg.S3Config())
		if err != nil {
			return fmt.Errorf("failed to create logo store: %w", err)
		}
		deps.Logos = logos
	}

	if cfg.Auth.OIDC.Enabled {
		verifier, err := identity.NewOIDCVerifier(ctx, cfg.OIDCProviderConfig())
		if err != nil {
			return fmt.Errorf("failed to discover OIDC provider: %w", err)
		}
		a.OIDC = verifier
	}
	return nil
}

func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// RegisterShutdown hands every resource to a shutdown manager instead of
// closing it directly
func (a *App) RegisterShutdown(sm *observability.ShutdownManager) {
	for _, c := range a.closers {
		fn := c.fn
		sm.Register(c.name, func(context.Context) error { return fn() })
	}
	a.closers = nil
}
