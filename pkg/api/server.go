package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/geoguard/geoguard/pkg/httputil"
	"github.com/geoguard/geoguard/pkg/identity"
	"github.com/geoguard/geoguard/pkg/middleware"
	"github.com/geoguard/geoguard/pkg/observability"
	"github.com/geoguard/geoguard/pkg/onboarding"
	"github.com/geoguard/geoguard/pkg/rbac"
)

const maxBodyBytes = 1 << 20

// OIDCFlow is the authorization code flow of an external identity provider
type OIDCFlow interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*identity.ExternalIdentity, error)
}

// RateLimiter wraps handlers with request limiting
type RateLimiter interface {
	Handler(next http.Handler) http.Handler
}

// Config wires a Server
type Config struct {
	Service *onboarding.Service
	Logger  *observability.Logger

	// Optional collaborators
	OIDC             OIDCFlow
	Metrics          *observability.Metrics
	RateLimit        RateLimiter // every API request
	CredentialLimit  RateLimiter // sign-in, sign-up and code checks
	AllowedOrigins   []string
	SecureCookies    bool
	TracingEnabled   bool
	TracingOperation string
}

// Server represents our API server
type Server struct {
	svc     *onboarding.Service
	logger  *observability.Logger
	oidc    OIDCFlow
	secure  bool
	router  *mux.Router
	handler http.Handler
}

// NewServer creates a new API server
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	s := &Server{
		svc:    cfg.Service,
		logger: logger,
		oidc:   cfg.OIDC,
		secure: cfg.SecureCookies,
		router: mux.NewRouter(),
	}
	s.setupRoutes(cfg)

	chain := []func(http.Handler) http.Handler{
		observability.RecoveryMiddleware(logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.MaxBytesMiddleware(maxBodyBytes),
	}
	if len(cfg.AllowedOrigins) > 0 {
		chain = append(chain, httputil.CORSMiddleware(cfg.AllowedOrigins))
	}
	if cfg.Metrics != nil {
		chain = append(chain, observability.HTTPMetricsMiddleware(cfg.Metrics))
	}
	s.handler = httputil.Chain(chain...)(s.router)

	if cfg.TracingEnabled {
		operation := cfg.TracingOperation
		if operation == "" {
			operation = "geoguard-api"
		}
		s.handler = otelhttp.NewHandler(s.handler, operation)
	}
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(cfg Config) {
	limit := func(l RateLimiter, h http.Handler) http.Handler {
		if l == nil {
			return h
		}
		return l.Handler(h)
	}
	credential := func(h http.HandlerFunc) http.Handler {
		return limit(cfg.CredentialLimit, h)
	}

	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	// Public routes, limited by address
	public := v1.NewRoute().Subrouter()
	if cfg.RateLimit != nil {
		public.Use(cfg.RateLimit.Handler)
	}
	public.Handle("/auth/register-organization", credential(s.registerOrganization)).Methods(http.MethodPost)
	public.Handle("/auth/signup", credential(s.signUp)).Methods(http.MethodPost)
	public.Handle("/auth/signin", credential(s.signIn)).Methods(http.MethodPost)
	public.HandleFunc("/auth/oidc/login", s.oidcLogin).Methods(http.MethodGet)
	public.HandleFunc("/auth/oidc/callback", s.oidcCallback).Methods(http.MethodGet)
	public.Handle("/licenses/validate", credential(s.validateLicense)).Methods(http.MethodPost)
	public.Handle("/invitations/validate", credential(s.validateInvitation)).Methods(http.MethodPost)

	// Authenticated routes, limited by user once the session is known
	auth := middleware.NewSessionAuth(s.svc, s.logger)
	private := v1.NewRoute().Subrouter()
	private.Use(auth.Handler)
	if cfg.RateLimit != nil {
		private.Use(cfg.RateLimit.Handler)
	}
	private.Use(middleware.RequireTenantAccess("tenant_id"))

	perm := func(p rbac.Permission, h http.HandlerFunc) http.Handler {
		return middleware.RequirePermission(p)(h)
	}
	superAdmin := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireSuperAdmin(h)
	}

	private.HandleFunc("/auth/signout", s.signOut).Methods(http.MethodPost)
	private.HandleFunc("/auth/me", s.me).Methods(http.MethodGet)

	private.Handle("/licenses", superAdmin(s.issueLicense)).Methods(http.MethodPost)
	private.Handle("/licenses", superAdmin(s.listLicenses)).Methods(http.MethodGet)
	private.Handle("/licenses/{id}/revoke", superAdmin(s.revokeLicense)).Methods(http.MethodPost)

	private.Handle("/tenants", superAdmin(s.listTenants)).Methods(http.MethodGet)
	private.HandleFunc("/tenants/{tenant_id}", s.getTenant).Methods(http.MethodGet)
	private.HandleFunc("/tenants/{tenant_id}/settings", s.updateTenantSettings).Methods(http.MethodPatch)
	private.HandleFunc("/tenants/{tenant_id}/logo", s.uploadLogo).Methods(http.MethodPut)
	private.Handle("/tenants/{tenant_id}/deactivate", superAdmin(s.setTenantActive(false))).Methods(http.MethodPost)
	private.Handle("/tenants/{tenant_id}/reactivate", superAdmin(s.setTenantActive(true))).Methods(http.MethodPost)
	private.HandleFunc("/tenants/{tenant_id}/transfer-ownership", s.transferOwnership).Methods(http.MethodPost)

	private.Handle("/invitations", perm(rbac.PermissionInviteUsers, s.createInvitation)).Methods(http.MethodPost)
	private.Handle("/invitations", perm(rbac.PermissionInviteUsers, s.listInvitations)).Methods(http.MethodGet)
	private.Handle("/invitations/{id}", perm(rbac.PermissionInviteUsers, s.deleteInvitation)).Methods(http.MethodDelete)

	private.HandleFunc("/users/me/profile", s.updateProfile).Methods(http.MethodPatch)
	private.Handle("/users", perm(rbac.PermissionViewUsers, s.listUsers)).Methods(http.MethodGet)
	private.HandleFunc("/users/{id}", s.getUser).Methods(http.MethodGet)
	private.Handle("/users/{id}", perm(rbac.PermissionManageUsers, s.editUser)).Methods(http.MethodPatch)

	private.HandleFunc("/audit", s.auditTrail).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the underlying router for additional routes
func (s *Server) Router() *mux.Router {
	return s.router
}

// writeError answers with err's status and logs anything that is not a
// domain error
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if !httputil.WriteAppError(w, err) {
		observability.WithTraceContext(r.Context(), observability.FromContext(r.Context(), s.logger)).
			WithError(err).Error("request failed")
	}
}

// actor returns the signed-in caller. SessionAuth guarantees it on private routes.
func actor(r *http.Request) rbac.Principal {
	user, _ := middleware.CurrentUser(r.Context())
	if user == nil {
		return rbac.Principal{}
	}
	return user.Principal()
}
