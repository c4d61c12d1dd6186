package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/geoguard/geoguard/pkg/contextkeys"
	"github.com/geoguard/geoguard/pkg/httputil"
	"github.com/geoguard/geoguard/pkg/observability"
	"github.com/geoguard/geoguard/pkg/rbac"
	"github.com/geoguard/geoguard/pkg/users"
)

// Authenticator resolves a session token to its signed-in user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*users.User, error)
}

// SessionAuth provides bearer-session authentication
type SessionAuth struct {
	authenticator Authenticator
	logger        *observability.Logger
}

// NewSessionAuth creates a new session authentication middleware
func NewSessionAuth(authenticator Authenticator, logger *observability.Logger) *SessionAuth {
	return &SessionAuth{authenticator: authenticator, logger: logger}
}

// Handler wraps an HTTP handler with authentication. Requests without a
// valid session never reach next.
func (m *SessionAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			httputil.WriteUnauthorized(w, "missing or malformed authorization header")
			return
		}

		user, err := m.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			if !httputil.WriteAppError(w, err) {
				m.logger.WithError(err).Error("session lookup failed")
			}
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), user)
		ctx = contextkeys.WithSessionToken(ctx, token)
		ctx = contextkeys.WithUserID(ctx, user.ID)
		ctx = contextkeys.WithTenantID(ctx, user.TenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerToken extracts the token from "Authorization: Bearer <token>"
func BearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// CurrentUser returns the user placed in ctx by SessionAuth
func CurrentUser(ctx context.Context) (*users.User, bool) {
	user, ok := contextkeys.Principal(ctx).(*users.User)
	return user, ok && user != nil
}

// RequirePermission creates middleware that checks the caller's role grants perm
func RequirePermission(perm rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := CurrentUser(r.Context())
			if !ok {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}
			if !rbac.HasPermission(user.Principal(), perm) {
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperAdmin restricts a route to the platform team
func RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := CurrentUser(r.Context())
		if !ok {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		if !user.Principal().IsSuperAdmin() {
			httputil.WriteForbidden(w, "insufficient role permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}
