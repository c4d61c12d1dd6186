package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/geoguard/geoguard/pkg/httputil"
	"github.com/geoguard/geoguard/pkg/rbac"
)

// RequireTenantAccess rejects callers acting on a tenant other than their own.
// param names the route variable holding the tenant id; routes without it pass through.
func RequireTenantAccess(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, ok := mux.Vars(r)[param]
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			user, ok := CurrentUser(r.Context())
			if !ok {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}
			if !rbac.CanAccessTenant(user.Principal(), tenantID) {
				httputil.WriteForbidden(w, "you don't have access to this company")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
