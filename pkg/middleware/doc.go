// Package middleware provides HTTP middleware for session authentication,
// role checks and rate limiting.
//
// # Ordering
//
// SessionAuth must run before anything that reads the caller:
//
//	api := router.PathPrefix("/api/v1").Subrouter()
//	api.Use(auth.Handler)
//	api.Use(middleware.RequireTenantAccess("tenant_id"))
//	api.Handle("/invitations", middleware.RequirePermission(rbac.PermissionInviteUsers)(h))
//
// RequireTenantAccess relies on gorilla/mux route variables, so it has to be
// installed with Router.Use rather than wrapping the router.
//
// # Rate Limiting
//
// Signed-in callers are keyed by user id, everyone else by client address.
// Install the limiter after SessionAuth on authenticated routes so the user
// budget applies.
//
//	Anonymous:  100 req/min, 10 burst
//	Per-User:   1000 req/min, 50 burst
//	Credential: 10 req/min, 5 burst (sign-in, sign-up, license and invitation checks)
//
// MemoryLimitStore keeps a golang.org/x/time/rate token bucket per key.
// RedisLimitStore shares a fixed window counter across instances; the
// middleware fails open on store errors unless SetFallbackEnabled(false)
// is called.
package middleware
