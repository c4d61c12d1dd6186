// Package contextkeys owns the request-scoped values shared between
// middleware, services and the audit trail.
//
// Keys are unexported; values go in and out through the With and Get
// helpers so every reader agrees on the stored type.
package contextkeys

import "context"

type key int

const (
	// *users.User, set by middleware.SessionAuth
	principalKey key = iota
	// raw bearer token, set by middleware.SessionAuth for sign-out
	sessionTokenKey
	// set by httputil.RequestIDMiddleware
	requestIDKey
	// acting user and tenant ids, set by middleware.SessionAuth
	userIDKey
	tenantIDKey
)

// WithPrincipal stores the authenticated user
func WithPrincipal(ctx context.Context, principal any) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// Principal returns whatever WithPrincipal stored
func Principal(ctx context.Context) any {
	return ctx.Value(principalKey)
}

func WithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, sessionTokenKey, token)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

func GetSessionToken(ctx context.Context) string { return stringValue(ctx, sessionTokenKey) }
func GetRequestID(ctx context.Context) string    { return stringValue(ctx, requestIDKey) }
func GetUserID(ctx context.Context) string       { return stringValue(ctx, userIDKey) }
func GetTenantID(ctx context.Context) string     { return stringValue(ctx, tenantIDKey) }

func stringValue(ctx context.Context, k key) string {
	s, _ := ctx.Value(k).(string)
	return s
}
