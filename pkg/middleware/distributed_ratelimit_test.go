package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoguard/geoguard/pkg/observability"
	"github.com/geoguard/geoguard/pkg/rbac"
	"github.com/geoguard/geoguard/pkg/users"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return server, client
}

func TestRedisLimitStore_Take(t *testing.T) {
	server, client := newRedis(t)
	store := NewRedisLimitStore(client)
	ctx := context.Background()
	limit := Limit{Requests: 2, Window: time.Minute, Burst: 1}

	for i := 0; i < limit.Capacity(); i++ {
		d, err := store.Take(ctx, "ip:1.2.3.4", limit)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, limit.Capacity()-i-1, d.Remaining)
	}

	d, err := store.Take(ctx, "ip:1.2.3.4", limit)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.InDelta(t, float64(time.Minute), float64(d.Reset), float64(time.Second))

	ttl, err := store.TTL(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.Positive(t, ttl)

	// the window closes and the count starts over
	server.FastForward(time.Minute + time.Second)
	d, err = store.Take(ctx, "ip:1.2.3.4", limit)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, limit.Capacity()-1, d.Remaining)

	require.NoError(t, store.Reset(ctx, "ip:1.2.3.4"))
	assert.False(t, server.Exists("ip:1.2.3.4"))
	require.NoError(t, store.HealthCheck(ctx))
}

func TestRedisLimitStore_RepairsMissingExpiry(t *testing.T) {
	server, client := newRedis(t)
	store := NewRedisLimitStore(client)

	// a counter left without a TTL would otherwise block the key forever
	require.NoError(t, server.Set("stuck", "100"))
	d, err := store.Take(context.Background(), "stuck", CredentialLimit())
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Positive(t, server.TTL("stuck"))
}

func TestDistributedRateLimitMiddleware_Keys(t *testing.T) {
	server, client := newRedis(t)
	m := NewDistributedRateLimitMiddleware(client, observability.NewLogger(observability.ErrorLevel, nil))
	handler := m.Handler(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/licenses/validate", nil)
	req.RemoteAddr = "198.51.100.9:4000"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	user := &users.User{ID: "u-7", TenantID: "t-1", Role: rbac.RoleAdmin, IsActive: true}
	handler.ServeHTTP(httptest.NewRecorder(), withUser(httptest.NewRequest(http.MethodGet, "/api/v1/users", nil), user))

	assert.True(t, server.Exists("geoguard:ratelimit:ip:198.51.100.9"))
	assert.True(t, server.Exists("geoguard:ratelimit:user:u-7"))
}

func TestDistributedCredentialRateLimitMiddleware(t *testing.T) {
	_, client := newRedis(t)
	m := NewDistributedCredentialRateLimitMiddleware(client, observability.NewLogger(observability.ErrorLevel, nil))
	handler := m.Handler(okHandler)

	capacity := CredentialLimit().Capacity()
	for i := 0; i < capacity; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/licenses/validate", nil)
		req.RemoteAddr = "198.51.100.9:4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/licenses/validate", nil)
	req.RemoteAddr = "198.51.100.9:4000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestDistributedRateLimitMiddleware_RedisDown(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	defer client.Close()
	m := NewDistributedRateLimitMiddleware(client, observability.NewLogger(observability.ErrorLevel, nil))
	handler := m.Handler(okHandler)
	server.Close()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	m.SetFallbackEnabled(false)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
