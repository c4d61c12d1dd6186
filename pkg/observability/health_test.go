package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(ctx context.Context) error { return nil }

func failing(ctx context.Context) error { return errors.New("connection refused") }

func TestHealthChecker_Check(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(h *HealthChecker)
		status string
	}{
		{"no dependencies", func(h *HealthChecker) {}, StatusHealthy},
		{"all healthy", func(h *HealthChecker) {
			h.AddCheck("database", true, ok)
			h.AddCheck("redis", false, ok)
		}, StatusHealthy},
		{"optional down", func(h *HealthChecker) {
			h.AddCheck("database", true, ok)
			h.AddCheck("redis", false, failing)
		}, StatusDegraded},
		{"critical down", func(h *HealthChecker) {
			h.AddCheck("redis", false, failing)
			h.AddCheck("database", true, failing)
		}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker("test")
			tt.setup(h)
			status := h.Check(context.Background())
			assert.Equal(t, tt.status, status.Status)
			assert.Equal(t, "test", status.Version)
		})
	}
}

func TestHealthChecker_Readiness(t *testing.T) {
	h := NewHealthChecker("test")
	h.AddCheck("database", true, failing)

	mux := http.NewServeMux()
	RegisterHealthRoutes(mux, h)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "connection refused", status.Dependencies["database"].Message)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthChecker_ProbeTimeout(t *testing.T) {
	h := NewHealthChecker("test")
	h.AddCheck("slow", false, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	status := h.Check(ctx)
	assert.Equal(t, StatusDegraded, status.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Dependencies["slow"].Message)
}

func TestDatabaseCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	assert.NoError(t, DatabaseCheck(db)(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.Error(t, DatabaseCheck(db)(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCheck(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	assert.NoError(t, RedisCheck(client)(context.Background()))

	server.Close()
	assert.Error(t, RedisCheck(client)(context.Background()))
}
