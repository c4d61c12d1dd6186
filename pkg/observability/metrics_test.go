package observability

import (
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/geoguard/geoguard/pkg/apperr"
	"github.com/geoguard/geoguard/pkg/docstore"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	return NewMetrics(registry), registry
}

func TestMetricsImplementsStoreRecorder(t *testing.T) {
	var _ docstore.Recorder = (*Metrics)(nil)
}

func TestObserveStoreOperation(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.ObserveStoreOperation("memory", "get", nil, time.Millisecond)
	m.ObserveStoreOperation("memory", "get", docstore.ErrNotFound, time.Millisecond)
	m.ObserveStoreOperation("memory", "get", errors.New("disk"), time.Millisecond)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("memory", "get")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StoreErrorsTotal.WithLabelValues("memory", "get")))
}

func TestObserveCache(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.ObserveCache("l1", true)
	m.ObserveCache("l1", false)
	m.ObserveCache("l2", false)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("l1")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues("l1")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues("l2")))
}

func TestObserveFlowAndPurge(t *testing.T) {
	m, _ := newTestMetrics(t)
	full := apperr.New(apperr.KindExhausted, "tenant_user_limit_reached", "full")

	m.ObserveFlow("signup_domain", nil)
	m.ObserveFlow("signup_domain", full)
	m.ObserveFlow("signup_domain", errors.New("boom"))
	m.ObservePurge("invitations", 4)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.OnboardingFlowsTotal.WithLabelValues("signup_domain", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OnboardingFlowsTotal.WithLabelValues("signup_domain", "tenant_user_limit_reached")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OnboardingFlowsTotal.WithLabelValues("signup_domain", "error")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.JanitorPurgedTotal.WithLabelValues("invitations")))
}

func TestUpdateDBStats(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.UpdateDBStats(sql.DBStats{InUse: 3, Idle: 2, WaitCount: 7})

	assert.Equal(t, float64(3), testutil.ToFloat64(m.DBConnectionsActive))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DBConnectionsIdle))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.DBConnectionsWaitCount))

	m.UpdateRedisStats(nil)
}

func TestHTTPMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	m, _ := newTestMetrics(t)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/tenants/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("missing"))
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tenants/"+id, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/tenants/{id}", "404")))
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	m, registry := newTestMetrics(t)
	m.ObserveFlow("signin", nil)

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `geoguard_onboarding_flows_total{flow="signin",outcome="success"} 1`)
}
