package telemetry_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/mentorlink/internal/auth/service"
	"github.com/aussiebroadwan/mentorlink/internal/auth/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var _ service.Metrics = (*telemetry.AuthMetrics)(nil)

func TestAuthMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := telemetry.NewAuthMetrics(telemetry.Options{Registerer: reg})
	require.NoError(t, err)

	m.TokensIssued(service.GrantLogin)
	m.TokensIssued(service.GrantLogin)
	m.RefreshRejected(service.RejectReuse)
	m.TokenRevoked(service.ReasonRotated)
	m.AuthCodeConsumed(false)
	m.LinkResolved(service.LinkConfirmed)

	require.Equal(t, 2.0, testutil.ToFloat64(m.Issued.WithLabelValues(service.GrantLogin)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Rejected.WithLabelValues(service.RejectReuse)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Revoked.WithLabelValues(service.ReasonRotated)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Codes.WithLabelValues("false")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Links.WithLabelValues(service.LinkConfirmed)))
}

func TestAuthMetricsReRegister(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := telemetry.NewAuthMetrics(telemetry.Options{Registerer: reg})
	require.NoError(t, err)
	second, err := telemetry.NewAuthMetrics(telemetry.Options{Registerer: reg})
	require.NoError(t, err)

	first.TokensIssued(service.GrantRefresh)
	require.Equal(t, 1.0, testutil.ToFloat64(second.Issued.WithLabelValues(service.GrantRefresh)))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := telemetry.NewHTTPMetrics(telemetry.Options{Registerer: reg})
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/auth/links/{token}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := m.Middleware(mux)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/auth/links/secret-token", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	labels := prometheus.Labels{
		"method": http.MethodGet,
		"route":  "GET /v1/auth/links/{token}",
		"status": "404",
	}
	require.Equal(t, 1.0, testutil.ToFloat64(m.Requests.With(labels)))
	require.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))
}

func TestNilHTTPMetricsPassesThrough(t *testing.T) {
	var m *telemetry.HTTPMetrics

	called := false
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, called)
}
