package auth_test

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLivezEndpoint verifies the liveness check endpoint.
func TestLivezEndpoint(t *testing.T) {
	env := setupAuthService(t)

	health, err := env.client.GetLiveness(t.Context())
	assertHealthy(t, health, err)
}

// TestReadyzEndpoint verifies readiness pings both Redis and the account
// database.
func TestReadyzEndpoint(t *testing.T) {
	env := setupAuthService(t)

	health, err := env.client.GetReadiness(t.Context())
	assertHealthy(t, health, err)
}

// TestMetricsEndpoint checks that auth counters move after a login.
func TestMetricsEndpoint(t *testing.T) {
	env := setupAuthService(t)
	performLogin(t, env)

	resp, err := http.Get(env.baseURL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `mentorlink_auth_tokens_issued_total{grant="auth_code"} 1`)
	require.Contains(t, string(body), `mentorlink_auth_auth_codes_consumed_total{ok="true"} 1`)
}
