package auth_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/mentorlink/internal/auth/app"
	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/aussiebroadwan/mentorlink/pkg/authsdk"
	"github.com/aussiebroadwan/mentorlink/pkg/slogx"
)

/*
 * Common helpers for the auth service end-to-end tests. Each test gets a
 * fresh Redis container and an in-process auth service wired to it exactly
 * as cmd/auth wires it.
 */

const (
	redisImage = "redis:7-alpine"
	testIssuer = "mentorlink-auth"

	mentorID    = "user-mentor"
	mentorEmail = "mentor@example.com"
)

type authEnv struct {
	baseURL string
	client  *authsdk.SDKClient
	app     *app.Application
}

// setupRedisContainer starts Redis and returns its address.
func setupRedisContainer(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        redisImage,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, mappedPort.Port())
}

// setupAuthService starts the auth service against a fresh Redis with the
// default rate limits and seeds one mentor account.
func setupAuthService(t *testing.T) *authEnv {
	t.Helper()

	t.Setenv("AUTH_KEY_ENCRYPTION_KEY", "e2e-test-master-key")
	cfg, err := app.LoadConfig()
	require.NoError(t, err)
	cfg.StoreDriver = app.StoreDriverRedis
	cfg.Redis.Addr = setupRedisContainer(t)
	cfg.DatabaseFile = filepath.Join(t.TempDir(), "auth.db")
	cfg.NumKeys = 1
	cfg.Env = "test"

	reg := prometheus.NewRegistry()
	application, err := app.NewWithOptions(cfg, app.Options{
		Logger:     slogx.Discard(),
		Registerer: reg,
		Gatherer:   reg,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(srv.Close)

	require.NoError(t, application.Accounts().CreateAccount(context.Background(), domain.Account{
		ID:        mentorID,
		Email:     mentorEmail,
		Role:      "mentor",
		CreatedAt: time.Now(),
	}))

	return &authEnv{
		baseURL: srv.URL,
		client:  authsdk.NewSDKClient(srv.URL),
		app:     application,
	}
}

// performLogin plays the social callback: issue an auth code server-side
// and exchange it over HTTP like the browser would.
func performLogin(t *testing.T, env *authEnv) *authsdk.Session {
	t.Helper()
	ctx := t.Context()

	code, err := env.app.Social().IssueAuthCode(ctx, mentorID)
	require.NoError(t, err)

	session, err := env.client.AuthenticateWithAuthCode(ctx, code.Code)
	require.NoError(t, err, "Login should succeed")
	require.NotNil(t, session)

	return session
}

// assertTokenResponse verifies a token response has all required fields.
func assertTokenResponse(t *testing.T, resp *authsdk.TokenResponse) {
	t.Helper()
	require.NotNil(t, resp)
	require.NotEmpty(t, resp.AccessToken, "Access token should not be empty")
	require.NotEmpty(t, resp.RefreshToken, "Refresh token should not be empty")
	require.Equal(t, "Bearer", resp.TokenType, "Token type should be Bearer")
	require.Positive(t, resp.ExpiresIn)
}

// assertUnauthorized checks for a 401 with the given OAuth2 error code.
func assertUnauthorized(t *testing.T, err error, code, context string) {
	t.Helper()
	require.Error(t, err, context)

	var oauthErr *authsdk.OAuth2Error
	require.ErrorAs(t, err, &oauthErr, context)
	require.Equal(t, 401, oauthErr.StatusCode, context)
	require.Equal(t, code, oauthErr.Code, context)
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
