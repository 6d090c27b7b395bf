package auth_test

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/mentorlink/pkg/authsdk"
)

// strictRequests matches the burst of httpx.DefaultRateLimits().Strict.
const strictRequests = 10

func postRefresh(t *testing.T, baseURL, refreshToken string) *http.Response {
	t.Helper()

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	req, err := http.NewRequest(http.MethodPost, baseURL+"/v1/auth/token", strings.NewReader(data.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// TestRateLimitTokenEndpoint verifies that /v1/auth/token is rate limited
// by IP with the strict profile.
func TestRateLimitTokenEndpoint(t *testing.T) {
	env := setupAuthService(t)

	var lastErr error
	for i := range strictRequests + 1 {
		_, err := env.client.RefreshGrant(t.Context(), "not-a-token")
		if i < strictRequests {
			var oauthErr *authsdk.OAuth2Error
			require.ErrorAs(t, err, &oauthErr)
			require.NotEqual(t, http.StatusTooManyRequests, oauthErr.StatusCode, "Should not be rate limited yet (request %d)", i+1)
		} else {
			lastErr = err
		}
	}

	var oauthErr *authsdk.OAuth2Error
	require.ErrorAs(t, lastErr, &oauthErr)
	require.Equal(t, http.StatusTooManyRequests, oauthErr.StatusCode)
	require.Equal(t, authsdk.ErrorCodeRateLimited, oauthErr.Code)
}

// TestRateLimitResponseFormat checks the 429 headers and JSON body.
func TestRateLimitResponseFormat(t *testing.T) {
	env := setupAuthService(t)

	for range strictRequests {
		resp := postRefresh(t, env.baseURL, "not-a-token")
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	resp := postRefresh(t, env.baseURL, "not-a-token")
	defer resp.Body.Close()

	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"), "Should include Retry-After header")
	require.Equal(t, fmt.Sprint(strictRequests), resp.Header.Get("X-RateLimit-Limit"))
	require.NotEmpty(t, resp.Header.Get("X-RateLimit-Window"))
	require.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "rate_limit_exceeded")
	require.Contains(t, string(body), "error_description")
}

// TestRateLimitLinkConfirmEndpoint verifies that guessing link tokens is
// throttled.
func TestRateLimitLinkConfirmEndpoint(t *testing.T) {
	env := setupAuthService(t)

	var lastErr error
	for range strictRequests + 1 {
		_, lastErr = env.client.ConfirmLink(t.Context(), "guessed-link-token")
	}

	var oauthErr *authsdk.OAuth2Error
	require.ErrorAs(t, lastErr, &oauthErr)
	require.Equal(t, http.StatusTooManyRequests, oauthErr.StatusCode)
}

// TestRateLimitConcurrentRequests verifies the public JWKS endpoint takes a
// burst of concurrent requests.
func TestRateLimitConcurrentRequests(t *testing.T) {
	env := setupAuthService(t)

	httpClient := &http.Client{Timeout: 5 * time.Second}

	const numRequests = 20
	results := make(chan error, numRequests)

	for i := range numRequests {
		go func(reqNum int) {
			resp, err := httpClient.Get(env.baseURL + "/.well-known/jwks.json")
			if err != nil {
				results <- fmt.Errorf("request %d failed: %w", reqNum, err)
				return
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)

			if resp.StatusCode != http.StatusOK {
				results <- fmt.Errorf("request %d got status %d", reqNum, resp.StatusCode)
				return
			}
			results <- nil
		}(i)
	}

	for range numRequests {
		require.NoError(t, <-results)
	}
}
