package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/mentorlink/pkg/authsdk"
)

// TestLoginRefresh covers login through an auth code followed by a rotation.
func TestLoginRefresh(t *testing.T) {
	env := setupAuthService(t)

	session := performLogin(t, env)
	oldAccessToken := session.AccessToken()
	oldRefreshToken := session.RefreshToken()

	tokenResp, err := env.client.RefreshGrant(t.Context(), oldRefreshToken)
	require.NoError(t, err)
	assertTokenResponse(t, tokenResp)

	require.NotEqual(t, oldAccessToken, tokenResp.AccessToken, "Access token should be rotated")
	require.NotEqual(t, oldRefreshToken, tokenResp.RefreshToken, "Refresh token should be rotated")
}

// TestRefreshReuseRevokesFamily replays a rotated refresh token and checks
// that the whole family, including the newest token, is dead afterwards.
func TestRefreshReuseRevokesFamily(t *testing.T) {
	env := setupAuthService(t)
	ctx := t.Context()

	session := performLogin(t, env)
	first := session.RefreshToken()

	rotated, err := env.client.RefreshGrant(ctx, first)
	require.NoError(t, err)

	_, err = env.client.RefreshGrant(ctx, first)
	assertUnauthorized(t, err, authsdk.ErrorCodeInvalidGrant, "Replayed refresh token should be rejected")

	_, err = env.client.RefreshGrant(ctx, rotated.RefreshToken)
	assertUnauthorized(t, err, authsdk.ErrorCodeInvalidGrant, "Family should be revoked after reuse")
}

// TestAuthCodeSingleUse exchanges the same code twice.
func TestAuthCodeSingleUse(t *testing.T) {
	env := setupAuthService(t)
	ctx := t.Context()

	code, err := env.app.Social().IssueAuthCode(ctx, mentorID)
	require.NoError(t, err)

	_, err = env.client.AuthCodeGrant(ctx, code.Code)
	require.NoError(t, err)

	_, err = env.client.AuthCodeGrant(ctx, code.Code)
	assertUnauthorized(t, err, authsdk.ErrorCodeInvalidGrant, "Auth code must not be exchangeable twice")
}

// TestLogout revokes the session and checks neither token still works.
func TestLogout(t *testing.T) {
	env := setupAuthService(t)
	ctx := t.Context()

	session := performLogin(t, env)
	refreshToken := session.RefreshToken()

	require.NoError(t, session.Logout(ctx))

	_, err := env.client.RefreshGrant(ctx, refreshToken)
	assertUnauthorized(t, err, authsdk.ErrorCodeInvalidGrant, "Refresh after logout should fail")
}

// TestLogoutAll ends every session of the user.
func TestLogoutAll(t *testing.T) {
	env := setupAuthService(t)
	ctx := t.Context()

	phone := performLogin(t, env)
	laptop := performLogin(t, env)
	laptopRefresh := laptop.RefreshToken()

	resp, err := phone.LogoutAll(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, resp.RevokedFamilies)

	_, err = env.client.RefreshGrant(ctx, laptopRefresh)
	assertUnauthorized(t, err, authsdk.ErrorCodeInvalidGrant, "Other sessions should be revoked")
}
