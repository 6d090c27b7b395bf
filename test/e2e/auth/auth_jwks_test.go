package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/aussiebroadwan/mentorlink/pkg/jwtx"
)

// TestJWKSVerification verifies that access tokens issued by the service
// can be checked offline with the published JWKS:
// 1. Login through an auth code
// 2. Fetch JWKS
// 3. Verify the access token using a KeySet built from the JWKS
func TestJWKSVerification(t *testing.T) {
	env := setupAuthService(t)

	session := performLogin(t, env)

	jwksResp, err := env.client.GetJWKS(t.Context())
	require.NoError(t, err, "Should fetch JWKS successfully")
	require.NotEmpty(t, jwksResp.Keys, "JWKS should contain at least one key")

	keySet := jwtx.NewKeySet()
	for _, key := range jwksResp.Keys {
		require.NoError(t, keySet.AddJWK(key))
		t.Logf("Key ID: %s, Algorithm: %s, Use: %s", key.Kid, key.Alg, key.Use)
	}

	verifier := jwtx.NewVerifier(keySet, jwtx.VerifyOptions{Issuer: testIssuer})
	claims, err := verifier.Verify(session.AccessToken())
	require.NoError(t, err, "Access token should verify against JWKS")

	require.Equal(t, mentorID, claims[domain.ClaimSubject])
	require.Equal(t, "mentor", claims[domain.ClaimRole])
	require.NotContains(t, claims, domain.ClaimFamilyID, "Access tokens carry no family")

	_, err = jwtx.NewVerifier(keySet, jwtx.VerifyOptions{Issuer: "someone-else"}).Verify(session.AccessToken())
	require.ErrorIs(t, err, jwtx.ErrIssuer)
}
