/*
Package authsdk is a Go client for the mentorlink auth service.

An SDKClient covers the unauthenticated endpoints: the token grants, the
pending link handshake, health and JWKS.

	client := authsdk.NewSDKClient("https://auth.example.com")

	// After the social provider callback hands the browser a one-time code:
	session, err := client.AuthenticateWithAuthCode(ctx, code)

A Session holds the resulting token pair. Calls made through it refresh the
access token shortly before expiry. Each refresh rotates the refresh token,
so a Session must not be copied between processes: presenting a spent
refresh token is treated as theft and revokes the whole family.

	if err := session.Logout(ctx); err != nil { ... }

Errors from the service are returned as *OAuth2Error and can be matched with
errors.Is against the predefined values:

	_, err := client.RefreshGrant(ctx, stale)
	if errors.Is(err, authsdk.ErrInvalidGrant) {
		// sign in again
	}

The same OAuth2Error values are used by the server to write responses.
*/
package authsdk
