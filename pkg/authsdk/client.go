package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient talks to the mentorlink auth service. Unauthenticated calls live
// on the client; calls that need an access token live on Session.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a client with a 10 second request timeout.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// AuthenticateWithAuthCode exchanges a social login code for a Session.
func (c *SDKClient) AuthenticateWithAuthCode(ctx context.Context, code string) (*Session, error) {
	tokenResp, err := c.AuthCodeGrant(ctx, code)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokenResp), nil
}

// AuthenticateWithRefreshToken creates a Session from a stored refresh token.
// The token is rotated immediately.
func (c *SDKClient) AuthenticateWithRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	tokenResp, err := c.RefreshGrant(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokenResp), nil
}

// NewSessionFromTokens wraps tokens obtained elsewhere, for example from a
// confirmed link.
func (c *SDKClient) NewSessionFromTokens(tokenResp *TokenResponse) *Session {
	return newSession(c, tokenResp)
}
