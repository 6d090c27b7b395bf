package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// RefreshGrant rotates a refresh token. The presented token is spent whether
// or not the caller stores the result; presenting it again revokes the whole
// family.
func (c *SDKClient) RefreshGrant(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return c.requestToken(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
}

// AuthCodeGrant exchanges a one-time social login code for a token pair.
func (c *SDKClient) AuthCodeGrant(ctx context.Context, code string) (*TokenResponse, error) {
	return c.requestToken(ctx, url.Values{
		"grant_type": {"auth_code"},
		"code":       {code},
	})
}

func (c *SDKClient) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/token",
		strings.NewReader(data.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
	)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}
