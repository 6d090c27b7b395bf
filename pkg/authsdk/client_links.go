package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// GetLink fetches a pending link without consuming it.
func (c *SDKClient) GetLink(ctx context.Context, token string) (*LinkResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/auth/links/"+url.PathEscape(token), nil, nil)
	if err != nil {
		return nil, err
	}

	var link LinkResponse
	if err := decodeJSON(resp, &link, http.StatusOK); err != nil {
		return nil, err
	}
	return &link, nil
}

// ConfirmLink accepts a pending link and returns tokens for the linked user.
func (c *SDKClient) ConfirmLink(ctx context.Context, token string) (*TokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/links/"+url.PathEscape(token)+"/confirm", nil, nil)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

// RejectLink discards a pending link.
func (c *SDKClient) RejectLink(ctx context.Context, token string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/links/"+url.PathEscape(token)+"/reject", nil, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
