package authsdk

import (
	"github.com/aussiebroadwan/mentorlink/pkg/jwtx"
)

// ErrorResponse is the OAuth2 style error body returned by every endpoint.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// TokenResponse is returned by POST /v1/auth/token and by a confirmed link.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`

	// RefreshExpiresIn is the refresh token lifetime in seconds.
	RefreshExpiresIn int `json:"refresh_expires_in,omitempty"`
}

// LinkResponse describes a pending social account link awaiting the user's
// decision. Provider credentials are never returned.
type LinkResponse struct {
	UserID      string         `json:"user_id"`
	Provider    string         `json:"provider"`
	SocialID    string         `json:"social_id"`
	Email       string         `json:"email,omitempty"`
	ProfileData map[string]any `json:"profile_data,omitempty"`
	ExpiresAt   int64          `json:"expires_at"` // epoch seconds
}

// LogoutAllResponse reports how many refresh families were revoked.
type LogoutAllResponse struct {
	RevokedFamilies int64 `json:"revoked_families"`
}

// HealthResponse is returned by /livez and /readyz. Checks is only present on
// /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks holds per dependency readiness.
type HealthChecks struct {
	Store  string `json:"store"`
	Signer string `json:"signer"`
}

// JWKSResponse contains the public keys used to verify tokens.
type JWKSResponse jwtx.JWKS
