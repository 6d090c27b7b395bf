package domain

import "time"

const TokenTypeBearer = "Bearer"

// TokenPair is what a login or refresh hands back to the client.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	ExpiresIn        time.Duration // access token lifetime
	FamilyID         string
}

// Identity is the subject a token pair is minted for.
type Identity struct {
	UserID string
	Role   string
	Email  string

	// Metadata is copied into both tokens as extra claims.
	Metadata map[string]any
}
