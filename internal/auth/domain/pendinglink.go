package domain

import "time"

// PendingLink proposes linking a social identity to an existing account and
// waits for the user to confirm or reject it.
type PendingLink struct {
	UserID       string         `json:"user_id"`
	Provider     string         `json:"provider"`
	SocialID     string         `json:"social_id"`
	AccessToken  string         `json:"access_token,omitempty"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	ProfileData  map[string]any `json:"profile_data,omitempty"`
	Email        string         `json:"email,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	ExpiresAt    time.Time      `json:"expires_at"`
}

// Validate checks the fields a link cannot be confirmed without.
func (l PendingLink) Validate() error {
	switch {
	case l.UserID == "":
		return InvalidInputError("user_id", "is required")
	case l.Provider == "":
		return InvalidInputError("provider", "is required")
	case l.SocialID == "":
		return InvalidInputError("social_id", "is required")
	}
	return nil
}
