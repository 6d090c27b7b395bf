package domain

import "time"

// AuthCode is a one-time code handed to the browser after a social login
// callback. Only its fingerprint is stored.
type AuthCode struct {
	Code      string
	UserID    string
	ExpiresAt time.Time
}
