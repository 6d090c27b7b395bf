package domain

import "time"

type Account struct {
	ID          string
	Email       string
	Role        string
	DisplayName string
	CreatedAt   time.Time
}

// SocialAccount links a provider identity to an Account.
type SocialAccount struct {
	Provider  string
	SocialID  string
	AccountID string
	Email     string
	LinkedAt  time.Time
}
