package domain

import "time"

// SigningKey is a JWT signing key kept in the database so tokens survive a
// restart. The private key is encrypted at rest. A retired key no longer
// signs but keeps verifying until ExpiresAt.
type SigningKey struct {
	KID                 string
	Algorithm           string
	PrivateKeyEncrypted []byte
	CreatedAt           time.Time
	RetiredAt           *time.Time // nil while the key signs
	ExpiresAt           time.Time  // zero while the key signs
}

// IsActive reports whether the key still signs.
func (k SigningKey) IsActive() bool { return k.RetiredAt == nil }

// IsExpired reports whether a retired key has outlived its grace period.
func (k SigningKey) IsExpired(now time.Time) bool {
	return !k.ExpiresAt.IsZero() && !now.Before(k.ExpiresAt)
}
