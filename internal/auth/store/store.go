package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrUnavailable wraps every driver failure that is not a plain miss.
	// Callers propagate it; nothing in the auth path retries.
	ErrUnavailable = errors.New("store: unavailable")

	ErrInvalidTTL = errors.New("store: ttl must be positive")
)

// KV is an expiring key-value store. Every entry carries a TTL and reads
// never return expired entries. GetAndDelete and CompareAndSwap are atomic
// per key; there are no cross-key transactions.
type KV interface {
	// Set writes value under key, replacing any existing entry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns ErrNotFound when the key is absent or expired.
	Get(ctx context.Context, key string) (string, error)

	// Delete is a no-op for absent keys.
	Delete(ctx context.Context, key string) error

	// GetAndDelete reads and removes key in one step. Of any number of
	// concurrent callers exactly one sees the value; the rest get ErrNotFound.
	GetAndDelete(ctx context.Context, key string) (string, error)

	// CompareAndSwap replaces the value with next and resets the TTL only if
	// the current value equals expected. It reports whether the swap happened;
	// an absent key is not swapped.
	CompareAndSwap(ctx context.Context, key, expected, next string, ttl time.Duration) (bool, error)

	// DeletePrefix removes every key starting with prefix and returns how many
	// were removed.
	DeletePrefix(ctx context.Context, prefix string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Sweeper is implemented by drivers without native expiry. Housekeeping calls
// it to reclaim space; reads are already correct without it.
type Sweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Accounts resolves users for the token flows. Account management itself
// lives elsewhere; this is only what the auth path needs.
type Accounts interface {
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// CreateAccount inserts a new account. ID is provided by the caller.
	CreateAccount(ctx context.Context, a domain.Account) error

	// LinkSocialAccount records that a provider identity belongs to an
	// account. Relinking to the same account is a no-op; linking an identity
	// already owned by another account returns ErrAlreadyExists.
	LinkSocialAccount(ctx context.Context, sa domain.SocialAccount) error

	GetSocialAccount(ctx context.Context, provider, socialID string) (domain.SocialAccount, error)
}

// SigningKeys persists JWT signing keys. Only durable drivers implement it;
// the memory driver keeps its keys in process.
type SigningKeys interface {
	// CreateSigningKey inserts an active key. A duplicate KID returns
	// ErrAlreadyExists.
	CreateSigningKey(ctx context.Context, key domain.SigningKey) error

	// ListSigningKeys returns every stored key, active and retired, oldest
	// first.
	ListSigningKeys(ctx context.Context) ([]domain.SigningKey, error)

	// RetireSigningKey stops kid from signing. It keeps verifying until
	// expiresAt. An unknown KID returns ErrNotFound.
	RetireSigningKey(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error

	// DeleteSigningKey removes kid. Deleting an unknown KID is not an error.
	DeleteSigningKey(ctx context.Context, kid string) error
}

// ValidateTTL returns ErrInvalidTTL for non-positive durations.
func ValidateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
