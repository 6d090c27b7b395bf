package jwtx

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/mentorlink/pkg/cryptox"
)

// SigningKeyRecord is a stored signing key. It mirrors the store's row so
// this package does not depend on the domain layer.
type SigningKeyRecord struct {
	KID                 string
	Algorithm           string
	PrivateKeyEncrypted []byte
	CreatedAt           time.Time
	RetiredAt           *time.Time // nil while the key signs
	ExpiresAt           time.Time  // zero while the key signs
}

// KeyStore is the persistence a KeyManager needs to survive restarts.
type KeyStore interface {
	ListSigningKeys(ctx context.Context) ([]SigningKeyRecord, error)
	CreateSigningKey(ctx context.Context, key SigningKeyRecord) error
	RetireSigningKey(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error
	DeleteSigningKey(ctx context.Context, kid string) error
}

// PersistentKeyManagerOptions configures NewPersistentKeyManager.
type PersistentKeyManagerOptions struct {
	KeyManagerOptions

	Store     KeyStore
	Encrypter *cryptox.KeyEncrypter

	// GracePeriod is how long a key retired at startup keeps verifying. It
	// must cover the longest token lifetime. Zero means 7 days.
	GracePeriod time.Duration
}

// NewPersistentKeyManager loads the stored keys and tops the active set up
// to NumKeys. On load:
//   - retired keys past their expiry are deleted
//   - other retired keys verify but do not sign
//   - active keys of another algorithm are retired for GracePeriod
//
// A key that fails to decrypt aborts startup; silently replacing it would
// log every user out.
func NewPersistentKeyManager(ctx context.Context, opts PersistentKeyManagerOptions) (*KeyManager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("jwtx: Store is required for persistent key manager")
	}
	if opts.Encrypter == nil {
		return nil, fmt.Errorf("jwtx: Encrypter is required for persistent key manager")
	}
	base, err := opts.KeyManagerOptions.withDefaults()
	if err != nil {
		return nil, err
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = 7 * 24 * time.Hour
	}

	records, err := opts.Store.ListSigningKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to load keys: %w", err)
	}

	// Both algorithms verify so keys left over from a switch keep working.
	km := newKeyManager(base, nil)
	km.keys, km.encrypter = opts.Store, opts.Encrypter
	now := base.Now()

	for _, rec := range records {
		if !rec.ExpiresAt.IsZero() && !now.Before(rec.ExpiresAt) {
			if err := opts.Store.DeleteSigningKey(ctx, rec.KID); err != nil {
				return nil, fmt.Errorf("jwtx: failed to delete expired key %s: %w", rec.KID, err)
			}
			continue
		}

		pemBytes, err := opts.Encrypter.DecryptPrivateKey(rec.PrivateKeyEncrypted, rec.KID)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to decrypt key %s: %w", rec.KID, err)
		}
		signer, err := signerFromPEM(rec.Algorithm, rec.KID, pemBytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to load key %s: %w", rec.KID, err)
		}
		if err := km.KeySet.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: failed to publish key %s: %w", rec.KID, err)
		}

		switch {
		case rec.RetiredAt != nil:
			km.retired = append(km.retired, RetiredKey{KID: rec.KID, RetiredAt: *rec.RetiredAt, ExpiresAt: rec.ExpiresAt})
		case rec.Algorithm != base.Algorithm:
			expiresAt := now.Add(opts.GracePeriod)
			if err := opts.Store.RetireSigningKey(ctx, rec.KID, now, expiresAt); err != nil {
				return nil, fmt.Errorf("jwtx: failed to retire key %s: %w", rec.KID, err)
			}
			km.retired = append(km.retired, RetiredKey{KID: rec.KID, RetiredAt: now, ExpiresAt: expiresAt})
		default:
			km.signers = append(km.signers, signer)
		}
	}

	for len(km.signers) < base.NumKeys {
		if _, err := km.GenerateSigner(ctx); err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate key: %w", err)
		}
	}
	return km, nil
}
