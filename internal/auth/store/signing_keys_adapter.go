package store

import (
	"context"
	"time"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/aussiebroadwan/mentorlink/pkg/jwtx"
)

// KeyStoreAdapter lets a jwtx.KeyManager persist through SigningKeys
// without jwtx importing the domain package.
type KeyStoreAdapter struct {
	keys SigningKeys
}

var _ jwtx.KeyStore = (*KeyStoreAdapter)(nil)

func NewKeyStoreAdapter(keys SigningKeys) *KeyStoreAdapter {
	return &KeyStoreAdapter{keys: keys}
}

func (a *KeyStoreAdapter) ListSigningKeys(ctx context.Context) ([]jwtx.SigningKeyRecord, error) {
	keys, err := a.keys.ListSigningKeys(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]jwtx.SigningKeyRecord, len(keys))
	for i, k := range keys {
		records[i] = jwtx.SigningKeyRecord{
			KID:                 k.KID,
			Algorithm:           k.Algorithm,
			PrivateKeyEncrypted: k.PrivateKeyEncrypted,
			CreatedAt:           k.CreatedAt,
			RetiredAt:           k.RetiredAt,
			ExpiresAt:           k.ExpiresAt,
		}
	}
	return records, nil
}

func (a *KeyStoreAdapter) CreateSigningKey(ctx context.Context, r jwtx.SigningKeyRecord) error {
	return a.keys.CreateSigningKey(ctx, domain.SigningKey{
		KID:                 r.KID,
		Algorithm:           r.Algorithm,
		PrivateKeyEncrypted: r.PrivateKeyEncrypted,
		CreatedAt:           r.CreatedAt,
		RetiredAt:           r.RetiredAt,
		ExpiresAt:           r.ExpiresAt,
	})
}

func (a *KeyStoreAdapter) RetireSigningKey(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error {
	return a.keys.RetireSigningKey(ctx, kid, retiredAt, expiresAt)
}

func (a *KeyStoreAdapter) DeleteSigningKey(ctx context.Context, kid string) error {
	return a.keys.DeleteSigningKey(ctx, kid)
}
