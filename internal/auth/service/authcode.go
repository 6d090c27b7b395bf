package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/aussiebroadwan/mentorlink/internal/auth/store"
	"github.com/aussiebroadwan/mentorlink/pkg/cryptox"
	"github.com/aussiebroadwan/mentorlink/pkg/slogx"
)

const (
	DefaultAuthCodeBytes = 32
	DefaultAuthCodeTTL   = 5 * time.Minute
)

type AuthCodeConfig struct {
	// CodeBytes is the random length before hex encoding.
	CodeBytes int
	TTL       time.Duration
	Now       func() time.Time
}

// AuthCodeRegistry issues one-time codes that stand in for a token pair
// between a social login callback and the client's exchange request.
type AuthCodeRegistry struct {
	kv   store.KV
	keys store.Keyspace
	cfg  AuthCodeConfig
}

func NewAuthCodeRegistry(kv store.KV, keys store.Keyspace, cfg AuthCodeConfig) *AuthCodeRegistry {
	if cfg.CodeBytes <= 0 {
		cfg.CodeBytes = DefaultAuthCodeBytes
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultAuthCodeTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AuthCodeRegistry{kv: kv, keys: keys, cfg: cfg}
}

// Issue creates a code for userID. Only the code's fingerprint is stored.
func (r *AuthCodeRegistry) Issue(ctx context.Context, userID string) (domain.AuthCode, error) {
	log := slogx.FromContext(ctx)

	if userID == "" {
		return domain.AuthCode{}, domain.InvalidInputError("user id", "is required")
	}

	code, err := cryptox.GenerateHexToken(r.cfg.CodeBytes)
	if err != nil {
		return domain.AuthCode{}, fmt.Errorf("generate auth code: %w", err)
	}

	expiresAt := r.cfg.Now().Add(r.cfg.TTL)
	if err := r.kv.Set(ctx, r.keys.AuthCode(cryptox.FingerprintToken(code)), userID, r.cfg.TTL); err != nil {
		return domain.AuthCode{}, fmt.Errorf("store auth code: %w", err)
	}

	log.Debug("auth code issued", "user_id", userID, "expires_at", expiresAt)
	return domain.AuthCode{Code: code, UserID: userID, ExpiresAt: expiresAt}, nil
}

// Consume returns the user a code was issued for and spends it. Unknown,
// spent and expired codes all return domain.ErrNotFound.
func (r *AuthCodeRegistry) Consume(ctx context.Context, code string) (string, error) {
	log := slogx.FromContext(ctx)

	if code == "" {
		log.Debug("auth code consume rejected", "reason", "empty")
		return "", domain.ErrNotFound
	}

	userID, err := r.kv.GetAndDelete(ctx, r.keys.AuthCode(cryptox.FingerprintToken(code)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Debug("auth code consume rejected", "reason", "not_found")
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("consume auth code: %w", err)
	}

	log.Debug("auth code consumed", "user_id", userID)
	return userID, nil
}
