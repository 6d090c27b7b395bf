package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/aussiebroadwan/mentorlink/internal/auth/store"
	"github.com/aussiebroadwan/mentorlink/pkg/slogx"
)

// Revocation reasons stored with blacklist entries.
const (
	ReasonLogout    = "logout"
	ReasonLogoutAll = "logout_all"
	ReasonRotated   = "rotated"
	ReasonReuse     = "reuse"
)

type BlacklistConfig struct {
	// MaxTTL caps how long an entry is kept. Zero means no cap beyond the
	// token's own remaining lifetime.
	MaxTTL time.Duration
}

// TokenBlacklist marks token ids revoked until the token would have expired
// anyway. Entries are never deleted explicitly.
type TokenBlacklist struct {
	kv      store.KV
	keys    store.Keyspace
	cfg     BlacklistConfig
	metrics Metrics
}

func NewTokenBlacklist(kv store.KV, keys store.Keyspace, cfg BlacklistConfig, metrics Metrics) *TokenBlacklist {
	return &TokenBlacklist{kv: kv, keys: keys, cfg: cfg, metrics: orNoop(metrics)}
}

// Revoke blacklists tokenID for remaining. A token with no lifetime left is
// already dead and is not recorded.
func (b *TokenBlacklist) Revoke(ctx context.Context, tokenID string, remaining time.Duration, reason string) error {
	if tokenID == "" {
		return domain.InvalidInputError("token id", "is required")
	}
	if remaining <= 0 {
		return nil
	}
	if b.cfg.MaxTTL > 0 && remaining > b.cfg.MaxTTL {
		remaining = b.cfg.MaxTTL
	}
	if reason == "" {
		reason = "revoked"
	}

	if err := b.kv.Set(ctx, b.keys.Blacklist(tokenID), reason, remaining); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}

	b.metrics.TokenRevoked(reason)
	slogx.FromContext(ctx).Debug("token blacklisted", "token_id", tokenID, "reason", reason, "ttl", remaining)
	return nil
}

// IsRevoked reports whether tokenID is blacklisted.
func (b *TokenBlacklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, revoked, err := b.Reason(ctx, tokenID)
	return revoked, err
}

// Reason returns why tokenID was blacklisted, and false when it is not.
func (b *TokenBlacklist) Reason(ctx context.Context, tokenID string) (string, bool, error) {
	if tokenID == "" {
		return "", false, domain.InvalidInputError("token id", "is required")
	}

	reason, err := b.kv.Get(ctx, b.keys.Blacklist(tokenID))
	switch {
	case err == nil:
		return reason, true, nil
	case errors.Is(err, store.ErrNotFound):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("check blacklist: %w", err)
	}
}
