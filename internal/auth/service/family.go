package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/aussiebroadwan/mentorlink/internal/auth/store"
	"github.com/aussiebroadwan/mentorlink/pkg/slogx"
)

const DefaultFamilyTTL = 7 * 24 * time.Hour

type FamilyConfig struct {
	// TTL applies when a caller passes a non-positive ttl.
	TTL time.Duration
}

// RefreshFamilyRegistry remembers the one refresh token currently valid for
// each (user, family). A family starts at login and moves forward on every
// refresh; presenting any earlier token is reuse.
type RefreshFamilyRegistry struct {
	kv   store.KV
	keys store.Keyspace
	cfg  FamilyConfig
}

func NewRefreshFamilyRegistry(kv store.KV, keys store.Keyspace, cfg FamilyConfig) *RefreshFamilyRegistry {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultFamilyTTL
	}
	return &RefreshFamilyRegistry{kv: kv, keys: keys, cfg: cfg}
}

func (r *RefreshFamilyRegistry) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return r.cfg.TTL
	}
	return ttl
}

func validateID(field, id string) error {
	if id == "" {
		return domain.InvalidInputError(field, "is required")
	}
	if strings.Contains(id, store.KeySeparator) {
		return domain.InvalidInputError(field, "must not contain "+store.KeySeparator)
	}
	return nil
}

func validateFamily(userID, familyID string) error {
	if err := validateID("user id", userID); err != nil {
		return err
	}
	return validateID("family id", familyID)
}

// Register starts a family pointing at tokenID.
func (r *RefreshFamilyRegistry) Register(ctx context.Context, userID, familyID, tokenID string, ttl time.Duration) error {
	if err := validateFamily(userID, familyID); err != nil {
		return err
	}
	if tokenID == "" {
		return domain.InvalidInputError("token id", "is required")
	}

	if err := r.kv.Set(ctx, r.keys.RefreshFamily(userID, familyID), tokenID, r.ttl(ttl)); err != nil {
		return fmt.Errorf("register refresh family: %w", err)
	}

	slogx.FromContext(ctx).Debug("refresh family registered", "user_id", userID, "family_id", familyID)
	return nil
}

// Rotate moves the family from presentedTokenID to nextTokenID in one atomic
// step. When the family points elsewhere the record is deleted and a
// *domain.StaleRotationError is returned. An absent family returns
// domain.ErrNotFound.
//
// Two concurrent rotations with the same token cannot both succeed: the
// loser sees the winner's token and is treated as reuse.
func (r *RefreshFamilyRegistry) Rotate(
	ctx context.Context,
	userID, familyID, presentedTokenID, nextTokenID string,
	ttl time.Duration,
) error {
	log := slogx.FromContext(ctx)

	if err := validateFamily(userID, familyID); err != nil {
		return err
	}
	if presentedTokenID == "" || nextTokenID == "" {
		return domain.InvalidInputError("token id", "is required")
	}

	key := r.keys.RefreshFamily(userID, familyID)
	swapped, err := r.kv.CompareAndSwap(ctx, key, presentedTokenID, nextTokenID, r.ttl(ttl))
	if err != nil {
		return fmt.Errorf("rotate refresh family: %w", err)
	}
	if swapped {
		log.Debug("refresh family rotated", "user_id", userID, "family_id", familyID)
		return nil
	}

	current, err := r.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Debug("refresh family not found", "user_id", userID, "family_id", familyID)
			return domain.ErrNotFound
		}
		return fmt.Errorf("read refresh family: %w", err)
	}

	if err := r.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete refresh family: %w", err)
	}

	log.Warn("stale refresh token presented, family deleted",
		"user_id", userID,
		"family_id", familyID,
		"presented_token_id", presentedTokenID,
	)
	return &domain.StaleRotationError{UserID: userID, FamilyID: familyID, CurrentTokenID: current}
}

// Get returns the family's current token id without side effects.
func (r *RefreshFamilyRegistry) Get(ctx context.Context, userID, familyID string) (string, error) {
	if err := validateFamily(userID, familyID); err != nil {
		return "", err
	}

	tokenID, err := r.kv.Get(ctx, r.keys.RefreshFamily(userID, familyID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("get refresh family: %w", err)
	}
	return tokenID, nil
}

// Revoke deletes one family. Absent families are not an error.
func (r *RefreshFamilyRegistry) Revoke(ctx context.Context, userID, familyID string) error {
	if err := validateFamily(userID, familyID); err != nil {
		return err
	}

	if err := r.kv.Delete(ctx, r.keys.RefreshFamily(userID, familyID)); err != nil {
		return fmt.Errorf("revoke refresh family: %w", err)
	}

	slogx.FromContext(ctx).Debug("refresh family revoked", "user_id", userID, "family_id", familyID)
	return nil
}

// RevokeAll deletes every family of userID and returns how many there were.
func (r *RefreshFamilyRegistry) RevokeAll(ctx context.Context, userID string) (int64, error) {
	if err := validateID("user id", userID); err != nil {
		return 0, err
	}

	n, err := r.kv.DeletePrefix(ctx, r.keys.RefreshFamilies(userID))
	if err != nil {
		return n, fmt.Errorf("revoke all refresh families: %w", err)
	}

	slogx.FromContext(ctx).Debug("refresh families revoked", "user_id", userID, "count", n)
	return n, nil
}
