package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/aussiebroadwan/mentorlink/internal/auth/store"
	"github.com/aussiebroadwan/mentorlink/pkg/cryptox"
	"github.com/aussiebroadwan/mentorlink/pkg/slogx"
)

const (
	DefaultPendingLinkTTL = 10 * time.Minute
	pendingLinkTokenBytes = cryptox.TokenSize256
)

type PendingLinkConfig struct {
	TTL time.Duration

	// Sealer encrypts the provider's access and refresh tokens at rest. A nil
	// Sealer gets a process-local random key.
	Sealer *cryptox.Sealer

	Now func() time.Time
}

// PendingLinkRegistry holds link proposals while the user decides. Peek reads
// without consuming; Take consumes atomically so a link is confirmed or
// rejected exactly once.
type PendingLinkRegistry struct {
	kv   store.KV
	keys store.Keyspace
	cfg  PendingLinkConfig
}

func NewPendingLinkRegistry(kv store.KV, keys store.Keyspace, cfg PendingLinkConfig) (*PendingLinkRegistry, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultPendingLinkTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sealer == nil {
		sealer, err := cryptox.NewSealer(nil)
		if err != nil {
			return nil, err
		}
		cfg.Sealer = sealer
	}
	return &PendingLinkRegistry{kv: kv, keys: keys, cfg: cfg}, nil
}

// NewToken returns a fresh opaque link token.
func (r *PendingLinkRegistry) NewToken() (string, error) {
	return cryptox.GenerateHexToken(pendingLinkTokenBytes)
}

func (r *PendingLinkRegistry) key(token string) string {
	return r.keys.PendingLink(cryptox.FingerprintToken(token))
}

// Create stores link under token. A non-positive ttl uses the configured
// default. CreatedAt and ExpiresAt are set here and returned.
func (r *PendingLinkRegistry) Create(ctx context.Context, token string, link domain.PendingLink, ttl time.Duration) (domain.PendingLink, error) {
	if token == "" {
		return domain.PendingLink{}, domain.InvalidInputError("link token", "is required")
	}
	if err := link.Validate(); err != nil {
		return domain.PendingLink{}, err
	}
	if ttl <= 0 {
		ttl = r.cfg.TTL
	}

	now := r.cfg.Now().UTC()
	link.CreatedAt = now
	link.ExpiresAt = now.Add(ttl)

	key := r.key(token)
	raw, err := r.encode(key, link)
	if err != nil {
		return domain.PendingLink{}, err
	}

	if err := r.kv.Set(ctx, key, raw, ttl); err != nil {
		return domain.PendingLink{}, fmt.Errorf("store pending link: %w", err)
	}

	slogx.FromContext(ctx).Debug("pending link created",
		"user_id", link.UserID,
		"provider", link.Provider,
		"expires_at", link.ExpiresAt,
	)
	return link, nil
}

// Peek returns the link without consuming it.
func (r *PendingLinkRegistry) Peek(ctx context.Context, token string) (domain.PendingLink, error) {
	if token == "" {
		return domain.PendingLink{}, domain.ErrNotFound
	}

	key := r.key(token)
	raw, err := r.kv.Get(ctx, key)
	if err != nil {
		return domain.PendingLink{}, r.mapErr("read pending link", err)
	}
	return r.decode(key, raw)
}

// Get is Peek.
func (r *PendingLinkRegistry) Get(ctx context.Context, token string) (domain.PendingLink, error) {
	return r.Peek(ctx, token)
}

// Take returns the link and deletes it in one step. Of concurrent callers
// exactly one succeeds.
func (r *PendingLinkRegistry) Take(ctx context.Context, token string) (domain.PendingLink, error) {
	if token == "" {
		return domain.PendingLink{}, domain.ErrNotFound
	}

	key := r.key(token)
	raw, err := r.kv.GetAndDelete(ctx, key)
	if err != nil {
		return domain.PendingLink{}, r.mapErr("take pending link", err)
	}

	slogx.FromContext(ctx).Debug("pending link taken")
	return r.decode(key, raw)
}

// Delete removes the link. Absent links are not an error.
func (r *PendingLinkRegistry) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := r.kv.Delete(ctx, r.key(token)); err != nil {
		return fmt.Errorf("delete pending link: %w", err)
	}
	return nil
}

func (r *PendingLinkRegistry) mapErr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// The record key is the associated data, so a sealed value copied to another
// record fails to open.
func (r *PendingLinkRegistry) encode(key string, link domain.PendingLink) (string, error) {
	var err error
	if link.AccessToken, err = r.cfg.Sealer.Seal(link.AccessToken, key); err != nil {
		return "", fmt.Errorf("seal pending link: %w", err)
	}
	if link.RefreshToken, err = r.cfg.Sealer.Seal(link.RefreshToken, key); err != nil {
		return "", fmt.Errorf("seal pending link: %w", err)
	}

	raw, err := json.Marshal(link)
	if err != nil {
		return "", fmt.Errorf("encode pending link: %w", err)
	}
	return string(raw), nil
}

func (r *PendingLinkRegistry) decode(key, raw string) (domain.PendingLink, error) {
	var link domain.PendingLink
	if err := json.Unmarshal([]byte(raw), &link); err != nil {
		return domain.PendingLink{}, fmt.Errorf("decode pending link: %w", err)
	}

	var err error
	if link.AccessToken, err = r.cfg.Sealer.Open(link.AccessToken, key); err != nil {
		return domain.PendingLink{}, fmt.Errorf("open pending link: %w", err)
	}
	if link.RefreshToken, err = r.cfg.Sealer.Open(link.RefreshToken, key); err != nil {
		return domain.PendingLink{}, fmt.Errorf("open pending link: %w", err)
	}
	return link, nil
}
