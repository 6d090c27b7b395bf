package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/mentorlink/pkg/jwtx"
)

// KeyRotationService replaces the signing keys of a KeyManager on a
// schedule. Retired keys keep verifying for GracePeriod, which must cover
// the longest token lifetime, and are then dropped from JWKS. When the
// KeyManager is persistent every step is written to its store, so a restart
// mid-grace still verifies old tokens.
type KeyRotationService struct {
	KeyManager  *jwtx.KeyManager
	Logger      *slog.Logger
	Interval    time.Duration
	GracePeriod time.Duration
	Now         func() time.Time

	mu      sync.Mutex
	started bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// RetiredKey is a public key that no longer signs but still verifies.
type RetiredKey = jwtx.RetiredKey

// RotateKeyResult reports one rotation.
type RotateKeyResult struct {
	NewKID     string
	Retired    []RetiredKey
	ActiveKeys int
}

func NewKeyRotationService(km *jwtx.KeyManager, logger *slog.Logger, interval, grace time.Duration) *KeyRotationService {
	if logger == nil {
		logger = slog.Default()
	}
	if grace <= 0 {
		grace = DefaultRefreshTTL
	}

	return &KeyRotationService{
		KeyManager:  km,
		Logger:      logger,
		Interval:    interval,
		GracePeriod: grace,
		Now:         time.Now,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// RotateKey adds a fresh signing key and retires every key that was active
// before it.
func (s *KeyRotationService) RotateKey(ctx context.Context) (*RotateKeyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.KeyManager.Signers()
	next, err := s.KeyManager.GenerateSigner(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to add signing key: %w", err)
	}

	now := s.Now()
	expiresAt := now.Add(s.GracePeriod)
	result := &RotateKeyResult{NewKID: next.KID()}

	for _, signer := range previous {
		if err := s.KeyManager.RetireSigner(ctx, signer.KID(), expiresAt); err != nil {
			return nil, fmt.Errorf("failed to retire key %s: %w", signer.KID(), err)
		}
		result.Retired = append(result.Retired, RetiredKey{KID: signer.KID(), RetiredAt: now, ExpiresAt: expiresAt})
	}
	result.ActiveKeys = s.KeyManager.NumSigners()

	s.Logger.Info("rotated signing keys",
		"new_kid", result.NewKID,
		"retired", len(result.Retired),
		"active_keys", result.ActiveKeys,
	)
	return result, nil
}

// PruneRetired drops retired keys whose grace period has passed and returns
// how many were removed.
func (s *KeyRotationService) PruneRetired(ctx context.Context) (int, error) {
	removed, err := s.KeyManager.PruneRetired(ctx, s.Now())
	if removed > 0 {
		s.Logger.Info("removed retired signing keys", "count", removed)
	}
	return removed, err
}

// Retired lists keys waiting out their grace period.
func (s *KeyRotationService) Retired() []RetiredKey {
	return s.KeyManager.Retired()
}

// Start rotates once per Interval until Stop. A non-positive Interval
// disables rotation.
func (s *KeyRotationService) Start() {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	if s.Interval <= 0 {
		close(s.doneCh)
		s.Logger.Info("key rotation disabled")
		return
	}
	go s.run()
	s.Logger.Info("key rotation service started", "interval", s.Interval, "grace_period", s.GracePeriod)
}

// Stop is a no-op before Start.
func (s *KeyRotationService) Stop() {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	<-s.doneCh
}

func (s *KeyRotationService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx := context.Background()
			if _, err := s.RotateKey(ctx); err != nil {
				s.Logger.Error("key rotation failed", "error", err)
			}
			if _, err := s.PruneRetired(ctx); err != nil {
				s.Logger.Error("pruning retired keys failed", "error", err)
			}
		case <-s.stopCh:
			return
		}
	}
}
