package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/aussiebroadwan/mentorlink/pkg/idx"
	"github.com/aussiebroadwan/mentorlink/pkg/slogx"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

type TokenConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

// TokenService composes the signer, the family registry and the blacklist
// into the login, refresh and logout flows.
//
// Access tokens carry no family id. Refresh tokens carry the family id (fid)
// plus the role, email and metadata needed to mint the next access token
// without an account lookup.
type TokenService struct {
	Signer    Signer
	Families  *RefreshFamilyRegistry
	Blacklist *TokenBlacklist
	Metrics   Metrics

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

func NewTokenService(signer Signer, families *RefreshFamilyRegistry, blacklist *TokenBlacklist, metrics Metrics, cfg TokenConfig) *TokenService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TokenService{
		Signer:     signer,
		Families:   families,
		Blacklist:  blacklist,
		Metrics:    orNoop(metrics),
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
		Now:        cfg.Now,
	}
}

// Login mints a token pair in a new family.
func (s *TokenService) Login(ctx context.Context, id domain.Identity) (*domain.TokenPair, error) {
	return s.login(ctx, id, GrantLogin)
}

func (s *TokenService) login(ctx context.Context, id domain.Identity, grant string) (*domain.TokenPair, error) {
	if err := validateID("user id", id.UserID); err != nil {
		return nil, err
	}

	now := s.Now()
	familyID := idx.NewAt(now).String()

	pair, refresh, err := s.mint(id, familyID, now)
	if err != nil {
		return nil, err
	}

	if err := s.Families.Register(ctx, id.UserID, familyID, refresh.TokenID(), s.RefreshTTL); err != nil {
		return nil, err
	}

	s.Metrics.TokensIssued(grant)
	slogx.FromContext(ctx).Info("token pair issued", "user_id", id.UserID, "family_id", familyID, "grant", grant)
	return pair, nil
}

// Refresh rotates a refresh token. The presented token is spent: on success
// it is blacklisted, and presenting it again revokes the whole family.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	log := slogx.FromContext(ctx)
	now := s.Now()

	presented, err := s.verify(refreshToken)
	if err != nil {
		s.Metrics.RefreshRejected(RejectInvalid)
		return nil, err
	}
	if !presented.IsRefresh() {
		s.Metrics.RefreshRejected(RejectInvalid)
		return nil, fmt.Errorf("%w: not a refresh token", domain.ErrInvalidToken)
	}

	// A token retired by rotation still goes through Rotate so that
	// presenting it again is handled as reuse rather than a plain revocation.
	reason, revoked, err := s.Blacklist.Reason(ctx, presented.TokenID())
	if err != nil {
		return nil, err
	}
	replayed := revoked && reason == ReasonRotated
	if revoked && !replayed {
		s.Metrics.RefreshRejected(RejectRevoked)
		return nil, domain.ErrTokenRevoked
	}

	id := domain.Identity{
		UserID:   presented.Subject(),
		Role:     presented.Role(),
		Email:    presented.Email(),
		Metadata: presented.Metadata(),
	}
	pair, next, err := s.mint(id, presented.FamilyID(), now)
	if err != nil {
		return nil, err
	}

	err = s.Families.Rotate(ctx, id.UserID, presented.FamilyID(), presented.TokenID(), next.TokenID(), s.RefreshTTL)
	var stale *domain.StaleRotationError
	switch {
	case err == nil:
	case errors.As(err, &stale):
		s.Metrics.RefreshRejected(RejectReuse)
		return nil, s.revokeReusedFamily(ctx, presented, stale, now)
	case errors.Is(err, domain.ErrNotFound) && replayed:
		s.Metrics.RefreshRejected(RejectReuse)
		return nil, fmt.Errorf("%w: family already revoked", domain.ErrRefreshReuseDetected)
	case errors.Is(err, domain.ErrNotFound):
		s.Metrics.RefreshRejected(RejectRevoked)
		return nil, domain.ErrTokenRevoked
	default:
		return nil, err
	}

	if err := s.Blacklist.Revoke(ctx, presented.TokenID(), presented.RemainingTTL(now), ReasonRotated); err != nil {
		return nil, err
	}

	s.Metrics.TokensIssued(GrantRefresh)
	log.Debug("refresh token rotated", "user_id", id.UserID, "family_id", presented.FamilyID())
	return pair, nil
}

// revokeReusedFamily runs after the registry has deleted the family. It
// blacklists both the replayed token and the one the family last pointed at,
// since either may be in an attacker's hands.
func (s *TokenService) revokeReusedFamily(
	ctx context.Context,
	presented domain.TokenPayload,
	stale *domain.StaleRotationError,
	now time.Time,
) error {
	errs := []error{stale}
	if err := s.Blacklist.Revoke(ctx, presented.TokenID(), presented.RemainingTTL(now), ReasonReuse); err != nil {
		errs = append(errs, err)
	}
	if stale.CurrentTokenID != "" {
		// The current token's expiry is unknown here; the family TTL bounds it.
		if err := s.Blacklist.Revoke(ctx, stale.CurrentTokenID, s.RefreshTTL, ReasonReuse); err != nil {
			errs = append(errs, err)
		}
	}

	slogx.FromContext(ctx).Info("reused refresh family blacklisted",
		"user_id", stale.UserID,
		"family_id", stale.FamilyID,
	)
	return errors.Join(errs...)
}

// Logout ends one session: the access token is blacklisted and the refresh
// token's family revoked. The refresh token is required and must belong to
// the access token's user; nothing is revoked when either check fails.
func (s *TokenService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	log := slogx.FromContext(ctx)
	now := s.Now()

	access, err := s.Authenticate(ctx, accessToken)
	if err != nil {
		return err
	}
	if refreshToken == "" {
		return domain.InvalidInputError("refresh token", "is required")
	}

	refresh, err := s.verify(refreshToken)
	if err != nil {
		return err
	}
	if !refresh.IsRefresh() || refresh.Subject() != access.Subject() {
		log.Warn("logout rejected refresh token for another subject or kind", "user_id", access.Subject())
		return domain.InvalidInputError("refresh token", "does not belong to this session")
	}

	if err := s.Blacklist.Revoke(ctx, access.TokenID(), access.RemainingTTL(now), ReasonLogout); err != nil {
		return err
	}
	if err := s.Blacklist.Revoke(ctx, refresh.TokenID(), refresh.RemainingTTL(now), ReasonLogout); err != nil {
		return err
	}
	if err := s.Families.Revoke(ctx, refresh.Subject(), refresh.FamilyID()); err != nil {
		return err
	}

	log.Info("logged out", "user_id", access.Subject(), "family_id", refresh.FamilyID())
	return nil
}

// LogoutAll blacklists the access token and revokes every family of its
// user. Access tokens already handed to other devices stay valid until they
// expire.
func (s *TokenService) LogoutAll(ctx context.Context, accessToken string) (int64, error) {
	access, err := s.Authenticate(ctx, accessToken)
	if err != nil {
		return 0, err
	}

	if err := s.Blacklist.Revoke(ctx, access.TokenID(), access.RemainingTTL(s.Now()), ReasonLogoutAll); err != nil {
		return 0, err
	}

	n, err := s.Families.RevokeAll(ctx, access.Subject())
	if err != nil {
		return n, err
	}

	slogx.FromContext(ctx).Info("logged out everywhere", "user_id", access.Subject(), "families", n)
	return n, nil
}

// Authenticate validates an access token: signature, expiry, kind and
// blacklist.
func (s *TokenService) Authenticate(ctx context.Context, accessToken string) (domain.TokenPayload, error) {
	payload, err := s.verify(accessToken)
	if err != nil {
		return domain.TokenPayload{}, err
	}
	if payload.IsRefresh() {
		return domain.TokenPayload{}, fmt.Errorf("%w: refresh token used as access token", domain.ErrInvalidToken)
	}

	revoked, err := s.Blacklist.IsRevoked(ctx, payload.TokenID())
	if err != nil {
		return domain.TokenPayload{}, err
	}
	if revoked {
		return domain.TokenPayload{}, domain.ErrTokenRevoked
	}
	return payload, nil
}

func (s *TokenService) verify(token string) (domain.TokenPayload, error) {
	if token == "" {
		return domain.TokenPayload{}, fmt.Errorf("%w: empty token", domain.ErrInvalidToken)
	}

	claims, err := s.Signer.Verify(token)
	if err != nil {
		return domain.TokenPayload{}, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}

	payload, err := domain.FromWireClaims(claims)
	if err != nil {
		return domain.TokenPayload{}, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	return payload, nil
}

// mint signs an access and a refresh token for id. It touches no state.
func (s *TokenService) mint(id domain.Identity, familyID string, now time.Time) (*domain.TokenPair, domain.TokenPayload, error) {
	access, err := domain.NewTokenPayload(domain.PayloadParams{
		Subject:   id.UserID,
		TokenID:   idx.NewAt(now).String(),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.AccessTTL),
		Role:      id.Role,
		Email:     id.Email,
		Metadata:  id.Metadata,
	})
	if err != nil {
		return nil, domain.TokenPayload{}, err
	}

	refresh, err := domain.NewTokenPayload(domain.PayloadParams{
		Subject:   id.UserID,
		TokenID:   idx.NewAt(now).String(),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.RefreshTTL),
		Role:      id.Role,
		Email:     id.Email,
		FamilyID:  familyID,
		Metadata:  id.Metadata,
	})
	if err != nil {
		return nil, domain.TokenPayload{}, err
	}

	accessToken, err := s.Signer.Sign(access.ToWireClaims())
	if err != nil {
		return nil, domain.TokenPayload{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := s.Signer.Sign(refresh.ToWireClaims())
	if err != nil {
		return nil, domain.TokenPayload{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        domain.TokenTypeBearer,
		AccessExpiresAt:  access.ExpiresAt(),
		RefreshExpiresAt: refresh.ExpiresAt(),
		ExpiresIn:        access.ExpiresAt().Sub(access.IssuedAt()),
		FamilyID:         familyID,
	}, refresh, nil
}
