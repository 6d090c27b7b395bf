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

// SocialService finishes a social login. The provider callback either
// resolves to a known account, in which case it gets an auth code for the
// client to exchange, or proposes a link that the user confirms or rejects.
type SocialService struct {
	AuthCodes *AuthCodeRegistry
	Links     *PendingLinkRegistry
	Accounts  store.Accounts
	Tokens    *TokenService
	Metrics   Metrics
	Now       func() time.Time
}

func NewSocialService(
	codes *AuthCodeRegistry,
	links *PendingLinkRegistry,
	accounts store.Accounts,
	tokens *TokenService,
	metrics Metrics,
) *SocialService {
	return &SocialService{
		AuthCodes: codes,
		Links:     links,
		Accounts:  accounts,
		Tokens:    tokens,
		Metrics:   orNoop(metrics),
		Now:       time.Now,
	}
}

// IssueAuthCode hands out a code for an account that already exists.
func (s *SocialService) IssueAuthCode(ctx context.Context, userID string) (domain.AuthCode, error) {
	if _, err := s.account(ctx, userID); err != nil {
		return domain.AuthCode{}, err
	}
	return s.AuthCodes.Issue(ctx, userID)
}

// ExchangeAuthCode spends code and logs its user in. A code that was never
// issued, was already spent or has expired returns domain.ErrNotFound.
func (s *SocialService) ExchangeAuthCode(ctx context.Context, code string) (*domain.TokenPair, error) {
	userID, err := s.AuthCodes.Consume(ctx, code)
	if err != nil {
		s.Metrics.AuthCodeConsumed(false)
		return nil, err
	}
	s.Metrics.AuthCodeConsumed(true)

	acct, err := s.account(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Tokens.login(ctx, identityOf(acct), GrantAuthCode)
}

// BeginLink stores link under a fresh token and returns the token with its
// absolute expiry.
func (s *SocialService) BeginLink(ctx context.Context, link domain.PendingLink) (string, time.Time, error) {
	if err := link.Validate(); err != nil {
		return "", time.Time{}, err
	}
	if _, err := s.account(ctx, link.UserID); err != nil {
		return "", time.Time{}, err
	}

	token, err := s.Links.NewToken()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate link token: %w", err)
	}

	stored, err := s.Links.Create(ctx, token, link, 0)
	if err != nil {
		return "", time.Time{}, err
	}

	slogx.FromContext(ctx).Info("social link proposed",
		"user_id", link.UserID,
		"provider", link.Provider,
	)
	return token, stored.ExpiresAt, nil
}

// PeekLink returns the proposal without consuming it.
func (s *SocialService) PeekLink(ctx context.Context, token string) (domain.PendingLink, error) {
	return s.Links.Peek(ctx, token)
}

// ConfirmLink consumes the proposal, links the social identity and logs the
// user in. A second confirm or a confirm after reject returns
// domain.ErrNotFound.
func (s *SocialService) ConfirmLink(ctx context.Context, token string) (*domain.TokenPair, error) {
	link, err := s.Links.Take(ctx, token)
	if err != nil {
		return nil, err
	}

	acct, err := s.account(ctx, link.UserID)
	if err != nil {
		return nil, err
	}

	err = s.Accounts.LinkSocialAccount(ctx, domain.SocialAccount{
		Provider:  link.Provider,
		SocialID:  link.SocialID,
		AccountID: acct.ID,
		Email:     link.Email,
		LinkedAt:  s.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domain.InvalidInputError("social account", "already linked to another account")
		}
		return nil, fmt.Errorf("link social account: %w", err)
	}

	s.Metrics.LinkResolved(LinkConfirmed)
	slogx.FromContext(ctx).Info("social link confirmed", "user_id", acct.ID, "provider", link.Provider)
	return s.Tokens.login(ctx, identityOf(acct), GrantLink)
}

// RejectLink consumes the proposal and discards it.
func (s *SocialService) RejectLink(ctx context.Context, token string) error {
	link, err := s.Links.Take(ctx, token)
	if err != nil {
		return err
	}

	s.Metrics.LinkResolved(LinkRejected)
	slogx.FromContext(ctx).Info("social link rejected", "user_id", link.UserID, "provider", link.Provider)
	return nil
}

func (s *SocialService) account(ctx context.Context, userID string) (domain.Account, error) {
	if userID == "" {
		return domain.Account{}, domain.InvalidInputError("user id", "is required")
	}

	acct, err := s.Accounts.GetAccountByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("get account: %w", err)
	}
	return acct, nil
}

func identityOf(a domain.Account) domain.Identity {
	return domain.Identity{UserID: a.ID, Role: a.Role, Email: a.Email}
}
