package memory

import (
	"context"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/aussiebroadwan/mentorlink/internal/auth/store"
)

func (s *Store) GetAccountByID(_ context.Context, id string) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (s *Store) CreateAccount(_ context.Context, a domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; ok {
		return store.ErrAlreadyExists
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) LinkSocialAccount(_ context.Context, sa domain.SocialAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[sa.AccountID]; !ok {
		return store.ErrNotFound
	}

	key := socialKey{sa.Provider, sa.SocialID}
	if existing, ok := s.socials[key]; ok {
		if existing.AccountID != sa.AccountID {
			return store.ErrAlreadyExists
		}
		return nil
	}
	s.socials[key] = sa
	return nil
}

func (s *Store) GetSocialAccount(_ context.Context, provider, socialID string) (domain.SocialAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sa, ok := s.socials[socialKey{provider, socialID}]
	if !ok {
		return domain.SocialAccount{}, store.ErrNotFound
	}
	return sa, nil
}
