package sqlite

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/aussiebroadwan/mentorlink/internal/auth/store"
)

type accountsRepo struct {
	q querier
}

func (s *Store) Accounts() store.Accounts { return &accountsRepo{q: s.db} }

func (s *Store) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	return s.Accounts().GetAccountByID(ctx, id)
}

func (s *Store) CreateAccount(ctx context.Context, a domain.Account) error {
	return s.Accounts().CreateAccount(ctx, a)
}

// LinkSocialAccount checks the account and any existing link in the same
// transaction as the insert.
func (s *Store) LinkSocialAccount(ctx context.Context, sa domain.SocialAccount) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		return tx.Accounts().LinkSocialAccount(ctx, sa)
	})
}

func (s *Store) GetSocialAccount(ctx context.Context, provider, socialID string) (domain.SocialAccount, error) {
	return s.Accounts().GetSocialAccount(ctx, provider, socialID)
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	var (
		a         domain.Account
		createdAt int64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, email, role, display_name, created_at FROM accounts WHERE id = ?`, id,
	).Scan(&a.ID, &a.Email, &a.Role, &a.DisplayName, &createdAt)
	if err != nil {
		return domain.Account{}, mapNotFound("get account", err)
	}
	a.CreatedAt = fromMillis(createdAt)
	return a, nil
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO accounts (id, email, role, display_name, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.Role, a.DisplayName, toMillis(a.CreatedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return store.ErrAlreadyExists
		}
		return unavailable("create account", err)
	}
	return nil
}

// LinkSocialAccount is only atomic when r runs inside a transaction.
func (r *accountsRepo) LinkSocialAccount(ctx context.Context, sa domain.SocialAccount) error {
	if _, err := r.GetAccountByID(ctx, sa.AccountID); err != nil {
		return err
	}

	existing, err := r.GetSocialAccount(ctx, sa.Provider, sa.SocialID)
	switch {
	case err == nil && existing.AccountID == sa.AccountID:
		return nil
	case err == nil:
		return store.ErrAlreadyExists
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	_, err = r.q.ExecContext(ctx,
		`INSERT INTO social_accounts (provider, social_id, account_id, email, linked_at) VALUES (?, ?, ?, ?, ?)`,
		sa.Provider, sa.SocialID, sa.AccountID, sa.Email, toMillis(sa.LinkedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return store.ErrAlreadyExists
		}
		return unavailable("link social account", err)
	}
	return nil
}

func (r *accountsRepo) GetSocialAccount(ctx context.Context, provider, socialID string) (domain.SocialAccount, error) {
	var (
		sa       domain.SocialAccount
		linkedAt int64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT provider, social_id, account_id, email, linked_at
		 FROM social_accounts WHERE provider = ? AND social_id = ?`,
		provider, socialID,
	).Scan(&sa.Provider, &sa.SocialID, &sa.AccountID, &sa.Email, &linkedAt)
	if err != nil {
		return domain.SocialAccount{}, mapNotFound("get social account", err)
	}
	sa.LinkedAt = fromMillis(linkedAt)
	return sa, nil
}
