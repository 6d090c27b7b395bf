package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/aussiebroadwan/mentorlink/internal/auth/store"
	"github.com/stretchr/testify/require"
)

// RunAccounts runs the store.Accounts contract.
func RunAccounts(t *testing.T, newAccounts func(t *testing.T) store.Accounts) {
	t.Helper()
	ctx := context.Background()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	alice := domain.Account{
		ID:          "acc-alice",
		Email:       "alice@example.com",
		Role:        "mentor",
		DisplayName: "Alice",
		CreatedAt:   created,
	}

	t.Run("create and get", func(t *testing.T) {
		accounts := newAccounts(t)

		_, err := accounts.GetAccountByID(ctx, alice.ID)
		require.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, accounts.CreateAccount(ctx, alice))
		got, err := accounts.GetAccountByID(ctx, alice.ID)
		require.NoError(t, err)
		require.Equal(t, alice, got)

		require.ErrorIs(t, accounts.CreateAccount(ctx, alice), store.ErrAlreadyExists)
	})

	t.Run("link social account", func(t *testing.T) {
		accounts := newAccounts(t)
		require.NoError(t, accounts.CreateAccount(ctx, alice))

		bob := alice
		bob.ID, bob.Email = "acc-bob", "bob@example.com"
		require.NoError(t, accounts.CreateAccount(ctx, bob))

		link := domain.SocialAccount{
			Provider:  "google",
			SocialID:  "g-123",
			AccountID: alice.ID,
			Email:     alice.Email,
			LinkedAt:  created,
		}

		_, err := accounts.GetSocialAccount(ctx, link.Provider, link.SocialID)
		require.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, accounts.LinkSocialAccount(ctx, link))
		got, err := accounts.GetSocialAccount(ctx, link.Provider, link.SocialID)
		require.NoError(t, err)
		require.Equal(t, link, got)

		// Relinking to the same account is idempotent.
		require.NoError(t, accounts.LinkSocialAccount(ctx, link))

		stolen := link
		stolen.AccountID = bob.ID
		require.ErrorIs(t, accounts.LinkSocialAccount(ctx, stolen), store.ErrAlreadyExists)

		orphan := link
		orphan.SocialID, orphan.AccountID = "g-456", "acc-nobody"
		require.ErrorIs(t, accounts.LinkSocialAccount(ctx, orphan), store.ErrNotFound)
	})
}
