package service

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestSocialAuthCodeExchange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createAccount(t, "user-1")

	code, err := env.social.IssueAuthCode(ctx, "user-1")
	require.NoError(t, err)

	pair, err := env.social.ExchangeAuthCode(ctx, code.Code)
	require.NoError(t, err)

	access, err := env.tokens.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", access.Subject())
	require.Equal(t, "mentee", access.Role())
	require.Equal(t, "user-1@example.com", access.Email())

	_, err = env.social.ExchangeAuthCode(ctx, code.Code)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.Equal(t, 1, env.metrics.count("code:true"))
	require.Equal(t, 1, env.metrics.count("code:false"))
	require.Equal(t, 1, env.metrics.count("issued:"+GrantAuthCode))
}

func TestSocialAuthCodeUnknownAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.social.IssueAuthCode(ctx, "ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)

	// A code for an account that disappeared before the exchange.
	code, err := env.codes.Issue(ctx, "ghost")
	require.NoError(t, err)
	_, err = env.social.ExchangeAuthCode(ctx, code.Code)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSocialConfirmLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createAccount(t, "user-1")

	token, expiresAt, err := env.social.BeginLink(ctx, sampleLink())
	require.NoError(t, err)
	require.True(t, expiresAt.Equal(testEpoch.Add(DefaultPendingLinkTTL)))

	peeked, err := env.social.PeekLink(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "discord", peeked.Provider)

	pair, err := env.social.ConfirmLink(ctx, token)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)

	linked, err := env.store.GetSocialAccount(ctx, "discord", "123456789")
	require.NoError(t, err)
	require.Equal(t, "user-1", linked.AccountID)
	require.Equal(t, "mentor@example.com", linked.Email)

	_, err = env.social.ConfirmLink(ctx, token)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, env.social.RejectLink(ctx, token), domain.ErrNotFound)

	require.Equal(t, 1, env.metrics.count("link:"+LinkConfirmed))
	require.Equal(t, 1, env.metrics.count("issued:"+GrantLink))
}

func TestSocialRejectLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createAccount(t, "user-1")

	token, _, err := env.social.BeginLink(ctx, sampleLink())
	require.NoError(t, err)

	require.NoError(t, env.social.RejectLink(ctx, token))

	_, err = env.social.ConfirmLink(ctx, token)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.store.GetSocialAccount(ctx, "discord", "123456789")
	require.Error(t, err)
	require.Equal(t, 1, env.metrics.count("link:"+LinkRejected))
}

func TestSocialLinkOwnedByAnotherAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createAccount(t, "user-1")
	env.createAccount(t, "user-2")

	token, _, err := env.social.BeginLink(ctx, sampleLink())
	require.NoError(t, err)
	_, err = env.social.ConfirmLink(ctx, token)
	require.NoError(t, err)

	link := sampleLink()
	link.UserID = "user-2"
	token, _, err = env.social.BeginLink(ctx, link)
	require.NoError(t, err)

	_, err = env.social.ConfirmLink(ctx, token)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSocialBeginLinkValidates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	link := sampleLink()
	link.SocialID = ""
	_, _, err := env.social.BeginLink(ctx, link)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = env.social.BeginLink(ctx, sampleLink())
	require.ErrorIs(t, err, domain.ErrNotFound)
}
