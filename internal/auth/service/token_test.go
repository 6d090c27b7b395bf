package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/aussiebroadwan/mentorlink/internal/auth/store"
	"github.com/stretchr/testify/require"
)

var mentor = domain.Identity{
	UserID:   "user-1",
	Role:     "mentor",
	Email:    "mentor@example.com",
	Metadata: map[string]any{"org": "acme"},
}

func (e *testEnv) payload(t *testing.T, token string) domain.TokenPayload {
	t.Helper()
	p, err := e.tokens.verify(token)
	require.NoError(t, err)
	return p
}

func TestLoginMintsPair(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.tokens.Login(ctx, mentor)
	require.NoError(t, err)
	require.Equal(t, domain.TokenTypeBearer, pair.TokenType)
	require.Equal(t, DefaultAccessTTL, pair.ExpiresIn)
	require.True(t, pair.AccessExpiresAt.Equal(testEpoch.Add(DefaultAccessTTL)))
	require.True(t, pair.RefreshExpiresAt.Equal(testEpoch.Add(DefaultRefreshTTL)))
	require.NotEmpty(t, pair.FamilyID)

	access := env.payload(t, pair.AccessToken)
	require.False(t, access.IsRefresh())
	require.Equal(t, "user-1", access.Subject())
	require.Equal(t, "mentor", access.Role())
	require.Equal(t, "acme", access.Metadata()["org"])

	refresh := env.payload(t, pair.RefreshToken)
	require.True(t, refresh.IsRefresh())
	require.Equal(t, pair.FamilyID, refresh.FamilyID())
	require.NotEqual(t, access.TokenID(), refresh.TokenID())

	current, err := env.families.Get(ctx, "user-1", pair.FamilyID)
	require.NoError(t, err)
	require.Equal(t, refresh.TokenID(), current)
	require.Equal(t, 1, env.metrics.count("issued:"+GrantLogin))
}

func TestLoginRequiresUser(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.tokens.Login(context.Background(), domain.Identity{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.tokens.Login(context.Background(), domain.Identity{UserID: "u", Metadata: map[string]any{"sub": "x"}})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRefreshRotationAndReuse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.tokens.Login(ctx, mentor)
	require.NoError(t, err)
	t1 := env.payload(t, first.RefreshToken)

	env.clock.Advance(time.Minute)

	second, err := env.tokens.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, first.FamilyID, second.FamilyID)
	t2 := env.payload(t, second.RefreshToken)

	current, err := env.families.Get(ctx, "user-1", first.FamilyID)
	require.NoError(t, err)
	require.Equal(t, t2.TokenID(), current)

	access, err := env.tokens.Authenticate(ctx, second.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "mentor", access.Role())
	require.Equal(t, "mentor@example.com", access.Email())
	require.Equal(t, "acme", access.Metadata()["org"])

	// Replaying T1 is reuse and kills the family.
	_, err = env.tokens.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, domain.ErrRefreshReuseDetected)

	_, err = env.families.Get(ctx, "user-1", first.FamilyID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	for _, id := range []string{t1.TokenID(), t2.TokenID()} {
		revoked, err := env.blacklist.IsRevoked(ctx, id)
		require.NoError(t, err)
		require.True(t, revoked)
	}

	_, err = env.tokens.Refresh(ctx, second.RefreshToken)
	require.ErrorIs(t, err, domain.ErrTokenRevoked)

	require.Equal(t, 1, env.metrics.count("issued:"+GrantRefresh))
	require.Equal(t, 1, env.metrics.count("rejected:"+RejectReuse))
}

func TestRefreshRejectsInvalidTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.tokens.Login(ctx, mentor)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"access token", pair.AccessToken},
		{"tampered", pair.RefreshToken + "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.tokens.Refresh(ctx, tt.token)
			require.ErrorIs(t, err, domain.ErrInvalidToken)
		})
	}

	// Rejections do not touch the family.
	_, err = env.tokens.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.tokens.Login(ctx, mentor)
	require.NoError(t, err)

	env.clock.Advance(DefaultRefreshTTL + time.Second)

	_, err = env.tokens.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestRefreshAfterFamilyRevoked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.tokens.Login(ctx, mentor)
	require.NoError(t, err)
	require.NoError(t, env.families.Revoke(ctx, "user-1", pair.FamilyID))

	_, err = env.tokens.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrTokenRevoked)
	require.NotErrorIs(t, err, domain.ErrRefreshReuseDetected)
}

func TestRefreshConcurrentSucceedsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.tokens.Login(ctx, mentor)
	require.NoError(t, err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		start     = make(chan struct{})
		errs      = make(chan error, workers)
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := env.tokens.Refresh(ctx, pair.RefreshToken); err != nil {
				errs <- err
				return
			}
			successes.Add(1)
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	require.EqualValues(t, 1, successes.Load())
	for err := range errs {
		require.True(t,
			errors.Is(err, domain.ErrRefreshReuseDetected) || errors.Is(err, domain.ErrTokenRevoked),
			"unexpected error: %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.tokens.Login(ctx, mentor)
	require.NoError(t, err)

	p, err := env.tokens.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", p.Subject())

	_, err = env.tokens.Authenticate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrInvalidToken)

	env.clock.Advance(DefaultAccessTTL + time.Second)
	_, err = env.tokens.Authenticate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.tokens.Login(ctx, mentor)
	require.NoError(t, err)

	require.NoError(t, env.tokens.Logout(ctx, pair.AccessToken, pair.RefreshToken))

	_, err = env.tokens.Authenticate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, domain.ErrTokenRevoked)

	_, err = env.tokens.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrTokenRevoked)

	_, err = env.families.Get(ctx, "user-1", pair.FamilyID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// The access token is no longer accepted for a second logout.
	require.ErrorIs(t, env.tokens.Logout(ctx, pair.AccessToken, ""), domain.ErrTokenRevoked)
}

func TestLogoutBlacklistExpiresWithToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.tokens.Login(ctx, mentor)
	require.NoError(t, err)
	access := env.payload(t, pair.AccessToken)

	env.clock.Advance(5 * time.Minute)
	require.NoError(t, env.tokens.Logout(ctx, pair.AccessToken, pair.RefreshToken))

	env.clock.Advance(DefaultAccessTTL - 5*time.Minute)
	revoked, err := env.blacklist.IsRevoked(ctx, access.TokenID())
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestLogoutRequiresRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mine, err := env.tokens.Login(ctx, mentor)
	require.NoError(t, err)
	theirs, err := env.tokens.Login(ctx, domain.Identity{UserID: "user-2"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		refresh string
		wantErr error
	}{
		{"missing", "", domain.ErrInvalidInput},
		{"another user's", theirs.RefreshToken, domain.ErrInvalidInput},
		{"access token in its place", mine.AccessToken, domain.ErrInvalidInput},
		{"unverifiable", "garbage", domain.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.tokens.Logout(ctx, mine.AccessToken, tt.refresh)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	// A rejected logout changes nothing: both sessions stay live.
	_, err = env.tokens.Authenticate(ctx, mine.AccessToken)
	require.NoError(t, err)
	_, err = env.families.Get(ctx, "user-1", mine.FamilyID)
	require.NoError(t, err)
	_, err = env.families.Get(ctx, "user-2", theirs.FamilyID)
	require.NoError(t, err)
	_, err = env.tokens.Refresh(ctx, theirs.RefreshToken)
	require.NoError(t, err)

	require.NoError(t, env.tokens.Logout(ctx, mine.AccessToken, mine.RefreshToken))
	_, err = env.families.Get(ctx, "user-1", mine.FamilyID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLogoutAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	phone, err := env.tokens.Login(ctx, mentor)
	require.NoError(t, err)
	laptop, err := env.tokens.Login(ctx, mentor)
	require.NoError(t, err)
	other, err := env.tokens.Login(ctx, domain.Identity{UserID: "user-10"})
	require.NoError(t, err)

	n, err := env.tokens.LogoutAll(ctx, phone.AccessToken)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	_, err = env.tokens.Authenticate(ctx, phone.AccessToken)
	require.ErrorIs(t, err, domain.ErrTokenRevoked)

	_, err = env.tokens.Refresh(ctx, laptop.RefreshToken)
	require.ErrorIs(t, err, domain.ErrTokenRevoked)

	_, err = env.tokens.Refresh(ctx, other.RefreshToken)
	require.NoError(t, err)
}

func TestTokenServiceStoreUnavailable(t *testing.T) {
	env := newTestEnv(t)
	keys := store.NewKeyspace("")
	tokens := NewTokenService(
		env.tokens.Signer,
		NewRefreshFamilyRegistry(downKV{}, keys, FamilyConfig{}),
		NewTokenBlacklist(downKV{}, keys, BlacklistConfig{}, nil),
		nil,
		TokenConfig{Now: env.clock.Now},
	)

	_, err := tokens.Login(context.Background(), mentor)
	require.ErrorIs(t, err, store.ErrUnavailable)

	pair, err := env.tokens.Login(context.Background(), mentor)
	require.NoError(t, err)

	_, err = tokens.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, store.ErrUnavailable)

	_, err = tokens.Authenticate(context.Background(), pair.AccessToken)
	require.ErrorIs(t, err, store.ErrUnavailable)
}
