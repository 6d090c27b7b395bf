package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/aussiebroadwan/mentorlink/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func sampleLink() domain.PendingLink {
	return domain.PendingLink{
		UserID:       "user-1",
		Provider:     "discord",
		SocialID:     "123456789",
		AccessToken:  "provider-access-token",
		RefreshToken: "provider-refresh-token",
		ProfileData:  map[string]any{"username": "mentor"},
		Email:        "mentor@example.com",
	}
}

func TestPendingLinkCreatePeek(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	token, err := env.links.NewToken()
	require.NoError(t, err)
	require.Len(t, token, 64)

	created, err := env.links.Create(ctx, token, sampleLink(), 0)
	require.NoError(t, err)
	require.True(t, created.CreatedAt.Equal(testEpoch))
	require.True(t, created.ExpiresAt.Equal(testEpoch.Add(DefaultPendingLinkTTL)))

	// Peek is repeatable.
	for range 2 {
		got, err := env.links.Peek(ctx, token)
		require.NoError(t, err)
		require.Equal(t, "provider-access-token", got.AccessToken)
		require.Equal(t, "provider-refresh-token", got.RefreshToken)
		require.Equal(t, "discord", got.Provider)
		require.Equal(t, map[string]any{"username": "mentor"}, got.ProfileData)
	}

	got, err := env.links.Get(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.UserID)
}

func TestPendingLinkTakeOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	token, err := env.links.NewToken()
	require.NoError(t, err)
	_, err = env.links.Create(ctx, token, sampleLink(), time.Minute)
	require.NoError(t, err)

	got, err := env.links.Take(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "123456789", got.SocialID)

	_, err = env.links.Take(ctx, token)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = env.links.Peek(ctx, token)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPendingLinkDeleteAndExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.links.Create(ctx, "tok-a", sampleLink(), time.Minute)
	require.NoError(t, err)
	_, err = env.links.Create(ctx, "tok-b", sampleLink(), time.Minute)
	require.NoError(t, err)

	require.NoError(t, env.links.Delete(ctx, "tok-a"))
	require.NoError(t, env.links.Delete(ctx, "tok-a"))
	_, err = env.links.Peek(ctx, "tok-a")
	require.ErrorIs(t, err, domain.ErrNotFound)

	env.clock.Advance(time.Minute)
	_, err = env.links.Peek(ctx, "tok-b")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPendingLinkValidates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.links.Create(ctx, "", sampleLink(), time.Minute)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	link := sampleLink()
	link.Provider = ""
	_, err = env.links.Create(ctx, "tok", link, time.Minute)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.links.Peek(ctx, "")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPendingLinkSealsProviderTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.links.Create(ctx, "tok", sampleLink(), time.Minute)
	require.NoError(t, err)

	raw, err := env.store.Get(ctx, env.keys.PendingLink(cryptox.FingerprintToken("tok")))
	require.NoError(t, err)
	require.NotContains(t, raw, "provider-access-token")
	require.NotContains(t, raw, "provider-refresh-token")
	require.Contains(t, raw, "discord")

	// A registry with a different key cannot open the record.
	other, err := NewPendingLinkRegistry(env.store, env.keys, PendingLinkConfig{Now: env.clock.Now})
	require.NoError(t, err)
	_, err = other.Peek(ctx, "tok")
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestPendingLinkSharedSealKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sealer, err := cryptox.NewSealer([]byte("shared-seal-key"))
	require.NoError(t, err)
	a, err := NewPendingLinkRegistry(env.store, env.keys, PendingLinkConfig{Sealer: sealer})
	require.NoError(t, err)
	b, err := NewPendingLinkRegistry(env.store, env.keys, PendingLinkConfig{Sealer: sealer})
	require.NoError(t, err)

	_, err = a.Create(ctx, "tok", sampleLink(), time.Minute)
	require.NoError(t, err)

	got, err := b.Take(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, "provider-access-token", got.AccessToken)
}

func TestPendingLinkConcurrentTakeSucceedsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.links.Create(ctx, "tok", sampleLink(), time.Minute)
	require.NoError(t, err)

	const workers = 32
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		notFound  atomic.Int32
		start     = make(chan struct{})
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.links.Take(ctx, "tok")
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, domain.ErrNotFound):
				notFound.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, successes.Load())
	require.EqualValues(t, workers-1, notFound.Load())
}
