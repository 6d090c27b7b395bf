package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/aussiebroadwan/mentorlink/internal/auth/store"
	"github.com/aussiebroadwan/mentorlink/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/mentorlink/internal/auth/store/storetest"
	"github.com/aussiebroadwan/mentorlink/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	clock   *storetest.Clock
	store   *memory.Store
	keys    store.Keyspace
	metrics *recordingMetrics

	codes     *AuthCodeRegistry
	families  *RefreshFamilyRegistry
	blacklist *TokenBlacklist
	links     *PendingLinkRegistry
	tokens    *TokenService
	social    *SocialService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := storetest.NewClock(testEpoch)
	st := memory.New(memory.WithClock(clock.Now))
	keys := store.NewKeyspace("test")
	metrics := newRecordingMetrics()

	signer, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer:  "mentorlink-test",
		NumKeys: 1,
		Now:     clock.Now,
	})
	require.NoError(t, err)

	links, err := NewPendingLinkRegistry(st, keys, PendingLinkConfig{Now: clock.Now})
	require.NoError(t, err)

	env := &testEnv{
		clock:     clock,
		store:     st,
		keys:      keys,
		metrics:   metrics,
		codes:     NewAuthCodeRegistry(st, keys, AuthCodeConfig{Now: clock.Now}),
		families:  NewRefreshFamilyRegistry(st, keys, FamilyConfig{}),
		blacklist: NewTokenBlacklist(st, keys, BlacklistConfig{}, metrics),
		links:     links,
	}
	env.tokens = NewTokenService(signer, env.families, env.blacklist, metrics, TokenConfig{Now: clock.Now})
	env.social = NewSocialService(env.codes, env.links, st, env.tokens, metrics)
	env.social.Now = clock.Now
	return env
}

func (e *testEnv) createAccount(t *testing.T, id string) domain.Account {
	t.Helper()

	acct := domain.Account{
		ID:          id,
		Email:       id + "@example.com",
		Role:        "mentee",
		DisplayName: "User " + id,
		CreatedAt:   e.clock.Now(),
	}
	require.NoError(t, e.store.CreateAccount(context.Background(), acct))
	return acct
}

type recordingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{counts: map[string]int{}}
}

func (m *recordingMetrics) inc(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name]++
}

func (m *recordingMetrics) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

func (m *recordingMetrics) TokensIssued(grant string)     { m.inc("issued:" + grant) }
func (m *recordingMetrics) RefreshRejected(reason string) { m.inc("rejected:" + reason) }
func (m *recordingMetrics) TokenRevoked(reason string)    { m.inc("revoked:" + reason) }
func (m *recordingMetrics) AuthCodeConsumed(ok bool)      { m.inc(fmt.Sprintf("code:%t", ok)) }
func (m *recordingMetrics) LinkResolved(outcome string)   { m.inc("link:" + outcome) }

// downKV fails every call the way a driver does when its backend is gone.
type downKV struct{}

func (downKV) fail(op string) error {
	return fmt.Errorf("%s: %w: connection refused", op, store.ErrUnavailable)
}

func (d downKV) Set(context.Context, string, string, time.Duration) error { return d.fail("set") }
func (d downKV) Get(context.Context, string) (string, error)             { return "", d.fail("get") }
func (d downKV) Delete(context.Context, string) error                    { return d.fail("delete") }
func (d downKV) GetAndDelete(context.Context, string) (string, error) {
	return "", d.fail("getdel")
}
func (d downKV) CompareAndSwap(context.Context, string, string, string, time.Duration) (bool, error) {
	return false, d.fail("cas")
}
func (d downKV) DeletePrefix(context.Context, string) (int64, error) {
	return 0, d.fail("delete prefix")
}
func (d downKV) Ping(context.Context) error { return d.fail("ping") }
func (downKV) Close() error                 { return nil }
