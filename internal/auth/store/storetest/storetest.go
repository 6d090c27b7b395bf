// Package storetest holds the behaviour every store.KV driver must share.
// Driver packages call RunKV from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/mentorlink/internal/auth/store"
	"github.com/stretchr/testify/require"
)

// Harness is one freshly created driver instance.
type Harness struct {
	KV store.KV

	// Advance moves the driver's notion of now forward.
	Advance func(time.Duration)
}

// Clock is a manually advanced time source for drivers that accept one.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock { return &Clock{now: start} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// RunKV runs the driver contract. newHarness is called once per subtest.
func RunKV(t *testing.T, newHarness func(t *testing.T) Harness) {
	t.Helper()
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		h := newHarness(t)

		require.NoError(t, h.KV.Set(ctx, "k", "v1", time.Minute))
		got, err := h.KV.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "v1", got)

		require.NoError(t, h.KV.Set(ctx, "k", "v2", time.Minute))
		got, err = h.KV.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "v2", got)
	})

	t.Run("get missing", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.KV.Get(ctx, "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("rejects non-positive ttl", func(t *testing.T) {
		h := newHarness(t)

		require.ErrorIs(t, h.KV.Set(ctx, "k", "v", 0), store.ErrInvalidTTL)
		require.ErrorIs(t, h.KV.Set(ctx, "k", "v", -time.Second), store.ErrInvalidTTL)

		_, err := h.KV.CompareAndSwap(ctx, "k", "a", "b", 0)
		require.ErrorIs(t, err, store.ErrInvalidTTL)
	})

	t.Run("entries expire", func(t *testing.T) {
		h := newHarness(t)

		require.NoError(t, h.KV.Set(ctx, "k", "v", 2*time.Second))
		h.Advance(time.Second)
		_, err := h.KV.Get(ctx, "k")
		require.NoError(t, err)

		h.Advance(2 * time.Second)
		_, err = h.KV.Get(ctx, "k")
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = h.KV.GetAndDelete(ctx, "k")
		require.ErrorIs(t, err, store.ErrNotFound)

		swapped, err := h.KV.CompareAndSwap(ctx, "k", "v", "w", time.Minute)
		require.NoError(t, err)
		require.False(t, swapped)
	})

	t.Run("delete", func(t *testing.T) {
		h := newHarness(t)

		require.NoError(t, h.KV.Set(ctx, "k", "v", time.Minute))
		require.NoError(t, h.KV.Delete(ctx, "k"))
		_, err := h.KV.Get(ctx, "k")
		require.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, h.KV.Delete(ctx, "never-set"))
	})

	t.Run("get and delete", func(t *testing.T) {
		h := newHarness(t)

		require.NoError(t, h.KV.Set(ctx, "k", "v", time.Minute))
		got, err := h.KV.GetAndDelete(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "v", got)

		_, err = h.KV.GetAndDelete(ctx, "k")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("get and delete is exclusive", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.KV.Set(ctx, "k", "v", time.Minute))

		const n = 32
		var (
			wg        sync.WaitGroup
			successes atomic.Int32
			misses    atomic.Int32
		)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := h.KV.GetAndDelete(ctx, "k")
				switch {
				case err == nil:
					successes.Add(1)
				case errors.Is(err, store.ErrNotFound):
					misses.Add(1)
				}
			}()
		}
		wg.Wait()

		require.EqualValues(t, 1, successes.Load())
		require.EqualValues(t, n-1, misses.Load())
	})

	t.Run("compare and swap", func(t *testing.T) {
		h := newHarness(t)

		swapped, err := h.KV.CompareAndSwap(ctx, "k", "a", "b", time.Minute)
		require.NoError(t, err)
		require.False(t, swapped, "absent keys are never swapped")
		_, err = h.KV.Get(ctx, "k")
		require.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, h.KV.Set(ctx, "k", "a", time.Minute))

		swapped, err = h.KV.CompareAndSwap(ctx, "k", "x", "b", time.Minute)
		require.NoError(t, err)
		require.False(t, swapped)
		got, err := h.KV.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "a", got)

		swapped, err = h.KV.CompareAndSwap(ctx, "k", "a", "b", time.Minute)
		require.NoError(t, err)
		require.True(t, swapped)
		got, err = h.KV.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "b", got)
	})

	t.Run("compare and swap resets ttl", func(t *testing.T) {
		h := newHarness(t)

		require.NoError(t, h.KV.Set(ctx, "k", "a", 10*time.Second))
		h.Advance(5 * time.Second)

		swapped, err := h.KV.CompareAndSwap(ctx, "k", "a", "b", 10*time.Second)
		require.NoError(t, err)
		require.True(t, swapped)

		h.Advance(8 * time.Second)
		got, err := h.KV.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "b", got)
	})

	t.Run("compare and swap is exclusive", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.KV.Set(ctx, "k", "v0", time.Minute))

		const n = 32
		var (
			wg      sync.WaitGroup
			winners atomic.Int32
		)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := h.KV.CompareAndSwap(ctx, "k", "v0", fmt.Sprintf("v%d", i+1), time.Minute)
				if err == nil && ok {
					winners.Add(1)
				}
			}()
		}
		wg.Wait()

		require.EqualValues(t, 1, winners.Load())
	})

	t.Run("delete prefix", func(t *testing.T) {
		h := newHarness(t)

		for _, k := range []string{"fam:u1:a", "fam:u1:b", "fam:u10:a", "other"} {
			require.NoError(t, h.KV.Set(ctx, k, "v", time.Minute))
		}

		n, err := h.KV.DeletePrefix(ctx, "fam:u1:")
		require.NoError(t, err)
		require.EqualValues(t, 2, n)

		for _, k := range []string{"fam:u1:a", "fam:u1:b"} {
			_, err := h.KV.Get(ctx, k)
			require.ErrorIs(t, err, store.ErrNotFound)
		}
		for _, k := range []string{"fam:u10:a", "other"} {
			_, err := h.KV.Get(ctx, k)
			require.NoError(t, err)
		}

		n, err = h.KV.DeletePrefix(ctx, "nothing:")
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("ping", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.KV.Ping(ctx))
	})
}

// RunSweeper checks DeleteExpired for drivers that implement store.Sweeper.
func RunSweeper(t *testing.T, newHarness func(t *testing.T) Harness) {
	t.Helper()
	ctx := context.Background()

	h := newHarness(t)
	sweeper, ok := h.KV.(store.Sweeper)
	require.True(t, ok, "driver does not implement store.Sweeper")

	require.NoError(t, h.KV.Set(ctx, "short", "v", time.Second))
	require.NoError(t, h.KV.Set(ctx, "long", "v", time.Hour))
	h.Advance(2 * time.Second)

	n, err := sweeper.DeleteExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = h.KV.Get(ctx, "long")
	require.NoError(t, err)
}
