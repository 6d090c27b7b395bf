// Package redis implements store.KV on Redis. Expiry is native, so the
// driver does not need housekeeping.
package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/mentorlink/internal/auth/store"
)

// scanBatch is the SCAN COUNT hint and the UNLINK batch size.
const scanBatch = 256

// compareAndSwapScript sets KEYS[1] to ARGV[2] with a PX of ARGV[3] only when
// the current value equals ARGV[1].
var compareAndSwapScript = red.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur == ARGV[1] then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
	return 1
end
return 0
`)

type Options struct {
	Addr     string
	Password string
	DB       int
	TLS      bool

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// Store is a store.KV backed by a go-redis client.
type Store struct {
	client *red.Client
}

// Open connects to Redis and verifies the connection with a PING.
func Open(ctx context.Context, opts Options) (*Store, error) {
	ro := &red.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,

		PoolSize:     orDefault(opts.PoolSize, 10),
		MinIdleConns: 2,

		DialTimeout:  orDefault(opts.DialTimeout, 5*time.Second),
		ReadTimeout:  orDefault(opts.ReadTimeout, 3*time.Second),
		WriteTimeout: orDefault(opts.WriteTimeout, 3*time.Second),

		PoolTimeout:     4 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
	}
	if opts.TLS {
		ro.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := red.NewClient(ro)

	pingCtx, cancel := context.WithTimeout(ctx, ro.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w: %w", store.ErrUnavailable, err)
	}

	return New(client), nil
}

// New wraps an existing client. The Store takes ownership and closes it.
func New(client *red.Client) *Store {
	return &Store{client: client}
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

func unavailable(op string, err error) error {
	return fmt.Errorf("redis %s: %w: %w", op, store.ErrUnavailable, err)
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := store.ValidateTTL(ttl); err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return "", store.ErrNotFound
		}
		return "", unavailable("get", err)
	}
	return v, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return unavailable("del", err)
	}
	return nil
}

func (s *Store) GetAndDelete(ctx context.Context, key string) (string, error) {
	v, err := s.client.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return "", store.ErrNotFound
		}
		return "", unavailable("getdel", err)
	}
	return v, nil
}

func (s *Store) CompareAndSwap(ctx context.Context, key, expected, next string, ttl time.Duration) (bool, error) {
	if err := store.ValidateTTL(ttl); err != nil {
		return false, err
	}

	n, err := compareAndSwapScript.Run(ctx, s.client, []string{key}, expected, next, ttl.Milliseconds()).Int()
	if err != nil {
		return false, unavailable("compare and swap", err)
	}
	return n == 1, nil
}

// DeletePrefix walks the keyspace with SCAN and removes matches with UNLINK.
// It is not atomic: keys written under prefix during the walk may survive.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	pattern := escapeGlob(prefix) + "*"

	var (
		cursor  uint64
		removed int64
	)
	for {
		keys, nextCursor, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return removed, unavailable("scan", err)
		}

		if len(keys) > 0 {
			n, err := s.client.Unlink(ctx, keys...).Result()
			if err != nil {
				return removed, unavailable("unlink", err)
			}
			removed += n
		}

		cursor = nextCursor
		if cursor == 0 {
			return removed, nil
		}
	}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}

// PoolStats exposes connection pool counters for metrics.
func (s *Store) PoolStats() *red.PoolStats {
	return s.client.PoolStats()
}

// escapeGlob escapes the characters SCAN MATCH treats as patterns.
func escapeGlob(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
