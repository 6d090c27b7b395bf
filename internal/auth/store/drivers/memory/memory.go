// Package memory is an in-process store for development and tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/aussiebroadwan/mentorlink/internal/auth/store"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// Store implements store.KV, store.Sweeper and store.Accounts behind a single
// mutex. Expired entries are hidden on read and removed by DeleteExpired.
type Store struct {
	now func() time.Time

	mu       sync.Mutex
	entries  map[string]entry
	accounts map[string]domain.Account
	socials  map[socialKey]domain.SocialAccount
	closed   bool
}

type socialKey struct{ provider, socialID string }

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for simulating expiry in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		now:      time.Now,
		entries:  make(map[string]entry),
		accounts: make(map[string]domain.Account),
		socials:  make(map[socialKey]domain.SocialAccount),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// live returns the entry for key if present and unexpired. Callers hold mu.
func (s *Store) live(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return entry{}, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return entry{}, false
	}
	return e, true
}

func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if err := store.ValidateTTL(ttl); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		return "", store.ErrNotFound
	}
	return e.value, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *Store) GetAndDelete(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		return "", store.ErrNotFound
	}
	delete(s.entries, key)
	return e.value, nil
}

func (s *Store) CompareAndSwap(_ context.Context, key, expected, next string, ttl time.Duration) (bool, error) {
	if err := store.ValidateTTL(ttl); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok || e.value != expected {
		return false, nil
	}
	s.entries[key] = entry{value: next, expiresAt: s.now().Add(ttl)}
	return true, nil
}

func (s *Store) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key := range s.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		// Expired entries are already gone as far as callers can tell.
		if _, ok := s.live(key); ok {
			n++
		}
		delete(s.entries, key)
	}
	return n, nil
}

func (s *Store) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored entries, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrUnavailable
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
