package sqlite

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/mentorlink/internal/auth/store"
)

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := store.ValidateTTL(ttl); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, toMillis(s.now().Add(ttl)),
	)
	if err != nil {
		return unavailable("set", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE key = ? AND expires_at > ?`,
		key, toMillis(s.now()),
	).Scan(&value)
	if err != nil {
		return "", mapNotFound("get", err)
	}
	return value, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

func (s *Store) GetAndDelete(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM kv_entries WHERE key = ? AND expires_at > ? RETURNING value`,
		key, toMillis(s.now()),
	).Scan(&value)
	if err != nil {
		return "", mapNotFound("get and delete", err)
	}
	return value, nil
}

func (s *Store) CompareAndSwap(ctx context.Context, key, expected, next string, ttl time.Duration) (bool, error) {
	if err := store.ValidateTTL(ttl); err != nil {
		return false, err
	}

	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE kv_entries SET value = ?, expires_at = ?
		 WHERE key = ? AND value = ? AND expires_at > ?`,
		next, toMillis(now.Add(ttl)), key, expected, toMillis(now),
	)
	if err != nil {
		return false, unavailable("compare and swap", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("compare and swap", err)
	}
	return n == 1, nil
}

// DeletePrefix counts only live rows; expired rows under prefix are removed
// as well but not reported.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	var removed int64
	err := s.WithTx(ctx, func(tx *Tx) error {
		n := utf8.RuneCountInString(prefix)
		now := toMillis(s.now())

		if err := tx.tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM kv_entries WHERE substr(key, 1, ?) = ? AND expires_at > ?`,
			n, prefix, now,
		).Scan(&removed); err != nil {
			return unavailable("delete prefix", err)
		}

		if _, err := tx.tx.ExecContext(ctx,
			`DELETE FROM kv_entries WHERE substr(key, 1, ?) = ?`, n, prefix,
		); err != nil {
			return unavailable("delete prefix", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE expires_at <= ?`, toMillis(s.now()),
	)
	if err != nil {
		return 0, unavailable("delete expired", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("delete expired", err)
	}
	return n, nil
}
