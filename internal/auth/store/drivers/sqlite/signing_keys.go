package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/aussiebroadwan/mentorlink/internal/auth/store"
)

type signingKeysRepo struct {
	q querier
}

func (s *Store) SigningKeys() store.SigningKeys { return &signingKeysRepo{q: s.db} }

func (r *signingKeysRepo) CreateSigningKey(ctx context.Context, key domain.SigningKey) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO signing_keys (kid, algorithm, private_key_encrypted, created_at) VALUES (?, ?, ?, ?)`,
		key.KID, key.Algorithm, key.PrivateKeyEncrypted, toMillis(key.CreatedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return store.ErrAlreadyExists
		}
		return unavailable("create signing key", err)
	}
	return nil
}

func (r *signingKeysRepo) ListSigningKeys(ctx context.Context) ([]domain.SigningKey, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT kid, algorithm, private_key_encrypted, created_at, retired_at, expires_at
		 FROM signing_keys ORDER BY created_at, kid`,
	)
	if err != nil {
		return nil, unavailable("list signing keys", err)
	}
	defer rows.Close()

	var keys []domain.SigningKey
	for rows.Next() {
		var (
			k                    domain.SigningKey
			createdAt            int64
			retiredAt, expiresAt sql.NullInt64
		)
		if err := rows.Scan(&k.KID, &k.Algorithm, &k.PrivateKeyEncrypted, &createdAt, &retiredAt, &expiresAt); err != nil {
			return nil, unavailable("scan signing key", err)
		}
		k.CreatedAt = fromMillis(createdAt)
		if retiredAt.Valid {
			t := fromMillis(retiredAt.Int64)
			k.RetiredAt = &t
		}
		if expiresAt.Valid {
			k.ExpiresAt = fromMillis(expiresAt.Int64)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list signing keys", err)
	}
	return keys, nil
}

func (r *signingKeysRepo) RetireSigningKey(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE signing_keys SET retired_at = ?, expires_at = ? WHERE kid = ?`,
		toMillis(retiredAt), toMillis(expiresAt), kid,
	)
	if err != nil {
		return unavailable("retire signing key", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("retire signing key", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *signingKeysRepo) DeleteSigningKey(ctx context.Context, kid string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM signing_keys WHERE kid = ?`, kid); err != nil {
		return unavailable("delete signing key", err)
	}
	return nil
}
