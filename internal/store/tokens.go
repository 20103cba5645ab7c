package store

import (
	"context"
	"time"
)

// Revoke records a token ID as invalid until expiresAt. Revoking twice is a no-op.
func (s *Store) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, expires_at) VALUES ($1, $2)
		 ON CONFLICT (jti) DO NOTHING`,
		jti, expiresAt.UTC(),
	)
	return err
}

// IsRevoked reports whether a token ID has been revoked.
func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM revoked_tokens WHERE jti = $1`, jti,
	).Scan(&count)
	return count > 0, err
}

// PurgeExpiredRevocations removes revocations whose tokens have expired anyway.
func (s *Store) PurgeExpiredRevocations(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < $1`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
