package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/pavelanni/biopractice/internal/model"
)

// CreateUser inserts a new user. Emails are stored lower-cased and must be unique.
func (s *Store) CreateUser(ctx context.Context, u model.User) (int64, error) {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	existing, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, model.Conflict(model.ErrEmailTaken)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO users (email, username, password_hash, active, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		email, u.Username, u.PasswordHash, u.Active, time.Now().UTC(),
	).Scan(&id)
	if isUniqueViolation(err) {
		// Lost a race with a concurrent registration.
		return 0, model.Conflict(model.ErrEmailTaken)
	}
	if err != nil {
		slog.Error("failed to create user", "email", email, "error", err)
		return 0, err
	}
	slog.Info("created user", "id", id, "username", u.Username)
	return id, nil
}

// GetUserByEmail returns a user by email, or nil if none exists.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, username, password_hash, active, created_at
		 FROM users WHERE email = $1`, strings.ToLower(strings.TrimSpace(email)),
	).Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Active, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID returns a user by ID, or nil if none exists.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, username, password_hash, active, created_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Active, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser removes a user and, by cascade, every session they own.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.NotFound(model.ErrNotFound)
	}
	slog.Info("deleted user", "id", id)
	return nil
}

// UserCount returns the total number of users.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
