package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/biopractice/internal/metrics"
	"github.com/pavelanni/biopractice/internal/model"
)

const minPasswordLen = 8

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u model.User) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
}

// RegisterRequest is the sign-up form.
type RegisterRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
}

// Accounts registers and authenticates users.
type Accounts struct {
	users  UserStore
	tokens *Tokens
}

// NewAccounts creates an Accounts service.
func NewAccounts(users UserStore, tokens *Tokens) *Accounts {
	return &Accounts{users: users, tokens: tokens}
}

// Register creates an account and signs the user in.
func (a *Accounts) Register(ctx context.Context, req RegisterRequest) (TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)
	if email == "" || username == "" || req.Password1 == "" {
		return TokenPair{}, model.Validation(model.ErrMissingFields)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return TokenPair{}, model.Validation(fmt.Errorf("%w: invalid email", model.ErrMissingFields))
	}
	if req.Password1 != req.Password2 {
		return TokenPair{}, model.Validation(model.ErrPasswordMismatch)
	}
	if len(req.Password1) < minPasswordLen {
		return TokenPair{}, model.Validation(model.ErrPasswordTooShort)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password1), bcrypt.DefaultCost)
	if err != nil {
		return TokenPair{}, fmt.Errorf("hash password: %w", err)
	}
	id, err := a.users.CreateUser(ctx, model.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Active:       true,
	})
	metrics.AuthAttempts.WithLabelValues("register", metrics.Status(err)).Inc()
	if err != nil {
		return TokenPair{}, err
	}
	return a.tokens.IssuePair(id)
}

// Login checks credentials and returns the user with a fresh token pair.
func (a *Accounts) Login(ctx context.Context, email, password string) (*model.User, TokenPair, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, TokenPair{}, model.Validation(model.ErrMissingFields)
	}
	user, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if user == nil || !user.Active {
		metrics.AuthAttempts.WithLabelValues("login", "failure").Inc()
		return nil, TokenPair{}, model.Unauthorized(model.ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		metrics.AuthAttempts.WithLabelValues("login", "failure").Inc()
		slog.Info("failed login", "user_id", user.ID)
		return nil, TokenPair{}, model.Unauthorized(model.ErrInvalidCredentials)
	}

	pair, err := a.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	metrics.AuthAttempts.WithLabelValues("login", "success").Inc()
	return user, pair, nil
}

// Refresh exchanges a refresh token for a new access token.
func (a *Accounts) Refresh(ctx context.Context, refresh string) (string, error) {
	if refresh == "" {
		return "", model.Validation(model.ErrMissingFields)
	}
	access, err := a.tokens.Refresh(ctx, refresh)
	metrics.AuthAttempts.WithLabelValues("refresh", metrics.Status(err)).Inc()
	return access, err
}

// Logout revokes a refresh token.
func (a *Accounts) Logout(ctx context.Context, refresh string) error {
	if refresh == "" {
		return model.Validation(model.ErrMissingFields)
	}
	err := a.tokens.Revoke(ctx, refresh)
	metrics.AuthAttempts.WithLabelValues("logout", metrics.Status(err)).Inc()
	return err
}

// User returns the account for userID.
func (a *Accounts) User(ctx context.Context, userID int64) (*model.User, error) {
	user, err := a.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active {
		return nil, model.Unauthorized(model.ErrInvalidToken)
	}
	return user, nil
}
