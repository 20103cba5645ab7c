// Package auth is the identity provider: accounts, JWT access and refresh
// tokens, and token revocation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pavelanni/biopractice/internal/model"
)

// TokenType distinguishes short-lived access tokens from refresh tokens.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

const issuer = "biopractice"

// Claims are the JWT claims carried by both token types. Subject holds the user ID
// and ID the token's unique jti.
type Claims struct {
	Type TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair is returned on register and login.
type TokenPair struct {
	Refresh string `json:"refresh"`
	Access  string `json:"access"`
}

// Revoker records revoked token IDs until the tokens would have expired anyway.
type Revoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Tokens issues and verifies HS256-signed tokens.
type Tokens struct {
	hmac       []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	revoker    Revoker
	now        func() time.Time
}

// NewTokens creates a token issuer. A nil revoker disables logout.
func NewTokens(secret string, accessTTL, refreshTTL time.Duration, revoker Revoker) *Tokens {
	return &Tokens{
		hmac:       []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		revoker:    revoker,
		now:        time.Now,
	}
}

// Issue signs a token of type typ for userID.
func (t *Tokens) Issue(userID int64, typ TokenType) (string, error) {
	ttl := t.accessTTL
	if typ == TokenRefresh {
		ttl = t.refreshTTL
	}
	now := t.now()
	claims := &Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(t.hmac)
}

// IssuePair signs a fresh refresh and access token for userID.
func (t *Tokens) IssuePair(userID int64) (TokenPair, error) {
	refresh, err := t.Issue(userID, TokenRefresh)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	access, err := t.Issue(userID, TokenAccess)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	return TokenPair{Refresh: refresh, Access: access}, nil
}

// Parse verifies a token's signature, expiry, type and revocation status.
func (t *Tokens) Parse(ctx context.Context, tokenStr string, typ TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return t.hmac, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return nil, model.Unauthorized(fmt.Errorf("%w: %v", model.ErrInvalidToken, err))
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Type != typ || claims.ID == "" {
		return nil, model.Unauthorized(model.ErrInvalidToken)
	}
	if t.revoker != nil {
		revoked, err := t.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, model.Unauthorized(model.ErrInvalidToken)
		}
	}
	return claims, nil
}

// UserID returns the user ID carried in the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.Unauthorized(model.ErrInvalidToken)
	}
	return id, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (t *Tokens) Refresh(ctx context.Context, refresh string) (string, error) {
	claims, err := t.Parse(ctx, refresh, TokenRefresh)
	if err != nil {
		return "", err
	}
	userID, err := claims.UserID()
	if err != nil {
		return "", err
	}
	return t.Issue(userID, TokenAccess)
}

// Revoke invalidates a refresh token. Revoking an already revoked token fails
// like any other invalid token.
func (t *Tokens) Revoke(ctx context.Context, refresh string) error {
	if t.revoker == nil {
		return errors.New("token revocation is not configured")
	}
	claims, err := t.Parse(ctx, refresh, TokenRefresh)
	if err != nil {
		return err
	}
	return t.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}
