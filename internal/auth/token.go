package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// TokenTypeAccess is the short-lived per-request credential
	TokenTypeAccess = "access"
	// TokenTypeRefresh is the longer-lived rotation credential
	TokenTypeRefresh = "refresh"
)

var (
	// ErrTokenInvalid covers bad signature, wrong type, and expiry
	ErrTokenInvalid = errors.New("token invalid or expired")
	// ErrTokenRevoked means the refresh jti is blacklisted
	ErrTokenRevoked = errors.New("token revoked")
)

// Claims are the JWT claims carried by both token kinds
type Claims struct {
	UserID    int64  `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Blacklist records revoked refresh token ids. BlacklistJTI must be
// atomic: it reports whether this call inserted the jti, so two
// concurrent rotations of the same token resolve to exactly one winner.
type Blacklist interface {
	BlacklistJTI(ctx context.Context, jti string, userID int64, expiresAt time.Time) (inserted bool, err error)
	IsJTIBlacklisted(ctx context.Context, jti string) (bool, error)
}

// TokenPair is one access/refresh issuance
type TokenPair struct {
	Access  string
	Refresh string
}

// Codec issues, verifies, rotates, and revokes the session tokens
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	blacklist  Blacklist
	now        func() time.Time
}

// NewCodec creates a token codec bound to the process-wide secret
func NewCodec(secret string, accessTTL, refreshTTL time.Duration, blacklist Blacklist) *Codec {
	return &Codec{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		blacklist:  blacklist,
		now:        time.Now,
	}
}

// AccessTTL returns the configured access token lifetime
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the configured refresh token lifetime
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// Issue mints a new access/refresh pair for a user
func (c *Codec) Issue(userID int64) (*TokenPair, error) {
	access, err := c.sign(userID, TokenTypeAccess, c.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := c.sign(userID, TokenTypeRefresh, c.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &TokenPair{Access: access, Refresh: refresh}, nil
}

func (c *Codec) sign(userID int64, tokenType string, ttl time.Duration) (string, error) {
	now := c.now()
	claims := Claims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(c.secret)
}

// Verify parses and validates a raw token of the expected type.
// Refresh tokens are additionally checked against the blacklist.
func (c *Codec) Verify(ctx context.Context, raw, expectedType string) (*Claims, error) {
	claims := &Claims{}

	t, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil || !t.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.TokenType != expectedType || claims.ID == "" {
		return nil, ErrTokenInvalid
	}

	if expectedType == TokenTypeRefresh {
		revoked, err := c.blacklist.IsJTIBlacklisted(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check blacklist: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}

// Rotate blacklists the presented refresh jti and issues a new pair.
// The blacklist insert decides the winner under concurrent use: the
// second caller gets ErrTokenRevoked, never a second pair.
func (c *Codec) Rotate(ctx context.Context, refreshClaims *Claims) (*TokenPair, error) {
	inserted, err := c.blacklist.BlacklistJTI(ctx, refreshClaims.ID, refreshClaims.UserID, refreshClaims.ExpiresAt.Time)
	if err != nil {
		return nil, fmt.Errorf("failed to blacklist refresh token: %w", err)
	}
	if !inserted {
		return nil, ErrTokenRevoked
	}

	return c.Issue(refreshClaims.UserID)
}

// Revoke blacklists a refresh jti unconditionally. Revoking an
// already-blacklisted token is a no-op.
func (c *Codec) Revoke(ctx context.Context, refreshClaims *Claims) error {
	_, err := c.blacklist.BlacklistJTI(ctx, refreshClaims.ID, refreshClaims.UserID, refreshClaims.ExpiresAt.Time)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}
