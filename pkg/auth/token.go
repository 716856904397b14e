// Package auth issues and validates JWT access/refresh pairs and verifies
// passwords. Refresh tokens are single-use: each refresh consumes the stored
// session and mints a new pair.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"rapport/pkg/apperr"
	"rapport/pkg/models"
	"rapport/pkg/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

type Claims struct {
	UserID    int    `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// SessionStore persists refresh-token sessions by token hash.
type SessionStore interface {
	CreateSession(ctx context.Context, s *models.Session) error
	ConsumeSession(ctx context.Context, tokenHash string, now time.Time) (*models.Session, error)
	RevokeSession(ctx context.Context, tokenHash string) error
}

type IssuerConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	sessions   SessionStore
}

func NewIssuer(cfg IssuerConfig, sessions SessionStore) *Issuer {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Issuer{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        now,
		sessions:   sessions,
	}
}

func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// HashToken is the form a refresh token is stored in.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Issue mints a new pair for userID and records the refresh token as a session.
func (i *Issuer) Issue(ctx context.Context, userID int, meta models.SessionMeta) (*models.TokenPair, error) {
	now := i.now()

	access, accessExp, err := i.sign(userID, TypeAccess, now, i.accessTTL)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "could not sign access token", err)
	}
	refresh, refreshExp, err := i.sign(userID, TypeRefresh, now, i.refreshTTL)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "could not sign refresh token", err)
	}

	err = i.sessions.CreateSession(ctx, &models.Session{
		UserID:    userID,
		TokenHash: HashToken(refresh),
		UserAgent: meta.UserAgent,
		IP:        meta.IP,
		ExpiresAt: refreshExp,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "could not create session", err)
	}

	return &models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (i *Issuer) sign(userID int, typ string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := jwt.NewNumericDate(now.Add(ttl))
	claims := Claims{
		UserID:    userID,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
			ID:        uuid.NewString(),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	return s, exp.Time, err
}

// Validate checks an access token and returns its principal.
func (i *Issuer) Validate(token string) (*Principal, error) {
	claims, err := i.parse(token, TypeAccess)
	if err != nil {
		return nil, err
	}
	return &Principal{
		UserID:    claims.UserID,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (i *Issuer) parse(raw, want string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, apperr.ErrTokenExpired
	case err != nil:
		return nil, apperr.ErrTokenInvalid
	case claims.TokenType != want || claims.UserID <= 0 || claims.IssuedAt == nil:
		return nil, apperr.ErrTokenInvalid
	}
	return claims, nil
}

// Refresh consumes refreshToken and issues a new pair. A token can be used
// once; replaying it yields ErrTokenInvalid.
func (i *Issuer) Refresh(ctx context.Context, refreshToken string, meta models.SessionMeta) (*models.TokenPair, int, error) {
	claims, err := i.parse(refreshToken, TypeRefresh)
	if err != nil {
		return nil, 0, err
	}

	sess, err := i.sessions.ConsumeSession(ctx, HashToken(refreshToken), i.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, 0, apperr.ErrTokenInvalid
	}
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.CodeInternal, "could not consume session", err)
	}
	if sess.UserID != claims.UserID {
		return nil, 0, apperr.ErrTokenInvalid
	}

	pair, err := i.Issue(ctx, sess.UserID, meta)
	if err != nil {
		return nil, 0, err
	}
	return pair, sess.UserID, nil
}

// Revoke invalidates a refresh token. Revoking an unknown or already revoked
// token succeeds.
func (i *Issuer) Revoke(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := i.sessions.RevokeSession(ctx, HashToken(refreshToken)); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "could not revoke session", err)
	}
	return nil
}
