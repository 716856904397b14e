package auth

import (
	"context"
	"time"
)

// Principal is the identity behind a validated access token.
type Principal struct {
	UserID    int
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
