package common

import "context"

type ctxKey string

const principalKey ctxKey = "auth/principal"

// Principal is the caller identity verified from a bearer token.
type Principal struct {
	UserID string
	Role   string
}

// WithPrincipal stores the authenticated caller on the provided context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom extracts the authenticated caller from the context if present.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok || p.UserID == "" {
		return Principal{}, false
	}
	return p, true
}

// UserID extracts the authenticated user identifier from the context if present.
func UserID(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	return p.UserID, ok
}
