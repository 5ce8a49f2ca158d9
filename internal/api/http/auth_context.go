package httpapi

import "context"

type authContextKey string

const principalKey authContextKey = "principal"

// Principal identifies the caller of an /api request.
type Principal struct {
	Subject       string
	Authenticated bool
}

var anonymous = &Principal{Subject: "anonymous"}

func withPrincipal(ctx context.Context, p *Principal) context.Context {
	if p == nil {
		return ctx
	}
	return context.WithValue(ctx, principalKey, p)
}

func principalFromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalKey).(*Principal); ok {
		return p
	}
	return anonymous
}

// userFor prefers an explicit user id from the request body.
func userFor(ctx context.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return principalFromContext(ctx).Subject
}
