package identity

import (
	"context"
	"errors"
	"strings"
)

var ErrInvalidToken = errors.New("invalid identity token")

// Caller is an authenticated principal.
type Caller struct {
	UID string
}

type Verifier interface {
	Verify(ctx context.Context, token string) (*Caller, error)
}

type ctxKey struct{}

func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, caller)
}

// CallerFromContext returns nil when the request carried no verified identity.
func CallerFromContext(ctx context.Context) *Caller {
	caller, _ := ctx.Value(ctxKey{}).(*Caller)
	return caller
}

// ExtractBearerToken splits an Authorization header. ok is false when a header is
// present but not a usable bearer token.
func ExtractBearerToken(header string) (token string, hasHeader bool, ok bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false, true
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", true, false
	}
	token = strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", true, false
	}
	return token, true, true
}
