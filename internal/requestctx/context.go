package requestctx

import (
	"context"
)

type contextKey string

const fiberLocalsKey = "requestctx"

// Key is the typed context key used for storing the RequestContext.
var Key contextKey = "open-voice-gateway/requestctx"

// Context captures the caller resolved from the API key.
type Context struct {
	// Identity is the rate-limit bucket key: the key fingerprint, or the
	// anonymous identity when auth is disabled.
	Identity  string
	KeyID     string
	Anonymous bool
	RequestID string
}

// WithContext embeds the request context into the parent context.
func WithContext(parent context.Context, rc *Context) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithValue(parent, Key, rc)
}

// FromContext retrieves the request context if present.
func FromContext(ctx context.Context) (*Context, bool) {
	if ctx == nil {
		return nil, false
	}
	rc, ok := ctx.Value(Key).(*Context)
	return rc, ok
}

// FiberLocalsKey returns the key used in fiber.Locals for request context storage.
func FiberLocalsKey() string {
	return fiberLocalsKey
}
