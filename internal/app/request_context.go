package app

import (
	"errors"
	"strings"

	"github.com/ncecere/open_voice_gateway/internal/limits"
	"github.com/ncecere/open_voice_gateway/internal/requestctx"
)

const authBearerPrefix = "bearer "

var (
	ErrMissingAPIKey = errors.New("missing API key")
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// BuildRequestContext resolves the caller from an Authorization header
// value. With no keys configured every caller shares the anonymous
// identity.
func (c *Container) BuildRequestContext(authorization, requestID string) (*requestctx.Context, error) {
	if c == nil || !c.APIKeys.Enabled() {
		return &requestctx.Context{Identity: limits.AnonymousIdentity, Anonymous: true, RequestID: requestID}, nil
	}

	raw := strings.TrimSpace(authorization)
	if raw == "" {
		return nil, ErrMissingAPIKey
	}
	if !strings.HasPrefix(strings.ToLower(raw), authBearerPrefix) {
		return nil, ErrInvalidAPIKey
	}
	key := strings.TrimSpace(raw[len(authBearerPrefix):])

	keyID, ok := c.APIKeys.Authenticate(key)
	if !ok {
		return nil, ErrInvalidAPIKey
	}
	return &requestctx.Context{Identity: keyID, KeyID: keyID, RequestID: requestID}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(authorization string) (string, bool) {
	raw := strings.TrimSpace(authorization)
	if !strings.HasPrefix(strings.ToLower(raw), authBearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(raw[len(authBearerPrefix):])
	return token, token != ""
}
