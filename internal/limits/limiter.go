package limits

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ncecere/open_voice_gateway/internal/config"
)

var ErrLimitExceeded = errors.New("rate limit exceeded")

// AnonymousIdentity is the shared bucket used when gateway auth is disabled.
const AnonymousIdentity = "__anonymous__"

const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Limiter gates requests per identity. Check returns advisory headers on
// both outcomes; a rejected call returns ErrLimitExceeded and leaves the
// bucket untouched.
type Limiter interface {
	Check(ctx context.Context, identity string, cost int) (Headers, error)
}

// Headers is the advisory rate-limit state for one call. The zero value
// means limiting is disabled and nothing should be emitted.
type Headers struct {
	Limit     int
	Remaining int
	Reset     int
}

func (h Headers) Empty() bool {
	return h.Limit <= 0
}

// Map renders the headers for an HTTP response.
func (h Headers) Map() map[string]string {
	if h.Empty() {
		return nil
	}
	return map[string]string{
		HeaderLimit:     strconv.Itoa(h.Limit),
		HeaderRemaining: strconv.Itoa(h.Remaining),
		HeaderReset:     strconv.Itoa(h.Reset),
	}
}

// New builds the limiter selected by cfg.Backend.
func New(cfg config.RateLimitConfig, client *redis.Client) (Limiter, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryLimiter(cfg.RequestsPerMinute, WithIdleTTL(cfg.IdleTTL)), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis rate limiter requires a redis client")
		}
		return NewRedisLimiter(client, cfg.RequestsPerMinute), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.Backend)
	}
}

// normalizeCost treats anything below one token as a single-token call so a
// caller can never add tokens to a bucket.
func normalizeCost(cost int) int {
	if cost < 1 {
		return 1
	}
	return cost
}

// decide applies one attempt against a refilled bucket. tokens is the
// balance after refill and before deduction.
func decide(limit int, tokens float64, cost int) (Headers, bool) {
	remaining := int(math.Floor(tokens - float64(cost)))
	if remaining < 0 {
		remaining = 0
	}
	allowed := tokens >= float64(cost)
	after := tokens
	if allowed {
		after -= float64(cost)
	}
	return Headers{
		Limit:     limit,
		Remaining: remaining,
		Reset:     secondsUntilFull(limit, after),
	}, allowed
}

// secondsUntilFull is how long the bucket needs to refill to capacity.
func secondsUntilFull(limit int, tokens float64) int {
	missing := float64(limit) - tokens
	if missing <= 0 {
		return 0
	}
	return int(math.Ceil(missing * 60 / float64(limit)))
}

func refill(limit int, tokens float64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return tokens
	}
	tokens += elapsed.Seconds() * float64(limit) / 60.0
	if tokens > float64(limit) {
		tokens = float64(limit)
	}
	return tokens
}
