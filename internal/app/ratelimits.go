package app

import (
	"context"
	"errors"

	"github.com/ncecere/open_voice_gateway/internal/limits"
	"github.com/ncecere/open_voice_gateway/internal/requestctx"
)

// DefaultCost is charged by every metered route except the pipeline.
const DefaultCost = 1

// PipelineCost is the configured pipeline charge, three by default.
func (c *Container) PipelineCost() int {
	if c == nil || c.Config == nil || c.Config.RateLimits.PipelineCost <= 0 {
		return 3
	}
	return c.Config.RateLimits.PipelineCost
}

// CheckRateLimit charges cost tokens to the caller's bucket. A rejection
// returns limits.ErrLimitExceeded and is counted against route.
func (c *Container) CheckRateLimit(ctx context.Context, rc *requestctx.Context, route string, cost int) (limits.Headers, error) {
	if c == nil || c.RateLimiter == nil {
		return limits.Headers{}, nil
	}
	identity := limits.AnonymousIdentity
	if rc != nil && rc.Identity != "" {
		identity = rc.Identity
	}
	headers, err := c.RateLimiter.Check(ctx, identity, cost)
	if errors.Is(err, limits.ErrLimitExceeded) {
		c.Observability.RateLimited(route)
	}
	return headers, err
}
