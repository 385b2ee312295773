package limits

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:bucket:"

// tokenBucketScript refills and conditionally deducts atomically. It returns
// {allowed, tokens_before_deduction}; the float is returned as a string so
// redis does not truncate it to an integer.
var tokenBucketScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local cost = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'last')
local tokens = tonumber(state[1])
local last = tonumber(state[2])
if tokens == nil or last == nil then
  tokens = limit
else
  local elapsed = now - last
  if elapsed > 0 then
    tokens = math.min(limit, tokens + elapsed * limit / 60)
  end
end

local before = tokens
local allowed = 0
if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'last', tostring(now))
redis.call('EXPIRE', KEYS[1], ttl)
return {allowed, tostring(before)}
`)

// RedisLimiter shares token buckets across replicas through redis.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, requestsPerMinute int) *RedisLimiter {
	return &RedisLimiter{client: client, limit: requestsPerMinute, now: time.Now}
}

func (l *RedisLimiter) Check(ctx context.Context, identity string, cost int) (Headers, error) {
	if l == nil || l.client == nil || l.limit <= 0 {
		return Headers{}, nil
	}
	if identity == "" {
		identity = AnonymousIdentity
	}
	cost = normalizeCost(cost)

	now := float64(l.now().UnixMicro()) / 1e6
	res, err := tokenBucketScript.Run(ctx, l.client,
		[]string{redisKeyPrefix + identity},
		l.limit,
		cost,
		strconv.FormatFloat(now, 'f', 6, 64),
		120,
	).Slice()
	if err != nil {
		return Headers{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return Headers{}, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}

	raw, ok := res[1].(string)
	if !ok {
		return Headers{}, fmt.Errorf("rate limit script: unexpected token value %T", res[1])
	}
	before, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Headers{}, fmt.Errorf("rate limit script: parse tokens: %w", err)
	}

	headers, allowed := decide(l.limit, before, cost)
	if !allowed {
		return headers, ErrLimitExceeded
	}
	return headers, nil
}
