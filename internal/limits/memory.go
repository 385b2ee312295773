package limits

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// MemoryLimiter keeps one token bucket per identity in process memory.
type MemoryLimiter struct {
	limit   int
	now     func() time.Time
	idleTTL time.Duration

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastEvict time.Time
}

type MemoryOption func(*MemoryLimiter)

// WithClock overrides the wall clock, mostly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithIdleTTL drops buckets that have not been touched for ttl. Zero keeps
// buckets for the life of the process.
func WithIdleTTL(ttl time.Duration) MemoryOption {
	return func(l *MemoryLimiter) {
		if ttl > 0 && ttl < time.Minute {
			// An idle minute refills any bucket, so shorter TTLs would
			// only churn allocations.
			ttl = time.Minute
		}
		l.idleTTL = ttl
	}
}

func NewMemoryLimiter(requestsPerMinute int, opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		limit:   requestsPerMinute,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *MemoryLimiter) Check(_ context.Context, identity string, cost int) (Headers, error) {
	if l == nil || l.limit <= 0 {
		return Headers{}, nil
	}
	if identity == "" {
		identity = AnonymousIdentity
	}
	cost = normalizeCost(cost)

	b := l.bucket(identity)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	b.tokens = refill(l.limit, b.tokens, now.Sub(b.lastRefill))
	b.lastRefill = now

	headers, allowed := decide(l.limit, b.tokens, cost)
	if !allowed {
		return headers, ErrLimitExceeded
	}
	b.tokens -= float64(cost)
	return headers, nil
}

// Size reports the number of live buckets.
func (l *MemoryLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *MemoryLimiter) bucket(identity string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.idleTTL > 0 && now.Sub(l.lastEvict) >= l.idleTTL {
		l.evictLocked(now)
	}

	b, ok := l.buckets[identity]
	if !ok {
		b = &bucket{tokens: float64(l.limit), lastRefill: now}
		l.buckets[identity] = b
	}
	return b
}

func (l *MemoryLimiter) evictLocked(now time.Time) {
	l.lastEvict = now
	for key, b := range l.buckets {
		b.mu.Lock()
		idle := now.Sub(b.lastRefill)
		b.mu.Unlock()
		if idle >= l.idleTTL {
			delete(l.buckets, key)
		}
	}
}
