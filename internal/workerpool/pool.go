package workerpool

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many CPU-heavy local jobs (whisper, piper) run at once so
// request goroutines queue here instead of oversubscribing the host.
type Pool struct {
	sem  *semaphore.Weighted
	size int64
}

func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// Do runs fn once a slot is free. Waiting honours ctx cancellation.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	if p == nil {
		return fn(ctx)
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("worker pool: %w", err)
	}
	defer p.sem.Release(1)
	return fn(ctx)
}

func (p *Pool) Size() int {
	if p == nil {
		return 0
	}
	return int(p.size)
}
