package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Persister interface {
	Persist(ctx context.Context, job Job) error
}

type WriterOptions struct {
	QueueSize  int
	Workers    int
	JobTimeout time.Duration
	Metrics    Metrics
	Logger     *slog.Logger
}

// Writer persists jobs on a bounded queue drained by a fixed set of
// workers. Jobs never inherit a request context.
type Writer struct {
	persister Persister
	jobs      chan Job
	timeout   time.Duration
	metrics   Metrics
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewWriter(p Persister, opts WriterOptions) *Writer {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	w := &Writer{
		persister: p,
		jobs:      make(chan Job, opts.QueueSize),
		timeout:   opts.JobTimeout,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
	for i := 0; i < opts.Workers; i++ {
		w.wg.Add(1)
		go w.run()
	}
	return w
}

// Enqueue never blocks. It reports false when the job was dropped because
// the queue is full or the writer is closed.
func (w *Writer) Enqueue(job Job) bool {
	if w == nil {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.dropped("closed", job)
		return false
	}
	select {
	case w.jobs <- job:
		return true
	default:
		w.dropped("queue_full", job)
		return false
	}
}

// Close stops accepting jobs and waits for the queue to drain.
func (w *Writer) Close() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Writer) run() {
	defer w.wg.Done()
	for job := range w.jobs {
		w.handle(job)
	}
}

func (w *Writer) handle(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic: %v", rec)
			}
		}()
		return w.persister.Persist(ctx, job)
	}()
	if err != nil {
		w.logger.Warn("history: failed to save message",
			slog.String("session_id", job.SessionID.String()),
			slog.String("error", err.Error()))
		w.outcome("failed")
		return
	}
	w.outcome("ok")
}

func (w *Writer) dropped(reason string, job Job) {
	w.logger.Warn("history: job dropped", slog.String("reason", reason), slog.String("session_id", job.SessionID.String()))
	if w.metrics != nil {
		w.metrics.HistoryDropped(reason)
	}
}

func (w *Writer) outcome(outcome string) {
	if w.metrics != nil {
		w.metrics.HistoryJob(outcome)
	}
}
