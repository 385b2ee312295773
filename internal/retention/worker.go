package retention

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ncecere/open_voice_gateway/internal/models"
)

// Sweeper deletes sessions past their expiry.
type Sweeper interface {
	SweepExpired(ctx context.Context) (models.SweepResult, error)
}

type Metrics interface {
	RetentionSwept(sessions, audioDirs int)
}

// Worker runs the sweep once at start and then on every interval tick
// until its context is canceled. Sweep errors are logged and never stop
// the loop.
type Worker struct {
	sweeper  Sweeper
	interval time.Duration
	metrics  Metrics
	logger   *slog.Logger

	// mu serializes scheduled and admin-triggered sweeps.
	mu sync.Mutex
}

func New(sweeper Sweeper, interval time.Duration, metrics Metrics, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{sweeper: sweeper, interval: interval, metrics: metrics, logger: logger}
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.sweeper == nil {
		return
	}
	w.logger.Info("retention: sweeper started", slog.Duration("interval", w.interval))
	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("retention: sweeper stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// SweepNow runs one sweep on demand and returns its outcome.
func (w *Worker) SweepNow(ctx context.Context) (models.SweepResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	res, err := w.sweeper.SweepExpired(ctx)
	if w.metrics != nil && (res.DeletedSessions > 0 || res.DeletedAudioDirs > 0) {
		w.metrics.RetentionSwept(res.DeletedSessions, res.DeletedAudioDirs)
	}
	return res, err
}

func (w *Worker) runOnce(ctx context.Context) {
	res, err := w.SweepNow(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("retention: sweep failed", slog.String("error", err.Error()))
		return
	}
	if res.DeletedSessions > 0 {
		w.logger.Info("retention: swept expired sessions",
			slog.Int("sessions", res.DeletedSessions),
			slog.Int("audio_dirs", res.DeletedAudioDirs))
	}
}
