package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/ncecere/open_voice_gateway/internal/db"
	"github.com/ncecere/open_voice_gateway/internal/storage/blob"
)

const fkViolation = "23503"

var ErrRecorderUnavailable = errors.New("history recorder unavailable")

type txQueries interface {
	GetSessionForUpdate(ctx context.Context, id pgtype.UUID) (db.Session, error)
	CreateMessage(ctx context.Context, arg db.CreateMessageParams) (db.Message, error)
	TouchSession(ctx context.Context, arg db.TouchSessionParams) error
}

type messageStore interface {
	InTx(ctx context.Context, fn func(txQueries) error) error
	SetMessageEmbedding(ctx context.Context, arg db.SetMessageEmbeddingParams) error
}

type Transcoder interface {
	EncodeOpus(ctx context.Context, input []byte) ([]byte, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Metrics interface {
	HistoryJob(outcome string)
	HistoryDropped(reason string)
}

type pgStore struct {
	pool    *pgxpool.Pool
	queries *db.Queries
}

func (s pgStore) InTx(ctx context.Context, fn func(txQueries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s pgStore) SetMessageEmbedding(ctx context.Context, arg db.SetMessageEmbeddingParams) error {
	return s.queries.SetMessageEmbedding(ctx, arg)
}

// RecorderOptions wires the optional collaborators. A nil Blobs or
// Transcoder disables audio retention; a nil Embedder disables search
// indexing.
type RecorderOptions struct {
	Blobs      blob.Store
	Transcoder Transcoder
	Embedder   Embedder
	Metrics    Metrics
	Logger     *slog.Logger
}

// Recorder writes a message and its audio for an existing session.
type Recorder struct {
	store      messageStore
	blobs      blob.Store
	transcoder Transcoder
	embedder   Embedder
	metrics    Metrics
	logger     *slog.Logger
	now        func() time.Time
	newID      func() uuid.UUID
}

func NewRecorder(pool *pgxpool.Pool, queries *db.Queries, opts RecorderOptions) *Recorder {
	return newRecorder(pgStore{pool: pool, queries: queries}, opts)
}

func newRecorder(store messageStore, opts RecorderOptions) *Recorder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:      store,
		blobs:      opts.Blobs,
		transcoder: opts.Transcoder,
		embedder:   opts.Embedder,
		metrics:    opts.Metrics,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.New,
	}
}

var errSessionMissing = errors.New("session missing")

// Persist stores job as a new message. A session that no longer exists is
// not an error: the job is dropped with a warning.
func (r *Recorder) Persist(ctx context.Context, job Job) error {
	if r == nil || r.store == nil {
		return ErrRecorderUnavailable
	}

	msgID := r.newID()
	sessionID := pgtype.UUID{Bytes: job.SessionID, Valid: true}
	now := r.now().UTC()

	err := r.store.InTx(ctx, func(q txQueries) error {
		session, err := q.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errSessionMissing
			}
			return fmt.Errorf("load session: %w", err)
		}

		var audioPath pgtype.Text
		if job.AudioRequested && session.AudioEnabled && len(job.Audio) > 0 {
			if key, ok := r.storeAudio(ctx, job, msgID); ok {
				audioPath = pgtype.Text{String: key, Valid: true}
			}
		}

		if _, err := q.CreateMessage(ctx, db.CreateMessageParams{
			ID:             pgtype.UUID{Bytes: msgID, Valid: true},
			SessionID:      sessionID,
			Direction:      job.Direction,
			OriginalText:   job.OriginalText,
			TranslatedText: job.TranslatedText,
			OriginalLang:   job.OriginalLang,
			TranslatedLang: job.TranslatedLang,
			AudioPath:      audioPath,
			SttMs:          int4(&job.Timings.STTMs),
			TranslateMs:    int4(&job.Timings.TranslateMs),
			TtsMs:          int4(job.Timings.TTSMs),
			ModelUsed:      pgtype.Text{String: job.ModelUsed, Valid: job.ModelUsed != ""},
			CreatedAt:      pgtype.Timestamptz{Time: now, Valid: true},
		}); err != nil {
			if isForeignKeyViolation(err) {
				return errSessionMissing
			}
			return fmt.Errorf("insert message: %w", err)
		}
		if err := q.TouchSession(ctx, db.TouchSessionParams{
			ID:        sessionID,
			UpdatedAt: pgtype.Timestamptz{Time: now, Valid: true},
		}); err != nil {
			return fmt.Errorf("touch session: %w", err)
		}
		return nil
	})
	if errors.Is(err, errSessionMissing) {
		r.logger.Warn("history: session not found, dropping message", slog.String("session_id", job.SessionID.String()))
		if r.metrics != nil {
			r.metrics.HistoryDropped("session_missing")
		}
		return nil
	}
	if err != nil {
		return err
	}

	r.logger.Debug("history: message saved", slog.String("message_id", msgID.String()), slog.String("session_id", job.SessionID.String()))
	r.indexMessage(ctx, msgID, job.OriginalText)
	return nil
}

func (r *Recorder) storeAudio(ctx context.Context, job Job, msgID uuid.UUID) (string, bool) {
	if r.blobs == nil || r.transcoder == nil {
		return "", false
	}
	opus, err := r.transcoder.EncodeOpus(ctx, job.Audio)
	if err != nil {
		r.logger.Debug("history: opus encoding failed", slog.String("error", err.Error()))
		return "", false
	}
	key := blob.MessageKey(job.SessionID.String(), msgID.String())
	if err := r.blobs.Put(ctx, key, opus, "audio/opus"); err != nil {
		r.logger.Warn("history: store audio", slog.String("key", key), slog.String("error", err.Error()))
		return "", false
	}
	return key, true
}

func (r *Recorder) indexMessage(ctx context.Context, msgID uuid.UUID, text string) {
	if r.embedder == nil {
		return
	}
	vec, err := r.embedder.Embed(ctx, text)
	if err == nil {
		var embedding pgvector.Vector
		if embedding, err = db.NewEmbedding(vec); err == nil {
			err = r.store.SetMessageEmbedding(ctx, db.SetMessageEmbeddingParams{
				ID:        pgtype.UUID{Bytes: msgID, Valid: true},
				Embedding: embedding,
			})
		}
	}
	if err != nil {
		r.logger.Warn("history: embedding failed", slog.String("message_id", msgID.String()), slog.String("error", err.Error()))
	}
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == fkViolation
}

func int4(v *int64) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(*v), Valid: true}
}
