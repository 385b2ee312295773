package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ncecere/open_voice_gateway/internal/db"
	"github.com/ncecere/open_voice_gateway/internal/models"
	"github.com/ncecere/open_voice_gateway/internal/services/organizations"
	"github.com/ncecere/open_voice_gateway/internal/storage/blob"
)

const (
	defaultRetention = 30 * 24 * time.Hour

	defaultSessionLimit = 20
	maxSessionLimit     = 100
	defaultMessageLimit = 50
	maxMessageLimit     = 200
)

var (
	ErrServiceUnavailable = errors.New("session service not initialized")
	ErrNotFound           = errors.New("session not found")
	ErrMessageNotFound    = errors.New("message not found")
	ErrAudioNotFound      = errors.New("audio not found")
	ErrInvalidLanguage    = errors.New("source_lang and target_lang are required")
)

type sessionQueries interface {
	GetOrganization(ctx context.Context, id pgtype.UUID) (db.Organization, error)
	CreateSession(ctx context.Context, arg db.CreateSessionParams) (db.Session, error)
	GetSession(ctx context.Context, id pgtype.UUID) (db.Session, error)
	ListSessions(ctx context.Context, arg db.ListSessionsParams) ([]db.ListSessionsRow, error)
	CountSessions(ctx context.Context) (int64, error)
	CountMessagesBySession(ctx context.Context, sessionID pgtype.UUID) (int64, error)
	UpdateSession(ctx context.Context, arg db.UpdateSessionParams) (db.Session, error)
	DeleteSession(ctx context.Context, id pgtype.UUID) (int64, error)
	ListMessagesBySession(ctx context.Context, arg db.ListMessagesBySessionParams) ([]db.Message, error)
	GetMessage(ctx context.Context, arg db.GetMessageParams) (db.Message, error)
	ListExpiredSessionIDs(ctx context.Context, now pgtype.Timestamptz) ([]pgtype.UUID, error)
	DeleteSessionsByIDs(ctx context.Context, ids []pgtype.UUID) (int64, error)
}

// Service manages translation sessions, their messages and stored audio.
type Service struct {
	queries sessionQueries
	blobs   blob.Store
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(queries sessionQueries, blobs blob.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{queries: queries, blobs: blobs, logger: logger, now: time.Now}
}

// Create opens a session. Its expiry comes from the owning organization's
// retention policy, or 30 days without one; "unlimited" never expires.
// When audio is not requested the organization default applies.
func (s *Service) Create(ctx context.Context, req models.SessionCreate) (models.Session, error) {
	if s == nil || s.queries == nil {
		return models.Session{}, ErrServiceUnavailable
	}
	source := strings.TrimSpace(req.SourceLang)
	target := strings.TrimSpace(req.TargetLang)
	if source == "" || target == "" {
		return models.Session{}, ErrInvalidLanguage
	}

	now := s.now().UTC()
	expires := pgtype.Timestamptz{Time: now.Add(defaultRetention), Valid: true}
	audio := req.AudioEnabled
	var orgID pgtype.UUID

	if req.OrgID != nil && strings.TrimSpace(*req.OrgID) != "" {
		id, err := uuid.Parse(strings.TrimSpace(*req.OrgID))
		if err != nil {
			return models.Session{}, organizations.ErrNotFound
		}
		orgID = pgtype.UUID{Bytes: id, Valid: true}
		org, err := s.queries.GetOrganization(ctx, orgID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.Session{}, organizations.ErrNotFound
			}
			return models.Session{}, err
		}
		d, ok, err := organizations.RetentionDuration(org.RetentionPolicy)
		switch {
		case err != nil:
			s.logger.Warn("sessions: unknown retention policy, using default", slog.String("policy", org.RetentionPolicy))
		case !ok:
			expires = pgtype.Timestamptz{}
		default:
			expires = pgtype.Timestamptz{Time: now.Add(d), Valid: true}
		}
		if !req.AudioEnabled {
			audio = org.AudioEnabledDefault
		}
	}

	var title pgtype.Text
	if req.Title != nil {
		title = pgtype.Text{String: *req.Title, Valid: true}
	}
	row, err := s.queries.CreateSession(ctx, db.CreateSessionParams{
		ID:           pgtype.UUID{Bytes: uuid.New(), Valid: true},
		OrgID:        orgID,
		Title:        title,
		SourceLang:   source,
		TargetLang:   target,
		AudioEnabled: audio,
		CreatedAt:    pgtype.Timestamptz{Time: now, Valid: true},
		ExpiresAt:    expires,
	})
	if err != nil {
		return models.Session{}, fmt.Errorf("create session: %w", err)
	}
	zero := int64(0)
	return toSession(row, &zero), nil
}

// List returns sessions newest-activity first.
func (s *Service) List(ctx context.Context, limit, offset int) (models.SessionList, error) {
	if s == nil || s.queries == nil {
		return models.SessionList{}, ErrServiceUnavailable
	}
	limit = clamp(limit, defaultSessionLimit, maxSessionLimit)
	if offset < 0 {
		offset = 0
	}
	total, err := s.queries.CountSessions(ctx)
	if err != nil {
		return models.SessionList{}, err
	}
	rows, err := s.queries.ListSessions(ctx, db.ListSessionsParams{Limit: int32(limit), Offset: int32(offset)})
	if err != nil {
		return models.SessionList{}, err
	}
	out := models.SessionList{Sessions: make([]models.Session, 0, len(rows)), Total: total}
	for _, row := range rows {
		count := row.MessageCount
		out.Sessions = append(out.Sessions, toSession(row.Session, &count))
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.Session, error) {
	if s == nil || s.queries == nil {
		return models.Session{}, ErrServiceUnavailable
	}
	row, err := s.getRow(ctx, id)
	if err != nil {
		return models.Session{}, err
	}
	return s.withCount(ctx, row)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, update models.SessionUpdate) (models.Session, error) {
	if s == nil || s.queries == nil {
		return models.Session{}, ErrServiceUnavailable
	}
	params := db.UpdateSessionParams{
		ID:        pgtype.UUID{Bytes: id, Valid: true},
		UpdatedAt: pgtype.Timestamptz{Time: s.now().UTC(), Valid: true},
	}
	if update.Title != nil {
		params.Title = pgtype.Text{String: *update.Title, Valid: true}
	}
	if update.AudioEnabled != nil {
		params.AudioEnabled = pgtype.Bool{Bool: *update.AudioEnabled, Valid: true}
	}
	row, err := s.queries.UpdateSession(ctx, params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, ErrNotFound
		}
		return models.Session{}, err
	}
	return s.withCount(ctx, row)
}

// Delete removes the session, its messages going with it through the
// foreign key cascade, and then its audio (best effort). The row goes
// first so a recorder holding the session lock cannot write audio for a
// session whose files were already removed.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if s == nil || s.queries == nil {
		return ErrServiceUnavailable
	}
	n, err := s.queries.DeleteSession(ctx, pgtype.UUID{Bytes: id, Valid: true})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	s.removeAudio(ctx, id.String())
	return nil
}

// ListMessages returns a session's messages oldest first.
func (s *Service) ListMessages(ctx context.Context, sessionID uuid.UUID, limit, offset int) (models.MessageList, error) {
	if s == nil || s.queries == nil {
		return models.MessageList{}, ErrServiceUnavailable
	}
	if _, err := s.getRow(ctx, sessionID); err != nil {
		return models.MessageList{}, err
	}
	limit = clamp(limit, defaultMessageLimit, maxMessageLimit)
	if offset < 0 {
		offset = 0
	}
	sid := pgtype.UUID{Bytes: sessionID, Valid: true}
	total, err := s.queries.CountMessagesBySession(ctx, sid)
	if err != nil {
		return models.MessageList{}, err
	}
	rows, err := s.queries.ListMessagesBySession(ctx, db.ListMessagesBySessionParams{SessionID: sid, Limit: int32(limit), Offset: int32(offset)})
	if err != nil {
		return models.MessageList{}, err
	}
	out := models.MessageList{Messages: make([]models.Message, 0, len(rows)), Total: total}
	for _, row := range rows {
		out.Messages = append(out.Messages, toMessage(row))
	}
	return out, nil
}

// MessageAudio returns the stored opus clip for one message.
func (s *Service) MessageAudio(ctx context.Context, sessionID, messageID uuid.UUID) ([]byte, error) {
	if s == nil || s.queries == nil {
		return nil, ErrServiceUnavailable
	}
	msg, err := s.queries.GetMessage(ctx, db.GetMessageParams{
		ID:        pgtype.UUID{Bytes: messageID, Valid: true},
		SessionID: pgtype.UUID{Bytes: sessionID, Valid: true},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if !msg.AudioPath.Valid || s.blobs == nil {
		return nil, ErrAudioNotFound
	}
	data, err := s.blobs.Get(ctx, msg.AudioPath.String)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, ErrAudioNotFound
		}
		return nil, err
	}
	return data, nil
}

// SweepExpired deletes every session past its expiry along with its
// audio. Sessions without an expiry are never touched.
func (s *Service) SweepExpired(ctx context.Context) (models.SweepResult, error) {
	if s == nil || s.queries == nil {
		return models.SweepResult{}, ErrServiceUnavailable
	}
	ids, err := s.queries.ListExpiredSessionIDs(ctx, pgtype.Timestamptz{Time: s.now().UTC(), Valid: true})
	if err != nil {
		return models.SweepResult{}, fmt.Errorf("list expired sessions: %w", err)
	}
	if len(ids) == 0 {
		return models.SweepResult{}, nil
	}
	n, err := s.queries.DeleteSessionsByIDs(ctx, ids)
	if err != nil {
		return models.SweepResult{}, fmt.Errorf("delete expired sessions: %w", err)
	}
	result := models.SweepResult{DeletedSessions: int(n)}
	for _, id := range ids {
		if s.removeAudio(ctx, uuid.UUID(id.Bytes).String()) {
			result.DeletedAudioDirs++
		}
	}
	return result, nil
}

func (s *Service) removeAudio(ctx context.Context, prefix string) bool {
	if s.blobs == nil {
		return false
	}
	removed, err := s.blobs.DeletePrefix(ctx, prefix)
	if err != nil {
		s.logger.Warn("sessions: remove audio", slog.String("session_id", prefix), slog.String("error", err.Error()))
	}
	return removed
}

func (s *Service) getRow(ctx context.Context, id uuid.UUID) (db.Session, error) {
	row, err := s.queries.GetSession(ctx, pgtype.UUID{Bytes: id, Valid: true})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.Session{}, ErrNotFound
		}
		return db.Session{}, err
	}
	return row, nil
}

func (s *Service) withCount(ctx context.Context, row db.Session) (models.Session, error) {
	count, err := s.queries.CountMessagesBySession(ctx, row.ID)
	if err != nil {
		return models.Session{}, err
	}
	return toSession(row, &count), nil
}

func clamp(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
