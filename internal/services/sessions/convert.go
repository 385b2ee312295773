package sessions

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ncecere/open_voice_gateway/internal/db"
	"github.com/ncecere/open_voice_gateway/internal/models"
)

func toSession(row db.Session, count *int64) models.Session {
	out := models.Session{
		ID:           uuid.UUID(row.ID.Bytes).String(),
		SourceLang:   row.SourceLang,
		TargetLang:   row.TargetLang,
		AudioEnabled: row.AudioEnabled,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
		ExpiresAt:    timePtr(row.ExpiresAt),
		MessageCount: count,
	}
	if row.OrgID.Valid {
		id := uuid.UUID(row.OrgID.Bytes).String()
		out.OrgID = &id
	}
	if row.Title.Valid {
		title := row.Title.String
		out.Title = &title
	}
	return out
}

func toMessage(row db.Message) models.Message {
	return models.Message{
		ID:             uuid.UUID(row.ID.Bytes).String(),
		SessionID:      uuid.UUID(row.SessionID.Bytes).String(),
		Direction:      row.Direction,
		OriginalText:   row.OriginalText,
		TranslatedText: row.TranslatedText,
		OriginalLang:   row.OriginalLang,
		TranslatedLang: row.TranslatedLang,
		AudioPath:      textPtr(row.AudioPath),
		STTMs:          int4Ptr(row.SttMs),
		TranslateMs:    int4Ptr(row.TranslateMs),
		TTSMs:          int4Ptr(row.TtsMs),
		ModelUsed:      textPtr(row.ModelUsed),
		CreatedAt:      row.CreatedAt.Time,
	}
}

func timePtr(v pgtype.Timestamptz) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func textPtr(v pgtype.Text) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func int4Ptr(v pgtype.Int4) *int32 {
	if !v.Valid {
		return nil
	}
	n := v.Int32
	return &n
}
