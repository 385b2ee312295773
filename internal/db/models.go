package db

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Organization struct {
	ID                  pgtype.UUID        `json:"id"`
	Name                string             `json:"name"`
	RetentionPolicy     string             `json:"retention_policy"`
	AudioEnabledDefault bool               `json:"audio_enabled_default"`
	CreatedAt           pgtype.Timestamptz `json:"created_at"`
}

type Session struct {
	ID           pgtype.UUID        `json:"id"`
	OrgID        pgtype.UUID        `json:"org_id"`
	Title        pgtype.Text        `json:"title"`
	SourceLang   string             `json:"source_lang"`
	TargetLang   string             `json:"target_lang"`
	AudioEnabled bool               `json:"audio_enabled"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
	UpdatedAt    pgtype.Timestamptz `json:"updated_at"`
	ExpiresAt    pgtype.Timestamptz `json:"expires_at"`
}

// Message omits the embedding column; vectors are written and compared in SQL only.
type Message struct {
	ID             pgtype.UUID        `json:"id"`
	SessionID      pgtype.UUID        `json:"session_id"`
	Direction      string             `json:"direction"`
	OriginalText   string             `json:"original_text"`
	TranslatedText string             `json:"translated_text"`
	OriginalLang   string             `json:"original_lang"`
	TranslatedLang string             `json:"translated_lang"`
	AudioPath      pgtype.Text        `json:"audio_path"`
	SttMs          pgtype.Int4        `json:"stt_ms"`
	TranslateMs    pgtype.Int4        `json:"translate_ms"`
	TtsMs          pgtype.Int4        `json:"tts_ms"`
	ModelUsed      pgtype.Text        `json:"model_used"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
}
