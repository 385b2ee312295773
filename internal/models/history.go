package models

import "time"

// EmbeddingDimensions is the width of stored message embeddings. Embedding
// providers are asked for exactly this many values.
const EmbeddingDimensions = 768

type Session struct {
	ID           string     `json:"id"`
	OrgID        *string    `json:"org_id"`
	Title        *string    `json:"title"`
	SourceLang   string     `json:"source_lang"`
	TargetLang   string     `json:"target_lang"`
	AudioEnabled bool       `json:"audio_enabled"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ExpiresAt    *time.Time `json:"expires_at"`
	MessageCount *int64     `json:"message_count,omitempty"`
}

type SessionList struct {
	Sessions []Session `json:"sessions"`
	Total    int64     `json:"total"`
}

type SessionCreate struct {
	SourceLang   string  `json:"source_lang"`
	TargetLang   string  `json:"target_lang"`
	AudioEnabled bool    `json:"audio_enabled"`
	Title        *string `json:"title"`
	OrgID        *string `json:"org_id"`
}

type SessionUpdate struct {
	Title        *string `json:"title"`
	AudioEnabled *bool   `json:"audio_enabled"`
}

type Message struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	Direction      string    `json:"direction"`
	OriginalText   string    `json:"original_text"`
	TranslatedText string    `json:"translated_text"`
	OriginalLang   string    `json:"original_lang"`
	TranslatedLang string    `json:"translated_lang"`
	AudioPath      *string   `json:"audio_path"`
	STTMs          *int32    `json:"stt_ms"`
	TranslateMs    *int32    `json:"translate_ms"`
	TTSMs          *int32    `json:"tts_ms"`
	ModelUsed      *string   `json:"model_used"`
	CreatedAt      time.Time `json:"created_at"`
}

type MessageList struct {
	Messages []Message `json:"messages"`
	Total    int64     `json:"total"`
}

type SearchRequest struct {
	Query      string  `json:"query"`
	OrgID      *string `json:"org_id"`
	Limit      int     `json:"limit"`
	SourceLang *string `json:"source_lang"`
	TargetLang *string `json:"target_lang"`
}

type SearchResult struct {
	MessageID      string    `json:"message_id"`
	SessionID      string    `json:"session_id"`
	OriginalText   string    `json:"original_text"`
	TranslatedText string    `json:"translated_text"`
	OriginalLang   string    `json:"original_lang"`
	TranslatedLang string    `json:"translated_lang"`
	Similarity     float64   `json:"similarity"`
	CreatedAt      time.Time `json:"created_at"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Query   string         `json:"query"`
}

type Organization struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	RetentionPolicy     string    `json:"retention_policy"`
	AudioEnabledDefault bool      `json:"audio_enabled_default"`
	CreatedAt           time.Time `json:"created_at"`
}

type RetentionSettings struct {
	OrgID               string `json:"org_id"`
	RetentionPolicy     string `json:"retention_policy"`
	AudioEnabledDefault bool   `json:"audio_enabled_default"`
}

type RetentionUpdate struct {
	RetentionPolicy     *string `json:"retention_policy"`
	AudioEnabledDefault *bool   `json:"audio_enabled_default"`
}

type SweepResult struct {
	DeletedSessions  int `json:"deleted_sessions"`
	DeletedAudioDirs int `json:"deleted_audio_dirs"`
}
