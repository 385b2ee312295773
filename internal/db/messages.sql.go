package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

const messageColumns = `id, session_id, direction, original_text, translated_text, original_lang, translated_lang, audio_path, stt_ms, translate_ms, tts_ms, model_used, created_at`

func scanMessage(row interface{ Scan(...interface{}) error }) (Message, error) {
	var i Message
	err := row.Scan(
		&i.ID,
		&i.SessionID,
		&i.Direction,
		&i.OriginalText,
		&i.TranslatedText,
		&i.OriginalLang,
		&i.TranslatedLang,
		&i.AudioPath,
		&i.SttMs,
		&i.TranslateMs,
		&i.TtsMs,
		&i.ModelUsed,
		&i.CreatedAt,
	)
	return i, err
}

const createMessage = `-- name: CreateMessage :one
INSERT INTO messages (
    id, session_id, direction, original_text, translated_text, original_lang, translated_lang,
    audio_path, stt_ms, translate_ms, tts_ms, model_used, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING ` + messageColumns

type CreateMessageParams struct {
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

func (q *Queries) CreateMessage(ctx context.Context, arg CreateMessageParams) (Message, error) {
	row := q.db.QueryRow(ctx, createMessage,
		arg.ID,
		arg.SessionID,
		arg.Direction,
		arg.OriginalText,
		arg.TranslatedText,
		arg.OriginalLang,
		arg.TranslatedLang,
		arg.AudioPath,
		arg.SttMs,
		arg.TranslateMs,
		arg.TtsMs,
		arg.ModelUsed,
		arg.CreatedAt,
	)
	return scanMessage(row)
}

const getMessage = `-- name: GetMessage :one
SELECT ` + messageColumns + `
FROM messages
WHERE id = $1 AND session_id = $2
`

type GetMessageParams struct {
	ID        pgtype.UUID `json:"id"`
	SessionID pgtype.UUID `json:"session_id"`
}

func (q *Queries) GetMessage(ctx context.Context, arg GetMessageParams) (Message, error) {
	return scanMessage(q.db.QueryRow(ctx, getMessage, arg.ID, arg.SessionID))
}

const listMessagesBySession = `-- name: ListMessagesBySession :many
SELECT ` + messageColumns + `
FROM messages
WHERE session_id = $1
ORDER BY created_at ASC
LIMIT $2 OFFSET $3
`

type ListMessagesBySessionParams struct {
	SessionID pgtype.UUID `json:"session_id"`
	Limit     int32       `json:"limit"`
	Offset    int32       `json:"offset"`
}

func (q *Queries) ListMessagesBySession(ctx context.Context, arg ListMessagesBySessionParams) ([]Message, error) {
	rows, err := q.db.Query(ctx, listMessagesBySession, arg.SessionID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Message{}
	for rows.Next() {
		i, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const setMessageEmbedding = `-- name: SetMessageEmbedding :exec
UPDATE messages SET embedding = $2::vector WHERE id = $1
`

type SetMessageEmbeddingParams struct {
	ID        pgtype.UUID     `json:"id"`
	Embedding pgvector.Vector `json:"embedding"`
}

func (q *Queries) SetMessageEmbedding(ctx context.Context, arg SetMessageEmbeddingParams) error {
	_, err := q.db.Exec(ctx, setMessageEmbedding, arg.ID, arg.Embedding)
	return err
}

const searchMessages = `-- name: SearchMessages :many
SELECT m.id, m.session_id, m.original_text, m.translated_text, m.original_lang, m.translated_lang, m.created_at,
       (m.embedding <=> $1::vector)::float8 AS distance
FROM messages m
JOIN sessions s ON s.id = m.session_id
WHERE m.embedding IS NOT NULL
  AND ($2::uuid IS NULL OR s.org_id = $2)
  AND ($3::text IS NULL OR m.original_lang = $3)
  AND ($4::text IS NULL OR m.translated_lang = $4)
ORDER BY distance ASC
LIMIT $5
`

type SearchMessagesParams struct {
	Embedding  pgvector.Vector `json:"embedding"`
	OrgID      pgtype.UUID     `json:"org_id"`
	SourceLang pgtype.Text     `json:"source_lang"`
	TargetLang pgtype.Text     `json:"target_lang"`
	Limit      int32           `json:"limit"`
}

type SearchMessagesRow struct {
	ID             pgtype.UUID        `json:"id"`
	SessionID      pgtype.UUID        `json:"session_id"`
	OriginalText   string             `json:"original_text"`
	TranslatedText string             `json:"translated_text"`
	OriginalLang   string             `json:"original_lang"`
	TranslatedLang string             `json:"translated_lang"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
	Distance       float64            `json:"distance"`
}

func (q *Queries) SearchMessages(ctx context.Context, arg SearchMessagesParams) ([]SearchMessagesRow, error) {
	rows, err := q.db.Query(ctx, searchMessages,
		arg.Embedding,
		arg.OrgID,
		arg.SourceLang,
		arg.TargetLang,
		arg.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SearchMessagesRow{}
	for rows.Next() {
		var i SearchMessagesRow
		if err := rows.Scan(
			&i.ID,
			&i.SessionID,
			&i.OriginalText,
			&i.TranslatedText,
			&i.OriginalLang,
			&i.TranslatedLang,
			&i.CreatedAt,
			&i.Distance,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
