package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const sessionColumns = `id, org_id, title, source_lang, target_lang, audio_enabled, created_at, updated_at, expires_at`

func scanSession(row interface{ Scan(...interface{}) error }) (Session, error) {
	var i Session
	err := row.Scan(
		&i.ID,
		&i.OrgID,
		&i.Title,
		&i.SourceLang,
		&i.TargetLang,
		&i.AudioEnabled,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.ExpiresAt,
	)
	return i, err
}

const createSession = `-- name: CreateSession :one
INSERT INTO sessions (id, org_id, title, source_lang, target_lang, audio_enabled, created_at, updated_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $8)
RETURNING ` + sessionColumns

type CreateSessionParams struct {
	ID           pgtype.UUID        `json:"id"`
	OrgID        pgtype.UUID        `json:"org_id"`
	Title        pgtype.Text        `json:"title"`
	SourceLang   string             `json:"source_lang"`
	TargetLang   string             `json:"target_lang"`
	AudioEnabled bool               `json:"audio_enabled"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
	ExpiresAt    pgtype.Timestamptz `json:"expires_at"`
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (Session, error) {
	row := q.db.QueryRow(ctx, createSession,
		arg.ID,
		arg.OrgID,
		arg.Title,
		arg.SourceLang,
		arg.TargetLang,
		arg.AudioEnabled,
		arg.CreatedAt,
		arg.ExpiresAt,
	)
	return scanSession(row)
}

const getSession = `-- name: GetSession :one
SELECT ` + sessionColumns + `
FROM sessions
WHERE id = $1
`

func (q *Queries) GetSession(ctx context.Context, id pgtype.UUID) (Session, error) {
	return scanSession(q.db.QueryRow(ctx, getSession, id))
}

const getSessionForUpdate = `-- name: GetSessionForUpdate :one
SELECT ` + sessionColumns + `
FROM sessions
WHERE id = $1
FOR UPDATE
`

// GetSessionForUpdate locks the row until the surrounding transaction ends.
func (q *Queries) GetSessionForUpdate(ctx context.Context, id pgtype.UUID) (Session, error) {
	return scanSession(q.db.QueryRow(ctx, getSessionForUpdate, id))
}

const listSessions = `-- name: ListSessions :many
SELECT s.id, s.org_id, s.title, s.source_lang, s.target_lang, s.audio_enabled, s.created_at, s.updated_at, s.expires_at,
       (SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id) AS message_count
FROM sessions s
ORDER BY s.updated_at DESC
LIMIT $1 OFFSET $2
`

type ListSessionsParams struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

type ListSessionsRow struct {
	Session
	MessageCount int64 `json:"message_count"`
}

func (q *Queries) ListSessions(ctx context.Context, arg ListSessionsParams) ([]ListSessionsRow, error) {
	rows, err := q.db.Query(ctx, listSessions, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListSessionsRow{}
	for rows.Next() {
		var i ListSessionsRow
		if err := rows.Scan(
			&i.ID,
			&i.OrgID,
			&i.Title,
			&i.SourceLang,
			&i.TargetLang,
			&i.AudioEnabled,
			&i.CreatedAt,
			&i.UpdatedAt,
			&i.ExpiresAt,
			&i.MessageCount,
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

const countSessions = `-- name: CountSessions :one
SELECT COUNT(*) FROM sessions
`

func (q *Queries) CountSessions(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, countSessions)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countMessagesBySession = `-- name: CountMessagesBySession :one
SELECT COUNT(*) FROM messages WHERE session_id = $1
`

func (q *Queries) CountMessagesBySession(ctx context.Context, sessionID pgtype.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countMessagesBySession, sessionID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const updateSession = `-- name: UpdateSession :one
UPDATE sessions
SET title = COALESCE($2, title),
    audio_enabled = COALESCE($3, audio_enabled),
    updated_at = $4
WHERE id = $1
RETURNING ` + sessionColumns

type UpdateSessionParams struct {
	ID           pgtype.UUID        `json:"id"`
	Title        pgtype.Text        `json:"title"`
	AudioEnabled pgtype.Bool        `json:"audio_enabled"`
	UpdatedAt    pgtype.Timestamptz `json:"updated_at"`
}

func (q *Queries) UpdateSession(ctx context.Context, arg UpdateSessionParams) (Session, error) {
	row := q.db.QueryRow(ctx, updateSession, arg.ID, arg.Title, arg.AudioEnabled, arg.UpdatedAt)
	return scanSession(row)
}

const touchSession = `-- name: TouchSession :exec
UPDATE sessions SET updated_at = $2 WHERE id = $1
`

type TouchSessionParams struct {
	ID        pgtype.UUID        `json:"id"`
	UpdatedAt pgtype.Timestamptz `json:"updated_at"`
}

func (q *Queries) TouchSession(ctx context.Context, arg TouchSessionParams) error {
	_, err := q.db.Exec(ctx, touchSession, arg.ID, arg.UpdatedAt)
	return err
}

const deleteSession = `-- name: DeleteSession :execrows
DELETE FROM sessions WHERE id = $1
`

func (q *Queries) DeleteSession(ctx context.Context, id pgtype.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deleteSession, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listExpiredSessionIDs = `-- name: ListExpiredSessionIDs :many
SELECT id FROM sessions
WHERE expires_at IS NOT NULL AND expires_at < $1
`

func (q *Queries) ListExpiredSessionIDs(ctx context.Context, now pgtype.Timestamptz) ([]pgtype.UUID, error) {
	rows, err := q.db.Query(ctx, listExpiredSessionIDs, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []pgtype.UUID{}
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteSessionsByIDs = `-- name: DeleteSessionsByIDs :execrows
DELETE FROM sessions WHERE id = ANY($1::uuid[])
`

func (q *Queries) DeleteSessionsByIDs(ctx context.Context, ids []pgtype.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deleteSessionsByIDs, ids)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
