package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createOrganization = `-- name: CreateOrganization :one
INSERT INTO organizations (id, name, retention_policy, audio_enabled_default, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, name, retention_policy, audio_enabled_default, created_at
`

type CreateOrganizationParams struct {
	ID                  pgtype.UUID        `json:"id"`
	Name                string             `json:"name"`
	RetentionPolicy     string             `json:"retention_policy"`
	AudioEnabledDefault bool               `json:"audio_enabled_default"`
	CreatedAt           pgtype.Timestamptz `json:"created_at"`
}

func (q *Queries) CreateOrganization(ctx context.Context, arg CreateOrganizationParams) (Organization, error) {
	row := q.db.QueryRow(ctx, createOrganization,
		arg.ID,
		arg.Name,
		arg.RetentionPolicy,
		arg.AudioEnabledDefault,
		arg.CreatedAt,
	)
	var i Organization
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.RetentionPolicy,
		&i.AudioEnabledDefault,
		&i.CreatedAt,
	)
	return i, err
}

const getOrganization = `-- name: GetOrganization :one
SELECT id, name, retention_policy, audio_enabled_default, created_at
FROM organizations
WHERE id = $1
`

func (q *Queries) GetOrganization(ctx context.Context, id pgtype.UUID) (Organization, error) {
	row := q.db.QueryRow(ctx, getOrganization, id)
	var i Organization
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.RetentionPolicy,
		&i.AudioEnabledDefault,
		&i.CreatedAt,
	)
	return i, err
}

const updateOrganizationRetention = `-- name: UpdateOrganizationRetention :one
UPDATE organizations
SET retention_policy = COALESCE($2, retention_policy),
    audio_enabled_default = COALESCE($3, audio_enabled_default)
WHERE id = $1
RETURNING id, name, retention_policy, audio_enabled_default, created_at
`

type UpdateOrganizationRetentionParams struct {
	ID                  pgtype.UUID `json:"id"`
	RetentionPolicy     pgtype.Text `json:"retention_policy"`
	AudioEnabledDefault pgtype.Bool `json:"audio_enabled_default"`
}

func (q *Queries) UpdateOrganizationRetention(ctx context.Context, arg UpdateOrganizationRetentionParams) (Organization, error) {
	row := q.db.QueryRow(ctx, updateOrganizationRetention, arg.ID, arg.RetentionPolicy, arg.AudioEnabledDefault)
	var i Organization
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.RetentionPolicy,
		&i.AudioEnabledDefault,
		&i.CreatedAt,
	)
	return i, err
}
