package organizations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ncecere/open_voice_gateway/internal/db"
	"github.com/ncecere/open_voice_gateway/internal/models"
	"github.com/ncecere/open_voice_gateway/internal/timeutil"
)

const DefaultRetentionPolicy = "30 days"

var (
	ErrServiceUnavailable = errors.New("organization service not initialized")
	ErrNotFound           = errors.New("organization not found")
	ErrInvalidPolicy      = errors.New("retention_policy must be one of: 24 hours, 7 days, 30 days, 1 year, unlimited")
	ErrNameRequired       = errors.New("name is required")
)

// RetentionPolicies lists the accepted presets in ascending order.
var RetentionPolicies = []string{"24 hours", "7 days", "30 days", "1 year", "unlimited"}

// RetentionDuration maps a preset to its lifetime. "unlimited" reports
// ok=false.
func RetentionDuration(policy string) (time.Duration, bool, error) {
	if !validPolicy(policy) {
		return 0, false, ErrInvalidPolicy
	}
	return timeutil.ParsePeriod(policy)
}

func validPolicy(policy string) bool {
	for _, p := range RetentionPolicies {
		if p == policy {
			return true
		}
	}
	return false
}

type orgQueries interface {
	CreateOrganization(ctx context.Context, arg db.CreateOrganizationParams) (db.Organization, error)
	GetOrganization(ctx context.Context, id pgtype.UUID) (db.Organization, error)
	UpdateOrganizationRetention(ctx context.Context, arg db.UpdateOrganizationRetentionParams) (db.Organization, error)
}

type Service struct {
	queries orgQueries
	now     func() time.Time
}

func NewService(queries orgQueries) *Service {
	return &Service{queries: queries, now: time.Now}
}

// Create stores a new organization. An empty policy defaults to 30 days.
func (s *Service) Create(ctx context.Context, name, policy string, audioDefault bool) (models.Organization, error) {
	if s == nil || s.queries == nil {
		return models.Organization{}, ErrServiceUnavailable
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Organization{}, ErrNameRequired
	}
	policy = strings.TrimSpace(policy)
	if policy == "" {
		policy = DefaultRetentionPolicy
	}
	if !validPolicy(policy) {
		return models.Organization{}, ErrInvalidPolicy
	}
	row, err := s.queries.CreateOrganization(ctx, db.CreateOrganizationParams{
		ID:                  pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Name:                name,
		RetentionPolicy:     policy,
		AudioEnabledDefault: audioDefault,
		CreatedAt:           pgtype.Timestamptz{Time: s.now().UTC(), Valid: true},
	})
	if err != nil {
		return models.Organization{}, fmt.Errorf("create organization: %w", err)
	}
	return toModel(row), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.Organization, error) {
	if s == nil || s.queries == nil {
		return models.Organization{}, ErrServiceUnavailable
	}
	row, err := s.queries.GetOrganization(ctx, pgtype.UUID{Bytes: id, Valid: true})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Organization{}, ErrNotFound
		}
		return models.Organization{}, err
	}
	return toModel(row), nil
}

func (s *Service) GetRetention(ctx context.Context, id uuid.UUID) (models.RetentionSettings, error) {
	org, err := s.Get(ctx, id)
	if err != nil {
		return models.RetentionSettings{}, err
	}
	return retentionOf(org), nil
}

// UpdateRetention changes only the supplied fields. Existing sessions keep
// their expiry; the new policy applies to sessions created afterwards.
func (s *Service) UpdateRetention(ctx context.Context, id uuid.UUID, update models.RetentionUpdate) (models.RetentionSettings, error) {
	if s == nil || s.queries == nil {
		return models.RetentionSettings{}, ErrServiceUnavailable
	}
	params := db.UpdateOrganizationRetentionParams{ID: pgtype.UUID{Bytes: id, Valid: true}}
	if update.RetentionPolicy != nil {
		policy := strings.TrimSpace(*update.RetentionPolicy)
		if !validPolicy(policy) {
			return models.RetentionSettings{}, ErrInvalidPolicy
		}
		params.RetentionPolicy = pgtype.Text{String: policy, Valid: true}
	}
	if update.AudioEnabledDefault != nil {
		params.AudioEnabledDefault = pgtype.Bool{Bool: *update.AudioEnabledDefault, Valid: true}
	}
	row, err := s.queries.UpdateOrganizationRetention(ctx, params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RetentionSettings{}, ErrNotFound
		}
		return models.RetentionSettings{}, err
	}
	return retentionOf(toModel(row)), nil
}

func retentionOf(org models.Organization) models.RetentionSettings {
	return models.RetentionSettings{
		OrgID:               org.ID,
		RetentionPolicy:     org.RetentionPolicy,
		AudioEnabledDefault: org.AudioEnabledDefault,
	}
}

func toModel(row db.Organization) models.Organization {
	return models.Organization{
		ID:                  uuid.UUID(row.ID.Bytes).String(),
		Name:                row.Name,
		RetentionPolicy:     row.RetentionPolicy,
		AudioEnabledDefault: row.AudioEnabledDefault,
		CreatedAt:           row.CreatedAt.Time,
	}
}
