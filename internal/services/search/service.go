package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ncecere/open_voice_gateway/internal/db"
	"github.com/ncecere/open_voice_gateway/internal/models"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

var (
	ErrUnavailable    = errors.New("semantic search requires an embeddings provider")
	ErrQueryRequired  = errors.New("query is required")
	ErrEmptyEmbedding = errors.New("embedding provider returned an empty vector")
	ErrInvalidOrg     = errors.New("org_id must be a UUID")
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type searchQueries interface {
	SearchMessages(ctx context.Context, arg db.SearchMessagesParams) ([]db.SearchMessagesRow, error)
}

// Service ranks stored messages by cosine similarity to a query.
type Service struct {
	queries  searchQueries
	embedder Embedder
}

func NewService(queries searchQueries, embedder Embedder) *Service {
	return &Service{queries: queries, embedder: embedder}
}

func (s *Service) Search(ctx context.Context, req models.SearchRequest) (models.SearchResponse, error) {
	if s == nil || s.queries == nil || s.embedder == nil {
		return models.SearchResponse{}, ErrUnavailable
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return models.SearchResponse{}, ErrQueryRequired
	}
	params := db.SearchMessagesParams{Limit: int32(clampLimit(req.Limit))}
	if req.OrgID != nil && strings.TrimSpace(*req.OrgID) != "" {
		id, err := uuid.Parse(strings.TrimSpace(*req.OrgID))
		if err != nil {
			return models.SearchResponse{}, ErrInvalidOrg
		}
		params.OrgID = pgtype.UUID{Bytes: id, Valid: true}
	}
	params.SourceLang = optionalText(req.SourceLang)
	params.TargetLang = optionalText(req.TargetLang)

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return models.SearchResponse{}, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) == 0 {
		return models.SearchResponse{}, ErrEmptyEmbedding
	}
	if params.Embedding, err = db.NewEmbedding(vec); err != nil {
		return models.SearchResponse{}, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.queries.SearchMessages(ctx, params)
	if err != nil {
		return models.SearchResponse{}, fmt.Errorf("search messages: %w", err)
	}
	out := models.SearchResponse{Query: query, Results: make([]models.SearchResult, 0, len(rows))}
	for _, row := range rows {
		out.Results = append(out.Results, models.SearchResult{
			MessageID:      uuid.UUID(row.ID.Bytes).String(),
			SessionID:      uuid.UUID(row.SessionID.Bytes).String(),
			OriginalText:   row.OriginalText,
			TranslatedText: row.TranslatedText,
			OriginalLang:   row.OriginalLang,
			TranslatedLang: row.TranslatedLang,
			Similarity:     similarity(row.Distance),
			CreatedAt:      row.CreatedAt.Time,
		})
	}
	return out, nil
}

// similarity converts cosine distance to 1-distance rounded to 4 places.
func similarity(distance float64) float64 {
	return math.Round((1-distance)*10000) / 10000
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return min(limit, maxLimit)
}

func optionalText(v *string) pgtype.Text {
	if v == nil || strings.TrimSpace(*v) == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: strings.TrimSpace(*v), Valid: true}
}
