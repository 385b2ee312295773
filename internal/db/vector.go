package db

import (
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/ncecere/open_voice_gateway/internal/models"
)

var ErrEmbeddingDimensions = errors.New("embedding has the wrong number of dimensions")

// NewEmbedding wraps vec for the messages.embedding column, which only
// accepts models.EmbeddingDimensions values.
func NewEmbedding(vec []float32) (pgvector.Vector, error) {
	if len(vec) != models.EmbeddingDimensions {
		return pgvector.Vector{}, fmt.Errorf("%w: got %d, want %d", ErrEmbeddingDimensions, len(vec), models.EmbeddingDimensions)
	}
	return pgvector.NewVector(vec), nil
}
