package db

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ncecere/open_voice_gateway/internal/models"
)

func TestNewEmbedding(t *testing.T) {
	vec := make([]float32, models.EmbeddingDimensions)
	vec[0], vec[767] = 0.25, -1
	out, err := NewEmbedding(vec)
	require.NoError(t, err)
	require.Equal(t, vec, out.Slice())

	for _, n := range []int{0, 3, 1536} {
		_, err := NewEmbedding(make([]float32, n))
		require.ErrorIs(t, err, ErrEmbeddingDimensions)
	}
}
