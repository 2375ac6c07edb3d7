package guard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCosineSimilarityIdenticalVectorsIsOne(t *testing.T) {
	v := []float32{0.12, -0.53, 0.77, 0.031}
	sim, err := cosineSimilarity(v, v)
	require.NoError(t, err)
	require.Equal(t, 1.0, sim)
}

func TestCosineSimilarityOrthogonalAndOpposite(t *testing.T) {
	sim, err := cosineSimilarity([]float32{1, 0}, []float32{0, 3})
	require.NoError(t, err)
	require.Equal(t, 0.0, sim)

	sim, err = cosineSimilarity([]float32{1, 2}, []float32{-1, -2})
	require.NoError(t, err)
	require.InDelta(t, -1.0, sim, 1e-12)
}

func TestCosineSimilarityIgnoresMagnitude(t *testing.T) {
	sim, err := cosineSimilarity([]float32{1, 1}, []float32{5, 5})
	require.NoError(t, err)
	require.InDelta(t, 1.0, sim, 1e-12)
}

func TestCosineSimilarityRejectsBadInput(t *testing.T) {
	_, err := cosineSimilarity(nil, []float32{1})
	require.Error(t, err)

	_, err = cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0})
	require.Error(t, err)

	sim, err := cosineSimilarity([]float32{0, 0}, []float32{1, 0})
	require.NoError(t, err)
	require.Zero(t, sim)
}
