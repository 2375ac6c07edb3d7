package guard

import (
	"errors"
	"fmt"
	"math"
)

var errEmptyVector = errors.New("empty embedding vector")

// cosineSimilarity returns the cosine of the angle between a and b, in [-1, 1].
// Identical non-zero vectors score exactly 1.
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, errEmptyVector
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding dimensions differ: %d vs %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	sim := dot / math.Sqrt(normA*normB)
	return math.Max(-1, math.Min(1, sim)), nil
}
