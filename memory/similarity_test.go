package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/becomeliminal/recall-go-sdk/memory"
)

func TestCosineSelfSimilarity(t *testing.T) {
	a := []float32{0.3, -1.2, 4.5}
	assert.InDelta(t, 1.0, memory.Cosine(a, a), 1e-9)
}

func TestCosineSymmetry(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-2, 0.5, 7}
	assert.Equal(t, memory.Cosine(a, b), memory.Cosine(b, a))
}

func TestCosineZeroVector(t *testing.T) {
	zero := []float32{0, 0, 0}
	a := []float32{1, 2, 3}

	assert.Equal(t, 0.0, memory.Cosine(zero, a))
	assert.Equal(t, 0.0, memory.Cosine(a, zero))
	assert.Equal(t, 0.0, memory.Cosine(zero, zero))
}

func TestCosineMismatchedLengths(t *testing.T) {
	assert.Equal(t, 0.0, memory.Cosine([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Equal(t, 0.0, memory.Cosine(nil, []float32{1}))
}

func TestCosineOrthogonalAndOpposite(t *testing.T) {
	assert.InDelta(t, 0.0, memory.Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, memory.Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
}
