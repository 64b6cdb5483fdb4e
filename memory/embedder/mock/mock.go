// Package mock provides a deterministic embedder for testing and local
// runs without model files. Token vectors are generated from a hash of the
// token, so identical tokens always embed identically while distinct
// tokens are almost certainly far apart. It gives no real semantic
// similarity.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder generates deterministic per-token embeddings.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder producing vectors of the given size.
func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = 300
	}
	return &Embedder{dimensions: dimensions}
}

// VectorFor creates a deterministic unit vector from the token's hash.
func (m *Embedder) VectorFor(ctx context.Context, token string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(token))
	seed := h.Sum64()

	vec := make([]float32, m.dimensions)
	for i := range vec {
		// Linear congruential generator seeded by the token hash.
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec), nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int {
	return m.dimensions
}

// normalize converts a vector to unit length.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
