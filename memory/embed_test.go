package memory

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tableEmbedder returns fixed vectors for known tokens and
// ErrEmbeddingUnavailable for everything else.
type tableEmbedder struct {
	dims    int
	vectors map[string][]float32
	calls   int
}

func (e *tableEmbedder) VectorFor(ctx context.Context, token string) ([]float32, error) {
	e.calls++
	if v, ok := e.vectors[token]; ok {
		return v, nil
	}
	return nil, ErrEmbeddingUnavailable
}

func (e *tableEmbedder) Dimensions() int { return e.dims }

func TestEmbedTextAveragesAndNormalizes(t *testing.T) {
	emb := &tableEmbedder{dims: 2, vectors: map[string][]float32{
		"a": {1, 0},
		"b": {0, 1},
	}}

	vec, err := embedText(context.Background(), emb, 2, 100, "a b")
	require.NoError(t, err)
	require.Len(t, vec, 2)

	// Average (0.5, 0.5) normalized to unit length.
	inv := float32(1 / math.Sqrt2)
	assert.InDelta(t, inv, vec[0], 1e-6)
	assert.InDelta(t, inv, vec[1], 1e-6)
}

func TestEmbedTextSkipsUnknownTokens(t *testing.T) {
	emb := &tableEmbedder{dims: 2, vectors: map[string][]float32{
		"a": {1, 0},
	}}

	vec, err := embedText(context.Background(), emb, 2, 100, "a mystery words")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
}

func TestEmbedTextZeroVectorWhenNothingObtained(t *testing.T) {
	emb := &tableEmbedder{dims: 3, vectors: nil}

	vec, err := embedText(context.Background(), emb, 3, 100, "completely unknown words")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0}, vec)
}

func TestEmbedTextNilEmbedderFallsBackToZeroVector(t *testing.T) {
	vec, err := embedText(context.Background(), nil, 3, 100, "anything at all")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0}, vec)
}

func TestEmbedTextCapsTokens(t *testing.T) {
	emb := &tableEmbedder{dims: 2, vectors: map[string][]float32{
		"tok": {1, 0},
	}}

	text := strings.TrimSpace(strings.Repeat("tok ", 150))
	_, err := embedText(context.Background(), emb, 2, 100, text)
	require.NoError(t, err)
	assert.Equal(t, 100, emb.calls, "only the first 100 tokens feed the embedding")
}

func TestEmbedTextSkipsWrongDimensionVectors(t *testing.T) {
	emb := &tableEmbedder{dims: 2, vectors: map[string][]float32{
		"good": {0, 1},
		"bad":  {1, 2, 3},
	}}

	vec, err := embedText(context.Background(), emb, 2, 100, "good bad")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, vec, "mismatched-dimension vectors must be rejected at the boundary")
}

func TestEmbedTextHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	emb := &tableEmbedder{dims: 2, vectors: map[string][]float32{"a": {1, 0}}}
	_, err := embedText(ctx, emb, 2, 100, "a b c")
	assert.ErrorIs(t, err, context.Canceled)
}
