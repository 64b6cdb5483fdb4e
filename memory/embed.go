package memory

import (
	"context"
	"strings"
)

// embedText derives an entry's embedding from its content.
//
// Content is tokenized on whitespace and capped at maxTokens leading
// tokens. Tokens the embedder has no vector for, or vectors of the wrong
// dimension, are skipped. When no token produced a vector the result is
// the zero vector of length dim: such entries never rank above any
// nonzero-similarity entry in later searches. Otherwise the obtained
// vectors are averaged element-wise and L2-normalized.
//
// The only error returned is ctx cancellation; embedder failures are
// absorbed as skipped tokens.
func embedText(ctx context.Context, embedder Embedder, dim, maxTokens int, text string) ([]float32, error) {
	tokens := strings.Fields(text)
	if len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}

	sum := make([]float64, dim)
	obtained := 0
	for _, tok := range tokens {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if embedder == nil {
			break
		}
		vec, err := embedder.VectorFor(ctx, tok)
		if err != nil || len(vec) != dim {
			continue
		}
		for i, x := range vec {
			sum[i] += float64(x)
		}
		obtained++
	}

	out := make([]float32, dim)
	if obtained == 0 {
		return out, nil
	}
	for i, x := range sum {
		out[i] = float32(x / float64(obtained))
	}
	return l2Normalize(out), nil
}
