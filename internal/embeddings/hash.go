package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashProvider produces deterministic vectors by hashing tokens into count
// buckets. It needs no model or network, which makes it the provider of
// choice for tests and for smoke-testing a deployment before wiring a real
// server. Similar texts produce similar vectors because they share token
// buckets; the vectors carry no real semantics.
type HashProvider struct {
	dimension int
}

// NewHashProvider creates a hash-based provider with the given dimension.
func NewHashProvider(dimension int) (*HashProvider, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return &HashProvider{dimension: dimension}, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *HashProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = p.embed(text)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *HashProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.embed(text), nil
}

// Dimension returns the configured vector dimension.
func (p *HashProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op.
func (p *HashProvider) Close() error {
	return nil
}

// embed hashes each token into a count bucket, centers the counts, and
// normalizes the result to unit length so cosine similarity behaves.
// Counts are never signed: a bucket collision between two unrelated tokens
// can inflate similarity slightly but can never cancel a shared token.
// Centering keeps texts with disjoint tokens near zero cosine.
func (p *HashProvider) embed(text string) []float32 {
	v := make([]float32, p.dimension)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(tokens) == 0 {
		// Whitespace-only text still gets a valid unit vector.
		v[0] = 1
		return v
	}

	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		v[h.Sum64()%uint64(p.dimension)]++
	}

	var mean float32
	for _, x := range v {
		mean += x
	}
	mean /= float32(p.dimension)

	var norm float64
	for i := range v {
		v[i] -= mean
		norm += float64(v[i]) * float64(v[i])
	}
	if norm == 0 {
		// Perfectly uniform counts center to zero; fall back to a constant.
		v = make([]float32, p.dimension)
		v[0] = 1
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
