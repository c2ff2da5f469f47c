package ai

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
)

// Ensure HashEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*HashEmbedding)(nil)

// DefaultHashDimensions matches all-MiniLM so a corpus can move to a hosted
// model of the same size without reindexing from scratch.
const DefaultHashDimensions = 384

// HashEmbedding is an offline embedder using signed feature hashing over
// lower-cased words and word bigrams. Output is L2-normalised and
// deterministic, which makes it suitable for tests and air-gapped installs.
type HashEmbedding struct {
	dimensions int
}

// NewHashEmbedding creates a hashing embedder. dimensions <= 0 uses DefaultHashDimensions.
func NewHashEmbedding(dimensions int) *HashEmbedding {
	if dimensions <= 0 {
		dimensions = DefaultHashDimensions
	}
	return &HashEmbedding{dimensions: dimensions}
}

// Embed hashes every text
func (e *HashEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(text)
	}
	return out, nil
}

// EmbedQuery hashes one query
func (e *HashEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vector(query), nil
}

func (e *HashEmbedding) Dimensions() int                       { return e.dimensions }
func (e *HashEmbedding) Model() string                         { return "feature-hash" }
func (e *HashEmbedding) HealthCheck(ctx context.Context) error { return nil }
func (e *HashEmbedding) Close() error                          { return nil }

func (e *HashEmbedding) vector(text string) []float32 {
	vec := make([]float32, e.dimensions)
	words := tokenize(text)

	for i, w := range words {
		e.add(vec, w, 1)
		if i > 0 {
			e.add(vec, words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// Empty input still needs a unit vector for cosine indexes
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func (e *HashEmbedding) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % uint64(e.dimensions))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
