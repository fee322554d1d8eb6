package embedding

import (
	"context"
	"errors"
	"math"
)

var (
	// ErrUnavailable indicates the provider could not be reached at all.
	// Callers degrade to the remaining modality instead of failing.
	ErrUnavailable = errors.New("embedding: provider unavailable")

	// ErrTimeout indicates a single embedding call exceeded its deadline.
	ErrTimeout = errors.New("embedding: provider timeout")

	// ErrNotFitted indicates the lexical vectorizer was used before Fit.
	ErrNotFitted = errors.New("embedding: vectorizer not fitted")
)

// Provider maps text to vectors comparable via cosine similarity.
// Implementations must be safe for concurrent EmbedQuery calls.
type Provider interface {
	// Name identifies the provider implementation.
	Name() string

	// Dimension returns the length of produced vectors. For corpus-fitted
	// providers this is only meaningful after fitting.
	Dimension() int

	// EmbedCorpus embeds a whole corpus, one row per input text.
	EmbedCorpus(ctx context.Context, texts []string) ([][]float64, error)

	// EmbedQuery embeds a single query text.
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Mismatched lengths or zero vectors yield 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
