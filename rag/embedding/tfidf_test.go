package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// TFIDF Tests
// ============================================================

func TestTFIDF_FitAndTransform(t *testing.T) {
	t.Parallel()

	v := NewTFIDF(DefaultTFIDFConfig(), nil)
	corpus := []string{
		"solar panels generate electricity during daylight",
		"wind turbines generate electricity when wind blows",
		"hydro plants store potential energy behind dams",
	}

	require.NoError(t, v.Fit(corpus))
	assert.True(t, v.Fitted())
	assert.Positive(t, v.Dimension())

	vec, err := v.Transform("solar panels electricity")
	require.NoError(t, err)
	assert.Len(t, vec, v.Dimension())

	// L2 normalized.
	var norm float64
	for _, x := range vec {
		norm += x * x
	}
	assert.InDelta(t, 1.0, norm, 1e-9)
}

func TestTFIDF_TransformBeforeFit(t *testing.T) {
	t.Parallel()

	v := NewTFIDF(DefaultTFIDFConfig(), nil)
	_, err := v.Transform("anything")
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestTFIDF_EmptyCorpusResets(t *testing.T) {
	t.Parallel()

	v := NewTFIDF(DefaultTFIDFConfig(), nil)
	require.NoError(t, v.Fit([]string{"some document"}))
	require.True(t, v.Fitted())

	require.NoError(t, v.Fit(nil))
	assert.False(t, v.Fitted())
	assert.Zero(t, v.Dimension())
}

func TestTFIDF_SimilarDocumentsScoreHigher(t *testing.T) {
	t.Parallel()

	v := NewTFIDF(DefaultTFIDFConfig(), nil)
	corpus := []string{
		"peak electricity consumption occurs during afternoon hours",
		"rainfall patterns across monsoon season",
	}
	require.NoError(t, v.Fit(corpus))

	query, err := v.Transform("peak consumption hours")
	require.NoError(t, err)
	docA, err := v.Transform(corpus[0])
	require.NoError(t, err)
	docB, err := v.Transform(corpus[1])
	require.NoError(t, err)

	assert.Greater(t, CosineSimilarity(query, docA), CosineSimilarity(query, docB))
}

func TestTFIDF_StopwordsDropped(t *testing.T) {
	t.Parallel()

	v := NewTFIDF(TFIDFConfig{MaxFeatures: 100, NGramMin: 1, NGramMax: 1}, nil)
	require.NoError(t, v.Fit([]string{"the energy of the grid is the future"}))

	// Only content words survive.
	vec, err := v.Transform("the the the")
	require.NoError(t, err)
	for _, x := range vec {
		assert.Zero(t, x)
	}
}

func TestTFIDF_MaxFeaturesCapsVocabulary(t *testing.T) {
	t.Parallel()

	v := NewTFIDF(TFIDFConfig{MaxFeatures: 3, NGramMin: 1, NGramMax: 1}, nil)
	require.NoError(t, v.Fit([]string{
		"alpha beta gamma delta epsilon",
		"alpha beta gamma delta",
		"alpha beta gamma",
	}))
	assert.Equal(t, 3, v.Dimension())
}

func TestTFIDF_NGramsExpandVocabulary(t *testing.T) {
	t.Parallel()

	uni := NewTFIDF(TFIDFConfig{MaxFeatures: 1000, NGramMin: 1, NGramMax: 1}, nil)
	tri := NewTFIDF(TFIDFConfig{MaxFeatures: 1000, NGramMin: 1, NGramMax: 3}, nil)

	corpus := []string{"solar energy beats coal energy on cost"}
	require.NoError(t, uni.Fit(corpus))
	require.NoError(t, tri.Fit(corpus))

	assert.Greater(t, tri.Dimension(), uni.Dimension())
}

func TestTFIDF_RefitLeavesReceiverUntouched(t *testing.T) {
	t.Parallel()

	v := NewTFIDF(DefaultTFIDFConfig(), nil)
	require.NoError(t, v.Fit([]string{"alpha beta"}))
	oldDim := v.Dimension()

	next, err := v.Refit([]string{"alpha beta", "gamma delta epsilon"})
	require.NoError(t, err)

	assert.Equal(t, oldDim, v.Dimension())
	assert.Greater(t, next.Dimension(), oldDim)
	assert.True(t, next.Fitted())
}

func TestTFIDF_EmbedCorpusShape(t *testing.T) {
	t.Parallel()

	v := NewTFIDF(DefaultTFIDFConfig(), nil)
	corpus := []string{"first document text", "second document text"}

	matrix, err := v.EmbedCorpus(context.Background(), corpus)
	require.NoError(t, err)
	require.Len(t, matrix, 2)
	for _, row := range matrix {
		assert.Len(t, row, v.Dimension())
	}
}

// ============================================================
// CosineSimilarity Tests
// ============================================================

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 0}, []float64{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Zero(t, CosineSimilarity([]float64{1, 0}, []float64{0, 0}))
	assert.Zero(t, CosineSimilarity([]float64{1, 0}, []float64{1, 0, 0}))
	assert.Zero(t, CosineSimilarity(nil, nil))
}
