package rag

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ujana-my/tenaga/rag/embedding"
)

// keywordProvider embeds text as a bag of fixed keywords. Deterministic and
// offline, it stands in for the sentence embedding service in engine tests.
type keywordProvider struct {
	keywords []string
	failOn   string // EmbedQuery/EmbedCorpus fail for texts containing this
}

func newKeywordProvider() *keywordProvider {
	return &keywordProvider{keywords: []string{"solar", "wind", "hydro", "coal"}}
}

func (p *keywordProvider) Name() string   { return "keyword-test" }
func (p *keywordProvider) Dimension() int { return len(p.keywords) }

func (p *keywordProvider) EmbedCorpus(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		v, err := p.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (p *keywordProvider) EmbedQuery(_ context.Context, text string) ([]float64, error) {
	if p.failOn != "" && strings.Contains(text, p.failOn) {
		return nil, errors.New("keyword provider: simulated failure")
	}
	lower := strings.ToLower(text)
	vector := make([]float64, len(p.keywords))
	for i, kw := range p.keywords {
		if strings.Contains(lower, kw) {
			vector[i] = 1
		}
	}
	return vector, nil
}

func newTestEngine(t *testing.T, semantic embedding.Provider) *Engine {
	t.Helper()
	store, err := OpenStore(":memory:", nil)
	require.NoError(t, err)
	lexical := embedding.NewTFIDF(embedding.DefaultTFIDFConfig(), nil)
	engine, err := NewEngine(context.Background(), DefaultEngineConfig(), store, lexical, semantic)
	require.NoError(t, err)
	return engine
}

// ============================================================
// Ingestion
// ============================================================

func TestEngine_IngestAndSearch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine := newTestEngine(t, nil)

	require.NoError(t, engine.Ingest(ctx, "solar panels convert sunlight into electricity", Metadata{"type": "fact"}))
	require.NoError(t, engine.Ingest(ctx, "hydro dams store water for power generation", Metadata{"type": "fact"}))
	require.NoError(t, engine.Ingest(ctx, "coal plants burn fossil fuel", Metadata{"type": "fact"}))

	results, err := engine.Search(ctx, "solar electricity from sunlight", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Contains(t, results[0].Item.Content, "solar")
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Relevance, results[i].Relevance)
	}
}

func TestEngine_IngestDuplicateIsNoOp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine := newTestEngine(t, nil)

	require.NoError(t, engine.Ingest(ctx, "wind turbines in coastal zones", nil))
	require.NoError(t, engine.Ingest(ctx, "wind turbines in coastal zones", nil))

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalItems)
}

func TestEngine_IngestEmptyContentIsNoOp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine := newTestEngine(t, nil)

	require.NoError(t, engine.Ingest(ctx, "   \n\t  ", nil))

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalItems)
}

func TestEngine_IngestBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine := newTestEngine(t, nil)

	added, err := engine.IngestBatch(ctx, []IngestInput{
		{Content: "solar farm capacity in Selangor"},
		{Content: "solar farm capacity in Selangor"}, // in-batch duplicate
		{Content: "wind speed measurements"},
		{Content: ""},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalItems)

	results, err := engine.Search(ctx, "wind speed", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Item.Content, "wind")
}

// ============================================================
// Search behavior
// ============================================================

func TestEngine_SearchEmptyCorpus(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, nil)
	results, err := engine.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngine_SearchEmptyQuery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine := newTestEngine(t, nil)

	require.NoError(t, engine.Ingest(ctx, "some content", nil))

	results, err := engine.Search(ctx, "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngine_SearchDefaultTopK(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine := newTestEngine(t, nil)

	for i := 0; i < 10; i++ {
		content := "solar energy report number " + strings.Repeat("x", i+1)
		require.NoError(t, engine.Ingest(ctx, content, nil))
	}

	results, err := engine.Search(ctx, "solar energy report", 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), DefaultEngineConfig().TopKDefault)
}

func TestEngine_SemanticFusion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine := newTestEngine(t, newKeywordProvider())

	// No lexical overlap with the query, only the keyword channel matches.
	require.NoError(t, engine.Ingest(ctx, "hydro reservoirs upstream of the dam", nil))
	require.NoError(t, engine.Ingest(ctx, "quarterly budget meeting notes", nil))

	results, err := engine.Search(ctx, "hydro", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Item.Content, "hydro")
	assert.Greater(t, results[0].SemanticScore, 0.0)
}

func TestEngine_SemanticQueryFailureDegradesToLexical(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	provider := newKeywordProvider()
	engine := newTestEngine(t, provider)

	require.NoError(t, engine.Ingest(ctx, "solar irradiance in Kuala Lumpur", nil))

	provider.failOn = "solar"
	results, err := engine.Search(ctx, "solar irradiance", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Zero(t, results[0].SemanticScore)
	assert.Greater(t, results[0].LexicalScore, 0.0)
}

func TestEngine_SemanticItemFailureKeepsAlignment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	provider := newKeywordProvider()
	engine := newTestEngine(t, provider)

	// This item gets a zero vector placeholder; the matrix stays row-aligned.
	provider.failOn = "broken"
	require.NoError(t, engine.Ingest(ctx, "broken solar sensor data", nil))
	provider.failOn = ""
	require.NoError(t, engine.Ingest(ctx, "wind farm output statistics", nil))

	results, err := engine.Search(ctx, "wind farm output", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Item.Content, "wind")
}

func TestEngine_SemanticNoHitsKeepsFusionWeights(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine := newTestEngine(t, newKeywordProvider())

	// Neither item mentions a provider keyword, so the semantic channel
	// runs against all-zero vectors and finds no candidates.
	require.NoError(t, engine.Ingest(ctx, "battery storage capacity report", nil))
	require.NoError(t, engine.Ingest(ctx, "transmission line maintenance schedule", nil))

	results, err := engine.Search(ctx, "battery storage capacity", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	top := results[0]
	assert.Zero(t, top.SemanticScore)
	assert.Greater(t, top.LexicalScore, 0.0)
	// The channel ran and came back empty, so the lexical weight keeps
	// its configured value. Promotion to 1.0 is reserved for a channel
	// that is absent or failed.
	assert.InDelta(t, engine.config.LexicalWeight*top.LexicalScore, top.Relevance, 1e-9)
}

func TestEngine_SearchEqualScoresFirstIngestedFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine := newTestEngine(t, newKeywordProvider())

	// "winds" triggers the wind keyword for the semantic channel but is
	// a different lexical token than the query term "wind", so both
	// items carry an identical semantic-only score.
	first := "winds across the coastal ridge"
	second := "winds beyond the valley floor"
	require.NoError(t, engine.Ingest(ctx, first, nil))
	require.NoError(t, engine.Ingest(ctx, second, nil))

	results, err := engine.Search(ctx, "wind", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, results[0].Relevance, results[1].Relevance)
	assert.Equal(t, first, results[0].Item.Content)
	assert.Equal(t, second, results[1].Item.Content)
}

// ============================================================
// Lifecycle and statistics
// ============================================================

func TestEngine_Clear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine := newTestEngine(t, nil)

	require.NoError(t, engine.Ingest(ctx, "something to forget", nil))
	require.NoError(t, engine.Clear(ctx))

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalItems)

	results, err := engine.Search(ctx, "something", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngine_StatsTypeDistribution(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine := newTestEngine(t, nil)

	require.NoError(t, engine.Ingest(ctx, "zone summary A", Metadata{"type": "zone_summary"}))
	require.NoError(t, engine.Ingest(ctx, "zone summary B", Metadata{"type": "zone_summary"}))
	require.NoError(t, engine.Ingest(ctx, "untyped note", nil))

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalItems)
	assert.Equal(t, 2, stats.TypeDistribution["zone_summary"])
	assert.Equal(t, 1, stats.TypeDistribution["unknown"])
	assert.True(t, stats.LexicalAvailable)
	assert.False(t, stats.SemanticAvailable)
}

func TestEngine_HealthCheckConcurrentWithIngest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine := newTestEngine(t, nil)

	// Ingest swaps the lexical model under the write lock; health checks
	// must see either the old or the new model, never a torn read.
	var g errgroup.Group
	g.Go(func() error {
		for i := 0; i < 20; i++ {
			if err := engine.Ingest(ctx, fmt.Sprintf("substation %d load report", i), nil); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		for i := 0; i < 20; i++ {
			health := engine.HealthCheck(ctx)
			if !health["store"] {
				return errors.New("store reported unhealthy")
			}
		}
		return nil
	})
	require.NoError(t, g.Wait())

	health := engine.HealthCheck(ctx)
	assert.True(t, health["lexical"])
}

func TestEngine_PersistenceAcrossRestarts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "kb.db")

	store, err := OpenStore(dbPath, nil)
	require.NoError(t, err)
	lexical := embedding.NewTFIDF(embedding.DefaultTFIDFConfig(), nil)
	engine, err := NewEngine(ctx, DefaultEngineConfig(), store, lexical, nil)
	require.NoError(t, err)
	require.NoError(t, engine.Ingest(ctx, "solar capacity grew in 2025", Metadata{"type": "fact"}))

	// Fresh engine over the same database restores the corpus.
	store2, err := OpenStore(dbPath, nil)
	require.NoError(t, err)
	lexical2 := embedding.NewTFIDF(embedding.DefaultTFIDFConfig(), nil)
	engine2, err := NewEngine(ctx, DefaultEngineConfig(), store2, lexical2, nil)
	require.NoError(t, err)

	stats, err := engine2.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalItems)

	results, err := engine2.Search(ctx, "solar capacity", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Item.Content, "solar")
}

// ============================================================
// Export / import
// ============================================================

func TestEngine_ExportImportRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine := newTestEngine(t, nil)

	require.NoError(t, engine.Ingest(ctx, "solar output peaked at noon", Metadata{"type": "fact"}))
	require.NoError(t, engine.Ingest(ctx, "water consumption dipped overnight", Metadata{"type": "fact"}))

	data, err := engine.ExportJSON(ctx)
	require.NoError(t, err)

	other := newTestEngine(t, nil)
	imported, err := other.ImportJSON(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 2, imported)

	// Re-importing the same payload deduplicates everything.
	imported, err = other.ImportJSON(ctx, data)
	require.NoError(t, err)
	assert.Zero(t, imported)

	stats, err := other.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalItems)
}
