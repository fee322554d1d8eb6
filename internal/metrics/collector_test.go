package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RegistersAllMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	c := NewCollector("test", registry, nil)

	c.IngestObserved("ok")
	c.IngestObserved("duplicate")
	c.SearchObserved(25*time.Millisecond, false)
	c.SearchObserved(time.Millisecond, true)
	c.SetCorpusItems(42)
	c.CacheHit()
	c.CacheMiss()
	c.LLMObserved("llama3.1", "ok", 2*time.Second)

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"test_ingest_total",
		"test_search_total",
		"test_search_duration_seconds",
		"test_corpus_items",
		"test_cache_hits_total",
		"test_cache_misses_total",
		"test_llm_requests_total",
		"test_llm_request_duration_seconds",
	} {
		assert.True(t, names[want], "missing metric family %s", want)
	}
}

func TestCollector_CounterValues(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	c := NewCollector("test", registry, nil)

	c.IngestObserved("ok")
	c.IngestObserved("ok")
	c.IngestObserved("error")
	c.SetCorpusItems(7)
	c.CacheHit()
	c.CacheHit()
	c.CacheMiss()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.ingestTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ingestTotal.WithLabelValues("error")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.corpusItems))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheMisses))
}

func TestCollector_LLMLabels(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	c := NewCollector("test", registry, nil)

	c.LLMObserved("llama3.1", "ok", time.Second)
	c.LLMObserved("llama3.1", "error", time.Second)
	c.LLMObserved("llama3.1", "ok", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.llmRequestsTotal.WithLabelValues("llama3.1", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.llmRequestsTotal.WithLabelValues("llama3.1", "error")))
}
