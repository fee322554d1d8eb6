// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 摄入指标
	ingestTotal *prometheus.CounterVec

	// 检索指标
	searchTotal    *prometheus.CounterVec
	searchDuration prometheus.Histogram

	// 语料指标
	corpusItems prometheus.Gauge

	// 缓存指标
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	// LLM 指标
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration prometheus.Histogram

	logger *zap.Logger
}

// NewCollector 创建指标收集器并注册全部指标。
// registerer 为 nil 时使用 prometheus.DefaultRegisterer。
func NewCollector(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *Collector {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(registerer)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 摄入指标
	c.ingestTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_total",
			Help:      "Total number of ingest operations by result",
		},
		[]string{"result"},
	)

	// 检索指标
	c.searchTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_total",
			Help:      "Total number of search operations",
		},
		[]string{"cached"},
	)

	c.searchDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// 语料指标
	c.corpusItems = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "corpus_items",
			Help:      "Current number of knowledge items in the corpus",
		},
	)

	// 缓存指标
	c.cacheHits = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of search cache hits",
		},
	)

	c.cacheMisses = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of search cache misses",
		},
	)

	// LLM 指标
	c.llmRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"model", "status"},
	)

	c.llmRequestDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	return c
}

// IngestObserved 记录一次摄入操作，result 取 ok/duplicate/empty/error。
func (c *Collector) IngestObserved(result string) {
	c.ingestTotal.WithLabelValues(result).Inc()
}

// SearchObserved 记录一次检索操作及其耗时。
func (c *Collector) SearchObserved(d time.Duration, cached bool) {
	label := "false"
	if cached {
		label = "true"
	}
	c.searchTotal.WithLabelValues(label).Inc()
	c.searchDuration.Observe(d.Seconds())
}

// SetCorpusItems 更新语料规模。
func (c *Collector) SetCorpusItems(n int) {
	c.corpusItems.Set(float64(n))
}

// CacheHit 记录一次缓存命中。
func (c *Collector) CacheHit() { c.cacheHits.Inc() }

// CacheMiss 记录一次缓存未命中。
func (c *Collector) CacheMiss() { c.cacheMisses.Inc() }

// LLMObserved 记录一次 LLM 请求。
func (c *Collector) LLMObserved(model, status string, d time.Duration) {
	c.llmRequestsTotal.WithLabelValues(model, status).Inc()
	c.llmRequestDuration.Observe(d.Seconds())
}
