package rag

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ujana-my/tenaga/internal/cache"
	"github.com/ujana-my/tenaga/internal/metrics"
	"github.com/ujana-my/tenaga/rag/embedding"
)

// =============================================================================
// 检索引擎
// =============================================================================

// EngineConfig 混合检索参数。
type EngineConfig struct {
	TopKDefault       int     `yaml:"top_k_default" json:"top_k_default"`
	LexicalWeight     float64 `yaml:"lexical_weight" json:"lexical_weight"`
	SemanticWeight    float64 `yaml:"semantic_weight" json:"semantic_weight"`
	LexicalThreshold  float64 `yaml:"lexical_threshold" json:"lexical_threshold"`
	SemanticThreshold float64 `yaml:"semantic_threshold" json:"semantic_threshold"`
	CandidateFactor   int     `yaml:"candidate_factor" json:"candidate_factor"`
}

// DefaultEngineConfig 返回默认检索参数。
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TopKDefault:       5,
		LexicalWeight:     0.4,
		SemanticWeight:    0.6,
		LexicalThreshold:  0.1,
		SemanticThreshold: 0.3,
		CandidateFactor:   2,
	}
}

// Engine 混合检索引擎：词法（TF-IDF）与语义（句向量）双通道召回，
// 加权融合排序。写操作串行化（语料写锁），检索可并发。
type Engine struct {
	config   EngineConfig
	store    *Store
	corpus   *Corpus
	lexical  *embedding.TFIDF
	semantic embedding.Provider

	cache     *cache.Manager
	cacheTTL  time.Duration
	collector *metrics.Collector
	logger    *zap.Logger

	// generation 在每次变更时递增，烘焙进缓存键使旧结果自然失效。
	generation uint64
}

// EngineOption 引擎可选配置。
type EngineOption func(*Engine)

// WithLogger 设置引擎及其子组件的日志器。
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithCache 启用检索结果缓存。
func WithCache(manager *cache.Manager, ttl time.Duration) EngineOption {
	return func(e *Engine) {
		e.cache = manager
		e.cacheTTL = ttl
	}
}

// WithMetrics 启用指标采集。
func WithMetrics(collector *metrics.Collector) EngineOption {
	return func(e *Engine) {
		e.collector = collector
	}
}

// NewEngine 构造引擎并从存储恢复语料。semantic 可为 nil（纯词法模式）。
// 恢复时优先沿用持久化的词法向量；若维度与新拟合的模型不符
//（词表随语料演化），对全量文本重新变换。
func NewEngine(ctx context.Context, config EngineConfig, store *Store, lexical *embedding.TFIDF, semantic embedding.Provider, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, errors.New("rag: store is required")
	}
	if lexical == nil {
		return nil, errors.New("rag: lexical embedder is required")
	}
	if config.TopKDefault <= 0 {
		config.TopKDefault = 5
	}
	if config.CandidateFactor <= 0 {
		config.CandidateFactor = 2
	}

	e := &Engine{
		config:   config,
		store:    store,
		corpus:   NewCorpus(),
		lexical:  lexical,
		semantic: semantic,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "rag_engine"))

	if err := store.Initialize(ctx); err != nil {
		return nil, err
	}
	if err := e.restore(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// restore 从存储完整重建内存语料与 embedding 矩阵。
func (e *Engine) restore(ctx context.Context) error {
	stored, err := e.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	texts := make([]string, len(stored))
	for i, st := range stored {
		texts[i] = st.Item.Content
	}
	if err := e.lexical.Fit(texts); err != nil {
		return fmt.Errorf("rag: refit lexical model: %w", err)
	}

	lexMatrix := make([][]float64, len(stored))
	dim := e.lexical.Dimension()
	rebuilt := 0
	for i, st := range stored {
		if len(st.Lexical) == dim {
			lexMatrix[i] = st.Lexical
			continue
		}
		vec, err := e.lexical.EmbedQuery(ctx, st.Item.Content)
		if err != nil {
			return fmt.Errorf("rag: rebuild lexical vector: %w", err)
		}
		lexMatrix[i] = vec
		rebuilt++
	}

	semanticDim := 0
	if e.semantic != nil {
		semanticDim = e.semantic.Dimension()
	}

	e.corpus.mu.Lock()
	e.corpus.load(stored, lexMatrix, semanticDim)
	e.corpus.mu.Unlock()

	e.logger.Info("corpus restored",
		zap.Int("items", len(stored)),
		zap.Int("lexical_rebuilt", rebuilt),
		zap.Bool("semantic", semanticDim > 0))
	e.setCorpusGauge()
	return nil
}

// Rebuild 以存储为准整体重建内存语料与词法模型（来源硬清除之后调用）。
// 在写锁内完成，重建期间检索被阻塞而不是读到半成品。
func (e *Engine) Rebuild(ctx context.Context) error {
	e.corpus.mu.Lock()
	defer e.corpus.mu.Unlock()

	stored, err := e.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	texts := make([]string, len(stored))
	for i, st := range stored {
		texts[i] = st.Item.Content
	}

	refitted, err := e.lexical.Refit(texts)
	if err != nil {
		return fmt.Errorf("rag: refit lexical model: %w", err)
	}
	matrix, err := refitted.TransformAll(texts)
	if err != nil {
		return fmt.Errorf("rag: transform corpus: %w", err)
	}

	semanticDim := 0
	if e.semantic != nil {
		semanticDim = e.semantic.Dimension()
	}
	e.lexical = refitted
	e.corpus.load(stored, matrix, semanticDim)
	e.generation++
	e.setCorpusGauge()

	e.logger.Info("corpus rebuilt", zap.Int("items", len(stored)))
	return nil
}

// Ingest 摄入一条知识。空白内容与重复内容均为无害空操作。
// 顺序保证：先落盘，成功后才更新内存状态；存储失败不留下任何痕迹。
func (e *Engine) Ingest(ctx context.Context, content string, metadata Metadata) error {
	_, err := e.ingest(ctx, content, metadata)
	return err
}

// ingest 返回条目 ID 供来源链接使用。重复内容返回已有条目的 ID。
func (e *Engine) ingest(ctx context.Context, content string, metadata Metadata) (uint, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		e.observeIngest("empty")
		return 0, nil
	}

	item := KnowledgeItem{
		Content:     content,
		Metadata:    metadata,
		ContentHash: hashContent(content),
		CreatedAt:   time.Now().UTC(),
	}

	e.corpus.mu.Lock()
	defer e.corpus.mu.Unlock()

	if i, ok := e.corpus.hashes[item.ContentHash]; ok {
		e.observeIngest("duplicate")
		return e.corpus.ids[i], nil
	}

	// 词表随语料演化：在旧语料 + 新文本上重新拟合，
	// 得到新模型后对全量文本变换，成功落盘后才整体换入。
	texts := append(append([]string(nil), e.corpus.texts...), content)
	refitted, err := e.lexical.Refit(texts)
	if err != nil {
		e.observeIngest("error")
		return 0, fmt.Errorf("rag: refit lexical model: %w", err)
	}
	lexMatrix, err := refitted.TransformAll(texts)
	if err != nil {
		e.observeIngest("error")
		return 0, fmt.Errorf("rag: transform corpus: %w", err)
	}

	var semVec []float64
	if e.semantic != nil {
		semVec, err = e.semantic.EmbedQuery(ctx, content)
		if err != nil {
			// 语义通道按条目降级：占位零向量保持矩阵对齐。
			e.logger.Warn("semantic embedding failed, storing zero vector",
				zap.String("provider", e.semantic.Name()), zap.Error(err))
			semVec = make([]float64, e.semantic.Dimension())
		}
	}

	id, inserted, err := e.store.Insert(ctx, item, lexMatrix[len(lexMatrix)-1], semVec)
	if err != nil {
		e.observeIngest("error")
		return 0, err
	}
	if !inserted {
		e.observeIngest("duplicate")
		return id, nil
	}

	e.lexical = refitted
	e.corpus.commit(id, item, lexMatrix, semVec)
	e.generation++
	e.observeIngest("ok")
	e.setCorpusGauge()

	e.logger.Debug("knowledge ingested",
		zap.Uint("id", id),
		zap.Int("corpus_size", len(e.corpus.items)),
		zap.Int("lexical_dim", e.lexical.Dimension()))
	return id, nil
}

// IngestBatch 批量摄入：全批只做一次词法重拟合。
// 返回实际新增条数；单条语义失败不中断整批。
func (e *Engine) IngestBatch(ctx context.Context, inputs []IngestInput) (int, error) {
	e.corpus.mu.Lock()
	defer e.corpus.mu.Unlock()

	type pending struct {
		item   KnowledgeItem
		semVec []float64
	}

	seen := make(map[string]struct{})
	var batch []pending
	for _, in := range inputs {
		content := strings.TrimSpace(in.Content)
		if content == "" {
			continue
		}
		hash := hashContent(content)
		if _, ok := e.corpus.hashes[hash]; ok {
			continue
		}
		if _, ok := seen[hash]; ok {
			continue
		}
		seen[hash] = struct{}{}
		batch = append(batch, pending{item: KnowledgeItem{
			Content:     content,
			Metadata:    in.Metadata,
			ContentHash: hash,
			CreatedAt:   time.Now().UTC(),
		}})
	}
	if len(batch) == 0 {
		return 0, nil
	}

	texts := append([]string(nil), e.corpus.texts...)
	for _, p := range batch {
		texts = append(texts, p.item.Content)
	}
	refitted, err := e.lexical.Refit(texts)
	if err != nil {
		return 0, fmt.Errorf("rag: refit lexical model: %w", err)
	}
	lexMatrix, err := refitted.TransformAll(texts)
	if err != nil {
		return 0, fmt.Errorf("rag: transform corpus: %w", err)
	}

	if e.semantic != nil {
		for i := range batch {
			vec, semErr := e.semantic.EmbedQuery(ctx, batch[i].item.Content)
			if semErr != nil {
				e.logger.Warn("semantic embedding failed in batch",
					zap.Int("index", i), zap.Error(semErr))
				vec = make([]float64, e.semantic.Dimension())
			}
			batch[i].semVec = vec
		}
	}

	// 逐条落盘，只提交成功写入的行；提交的矩阵行与语料行保持对齐。
	base := len(e.corpus.texts)
	newMatrix := append([][]float64(nil), lexMatrix[:base]...)
	added := 0
	var insertErr error
	for i, p := range batch {
		id, inserted, err := e.store.Insert(ctx, p.item, lexMatrix[base+i], p.semVec)
		if err != nil {
			insertErr = err
			break
		}
		if !inserted {
			continue
		}
		newMatrix = append(newMatrix, lexMatrix[base+i])
		e.corpus.commit(id, p.item, nil, p.semVec)
		added++
		e.observeIngest("ok")
	}

	if added > 0 {
		e.lexical = refitted
		e.corpus.lexical = newMatrix
		e.generation++
		e.setCorpusGauge()
	}
	return added, insertErr
}

// Search 混合检索：返回至多 topK 条结果，按融合得分降序。
// topK <= 0 使用默认值。空语料返回空切片。
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = e.config.TopKDefault
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []SearchResult{}, nil
	}

	start := time.Now()
	if cached, ok := e.cachedResults(ctx, query, topK); ok {
		e.observeSearch(time.Since(start), true)
		return cached, nil
	}

	e.corpus.mu.RLock()
	results, err := e.searchLocked(ctx, query, topK)
	e.corpus.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	e.storeCachedResults(ctx, query, topK, results)
	e.observeSearch(time.Since(start), false)
	return results, nil
}

// searchLocked 在持有读锁的前提下执行双通道召回与融合。
func (e *Engine) searchLocked(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if len(e.corpus.items) == 0 {
		return []SearchResult{}, nil
	}

	limit := topK * e.config.CandidateFactor

	var lexScores map[int]float64
	queryVec, err := e.lexical.EmbedQuery(ctx, query)
	if err == nil {
		lexScores = topCandidates(e.corpus.lexical, queryVec, e.config.LexicalThreshold, limit)
	} else if !errors.Is(err, embedding.ErrNotFitted) {
		return nil, fmt.Errorf("rag: lexical query embedding: %w", err)
	}

	var semScores map[int]float64
	if e.semantic != nil && e.corpus.semantic != nil {
		semVec, semErr := e.semantic.EmbedQuery(ctx, query)
		if semErr != nil {
			// 语义通道失败时降级为纯词法检索。
			e.logger.Warn("semantic query embedding failed, lexical-only search",
				zap.Error(semErr))
		} else {
			semScores = topCandidates(e.corpus.semantic, semVec, e.config.SemanticThreshold, limit)
			if semScores == nil {
				// 通道已运行但无候选：用空 map 区别于通道缺席，
				// 融合权重保持 0.4/0.6 不做归一化提升。
				semScores = map[int]float64{}
			}
		}
	}

	fused := e.fuse(lexScores, semScores, topK)

	results := make([]SearchResult, 0, len(fused))
	for _, f := range fused {
		results = append(results, SearchResult{
			Item:          e.corpus.items[f.index],
			ItemID:        e.corpus.ids[f.index],
			LexicalScore:  lexScores[f.index],
			SemanticScore: semScores[f.index],
			Relevance:     f.score,
		})
	}
	return results, nil
}

// Clear 清空知识库（存储与内存）。
func (e *Engine) Clear(ctx context.Context) error {
	e.corpus.mu.Lock()
	defer e.corpus.mu.Unlock()

	if err := e.store.Clear(ctx); err != nil {
		return err
	}
	e.corpus.clear()
	if err := e.lexical.Fit(nil); err != nil {
		return fmt.Errorf("rag: reset lexical model: %w", err)
	}
	e.generation++
	e.setCorpusGauge()
	return nil
}

// Stats 返回语料统计。类型分布取元数据的 "type" 字段，缺失计入 "unknown"。
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	e.corpus.mu.RLock()
	defer e.corpus.mu.RUnlock()

	dist := make(map[string]int)
	for _, item := range e.corpus.items {
		t := "unknown"
		if item.Metadata != nil {
			if v, ok := item.Metadata["type"].(string); ok && v != "" {
				t = v
			}
		}
		dist[t]++
	}

	return Stats{
		TotalItems:        len(e.corpus.items),
		TypeDistribution:  dist,
		LexicalAvailable:  e.lexical.Fitted(),
		SemanticAvailable: e.semantic != nil,
	}, nil
}

// HealthCheck 报告各子系统可用性。
func (e *Engine) HealthCheck(ctx context.Context) map[string]bool {
	// Ingest 在写锁下换入新的词法模型，读取须与 Stats 一样持读锁。
	e.corpus.mu.RLock()
	lexicalReady := e.lexical.Fitted()
	e.corpus.mu.RUnlock()

	health := map[string]bool{
		"store":   true,
		"lexical": lexicalReady,
	}
	if _, err := e.store.Count(ctx); err != nil {
		health["store"] = false
	}
	if e.semantic != nil {
		_, err := e.semantic.EmbedQuery(ctx, "ping")
		health["semantic"] = err == nil
	}
	if e.cache != nil {
		health["cache"] = e.cache.Ping(ctx) == nil
	}
	return health
}

// exportEntry 导出格式中的单条记录。
type exportEntry struct {
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ExportJSON 导出全部知识条目（不含向量，导入时重新计算）。
func (e *Engine) ExportJSON(ctx context.Context) ([]byte, error) {
	e.corpus.mu.RLock()
	entries := make([]exportEntry, len(e.corpus.items))
	for i, item := range e.corpus.items {
		entries[i] = exportEntry{
			Content:   item.Content,
			Metadata:  item.Metadata,
			CreatedAt: item.CreatedAt,
		}
	}
	e.corpus.mu.RUnlock()

	return json.MarshalIndent(entries, "", "  ")
}

// ImportJSON 导入 ExportJSON 产出的数据，重复条目静默跳过。
// 返回实际新增条数。
func (e *Engine) ImportJSON(ctx context.Context, data []byte) (int, error) {
	var entries []exportEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("rag: parse import data: %w", err)
	}

	inputs := make([]IngestInput, 0, len(entries))
	for _, entry := range entries {
		inputs = append(inputs, IngestInput{Content: entry.Content, Metadata: entry.Metadata})
	}
	return e.IngestBatch(ctx, inputs)
}

// Store 暴露底层存储（SourceRegistry 使用）。
func (e *Engine) Store() *Store { return e.store }

// =============================================================================
// 缓存与指标
// =============================================================================

func (e *Engine) searchCacheKey(query string, topK int) string {
	sum := sha256.Sum256([]byte(query))
	return fmt.Sprintf("tenaga:search:%d:%x:%d", e.currentGeneration(), sum[:8], topK)
}

func (e *Engine) currentGeneration() uint64 {
	e.corpus.mu.RLock()
	defer e.corpus.mu.RUnlock()
	return e.generation
}

func (e *Engine) cachedResults(ctx context.Context, query string, topK int) ([]SearchResult, bool) {
	if e.cache == nil {
		return nil, false
	}
	var results []SearchResult
	ok, err := e.cache.GetJSON(ctx, e.searchCacheKey(query, topK), &results)
	if err != nil {
		e.logger.Debug("search cache lookup failed", zap.Error(err))
		return nil, false
	}
	if ok && e.collector != nil {
		e.collector.CacheHit()
	}
	if !ok && e.collector != nil {
		e.collector.CacheMiss()
	}
	return results, ok
}

func (e *Engine) storeCachedResults(ctx context.Context, query string, topK int, results []SearchResult) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SetJSON(ctx, e.searchCacheKey(query, topK), results, e.cacheTTL); err != nil {
		e.logger.Debug("search cache store failed", zap.Error(err))
	}
}

func (e *Engine) observeIngest(result string) {
	if e.collector != nil {
		e.collector.IngestObserved(result)
	}
}

func (e *Engine) observeSearch(d time.Duration, cached bool) {
	if e.collector != nil {
		e.collector.SearchObserved(d, cached)
	}
}

func (e *Engine) setCorpusGauge() {
	if e.collector != nil {
		e.collector.SetCorpusItems(len(e.corpus.items))
	}
}
