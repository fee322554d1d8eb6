package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// =============================================================================
// 文档来源登记与引用检索
// =============================================================================

// SourceRegistry 在引擎之上维护 文档来源 → 知识条目 的归属关系，
// 支持带引用的检索与来源级的下线 / 清除。
type SourceRegistry struct {
	engine *Engine
	store  *Store
	logger *zap.Logger
}

// NewSourceRegistry 创建来源登记器。
func NewSourceRegistry(engine *Engine, logger *zap.Logger) *SourceRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SourceRegistry{
		engine: engine,
		store:  engine.Store(),
		logger: logger.With(zap.String("component", "source_registry")),
	}
}

// RegisterSource 登记来源（幂等），返回来源 ID。
func (r *SourceRegistry) RegisterSource(ctx context.Context, name, sourceType string, metadata Metadata) (uint, error) {
	id, err := r.store.UpsertSource(ctx, name, sourceType, metadata)
	if err != nil {
		return 0, err
	}
	r.logger.Debug("source registered", zap.String("name", name), zap.Uint("id", id))
	return id, nil
}

// IngestChunk 摄入一个带来源归属的文档分块。内容重复时条目不会新增，
// 但来源链接照常记录（同一段文字可以出现在多个来源里）。
func (r *SourceRegistry) IngestChunk(ctx context.Context, content string, metadata Metadata, sourceID uint, chunkIndex int) error {
	itemID, err := r.engine.ingest(ctx, content, metadata)
	if err != nil {
		return err
	}
	if itemID == 0 {
		// 空白内容：无条目可链接。
		return nil
	}
	return r.store.LinkChunk(ctx, itemID, sourceID, chunkIndex, 1.0)
}

// CitedItem 带来源标注的检索结果。Citation 为 0 表示无已知来源。
type CitedItem struct {
	SearchResult
	Citation   int    `json:"citation,omitempty"`
	SourceName string `json:"source_name,omitempty"`
	SourceType string `json:"source_type,omitempty"`
}

// SourceGroup 检索结果中出现的一个来源。
type SourceGroup struct {
	Citation int    `json:"citation"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Items    int    `json:"items"`
}

// CitedResults 带引用的检索结果集。
type CitedResults struct {
	Items     []CitedItem   `json:"items"`
	Sources   []SourceGroup `json:"sources"`
	Citations []string      `json:"citations"`
	Context   string        `json:"context"`
}

// SearchWithCitations 执行混合检索并按首次出现顺序为来源编号。
// 无来源归属的条目标注为 "unknown source"，不占用引用编号。
func (r *SourceRegistry) SearchWithCitations(ctx context.Context, query string, topK int) (CitedResults, error) {
	results, err := r.engine.Search(ctx, query, topK)
	if err != nil {
		return CitedResults{}, err
	}

	ids := make([]uint, len(results))
	for i, res := range results {
		ids[i] = res.ItemID
	}
	provenance, err := r.store.ProvenanceFor(ctx, ids)
	if err != nil {
		return CitedResults{}, err
	}

	out := CitedResults{Items: make([]CitedItem, 0, len(results))}
	citationByName := make(map[string]int)
	groupIdx := make(map[string]int)
	var contexts []string

	for _, res := range results {
		item := CitedItem{SearchResult: res}
		if prov, ok := provenance[res.ItemID]; ok {
			n, seen := citationByName[prov.SourceName]
			if !seen {
				n = len(citationByName) + 1
				citationByName[prov.SourceName] = n
				out.Sources = append(out.Sources, SourceGroup{
					Citation: n,
					Name:     prov.SourceName,
					Type:     prov.SourceType,
				})
				out.Citations = append(out.Citations, fmt.Sprintf("[%d] %s (%s)",
					n, prov.SourceName, strings.ToUpper(prov.SourceType)))
				groupIdx[prov.SourceName] = len(out.Sources) - 1
			}
			out.Sources[groupIdx[prov.SourceName]].Items++
			item.Citation = n
			item.SourceName = prov.SourceName
			item.SourceType = prov.SourceType
			contexts = append(contexts, fmt.Sprintf("[%d] %s", n, res.Item.Content))
		} else {
			item.SourceName = "unknown source"
			contexts = append(contexts, res.Item.Content)
		}
		out.Items = append(out.Items, item)
	}

	out.Context = strings.Join(contexts, "\n\n")
	return out, nil
}

// Source 按名称返回来源信息（含非活跃），不存在时返回 ErrSourceNotFound。
func (r *SourceRegistry) Source(ctx context.Context, name string) (SourceInfo, error) {
	return r.store.SourceByName(ctx, name)
}

// ActiveSources 列出全部活跃来源。
func (r *SourceRegistry) ActiveSources(ctx context.Context) ([]SourceInfo, error) {
	return r.store.ActiveSources(ctx)
}

// DeactivateSource 软删除来源：链接移除、来源标记为非活跃，
// 知识条目本身保留（仍可被检索命中，只是不再带引用）。
func (r *SourceRegistry) DeactivateSource(ctx context.Context, name string) error {
	removed, err := r.store.DeactivateSource(ctx, name)
	if err != nil {
		return err
	}
	r.logger.Info("source deactivated",
		zap.String("name", name), zap.Int("links_removed", removed))
	return nil
}

// PurgeSource 硬清除来源：删除其全部知识条目与来源行，
// 然后从存储整体重建语料与词法模型。返回清除的条目数。
func (r *SourceRegistry) PurgeSource(ctx context.Context, name string) (int, error) {
	ids, err := r.store.ItemIDsForSource(ctx, name)
	if err != nil {
		return 0, err
	}
	if err := r.store.DeleteItems(ctx, ids); err != nil {
		return 0, err
	}
	if err := r.store.DeleteSource(ctx, name); err != nil {
		return 0, err
	}
	if err := r.engine.Rebuild(ctx); err != nil {
		return 0, err
	}
	r.logger.Info("source purged",
		zap.String("name", name), zap.Int("items_removed", len(ids)))
	return len(ids), nil
}

// Statistics 返回语料统计加来源计数。
func (r *SourceRegistry) Statistics(ctx context.Context) (Stats, []SourceInfo, error) {
	stats, err := r.engine.Stats(ctx)
	if err != nil {
		return Stats{}, nil, err
	}
	sources, err := r.store.ActiveSources(ctx)
	if err != nil {
		return Stats{}, nil, err
	}
	return stats, sources, nil
}
