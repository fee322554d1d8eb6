package rag

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// =============================================================================
// 持久化存储
// =============================================================================

// Store 知识库持久化存储。所有写入在调用返回前落盘（SQLite 单文件，
// 事务短生命周期），重启后 LoadAll 按插入顺序完整重建语料。
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// knowledgeItemRow 对应 knowledge_items 表。
type knowledgeItemRow struct {
	ID           uint   `gorm:"primaryKey"`
	ContentHash  string `gorm:"uniqueIndex;size:64"`
	Content      string
	Metadata     string `gorm:"type:text"`
	LexicalBlob  []byte `gorm:"column:embedding_tfidf"`
	SemanticBlob []byte `gorm:"column:embedding_sentence"`
	CreatedAt    time.Time
}

func (knowledgeItemRow) TableName() string { return "knowledge_items" }

// documentSourceRow 对应 document_sources 表。
type documentSourceRow struct {
	ID          uint   `gorm:"primaryKey"`
	SourceName  string `gorm:"uniqueIndex"`
	SourceType  string
	TotalChunks int
	Metadata    string `gorm:"type:text"`
	IsActive    bool   `gorm:"default:true"`
	CreatedAt   time.Time
}

func (documentSourceRow) TableName() string { return "document_sources" }

// chunkSourceRow 对应 chunk_sources 表：条目 → 来源 的多对一链接。
type chunkSourceRow struct {
	ID              uint `gorm:"primaryKey"`
	KnowledgeItemID uint `gorm:"index"`
	SourceID        uint `gorm:"index"`
	ChunkIndex      int
	RelevanceScore  float64 `gorm:"default:1.0"`
}

func (chunkSourceRow) TableName() string { return "chunk_sources" }

// StoredItem LoadAll 返回的持久化条目：知识条目加两个序列化向量。
type StoredItem struct {
	ID       uint
	Item     KnowledgeItem
	Lexical  []float64
	Semantic []float64
}

// SourceInfo 文档来源的只读视图。
type SourceInfo struct {
	ID          uint     `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	TotalChunks int      `json:"total_chunks"`
	Metadata    Metadata `json:"metadata,omitempty"`
	IsActive    bool     `json:"is_active"`
}

// OpenStore 打开（必要时创建）path 处的 SQLite 存储。
// 使用 ":memory:" 可获得仅测试用的内存库。
func OpenStore(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStore, path, err)
	}

	return &Store{
		db:     db,
		logger: logger.With(zap.String("component", "store")),
	}, nil
}

// NewStoreWithDB 用已有的 GORM 连接构造存储（测试与嵌入场景）。
func NewStoreWithDB(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger.With(zap.String("component", "store"))}
}

// Initialize 建表（幂等，每次启动都可安全调用）。
func (s *Store) Initialize(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&knowledgeItemRow{},
		&documentSourceRow{},
		&chunkSourceRow{},
	)
	if err != nil {
		return fmt.Errorf("%w: auto migrate: %v", ErrStore, err)
	}
	return nil
}

// Insert 写入一条知识条目。content_hash 已存在时静默跳过
//（存储级去重是语料级去重之后的第二道防线），返回已有行的 ID。
func (s *Store) Insert(ctx context.Context, item KnowledgeItem, lexical, semantic []float64) (id uint, inserted bool, err error) {
	metaJSON, err := json.Marshal(item.Metadata)
	if err != nil {
		return 0, false, fmt.Errorf("%w: marshal metadata: %v", ErrStore, err)
	}

	row := knowledgeItemRow{
		ContentHash:  item.ContentHash,
		Content:      item.Content,
		Metadata:     string(metaJSON),
		LexicalBlob:  encodeVector(lexical),
		SemanticBlob: encodeVector(semantic),
		CreatedAt:    item.CreatedAt,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing knowledgeItemRow
		found := tx.Select("id").Where("content_hash = ?", item.ContentHash).First(&existing)
		if found.Error == nil {
			id = existing.ID
			return nil
		}
		if !errors.Is(found.Error, gorm.ErrRecordNotFound) {
			return found.Error
		}
		if createErr := tx.Create(&row).Error; createErr != nil {
			return createErr
		}
		id = row.ID
		inserted = true
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("%w: insert item: %v", ErrStore, err)
	}
	return id, inserted, nil
}

// LoadAll 按原始插入顺序（自增主键）返回全部条目。
// 行序即 embedding 矩阵行号，语义上不可打乱。
func (s *Store) LoadAll(ctx context.Context) ([]StoredItem, error) {
	var rows []knowledgeItemRow
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: load items: %v", ErrStore, err)
	}

	items := make([]StoredItem, 0, len(rows))
	for _, row := range rows {
		var meta Metadata
		if row.Metadata != "" {
			if err := json.Unmarshal([]byte(row.Metadata), &meta); err != nil {
				s.logger.Warn("skipping item with corrupt metadata",
					zap.Uint("id", row.ID), zap.Error(err))
				continue
			}
		}
		items = append(items, StoredItem{
			ID: row.ID,
			Item: KnowledgeItem{
				Content:     row.Content,
				Metadata:    meta,
				ContentHash: row.ContentHash,
				CreatedAt:   row.CreatedAt,
			},
			Lexical:  decodeVector(row.LexicalBlob),
			Semantic: decodeVector(row.SemanticBlob),
		})
	}
	return items, nil
}

// Count 返回知识条目总数。
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&knowledgeItemRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("%w: count items: %v", ErrStore, err)
	}
	return n, nil
}

// Clear 删除全部知识条目与来源链接（显式重置操作使用）。
func (s *Store) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&chunkSourceRow{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&documentSourceRow{}).Where("1 = 1").Update("total_chunks", 0).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&knowledgeItemRow{}).Error
	})
	if err != nil {
		return fmt.Errorf("%w: clear: %v", ErrStore, err)
	}
	s.logger.Info("knowledge store cleared")
	return nil
}

// DeleteItems 按主键批量删除条目及其来源链接（硬清除路径）。
func (s *Store) DeleteItems(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("knowledge_item_id IN ?", ids).Delete(&chunkSourceRow{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&knowledgeItemRow{}).Error
	})
	if err != nil {
		return fmt.Errorf("%w: delete items: %v", ErrStore, err)
	}
	return nil
}

// =============================================================================
// 来源表操作（SourceRegistry 使用）
// =============================================================================

// UpsertSource 幂等登记来源：同名返回已有 ID，同时刷新元数据并重新激活
//（重新摄入同名文件即恢复其来源）。
func (s *Store) UpsertSource(ctx context.Context, name, sourceType string, metadata Metadata) (uint, error) {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return 0, fmt.Errorf("%w: marshal source metadata: %v", ErrStore, err)
	}

	var id uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing documentSourceRow
		found := tx.Where("source_name = ?", name).First(&existing)
		if found.Error == nil {
			id = existing.ID
			return tx.Model(&documentSourceRow{}).
				Where("id = ?", id).
				Updates(map[string]any{
					"metadata":  string(metaJSON),
					"is_active": true,
				}).Error
		}
		if !errors.Is(found.Error, gorm.ErrRecordNotFound) {
			return found.Error
		}
		row := documentSourceRow{
			SourceName: name,
			SourceType: sourceType,
			Metadata:   string(metaJSON),
			IsActive:   true,
		}
		if createErr := tx.Create(&row).Error; createErr != nil {
			return createErr
		}
		id = row.ID
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: upsert source %q: %v", ErrStore, name, err)
	}
	return id, nil
}

// LinkChunk 记录条目 → 来源链接并递增来源的 chunk 计数。
func (s *Store) LinkChunk(ctx context.Context, itemID, sourceID uint, chunkIndex int, relevance float64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		link := chunkSourceRow{
			KnowledgeItemID: itemID,
			SourceID:        sourceID,
			ChunkIndex:      chunkIndex,
			RelevanceScore:  relevance,
		}
		if err := tx.Create(&link).Error; err != nil {
			return err
		}
		return tx.Model(&documentSourceRow{}).
			Where("id = ?", sourceID).
			Update("total_chunks", gorm.Expr("total_chunks + 1")).Error
	})
	if err != nil {
		return fmt.Errorf("%w: link chunk: %v", ErrStore, err)
	}
	return nil
}

// ChunkProvenance 条目的来源信息。
type ChunkProvenance struct {
	SourceName string
	SourceType string
	ChunkIndex int
}

// ProvenanceFor 返回一批条目的来源信息，键为条目 ID。无链接的条目缺席。
func (s *Store) ProvenanceFor(ctx context.Context, itemIDs []uint) (map[uint]ChunkProvenance, error) {
	if len(itemIDs) == 0 {
		return map[uint]ChunkProvenance{}, nil
	}

	type joined struct {
		KnowledgeItemID uint
		SourceName      string
		SourceType      string
		ChunkIndex      int
	}
	var rows []joined
	err := s.db.WithContext(ctx).
		Table("chunk_sources").
		Select("chunk_sources.knowledge_item_id, document_sources.source_name, document_sources.source_type, chunk_sources.chunk_index").
		Joins("JOIN document_sources ON document_sources.id = chunk_sources.source_id").
		Where("chunk_sources.knowledge_item_id IN ?", itemIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: provenance lookup: %v", ErrStore, err)
	}

	out := make(map[uint]ChunkProvenance, len(rows))
	for _, r := range rows {
		out[r.KnowledgeItemID] = ChunkProvenance{
			SourceName: r.SourceName,
			SourceType: r.SourceType,
			ChunkIndex: r.ChunkIndex,
		}
	}
	return out, nil
}

// ActiveSources 返回全部活跃来源，按 chunk 数降序。
func (s *Store) ActiveSources(ctx context.Context) ([]SourceInfo, error) {
	var rows []documentSourceRow
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("total_chunks DESC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list sources: %v", ErrStore, err)
	}

	out := make([]SourceInfo, 0, len(rows))
	for _, row := range rows {
		out = append(out, sourceInfoFromRow(row))
	}
	return out, nil
}

// SourceByName 按名称查找来源（含非活跃）。
func (s *Store) SourceByName(ctx context.Context, name string) (SourceInfo, error) {
	var row documentSourceRow
	err := s.db.WithContext(ctx).Where("source_name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return SourceInfo{}, ErrSourceNotFound
	}
	if err != nil {
		return SourceInfo{}, fmt.Errorf("%w: source lookup: %v", ErrStore, err)
	}
	return sourceInfoFromRow(row), nil
}

// DeactivateSource 软删除：移除链接行并标记 is_active=false。
// 底层知识条目保留（参考行为，见 SourceRegistry 文档）。
func (s *Store) DeactivateSource(ctx context.Context, name string) (removedLinks int, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row documentSourceRow
		found := tx.Where("source_name = ?", name).First(&row)
		if errors.Is(found.Error, gorm.ErrRecordNotFound) {
			return ErrSourceNotFound
		}
		if found.Error != nil {
			return found.Error
		}

		res := tx.Where("source_id = ?", row.ID).Delete(&chunkSourceRow{})
		if res.Error != nil {
			return res.Error
		}
		removedLinks = int(res.RowsAffected)

		return tx.Model(&documentSourceRow{}).
			Where("id = ?", row.ID).
			Updates(map[string]any{"is_active": false, "total_chunks": 0}).Error
	})
	if err != nil {
		if errors.Is(err, ErrSourceNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: deactivate source %q: %v", ErrStore, name, err)
	}
	return removedLinks, nil
}

// ItemIDsForSource 返回链接到指定来源的条目 ID（chunk_index 升序）。
func (s *Store) ItemIDsForSource(ctx context.Context, name string) ([]uint, error) {
	var row documentSourceRow
	err := s.db.WithContext(ctx).Where("source_name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: source lookup: %v", ErrStore, err)
	}

	var ids []uint
	err = s.db.WithContext(ctx).
		Model(&chunkSourceRow{}).
		Where("source_id = ?", row.ID).
		Order("chunk_index ASC").
		Pluck("knowledge_item_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("%w: source items: %v", ErrStore, err)
	}
	return ids, nil
}

// DeleteSource 删除来源行本身（硬清除路径，链接已先行删除）。
func (s *Store) DeleteSource(ctx context.Context, name string) error {
	err := s.db.WithContext(ctx).Where("source_name = ?", name).Delete(&documentSourceRow{}).Error
	if err != nil {
		return fmt.Errorf("%w: delete source %q: %v", ErrStore, name, err)
	}
	return nil
}

func sourceInfoFromRow(row documentSourceRow) SourceInfo {
	var meta Metadata
	if row.Metadata != "" {
		_ = json.Unmarshal([]byte(row.Metadata), &meta)
	}
	return SourceInfo{
		ID:          row.ID,
		Name:        row.SourceName,
		Type:        row.SourceType,
		TotalChunks: row.TotalChunks,
		Metadata:    meta,
		IsActive:    row.IsActive,
	}
}

// =============================================================================
// 向量序列化（小端 float64，空向量存 NULL）
// =============================================================================

func encodeVector(vec []float64) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 8*len(vec))
	for i, x := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
	}
	return buf
}

func decodeVector(blob []byte) []float64 {
	if len(blob) == 0 || len(blob)%8 != 0 {
		return nil
	}
	vec := make([]float64, len(blob)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return vec
}
