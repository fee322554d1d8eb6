package rag

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Metadata 知识条目的元数据：string key → JSON 兼容值。
// 消费方自定键名；按约定 "type" 键用于下游过滤，引擎本身不强制。
type Metadata map[string]any

// KnowledgeItem 知识条目。入库后不可变：只支持插入（重复即跳过）与批量删除。
type KnowledgeItem struct {
	Content     string    `json:"content"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// SearchResult 检索结果：条目加各通道分数与融合后的相关度。
type SearchResult struct {
	Item          KnowledgeItem `json:"item"`
	ItemID        uint          `json:"item_id"`
	LexicalScore  float64       `json:"lexical_score"`
	SemanticScore float64       `json:"semantic_score"`
	Relevance     float64       `json:"relevance_score"`
}

// Document 加载器产出的原始文档，分块后进入知识库。
type Document struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// IngestInput 批量摄取的单条输入。
type IngestInput struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Stats 知识库统计信息。
type Stats struct {
	TotalItems        int            `json:"total_items"`
	TypeDistribution  map[string]int `json:"type_distribution"`
	LexicalAvailable  bool           `json:"lexical_available"`
	SemanticAvailable bool           `json:"semantic_available"`
}

// hashContent 计算内容的去重键（SHA-256 十六进制）。
func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
