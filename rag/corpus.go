package rag

import (
	"sync"
)

// =============================================================================
// 内存语料
// =============================================================================

// Corpus 检索引擎的内存侧状态：条目切片与按行对齐的两套 embedding 矩阵。
// 不变量：len(items) == len(ids) == len(texts) == len(lexical)，
// 启用语义通道时还 == len(semantic)。所有访问经 mu 保护，
// 写路径（Engine.Ingest 等）持写锁，检索持读锁。
type Corpus struct {
	mu sync.RWMutex

	items    []KnowledgeItem
	ids      []uint
	texts    []string
	lexical  [][]float64
	semantic [][]float64

	hashes map[string]int // content hash → 行号
}

// NewCorpus 创建空语料。
func NewCorpus() *Corpus {
	return &Corpus{hashes: make(map[string]int)}
}

// Len 当前条目数。
func (c *Corpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// HasHash 语料级去重检查。
func (c *Corpus) HasHash(hash string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.hashes[hash]
	return ok
}

// IDByHash 返回指定内容哈希对应的条目 ID。
func (c *Corpus) IDByHash(hash string) (uint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.hashes[hash]
	if !ok {
		return 0, false
	}
	return c.ids[i], true
}

// Texts 返回全部条目文本的副本（重新拟合词法模型时使用）。
func (c *Corpus) Texts() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.texts))
	copy(out, c.texts)
	return out
}

// load 整体重建语料（启动恢复与硬清除后重建）。semanticDim > 0 时
// 缺失的语义向量以零向量占位，保证矩阵行数与条目数一致。
// 调用方持有写锁。
func (c *Corpus) load(items []StoredItem, lexical [][]float64, semanticDim int) {
	n := len(items)
	c.items = make([]KnowledgeItem, n)
	c.ids = make([]uint, n)
	c.texts = make([]string, n)
	c.lexical = lexical
	c.hashes = make(map[string]int, n)

	if semanticDim > 0 {
		c.semantic = make([][]float64, n)
	} else {
		c.semantic = nil
	}

	for i, st := range items {
		c.items[i] = st.Item
		c.ids[i] = st.ID
		c.texts[i] = st.Item.Content
		c.hashes[st.Item.ContentHash] = i

		if semanticDim > 0 {
			if len(st.Semantic) == semanticDim {
				c.semantic[i] = st.Semantic
			} else {
				c.semantic[i] = make([]float64, semanticDim)
			}
		}
	}
}

// commit 追加一条已持久化的条目。调用方持有写锁；lexicalMatrix 非 nil 时
// 必须覆盖含新条目在内的全量语料（批量路径在全批提交后统一换入矩阵）。
func (c *Corpus) commit(id uint, item KnowledgeItem, lexicalMatrix [][]float64, semantic []float64) {
	c.items = append(c.items, item)
	c.ids = append(c.ids, id)
	c.texts = append(c.texts, item.Content)
	if lexicalMatrix != nil {
		c.lexical = lexicalMatrix
	}
	c.hashes[item.ContentHash] = len(c.items) - 1

	if c.semantic != nil || semantic != nil {
		c.semantic = append(c.semantic, semantic)
	}
}

// clear 清空全部内存状态。调用方持有写锁。
func (c *Corpus) clear() {
	c.items = nil
	c.ids = nil
	c.texts = nil
	c.lexical = nil
	c.semantic = nil
	c.hashes = make(map[string]int)
}
