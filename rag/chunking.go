package rag

import (
	"strings"

	"go.uber.org/zap"
)

// =============================================================================
// 文档分块
// =============================================================================

// ChunkingConfig 分块配置
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`         // 块大小（tokens）
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`   // 重叠大小（tokens）
	MinChunkSize int `yaml:"min_chunk_size" json:"min_chunk_size"` // 最小块大小（tokens）
}

// DefaultChunkingConfig 默认分块配置
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		ChunkSize:    512,
		ChunkOverlap: 64,
		MinChunkSize: 24,
	}
}

// Chunk 文档块
type Chunk struct {
	Content    string `json:"content"`
	Index      int    `json:"index"`
	TokenCount int    `json:"token_count"`
}

// DocumentChunker 递归文档分块器：按 段落 > 行 > 句子 > 单词 的
// 分隔符优先级切分，在 token 预算内贪心合并，块间保留尾部重叠。
type DocumentChunker struct {
	config    ChunkingConfig
	tokenizer Tokenizer
	logger    *zap.Logger
}

// 分隔符优先级：段落 > 行 > 句子 > 单词
var chunkSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// NewDocumentChunker 创建文档分块器。
func NewDocumentChunker(config ChunkingConfig, tokenizer Tokenizer, logger *zap.Logger) *DocumentChunker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkingConfig().ChunkSize
	}
	if tokenizer == nil {
		tokenizer = NewEstimatorTokenizer()
	}
	return &DocumentChunker{
		config:    config,
		tokenizer: tokenizer,
		logger:    logger.With(zap.String("component", "chunker")),
	}
}

// Split 将文本切分为带顺序编号的块。
// 短于最小块大小的候选被并入相邻块而不是单独成块；
// 整体短于一个预算的文本原样返回单块。
func (c *DocumentChunker) Split(text string) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if c.tokenizer.CountTokens(text) <= c.config.ChunkSize {
		return []Chunk{{Content: text, Index: 0, TokenCount: c.tokenizer.CountTokens(text)}}
	}

	units := c.splitUnits(text, chunkSeparators)
	pieces := c.pack(units)

	chunks := make([]Chunk, 0, len(pieces))
	for i, p := range pieces {
		chunks = append(chunks, Chunk{
			Content:    p,
			Index:      i,
			TokenCount: c.tokenizer.CountTokens(p),
		})
	}

	c.logger.Debug("document chunked",
		zap.Int("chunks", len(chunks)),
		zap.Int("chunk_size", c.config.ChunkSize),
		zap.Int("overlap", c.config.ChunkOverlap))
	return chunks
}

// splitUnits 递归切分到每个单元都在预算内。
// 分隔符用尽仍超预算的单元按估算字符数硬切。
func (c *DocumentChunker) splitUnits(text string, separators []string) []string {
	if c.tokenizer.CountTokens(text) <= c.config.ChunkSize {
		return []string{text}
	}
	if len(separators) == 0 {
		return c.splitByRunes(text)
	}

	sep := separators[0]
	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return c.splitUnits(text, separators[1:])
	}

	var units []string
	for i, part := range parts {
		if i < len(parts)-1 {
			part += sep
		}
		if part == "" {
			continue
		}
		if c.tokenizer.CountTokens(part) > c.config.ChunkSize {
			units = append(units, c.splitUnits(part, separators[1:])...)
		} else {
			units = append(units, part)
		}
	}
	return units
}

// splitByRunes 最后手段：按估算的每 token 字符数硬切。
func (c *DocumentChunker) splitByRunes(text string) []string {
	runes := []rune(text)
	charsPerChunk := c.config.ChunkSize * 4
	if charsPerChunk <= 0 {
		charsPerChunk = len(runes)
	}

	var units []string
	for i := 0; i < len(runes); i += charsPerChunk {
		end := i + charsPerChunk
		if end > len(runes) {
			end = len(runes)
		}
		units = append(units, string(runes[i:end]))
	}
	return units
}

// pack 在预算内贪心合并单元；块间以尾部单元实现重叠。
func (c *DocumentChunker) pack(units []string) []string {
	var pieces []string
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(current, ""))
		if content == "" {
			current = nil
			currentTokens = 0
			return
		}
		// 过短的尾块并入前一块。
		if len(pieces) > 0 && c.tokenizer.CountTokens(content) < c.config.MinChunkSize {
			pieces[len(pieces)-1] = strings.TrimSpace(pieces[len(pieces)-1] + " " + content)
		} else {
			pieces = append(pieces, content)
		}
		current = nil
		currentTokens = 0
	}

	for _, unit := range units {
		n := c.tokenizer.CountTokens(unit)
		if currentTokens+n > c.config.ChunkSize && currentTokens > 0 {
			overlap, overlapTokens := c.overlapTail(current)
			flush()
			current = overlap
			currentTokens = overlapTokens
		}
		current = append(current, unit)
		currentTokens += n
	}
	flush()

	return pieces
}

// overlapTail 取当前块尾部若干单元作为下一块的开头。
func (c *DocumentChunker) overlapTail(units []string) ([]string, int) {
	if c.config.ChunkOverlap <= 0 {
		return nil, 0
	}
	var tail []string
	tokens := 0
	for i := len(units) - 1; i >= 0; i-- {
		n := c.tokenizer.CountTokens(units[i])
		if tokens+n > c.config.ChunkOverlap {
			break
		}
		tail = append([]string{units[i]}, tail...)
		tokens += n
	}
	return tail, tokens
}
