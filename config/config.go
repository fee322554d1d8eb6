package config

import (
	"fmt"
	"time"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config Tenaga 的完整配置结构
type Config struct {
	// Store 持久化存储配置
	Store StoreConfig `yaml:"store" env:"STORE"`

	// Embedding 向量化配置
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`

	// Retrieval 混合检索配置
	Retrieval RetrievalConfig `yaml:"retrieval" env:"RETRIEVAL"`

	// Chunking 文档分块配置
	Chunking ChunkingConfig `yaml:"chunking" env:"CHUNKING"`

	// Documents 文档目录摄入配置
	Documents DocumentsConfig `yaml:"documents" env:"DOCUMENTS"`

	// LLM 生成式分析配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Cache 检索缓存配置
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`
}

// StoreConfig 存储配置
type StoreConfig struct {
	// SQLite 数据库文件路径
	Path string `yaml:"path" env:"PATH"`
}

// EmbeddingConfig 向量化配置
type EmbeddingConfig struct {
	// 词法通道（TF-IDF）
	TFIDF TFIDFConfig `yaml:"tfidf" env:"TFIDF"`
	// 语义通道（句向量服务）
	Sentence SentenceConfig `yaml:"sentence" env:"SENTENCE"`
}

// TFIDFConfig 词法向量化配置
type TFIDFConfig struct {
	// 词表上限
	MaxFeatures int `yaml:"max_features" env:"MAX_FEATURES"`
	// n-gram 下界
	NGramMin int `yaml:"ngram_min" env:"NGRAM_MIN"`
	// n-gram 上界
	NGramMax int `yaml:"ngram_max" env:"NGRAM_MAX"`
}

// SentenceConfig 句向量服务配置
type SentenceConfig struct {
	// 是否启用语义通道
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 服务地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名
	Model string `yaml:"model" env:"MODEL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// RetrievalConfig 混合检索配置
type RetrievalConfig struct {
	// 默认返回条数
	TopKDefault int `yaml:"top_k_default" env:"TOP_K_DEFAULT"`
	// 词法通道权重
	LexicalWeight float64 `yaml:"lexical_weight" env:"LEXICAL_WEIGHT"`
	// 语义通道权重
	SemanticWeight float64 `yaml:"semantic_weight" env:"SEMANTIC_WEIGHT"`
	// 词法通道阈值
	LexicalThreshold float64 `yaml:"lexical_threshold" env:"LEXICAL_THRESHOLD"`
	// 语义通道阈值
	SemanticThreshold float64 `yaml:"semantic_threshold" env:"SEMANTIC_THRESHOLD"`
	// 每通道候选倍数
	CandidateFactor int `yaml:"candidate_factor" env:"CANDIDATE_FACTOR"`
}

// ChunkingConfig 分块配置
type ChunkingConfig struct {
	// 块大小（tokens）
	ChunkSize int `yaml:"chunk_size" env:"CHUNK_SIZE"`
	// 重叠大小（tokens）
	ChunkOverlap int `yaml:"chunk_overlap" env:"CHUNK_OVERLAP"`
	// 最小块大小（tokens）
	MinChunkSize int `yaml:"min_chunk_size" env:"MIN_CHUNK_SIZE"`
	// 分词器: tiktoken, estimator
	Tokenizer string `yaml:"tokenizer" env:"TOKENIZER"`
}

// DocumentsConfig 文档目录摄入配置
type DocumentsConfig struct {
	// 文档目录
	Dir string `yaml:"dir" env:"DIR"`
	// 并发加载数
	Concurrency int `yaml:"concurrency" env:"CONCURRENCY"`
	// 来源类型标记
	SourceType string `yaml:"source_type" env:"SOURCE_TYPE"`
}

// LLMConfig 生成式分析配置
type LLMConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 服务地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名
	Model string `yaml:"model" env:"MODEL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 采样温度
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
}

// CacheConfig 检索缓存配置
type CacheConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Redis 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 结果缓存 TTL
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
}

// Validate 校验配置合法性。
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Embedding.TFIDF.MaxFeatures <= 0 {
		return fmt.Errorf("embedding.tfidf.max_features must be positive")
	}
	if c.Embedding.TFIDF.NGramMin < 1 || c.Embedding.TFIDF.NGramMax < c.Embedding.TFIDF.NGramMin {
		return fmt.Errorf("embedding.tfidf ngram range is invalid")
	}
	if c.Retrieval.TopKDefault <= 0 {
		return fmt.Errorf("retrieval.top_k_default must be positive")
	}
	if c.Retrieval.LexicalWeight < 0 || c.Retrieval.SemanticWeight < 0 {
		return fmt.Errorf("retrieval weights must be non-negative")
	}
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive")
	}
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap must be smaller than chunk_size")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is invalid", c.Log.Level)
	}
	return nil
}
