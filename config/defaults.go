// =============================================================================
// 📦 Tenaga 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path: "tenaga.db",
		},
		Embedding: EmbeddingConfig{
			TFIDF: TFIDFConfig{
				MaxFeatures: 5000,
				NGramMin:    1,
				NGramMax:    3,
			},
			Sentence: SentenceConfig{
				Enabled: false,
				BaseURL: "http://localhost:11434",
				Model:   "nomic-embed-text",
				Timeout: 30 * time.Second,
			},
		},
		Retrieval: RetrievalConfig{
			TopKDefault:       5,
			LexicalWeight:     0.4,
			SemanticWeight:    0.6,
			LexicalThreshold:  0.1,
			SemanticThreshold: 0.3,
			CandidateFactor:   2,
		},
		Chunking: ChunkingConfig{
			ChunkSize:    512,
			ChunkOverlap: 64,
			MinChunkSize: 24,
			Tokenizer:    "tiktoken",
		},
		Documents: DocumentsConfig{
			Dir:         "documents",
			Concurrency: 4,
			SourceType:  "document",
		},
		LLM: LLMConfig{
			Enabled:     false,
			BaseURL:     "http://localhost:11434",
			Model:       "llama3.1",
			Timeout:     120 * time.Second,
			Temperature: 0.1,
		},
		Cache: CacheConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
			TTL:     5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
