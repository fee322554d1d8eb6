// Package tenaga provides a top-level convenience entry point for building
// the hybrid retrieval engine with minimal boilerplate.
//
// Usage:
//
//	import "github.com/ujana-my/tenaga"
//
//	eng, err := tenaga.Open(ctx, "data/knowledge.db")
//	eng, err := tenaga.Open(ctx, "data/knowledge.db", tenaga.WithEngineConfig(cfg))
//
// This is a thin wrapper around the rag package; both produce identical
// results. Use this package when you prefer the shorter import path.
package tenaga

import (
	"context"

	"go.uber.org/zap"

	"github.com/ujana-my/tenaga/rag"
	"github.com/ujana-my/tenaga/rag/embedding"
)

// Option configures the engine created by [Open].
type Option func(*options)

type options struct {
	cfg      rag.EngineConfig
	logger   *zap.Logger
	semantic embedding.Provider
}

// WithEngineConfig overrides the default retrieval configuration.
func WithEngineConfig(cfg rag.EngineConfig) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the logger used by all engine components.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithSemanticProvider attaches a sentence-embedding provider. Without it the
// engine runs in lexical-only mode.
func WithSemanticProvider(p embedding.Provider) Option {
	return func(o *options) { o.semantic = p }
}

// Open creates a ready-to-use [rag.Engine] backed by the SQLite store at path.
func Open(ctx context.Context, path string, opts ...Option) (*rag.Engine, error) {
	o := &options{
		cfg:    rag.DefaultEngineConfig(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	store, err := rag.OpenStore(path, o.logger)
	if err != nil {
		return nil, err
	}

	lexical := embedding.NewTFIDF(embedding.DefaultTFIDFConfig(), o.logger)
	return rag.NewEngine(ctx, o.cfg, store, lexical, o.semantic,
		rag.WithLogger(o.logger))
}
