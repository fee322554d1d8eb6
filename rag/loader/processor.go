package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ujana-my/tenaga/rag"
)

// ProcessorConfig configures the directory processor.
type ProcessorConfig struct {
	// Concurrency bounds how many files are loaded and chunked in parallel.
	Concurrency int `yaml:"concurrency" json:"concurrency"`
	// SourceType is recorded on every registered source (e.g. "document").
	SourceType string `yaml:"source_type" json:"source_type"`
}

// DefaultProcessorConfig returns the default processor configuration.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{Concurrency: 4, SourceType: "document"}
}

// Report summarizes one directory pass.
type Report struct {
	FilesProcessed int      `json:"files_processed"`
	FilesSkipped   int      `json:"files_skipped"`
	ChunksIngested int      `json:"chunks_ingested"`
	Failures       []string `json:"failures,omitempty"`
}

// DirectoryProcessor walks a directory tree, loads every supported file,
// chunks it, and ingests the chunks with source attribution. Files whose
// content hash matches the hash recorded at the previous pass are skipped,
// so repeated runs over the same directory are cheap and idempotent.
type DirectoryProcessor struct {
	config  ProcessorConfig
	loaders *Registry
	chunker *rag.DocumentChunker
	sources *rag.SourceRegistry
	logger  *zap.Logger
}

// NewDirectoryProcessor creates a directory processor.
func NewDirectoryProcessor(config ProcessorConfig, loaders *Registry, chunker *rag.DocumentChunker, sources *rag.SourceRegistry, logger *zap.Logger) *DirectoryProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultProcessorConfig().Concurrency
	}
	if config.SourceType == "" {
		config.SourceType = DefaultProcessorConfig().SourceType
	}
	return &DirectoryProcessor{
		config:  config,
		loaders: loaders,
		chunker: chunker,
		sources: sources,
		logger:  logger.With(zap.String("component", "directory_processor")),
	}
}

// ProcessDirectory ingests every supported file under dir.
// Individual file failures are recorded in the report, not fatal;
// only walking errors and context cancellation abort the pass.
func (p *DirectoryProcessor) ProcessDirectory(ctx context.Context, dir string) (Report, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if p.loaders.Supports(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return Report{}, fmt.Errorf("loader: walk %s: %w", dir, err)
	}

	var (
		mu     sync.Mutex
		report Report
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)

	for _, path := range files {
		path := path
		g.Go(func() error {
			skipped, chunks, err := p.processFile(gctx, dir, path)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				p.logger.Warn("file ingestion failed",
					zap.String("path", path), zap.Error(err))
				report.Failures = append(report.Failures, path)
			case skipped:
				report.FilesSkipped++
			default:
				report.FilesProcessed++
				report.ChunksIngested += chunks
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}

	p.logger.Info("directory processed",
		zap.String("dir", dir),
		zap.Int("processed", report.FilesProcessed),
		zap.Int("skipped", report.FilesSkipped),
		zap.Int("chunks", report.ChunksIngested),
		zap.Int("failures", len(report.Failures)))
	return report, nil
}

// processFile loads, chunks, and ingests one file.
func (p *DirectoryProcessor) processFile(ctx context.Context, dir, path string) (skipped bool, chunks int, err error) {
	sourceName, err := filepath.Rel(dir, path)
	if err != nil {
		sourceName = filepath.Base(path)
	}

	fileHash, err := hashFile(path)
	if err != nil {
		return false, 0, err
	}

	// Unchanged since the last pass: nothing to do.
	existing, err := p.sources.Source(ctx, sourceName)
	if err == nil && existing.IsActive && existing.Metadata != nil {
		if prev, ok := existing.Metadata["file_hash"].(string); ok && prev == fileHash {
			return true, 0, nil
		}
	} else if err != nil && !errors.Is(err, rag.ErrSourceNotFound) {
		return false, 0, err
	}

	docs, err := p.loaders.Load(ctx, path)
	if err != nil {
		return false, 0, err
	}

	sourceID, err := p.sources.RegisterSource(ctx, sourceName, p.config.SourceType, rag.Metadata{
		"file_hash": fileHash,
		"path":      path,
	})
	if err != nil {
		return false, 0, err
	}

	chunkIndex := 0
	for _, doc := range docs {
		for _, chunk := range p.chunker.Split(doc.Content) {
			meta := rag.Metadata{"type": p.config.SourceType}
			for k, v := range doc.Metadata {
				meta[k] = v
			}
			if err := p.sources.IngestChunk(ctx, chunk.Content, meta, sourceID, chunkIndex); err != nil {
				return false, chunks, err
			}
			chunkIndex++
			chunks++
		}
	}
	return false, chunks, nil
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("loader: read %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
