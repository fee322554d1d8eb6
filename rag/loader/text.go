package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ujana-my/tenaga/rag"
)

// TextLoader loads a plain text file as a single document.
type TextLoader struct{}

// NewTextLoader creates a TextLoader.
func NewTextLoader() *TextLoader { return &TextLoader{} }

// Load reads the file and returns it as one document.
func (l *TextLoader) Load(ctx context.Context, source string) ([]rag.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("text loader: %w", err)
	}

	return []rag.Document{{
		ID:      source,
		Content: string(data),
		Metadata: rag.Metadata{
			"source_file":  filepath.Base(source),
			"source_path":  source,
			"content_type": "text/plain",
			"loader":       "text",
		},
	}}, nil
}

// SupportedTypes returns the extensions handled by TextLoader.
func (l *TextLoader) SupportedTypes() []string {
	return []string{".txt"}
}
