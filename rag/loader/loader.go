package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ujana-my/tenaga/rag"
)

// DocumentLoader reads one source (usually a file path) into documents.
type DocumentLoader interface {
	// Load reads the source and returns its documents.
	Load(ctx context.Context, source string) ([]rag.Document, error)

	// SupportedTypes returns the file extensions this loader handles
	// (lowercase, with the leading dot).
	SupportedTypes() []string
}

// Registry routes Load calls to a DocumentLoader by file extension.
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]DocumentLoader
}

// NewRegistry creates a registry pre-populated with the built-in loaders.
func NewRegistry() *Registry {
	r := &Registry{loaders: make(map[string]DocumentLoader)}

	builtins := []DocumentLoader{
		NewTextLoader(),
		NewMarkdownLoader(),
		NewCSVLoader(CSVConfig{}),
		NewJSONLoader(JSONConfig{}),
	}
	for _, l := range builtins {
		for _, ext := range l.SupportedTypes() {
			r.loaders[ext] = l
		}
	}
	return r
}

// Register adds or replaces the loader for ext (leading dot included).
func (r *Registry) Register(ext string, l DocumentLoader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[strings.ToLower(ext)] = l
}

// Load picks the loader from the source's extension and delegates to it.
func (r *Registry) Load(ctx context.Context, source string) ([]rag.Document, error) {
	ext := strings.ToLower(filepath.Ext(source))
	if ext == "" {
		return nil, fmt.Errorf("loader: cannot determine file type for %q", source)
	}

	r.mu.RLock()
	l, ok := r.loaders[ext]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("loader: no loader registered for %q", ext)
	}
	return l.Load(ctx, source)
}

// Supports reports whether any loader is registered for the source's extension.
func (r *Registry) Supports(source string) bool {
	ext := strings.ToLower(filepath.Ext(source))
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.loaders[ext]
	return ok
}

// SupportedTypes returns all registered extensions, sorted.
func (r *Registry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.loaders))
	for ext := range r.loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
