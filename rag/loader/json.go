package loader

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ujana-my/tenaga/rag"
)

// JSONConfig configures the JSON/JSONL loader.
type JSONConfig struct {
	// ContentField names the field used as document content.
	// Empty renders the whole object as "key: value" lines.
	ContentField string
	// IDField names the field used as document ID. Empty generates one.
	IDField string
}

// JSONLoader loads JSON files (single object or array) and JSONL files.
type JSONLoader struct {
	config JSONConfig
}

// NewJSONLoader creates a JSONLoader.
func NewJSONLoader(config JSONConfig) *JSONLoader {
	return &JSONLoader{config: config}
}

// Load reads a JSON or JSONL file and returns its documents.
func (l *JSONLoader) Load(ctx context.Context, source string) ([]rag.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(source), ".jsonl") {
		return l.loadJSONL(source)
	}
	return l.loadJSON(source)
}

// SupportedTypes returns the extensions handled by JSONLoader.
func (l *JSONLoader) SupportedTypes() []string {
	return []string{".json", ".jsonl"}
}

func (l *JSONLoader) loadJSON(source string) ([]rag.Document, error) {
	raw, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("json loader: %w", err)
	}

	data := strings.TrimSpace(string(raw))
	if data == "" {
		return []rag.Document{}, nil
	}

	if data[0] == '[' {
		var items []map[string]any
		if err := json.Unmarshal([]byte(data), &items); err != nil {
			return nil, fmt.Errorf("json loader: parsing array in %s: %w", source, err)
		}
		return l.toDocuments(source, items), nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("json loader: parsing object in %s: %w", source, err)
	}
	return l.toDocuments(source, []map[string]any{obj}), nil
}

func (l *JSONLoader) loadJSONL(source string) ([]rag.Document, error) {
	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("jsonl loader: %w", err)
	}
	defer f.Close()

	var items []map[string]any
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			return nil, fmt.Errorf("jsonl loader: line %d in %s: %w", lineNum, source, err)
		}
		items = append(items, obj)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("jsonl loader: reading %s: %w", source, err)
	}
	return l.toDocuments(source, items), nil
}

func (l *JSONLoader) toDocuments(source string, items []map[string]any) []rag.Document {
	baseName := filepath.Base(source)
	docs := make([]rag.Document, 0, len(items))

	for i, obj := range items {
		content := l.content(obj)
		if content == "" {
			continue
		}

		id := ""
		if l.config.IDField != "" {
			if v, ok := obj[l.config.IDField]; ok {
				id = fmt.Sprint(v)
			}
		}
		if id == "" {
			id = uuid.NewString()
		}

		docs = append(docs, rag.Document{
			ID:      id,
			Content: content,
			Metadata: rag.Metadata{
				"source_file":  baseName,
				"source_path":  source,
				"content_type": "application/json",
				"loader":       "json",
				"record":       i,
			},
		})
	}
	return docs
}

// content extracts the configured field, or renders the whole object
// deterministically (sorted keys) when no field is configured.
func (l *JSONLoader) content(obj map[string]any) string {
	if l.config.ContentField != "" {
		if v, ok := obj[l.config.ContentField]; ok {
			return strings.TrimSpace(fmt.Sprint(v))
		}
		return ""
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lines []string
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, obj[k]))
	}
	return strings.Join(lines, "\n")
}
