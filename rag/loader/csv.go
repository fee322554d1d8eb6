package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ujana-my/tenaga/rag"
)

// CSVConfig configures the CSV loader.
type CSVConfig struct {
	// Delimiter is the field separator. Defaults to ','.
	Delimiter rune
	// RowsPerDocument groups this many data rows into one document.
	// 0 or 1 means one document per row.
	RowsPerDocument int
	// ContentColumns restricts which header columns go into the content.
	// Empty means all columns.
	ContentColumns []string
}

// CSVLoader loads CSV files. The first row is treated as a header and each
// data row is rendered as "column: value" lines so column names stay
// searchable.
type CSVLoader struct {
	config CSVConfig
}

// NewCSVLoader creates a CSVLoader.
func NewCSVLoader(config CSVConfig) *CSVLoader {
	if config.Delimiter == 0 {
		config.Delimiter = ','
	}
	if config.RowsPerDocument <= 0 {
		config.RowsPerDocument = 1
	}
	return &CSVLoader{config: config}
}

// Load reads a CSV file and returns one document per row group.
func (l *CSVLoader) Load(ctx context.Context, source string) ([]rag.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("csv loader: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = l.config.Delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv loader: parsing %s: %w", source, err)
	}
	if len(records) < 2 {
		// Header only or empty file.
		return []rag.Document{}, nil
	}

	header := records[0]
	rows := records[1:]
	baseName := filepath.Base(source)
	indices := l.contentIndices(header)

	var docs []rag.Document
	for i := 0; i < len(rows); i += l.config.RowsPerDocument {
		end := i + l.config.RowsPerDocument
		if end > len(rows) {
			end = len(rows)
		}

		var lines []string
		for _, row := range rows[i:end] {
			var fields []string
			for _, idx := range indices {
				if idx < len(row) && strings.TrimSpace(row[idx]) != "" {
					fields = append(fields, fmt.Sprintf("%s: %s", header[idx], row[idx]))
				}
			}
			if len(fields) > 0 {
				lines = append(lines, strings.Join(fields, ", "))
			}
		}
		if len(lines) == 0 {
			continue
		}

		docs = append(docs, rag.Document{
			ID:      fmt.Sprintf("%s#row%d", source, i+1),
			Content: strings.Join(lines, "\n"),
			Metadata: rag.Metadata{
				"source_file":  baseName,
				"source_path":  source,
				"content_type": "text/csv",
				"loader":       "csv",
				"row_start":    i + 1,
				"row_end":      end,
			},
		})
	}
	return docs, nil
}

// SupportedTypes returns the extensions handled by CSVLoader.
func (l *CSVLoader) SupportedTypes() []string {
	return []string{".csv"}
}

// contentIndices resolves configured column names to header indices.
func (l *CSVLoader) contentIndices(header []string) []int {
	if len(l.config.ContentColumns) == 0 {
		indices := make([]int, len(header))
		for i := range header {
			indices[i] = i
		}
		return indices
	}

	want := make(map[string]struct{}, len(l.config.ContentColumns))
	for _, name := range l.config.ContentColumns {
		want[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	var indices []int
	for i, name := range header {
		if _, ok := want[strings.ToLower(strings.TrimSpace(name))]; ok {
			indices = append(indices, i)
		}
	}
	return indices
}
