package loader

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ujana-my/tenaga/rag"
)

// MarkdownLoader loads Markdown files, splitting on ATX headings.
// Each heading section becomes one document with the heading kept in
// metadata; a file without headings yields a single document.
type MarkdownLoader struct{}

// NewMarkdownLoader creates a MarkdownLoader.
func NewMarkdownLoader() *MarkdownLoader { return &MarkdownLoader{} }

// Load reads a Markdown file and splits it into documents by heading.
func (l *MarkdownLoader) Load(ctx context.Context, source string) ([]rag.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("markdown loader: %w", err)
	}
	defer f.Close()

	type section struct {
		heading string
		level   int
		lines   []string
	}

	var sections []section
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if heading, level := parseHeading(line); heading != "" {
			sections = append(sections, section{heading: heading, level: level})
			continue
		}
		if len(sections) == 0 {
			// Content before the first heading becomes a preamble section.
			sections = append(sections, section{})
		}
		sections[len(sections)-1].lines = append(sections[len(sections)-1].lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("markdown loader: reading %s: %w", source, err)
	}

	baseName := filepath.Base(source)
	docs := make([]rag.Document, 0, len(sections))
	for i, sec := range sections {
		body := strings.TrimSpace(strings.Join(sec.lines, "\n"))
		if body == "" && sec.heading == "" {
			continue
		}

		content := body
		if sec.heading != "" {
			// Keep the heading in the text so lexical search can match it.
			content = strings.TrimSpace(sec.heading + "\n\n" + body)
		}

		meta := rag.Metadata{
			"source_file":  baseName,
			"source_path":  source,
			"content_type": "text/markdown",
			"loader":       "markdown",
			"section":      i,
		}
		if sec.heading != "" {
			meta["heading"] = sec.heading
			meta["heading_level"] = sec.level
		}

		docs = append(docs, rag.Document{
			ID:       fmt.Sprintf("%s#%d", source, i),
			Content:  content,
			Metadata: meta,
		})
	}
	return docs, nil
}

// SupportedTypes returns the extensions handled by MarkdownLoader.
func (l *MarkdownLoader) SupportedTypes() []string {
	return []string{".md", ".markdown"}
}

// parseHeading detects ATX-style headings. Returns ("", 0) for other lines.
func parseHeading(line string) (heading string, level int) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return "", 0
	}
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level > 6 || level == len(trimmed) || trimmed[level] != ' ' {
		return "", 0
	}
	return strings.TrimSpace(trimmed[level:]), level
}
