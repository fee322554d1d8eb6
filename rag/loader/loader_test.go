package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujana-my/tenaga/rag"
	"github.com/ujana-my/tenaga/rag/embedding"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// ============================================================
// Registry
// ============================================================

func TestRegistry_SupportedTypes(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	types := registry.SupportedTypes()

	for _, ext := range []string{".txt", ".md", ".markdown", ".csv", ".json", ".jsonl"} {
		assert.Contains(t, types, ext)
	}
	assert.True(t, registry.Supports("notes/report.MD"))
	assert.False(t, registry.Supports("archive.tar.gz"))
}

func TestRegistry_UnknownExtension(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	_, err := registry.Load(context.Background(), "image.png")
	assert.Error(t, err)
}

// ============================================================
// Individual loaders
// ============================================================

func TestTextLoader(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "note.txt", "plain text about grid load\n")
	docs, err := NewTextLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "plain text about grid load\n", docs[0].Content)
	assert.Equal(t, "note.txt", docs[0].Metadata["source_file"])
}

func TestMarkdownLoader_SplitsOnHeadings(t *testing.T) {
	t.Parallel()

	content := `intro paragraph before any heading

# Generation

solar and hydro output

## Consumption

hourly demand curves
`
	path := writeFile(t, t.TempDir(), "report.md", content)
	docs, err := NewMarkdownLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	// Preamble has no heading metadata.
	assert.Contains(t, docs[0].Content, "intro paragraph")
	assert.NotContains(t, docs[0].Metadata, "heading")

	// Headings stay in the content for lexical matching.
	assert.Contains(t, docs[1].Content, "Generation")
	assert.Contains(t, docs[1].Content, "solar and hydro output")
	assert.Equal(t, "Generation", docs[1].Metadata["heading"])
	assert.Equal(t, 1, docs[1].Metadata["heading_level"])

	assert.Equal(t, "Consumption", docs[2].Metadata["heading"])
	assert.Equal(t, 2, docs[2].Metadata["heading_level"])
}

func TestMarkdownLoader_NoHeadings(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "plain.md", "just a paragraph\nwith two lines\n")
	docs, err := NewMarkdownLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "just a paragraph\nwith two lines", docs[0].Content)
}

func TestCSVLoader_RowsAsDocuments(t *testing.T) {
	t.Parallel()

	content := "building_id,zone,surface_m2\nB1,north,1200\nB2,south,450\n"
	path := writeFile(t, t.TempDir(), "buildings.csv", content)

	docs, err := NewCSVLoader(CSVConfig{}).Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "building_id: B1, zone: north, surface_m2: 1200", docs[0].Content)
	assert.Equal(t, "building_id: B2, zone: south, surface_m2: 450", docs[1].Content)
	assert.Equal(t, 1, docs[0].Metadata["row_start"])
}

func TestCSVLoader_GroupedRowsAndColumnFilter(t *testing.T) {
	t.Parallel()

	content := "id,text,secret\n1,alpha,x\n2,beta,y\n3,gamma,z\n"
	path := writeFile(t, t.TempDir(), "rows.csv", content)

	docs, err := NewCSVLoader(CSVConfig{
		RowsPerDocument: 2,
		ContentColumns:  []string{"id", "text"},
	}).Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "id: 1, text: alpha\nid: 2, text: beta", docs[0].Content)
	assert.Equal(t, "id: 3, text: gamma", docs[1].Content)
	assert.NotContains(t, docs[0].Content, "secret")
}

func TestJSONLoader_ArrayAndContentField(t *testing.T) {
	t.Parallel()

	content := `[{"id": "a1", "text": "first record", "extra": 7}, {"id": "a2", "text": "second record"}]`
	path := writeFile(t, t.TempDir(), "records.json", content)

	docs, err := NewJSONLoader(JSONConfig{ContentField: "text", IDField: "id"}).
		Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a1", docs[0].ID)
	assert.Equal(t, "first record", docs[0].Content)
	assert.Equal(t, "a2", docs[1].ID)
}

func TestJSONLoader_JSONL(t *testing.T) {
	t.Parallel()

	content := `{"text": "line one"}

{"text": "line two"}
`
	path := writeFile(t, t.TempDir(), "records.jsonl", content)

	docs, err := NewJSONLoader(JSONConfig{ContentField: "text"}).
		Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "line one", docs[0].Content)
	assert.Equal(t, "line two", docs[1].Content)
	// No ID field configured: generated IDs are unique.
	assert.NotEqual(t, docs[0].ID, docs[1].ID)
}

func TestJSONLoader_ObjectRenderedWithSortedKeys(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "obj.json", `{"zone": "north", "building": "B1"}`)

	docs, err := NewJSONLoader(JSONConfig{}).Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "building: B1")
	assert.Contains(t, docs[0].Content, "zone: north")
}

// ============================================================
// Directory processing
// ============================================================

func newTestProcessor(t *testing.T) (*DirectoryProcessor, *rag.Engine) {
	t.Helper()

	store, err := rag.OpenStore(":memory:", nil)
	require.NoError(t, err)
	lexical := embedding.NewTFIDF(embedding.DefaultTFIDFConfig(), nil)
	engine, err := rag.NewEngine(context.Background(), rag.DefaultEngineConfig(), store, lexical, nil)
	require.NoError(t, err)

	registry := rag.NewSourceRegistry(engine, nil)
	chunker := rag.NewDocumentChunker(rag.DefaultChunkingConfig(), rag.NewEstimatorTokenizer(), nil)
	processor := NewDirectoryProcessor(DefaultProcessorConfig(), NewRegistry(), chunker, registry, nil)
	return processor, engine
}

func TestProcessor_ProcessDirectory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := t.TempDir()
	writeFile(t, dir, "note.txt", "solar output peaked at noon across the northern zone")
	writeFile(t, dir, "table.csv", "metric,value\npeak_load,812\n")
	writeFile(t, dir, "skipme.bin", "binary payload")

	processor, engine := newTestProcessor(t)

	report, err := processor.ProcessDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, report.FilesProcessed)
	assert.Zero(t, report.FilesSkipped)
	assert.GreaterOrEqual(t, report.ChunksIngested, 2)
	assert.Empty(t, report.Failures)

	results, err := engine.Search(ctx, "solar output northern zone", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Item.Content, "solar")
}

func TestProcessor_SecondPassSkipsUnchangedFiles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := t.TempDir()
	writeFile(t, dir, "stable.txt", "water treatment volume held steady")
	changing := writeFile(t, dir, "changing.txt", "old consumption figures")

	processor, engine := newTestProcessor(t)

	report, err := processor.ProcessDirectory(ctx, dir)
	require.NoError(t, err)
	require.Equal(t, 2, report.FilesProcessed)

	// Second pass over identical content touches nothing.
	report, err = processor.ProcessDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Zero(t, report.FilesProcessed)
	assert.Equal(t, 2, report.FilesSkipped)
	assert.Zero(t, report.ChunksIngested)

	// A changed file is picked up again.
	require.NoError(t, os.WriteFile(changing, []byte("revised consumption figures"), 0o644))
	report, err = processor.ProcessDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.FilesProcessed)
	assert.Equal(t, 1, report.FilesSkipped)

	results, err := engine.Search(ctx, "revised consumption figures", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Item.Content, "revised")
}

func TestProcessor_FileFailureIsRecordedNotFatal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := t.TempDir()
	writeFile(t, dir, "good.txt", "valid content about energy tariffs")
	writeFile(t, dir, "bad.json", "{not json at all")

	processor, _ := newTestProcessor(t)

	report, err := processor.ProcessDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.FilesProcessed)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0], "bad.json")
}
