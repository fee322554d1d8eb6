package rag

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChunker(config ChunkingConfig) *DocumentChunker {
	return NewDocumentChunker(config, NewEstimatorTokenizer(), nil)
}

func TestChunker_ShortTextSingleChunk(t *testing.T) {
	t.Parallel()

	chunker := newTestChunker(DefaultChunkingConfig())
	chunks := chunker.Split("a short paragraph that easily fits one chunk")

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "a short paragraph that easily fits one chunk", chunks[0].Content)
	assert.Positive(t, chunks[0].TokenCount)
}

func TestChunker_EmptyText(t *testing.T) {
	t.Parallel()

	chunker := newTestChunker(DefaultChunkingConfig())
	assert.Nil(t, chunker.Split(""))
	assert.Nil(t, chunker.Split("   \n\t "))
}

func TestChunker_LongTextStaysWithinTokenLimit(t *testing.T) {
	t.Parallel()

	config := ChunkingConfig{ChunkSize: 50, ChunkOverlap: 10, MinChunkSize: 5}
	chunker := newTestChunker(config)

	var sb strings.Builder
	for i := 0; i < 120; i++ {
		fmt.Fprintf(&sb, "sentence number %d about power consumption. ", i)
	}

	chunks := chunker.Split(sb.String())
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.NotEmpty(t, chunk.Content)
		// Overlap carried from the previous chunk may push a chunk past
		// ChunkSize, but never past ChunkSize plus ChunkOverlap.
		assert.LessOrEqual(t, chunk.TokenCount, config.ChunkSize+config.ChunkOverlap)
	}
}

func TestChunker_OverlapRepeatsTailContent(t *testing.T) {
	t.Parallel()

	config := ChunkingConfig{ChunkSize: 20, ChunkOverlap: 6, MinChunkSize: 2}
	chunker := newTestChunker(config)

	words := make([]string, 80)
	for i := range words {
		words[i] = fmt.Sprintf("word%03d", i)
	}
	chunks := chunker.Split(strings.Join(words, " "))
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1].Content)
		require.NotEmpty(t, prev)
		last := prev[len(prev)-1]
		assert.Contains(t, chunks[i].Content, last,
			"chunk %d should start with the tail of chunk %d", i, i-1)
	}
}

func TestChunker_ShortTailMergedIntoPrevious(t *testing.T) {
	t.Parallel()

	config := ChunkingConfig{ChunkSize: 20, ChunkOverlap: 0, MinChunkSize: 10}
	chunker := newTestChunker(config)

	// The trailing fragment is below the minimum and must not stand alone.
	text := strings.Repeat("electricity demand rose steadily. ", 6) + "end."
	chunks := chunker.Split(text)
	require.NotEmpty(t, chunks)

	last := chunks[len(chunks)-1]
	assert.GreaterOrEqual(t, last.TokenCount, config.MinChunkSize)
	assert.Contains(t, last.Content, "end.")
}

func TestChunker_ParagraphBoundariesPreferred(t *testing.T) {
	t.Parallel()

	config := ChunkingConfig{ChunkSize: 15, ChunkOverlap: 0, MinChunkSize: 2}
	chunker := newTestChunker(config)

	text := "first paragraph about solar generation capacity.\n\nsecond paragraph about water treatment volume."
	chunks := chunker.Split(text)
	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0].Content, "first paragraph")
	assert.Contains(t, chunks[1].Content, "second paragraph")
}
