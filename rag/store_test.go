package rag

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	return store
}

func testItem(content string) KnowledgeItem {
	return KnowledgeItem{
		Content:     content,
		Metadata:    Metadata{"type": "test"},
		ContentHash: hashContent(content),
		CreatedAt:   time.Now().UTC(),
	}
}

// ============================================================
// Knowledge item persistence
// ============================================================

func TestStore_InsertAndLoadAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	id1, inserted, err := store.Insert(ctx, testItem("first"), []float64{0.1, 0.2}, []float64{1, 0})
	require.NoError(t, err)
	assert.True(t, inserted)

	id2, inserted, err := store.Insert(ctx, testItem("second"), []float64{0.3}, nil)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Greater(t, id2, id1)

	items, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Insertion order preserved.
	assert.Equal(t, "first", items[0].Item.Content)
	assert.Equal(t, "second", items[1].Item.Content)

	// Vectors roundtrip.
	assert.Equal(t, []float64{0.1, 0.2}, items[0].Lexical)
	assert.Equal(t, []float64{1, 0}, items[0].Semantic)
	assert.Nil(t, items[1].Semantic)

	assert.Equal(t, Metadata{"type": "test"}, items[0].Item.Metadata)
}

func TestStore_InsertDuplicateSkipped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	item := testItem("same content")
	id1, inserted, err := store.Insert(ctx, item, nil, nil)
	require.NoError(t, err)
	require.True(t, inserted)

	id2, inserted, err := store.Insert(ctx, item, nil, nil)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, id1, id2)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestStore_Clear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	_, _, err := store.Insert(ctx, testItem("doomed"), nil, nil)
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_DeleteItems(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	id1, _, err := store.Insert(ctx, testItem("keep"), nil, nil)
	require.NoError(t, err)
	id2, _, err := store.Insert(ctx, testItem("drop"), nil, nil)
	require.NoError(t, err)

	require.NoError(t, store.DeleteItems(ctx, []uint{id2}))

	items, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, id1, items[0].ID)
}

// ============================================================
// Source table operations
// ============================================================

func TestStore_UpsertSourceIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	id1, err := store.UpsertSource(ctx, "report.md", "document", Metadata{"file_hash": "aaa"})
	require.NoError(t, err)

	id2, err := store.UpsertSource(ctx, "report.md", "document", Metadata{"file_hash": "bbb"})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	// Metadata refreshed on re-registration.
	info, err := store.SourceByName(ctx, "report.md")
	require.NoError(t, err)
	assert.Equal(t, "bbb", info.Metadata["file_hash"])
	assert.True(t, info.IsActive)
}

func TestStore_LinkChunkCountsChunks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	itemID, _, err := store.Insert(ctx, testItem("chunk one"), nil, nil)
	require.NoError(t, err)
	sourceID, err := store.UpsertSource(ctx, "a.txt", "document", nil)
	require.NoError(t, err)

	require.NoError(t, store.LinkChunk(ctx, itemID, sourceID, 0, 1.0))

	info, err := store.SourceByName(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, info.TotalChunks)

	prov, err := store.ProvenanceFor(ctx, []uint{itemID})
	require.NoError(t, err)
	require.Contains(t, prov, itemID)
	assert.Equal(t, "a.txt", prov[itemID].SourceName)
	assert.Equal(t, "document", prov[itemID].SourceType)
}

func TestStore_DeactivateSource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	itemID, _, err := store.Insert(ctx, testItem("content"), nil, nil)
	require.NoError(t, err)
	sourceID, err := store.UpsertSource(ctx, "old.txt", "document", nil)
	require.NoError(t, err)
	require.NoError(t, store.LinkChunk(ctx, itemID, sourceID, 0, 1.0))

	removed, err := store.DeactivateSource(ctx, "old.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	// Items survive deactivation.
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// Source no longer active, provenance gone.
	active, err := store.ActiveSources(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	prov, err := store.ProvenanceFor(ctx, []uint{itemID})
	require.NoError(t, err)
	assert.Empty(t, prov)
}

func TestStore_DeactivateSourceNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.DeactivateSource(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestStore_ItemIDsForSource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	sourceID, err := store.UpsertSource(ctx, "multi.txt", "document", nil)
	require.NoError(t, err)

	var want []uint
	for _, content := range []string{"chunk a", "chunk b", "chunk c"} {
		id, _, err := store.Insert(ctx, testItem(content), nil, nil)
		require.NoError(t, err)
		require.NoError(t, store.LinkChunk(ctx, id, sourceID, len(want), 1.0))
		want = append(want, id)
	}

	ids, err := store.ItemIDsForSource(ctx, "multi.txt")
	require.NoError(t, err)
	assert.Equal(t, want, ids)
}
