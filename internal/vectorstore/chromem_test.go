package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(ChromemConfig{
		Path:       t.TempDir(),
		Collection: "test_chunks",
		Dimension:  4,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// unit returns a unit vector along the given axis.
func unit(axis int) []float32 {
	v := make([]float32, 4)
	v[axis] = 1
	return v
}

func testRecord(axis int, sourcePath, chunkID string, extra map[string]string) Record {
	return Record{
		Vector: unit(axis),
		Metadata: Metadata{
			ChunkID:     chunkID,
			DocumentID:  "doc-" + sourcePath,
			SourcePath:  sourcePath,
			Generation:  "gen-1",
			ChunkMethod: "fixed",
			Text:        "text of " + chunkID,
			Extra:       extra,
		},
	}
}

func TestChromemStore_AddAndSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids, err := store.Add(ctx, []Record{
		testRecord(0, "doc/a.txt", "a:0", nil),
		testRecord(1, "doc/a.txt", "a:1", nil),
		testRecord(2, "doc/b.txt", "b:0", nil),
	})
	require.NoError(t, err)
	require.Len(t, ids, 3)

	hits, err := store.Search(ctx, unit(1), 2)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	// The aligned vector must rank first with maximal similarity.
	assert.Equal(t, "a:1", hits[0].Metadata.ChunkID)
	assert.InDelta(t, 1.0, float64(hits[0].Similarity), 1e-5)
}

func TestChromemStore_AddRejectsDimensionMismatch(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Add(context.Background(), []Record{
		{Vector: []float32{1, 0}, Metadata: Metadata{ChunkID: "short"}},
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestChromemStore_AddEmpty(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Add(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyRecords)
}

func TestChromemStore_SearchEmptyStore(t *testing.T) {
	store := newTestStore(t)

	hits, err := store.Search(context.Background(), unit(0), 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestChromemStore_LinkageInvariant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids, err := store.Add(ctx, []Record{
		testRecord(0, "doc/a.txt", "a:0", nil),
		testRecord(1, "doc/a.txt", "a:1", nil),
	})
	require.NoError(t, err)

	// Every indexed vector has exactly one metadata entry.
	for _, id := range ids {
		md, err := store.GetMetadata(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, md.VectorID)
	}

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalVectors)
	assert.Equal(t, store.coll.Count(), stats.TotalVectors)

	// The invariant holds across deletes too.
	require.NoError(t, store.DeleteByID(ctx, ids[:1]))
	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalVectors)
	assert.Equal(t, store.coll.Count(), stats.TotalVectors)

	_, err = store.GetMetadata(ctx, ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChromemStore_SearchByFilterCompleteness(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// More matches than any plausible top-k default.
	records := make([]Record, 25)
	for i := range records {
		records[i] = testRecord(i%4, "doc/big.txt", "big", map[string]string{"category": "incident"})
	}
	_, err := store.Add(ctx, records)
	require.NoError(t, err)
	_, err = store.Add(ctx, []Record{testRecord(0, "doc/other.txt", "o:0", map[string]string{"category": "faq"})})
	require.NoError(t, err)

	// No limit returns the complete match set.
	hits, err := store.SearchByFilter(ctx, map[string]string{"category": "incident"}, 0)
	require.NoError(t, err)
	assert.Len(t, hits, 25)

	// Results come back in insertion order.
	for i := 1; i < len(hits); i++ {
		assert.Greater(t, hits[i].Metadata.Seq, hits[i-1].Metadata.Seq)
	}

	// A positive limit truncates.
	hits, err = store.SearchByFilter(ctx, map[string]string{"category": "incident"}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 10)

	// Filters on fixed fields work alongside inherited metadata.
	hits, err = store.SearchByFilter(ctx, map[string]string{"source_path": "doc/other.txt"}, 0)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestChromemStore_DeleteBySourcePath(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, []Record{
		testRecord(0, "doc/a.txt", "a:0", nil),
		testRecord(1, "doc/a.txt", "a:1", nil),
		testRecord(2, "doc/b.txt", "b:0", nil),
	})
	require.NoError(t, err)

	removed, err := store.DeleteBySourcePath(ctx, "doc/a.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalVectors)

	removed, err = store.DeleteBySourcePath(ctx, "doc/missing.txt")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestChromemStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := ChromemConfig{Path: dir, Collection: "test_chunks", Dimension: 4}
	ctx := context.Background()

	store, err := NewChromemStore(cfg, zap.NewNop())
	require.NoError(t, err)
	ids, err := store.Add(ctx, []Record{testRecord(0, "doc/a.txt", "a:0", nil)})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewChromemStore(cfg, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	md, err := reopened.GetMetadata(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "a:0", md.ChunkID)

	hits, err := reopened.Search(ctx, unit(0), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, ids[0], hits[0].VectorID)
}

func TestChromemStore_ReopenWithWrongDimensionFails(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewChromemStore(ChromemConfig{Path: dir, Collection: "test_chunks", Dimension: 4}, zap.NewNop())
	require.NoError(t, err)
	_, err = store.Add(ctx, []Record{testRecord(0, "doc/a.txt", "a:0", nil)})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = NewChromemStore(ChromemConfig{Path: dir, Collection: "test_chunks", Dimension: 8}, zap.NewNop())
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestChromemStore_CheckConsistencyCleanStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, []Record{
		testRecord(0, "doc/a.txt", "a:0", nil),
		testRecord(1, "doc/a.txt", "a:1", nil),
	})
	require.NoError(t, err)

	report, err := store.CheckConsistency(ctx, false)
	require.NoError(t, err)
	assert.True(t, report.Consistent())
	assert.Equal(t, 2, report.Total)
}

func TestChromemStore_CheckConsistencyRepairsOrphanedMetadata(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids, err := store.Add(ctx, []Record{
		testRecord(0, "doc/a.txt", "a:0", nil),
		testRecord(1, "doc/a.txt", "a:1", nil),
	})
	require.NoError(t, err)

	// Strand a metadata entry by removing its vector behind the store's back.
	store.mu.Lock()
	require.NoError(t, store.coll.Delete(ctx, nil, nil, ids[0]))
	store.mu.Unlock()

	report, err := store.CheckConsistency(ctx, false)
	require.NoError(t, err)
	assert.False(t, report.Consistent())
	assert.Equal(t, []string{ids[0]}, report.OrphanedMetadata)
	assert.Zero(t, report.Repaired)

	report, err = store.CheckConsistency(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Repaired)

	report, err = store.CheckConsistency(ctx, false)
	require.NoError(t, err)
	assert.True(t, report.Consistent())

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalVectors)
}

func TestChromemStore_CheckConsistencyRepairsOrphanedVector(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids, err := store.Add(ctx, []Record{
		testRecord(0, "doc/a.txt", "a:0", nil),
		testRecord(1, "doc/a.txt", "a:1", nil),
	})
	require.NoError(t, err)

	// Strand a vector by dropping its metadata entry behind the store's back.
	store.mu.Lock()
	delete(store.records, ids[1])
	store.mu.Unlock()

	report, err := store.CheckConsistency(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[1]}, report.OrphanedVectors)
	assert.Equal(t, 1, report.Repaired)

	// The orphaned vector is no longer searchable.
	hits, err := store.Search(ctx, unit(1), 2)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, ids[1], h.VectorID)
	}
}

func TestChromemStore_TieBreakByInsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Identical vectors produce identical similarities; insertion order must
	// decide their relative rank.
	_, err := store.Add(ctx, []Record{
		testRecord(0, "doc/a.txt", "first", nil),
		testRecord(0, "doc/a.txt", "second", nil),
		testRecord(0, "doc/a.txt", "third", nil),
	})
	require.NoError(t, err)

	hits, err := store.Search(ctx, unit(0), 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "first", hits[0].Metadata.ChunkID)
	assert.Equal(t, "second", hits[1].Metadata.ChunkID)
	assert.Equal(t, "third", hits[2].Metadata.ChunkID)
}

func TestChromemStore_Capabilities(t *testing.T) {
	store := newTestStore(t)
	assert.True(t, store.Capabilities().UnboundedFilter)
}
