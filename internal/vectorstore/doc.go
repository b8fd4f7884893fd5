// Package vectorstore provides the vector-metadata store behind the retrieval
// engine.
//
// The package offers one Store contract with two backends: an embedded
// chromem-go index paired with a gob-persisted metadata table (ChromemStore),
// and an external Qdrant server reached over gRPC (QdrantStore). Both keep the
// core invariant that every vector in the index has exactly one metadata entry
// and vice versa. ChromemStore maintains the two halves itself and exposes
// CheckConsistency to detect and repair orphans; QdrantStore stores vector and
// payload as a single point, so the halves cannot diverge.
//
// Similarity search returns normalized scores (higher is more similar) with
// ties broken by insertion order. Filtered search is exact and, with a
// non-positive limit, unbounded: it returns every matching record, which is
// what aggregation and listing queries require.
//
// Basic usage:
//
//	cfg := vectorstore.ChromemConfig{
//	    Path:       "/data/corpusd/index",
//	    Collection: "corpusd_chunks",
//	    Dimension:  384,
//	}
//	store, err := vectorstore.NewChromemStore(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	ids, err := store.Add(ctx, records)
//	hits, err := store.Search(ctx, queryVector, 10)
//	all, err := store.SearchByFilter(ctx, map[string]string{"source_path": "doc/a.txt"}, 0)
package vectorstore
