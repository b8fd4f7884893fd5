// Package vectorstore defines the store contract for vector-metadata records.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound is returned when a vector ID has no metadata entry.
	ErrNotFound = errors.New("vector not found")

	// ErrEmptyRecords indicates an empty or nil record batch.
	ErrEmptyRecords = errors.New("empty or nil records")

	// ErrDimensionMismatch is returned when a vector's dimension does not
	// match the dimension the store was initialized with. Changing the
	// embedding model requires a full reindex; this is fatal, not tolerated.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrConnectionFailed indicates the Qdrant gRPC connection could not be
	// established.
	ErrConnectionFailed = errors.New("failed to connect to Qdrant")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Capabilities describes optional backend behavior callers may probe.
// Callers must never branch on the concrete backend type directly.
type Capabilities struct {
	// UnboundedFilter reports whether SearchByFilter with limit <= 0 returns
	// the complete match set.
	UnboundedFilter bool
}

// Store is the contract for the vector-metadata store.
//
// The store owns two logically parallel structures: the vector index and the
// metadata table. Implementations must keep them exactly matched: after any
// Add or delete, Stats().TotalVectors equals the number of metadata entries.
//
// Writers and readers may call concurrently; implementations serialize writes
// internally. Cancellation of a caller's context never leaves a half-committed
// record: each record's (index insert, metadata insert) pair commits or rolls
// back as a unit.
type Store interface {
	// Add inserts records into the store. Vector IDs are generated at
	// insertion and never reused; the returned slice carries them in input
	// order. If any record fails, nothing from the batch is committed.
	Add(ctx context.Context, records []Record) ([]string, error)

	// Search performs similarity search and returns up to k hits ordered by
	// similarity (highest first). Ties are broken by insertion order.
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)

	// SearchByFilter returns records whose metadata matches every filter
	// predicate. A limit <= 0 means no limit: the complete match set is
	// returned, which aggregation and listing queries depend on. Results are
	// ordered by insertion.
	SearchByFilter(ctx context.Context, filters map[string]string, limit int) ([]Hit, error)

	// DeleteBySourcePath removes every vector-metadata pair owned by the
	// given source path and returns how many were removed.
	DeleteBySourcePath(ctx context.Context, path string) (int, error)

	// DeleteByID removes the given vector-metadata pairs. Unknown IDs are
	// ignored. Used for stale-generation cleanup and consistency repair.
	DeleteByID(ctx context.Context, ids []string) error

	// GetMetadata returns the metadata entry for a vector ID, or ErrNotFound.
	GetMetadata(ctx context.Context, id string) (Metadata, error)

	// Stats returns store totals and the backend identity.
	Stats(ctx context.Context) (Stats, error)

	// CheckConsistency scans for orphaned vectors (present in the index,
	// absent from metadata) and orphaned metadata (the reverse). With repair
	// set, orphaned halves are removed.
	CheckConsistency(ctx context.Context, repair bool) (ConsistencyReport, error)

	// Capabilities reports optional backend behavior.
	Capabilities() Capabilities

	// Close releases store resources, flushing any pending persistence.
	Close() error
}
