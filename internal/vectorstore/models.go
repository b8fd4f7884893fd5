package vectorstore

import "time"

// Backend identifies a store implementation.
type Backend string

const (
	// BackendChromem is the embedded chromem-go backend.
	BackendChromem Backend = "chromem"
	// BackendQdrant is the external Qdrant gRPC backend.
	BackendQdrant Backend = "qdrant"
)

// Record is one embedding plus its linkage, handed to Add by the ingestion
// pipeline. The vector ID is assigned by the store.
type Record struct {
	// Vector is the dense embedding. Its length must equal the store's
	// configured dimension.
	Vector []float32

	// Metadata is the denormalized chunk metadata stored alongside the
	// vector. VectorID and Seq are assigned by the store on insert.
	Metadata Metadata
}

// Metadata is the structured entry linked to exactly one vector. It carries a
// denormalized copy of the chunk's attributes so results are self-describing
// without a second lookup.
type Metadata struct {
	// VectorID is the unique vector identity, generated at insertion.
	VectorID string `json:"vector_id"`

	// ChunkID identifies the originating chunk.
	ChunkID string `json:"chunk_id"`

	// DocumentID identifies the owning document generation.
	DocumentID string `json:"document_id"`

	// SourcePath is the stable path of the source document.
	SourcePath string `json:"source_path"`

	// Generation distinguishes document generations under one source path.
	// Re-ingestion stores a new generation before the old one is deleted.
	Generation string `json:"generation"`

	// ChunkIndex is the chunk's ordinal within its document.
	ChunkIndex int `json:"chunk_index"`

	// StartOffset and EndOffset are character offsets into the extracted text.
	StartOffset int `json:"start_offset"`
	EndOffset   int `json:"end_offset"`

	// ChunkMethod records how the chunk was produced ("fixed" or "semantic").
	ChunkMethod string `json:"chunk_method"`

	// Text is the chunk's raw text.
	Text string `json:"text"`

	// IngestedAt is when the record was stored.
	IngestedAt time.Time `json:"ingested_at"`

	// Seq is the store-assigned insertion sequence, used for stable tie
	// breaking and listing order.
	Seq uint64 `json:"seq"`

	// Extra holds inherited document metadata (title, category, tags...).
	Extra map[string]string `json:"extra,omitempty"`
}

// Hit is a single search result.
type Hit struct {
	// VectorID is the matched vector's identity.
	VectorID string `json:"vector_id"`

	// Similarity is a normalized score where higher means more similar.
	// Filter-only results carry zero; they are complete, not ranked.
	Similarity float32 `json:"similarity"`

	// Metadata is the record's metadata entry.
	Metadata Metadata `json:"metadata"`
}

// Stats summarizes store state.
type Stats struct {
	// TotalVectors is the number of vector-metadata pairs.
	TotalVectors int `json:"total_vectors"`

	// Dimension is the store's vector dimension.
	Dimension int `json:"dimension"`

	// Backend identifies the implementation.
	Backend Backend `json:"backend"`
}

// ConsistencyReport is the result of a consistency scan over the index and
// metadata halves.
type ConsistencyReport struct {
	// Total is the number of records seen on the larger half.
	Total int `json:"total"`

	// OrphanedVectors are IDs present in the index with no metadata entry.
	OrphanedVectors []string `json:"orphaned_vectors,omitempty"`

	// OrphanedMetadata are IDs with metadata but no vector in the index.
	OrphanedMetadata []string `json:"orphaned_metadata,omitempty"`

	// Repaired counts orphaned halves removed during this scan.
	Repaired int `json:"repaired"`

	// CheckedAt is when the scan ran.
	CheckedAt time.Time `json:"checked_at"`
}

// Consistent reports whether the scan found no orphans.
func (r ConsistencyReport) Consistent() bool {
	return len(r.OrphanedVectors) == 0 && len(r.OrphanedMetadata) == 0
}

// Matches reports whether the metadata entry satisfies every filter
// predicate. Well-known keys address struct fields; any other key is looked
// up in Extra.
func (m Metadata) Matches(filters map[string]string) bool {
	for key, want := range filters {
		var got string
		switch key {
		case "vector_id":
			got = m.VectorID
		case "chunk_id":
			got = m.ChunkID
		case "document_id":
			got = m.DocumentID
		case "source_path":
			got = m.SourcePath
		case "generation":
			got = m.Generation
		case "chunk_method":
			got = m.ChunkMethod
		default:
			got = m.Extra[key]
		}
		if got != want {
			return false
		}
	}
	return true
}
