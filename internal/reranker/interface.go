// Package reranker re-orders retrieved chunks by query relevance before
// answer synthesis.
package reranker

import (
	"context"
)

// Document is a retrieved chunk up for re-ranking.
type Document struct {
	// ID is the chunk identifier.
	ID string
	// Content is the chunk text.
	Content string
	// Score is the original similarity score from vector search.
	Score float32
}

// ScoredDocument is a document with its re-ranking result.
type ScoredDocument struct {
	Document
	// RerankerScore is the score assigned by the re-ranker (0.0-1.0).
	RerankerScore float32
	// OriginalRank is the document's position before re-ranking (0-indexed).
	OriginalRank int
}

// Reranker re-orders documents by query relevance.
//
// Implementations must be deterministic: equal scores resolve by original
// rank so repeated queries return identical orderings.
type Reranker interface {
	// Rerank returns documents sorted by relevance to the query, limited to
	// topK results. topK <= 0 means no limit.
	Rerank(ctx context.Context, query string, docs []Document, topK int) ([]ScoredDocument, error)

	// Close releases any resources held by the reranker.
	Close() error
}
