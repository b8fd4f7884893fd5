// Package query classifies user queries, retrieves matching chunks, and
// synthesizes grounded answers.
package query

import (
	"context"
	"errors"
)

var (
	// ErrEmptyQuery indicates an empty or whitespace-only query.
	ErrEmptyQuery = errors.New("empty query")

	// ErrInvalidConfig indicates invalid engine configuration.
	ErrInvalidConfig = errors.New("invalid query configuration")
)

// Intent is the detected query intent, which selects the retrieval strategy.
type Intent string

const (
	// IntentSemantic is top-k vector similarity search.
	IntentSemantic Intent = "semantic"
	// IntentAggregation needs an exact count over a complete match set.
	IntentAggregation Intent = "aggregation"
	// IntentListing enumerates everything matching structured filters.
	IntentListing Intent = "listing"
	// IntentHybrid combines structured filters with similarity ranking.
	IntentHybrid Intent = "hybrid"
)

// Classification is the transient result of intent detection. It is never
// persisted.
type Classification struct {
	Intent Intent
	// Filters are structured predicates extracted from the query text.
	Filters map[string]string
}

// Classifier detects query intent and extracts structured filters.
type Classifier interface {
	Classify(ctx context.Context, query string) (Classification, error)
}

// Enhancement is the result of query enhancement: the original query plus
// bounded rewrites and optionally extracted filters.
type Enhancement struct {
	Original string
	Variants []string
	Filters  map[string]string
}

// Enhancer rewrites a query into additional search variants. Enhancement is
// strictly additive: implementations return at least the original query and
// never fail retrieval.
type Enhancer interface {
	Enhance(ctx context.Context, query string) Enhancement
}

// Source is one retrieved chunk backing an answer.
type Source struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	SourcePath string  `json:"source_path"`
	Text       string  `json:"text"`
	Similarity float32 `json:"similarity"`
	// RerankScore is set on paths that re-rank (semantic, hybrid).
	RerankScore float32 `json:"rerank_score,omitempty"`
}

// Response is the engine's answer to one query.
type Response struct {
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	Confidence float64  `json:"confidence"`
	QueryType  Intent   `json:"query_type"`
	// AnswerGenerated is false when synthesis was skipped or failed; the
	// sources are still valid retrieval results.
	AnswerGenerated bool `json:"answer_generated"`
}
