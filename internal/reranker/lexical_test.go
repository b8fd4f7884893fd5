package reranker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexicalReranker_BoostsTermOverlap(t *testing.T) {
	r := NewLexicalReranker()
	docs := []Document{
		{ID: "c1", Content: "general discussion about storage systems", Score: 0.80},
		{ID: "c2", Content: "replication lag spikes during failover events", Score: 0.78},
	}

	got, err := r.Rerank(context.Background(), "replication lag failover", docs, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// High term overlap overtakes the slightly higher similarity.
	assert.Equal(t, "c2", got[0].ID)
	assert.Greater(t, got[0].RerankerScore, got[1].RerankerScore)
	assert.Equal(t, 1, got[0].OriginalRank)
}

func TestLexicalReranker_TopKTruncates(t *testing.T) {
	r := NewLexicalReranker()
	docs := []Document{
		{ID: "c1", Content: "alpha", Score: 0.9},
		{ID: "c2", Content: "beta", Score: 0.8},
		{ID: "c3", Content: "gamma", Score: 0.7},
	}

	got, err := r.Rerank(context.Background(), "alpha", docs, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestLexicalReranker_OverlapBreaksScoreTies(t *testing.T) {
	r := NewLexicalReranker()
	// Both land on the same combined score: c1 from similarity alone, c2
	// from full term overlap.
	docs := []Document{
		{ID: "c1", Content: "unrelated storage discussion", Score: 1.0},
		{ID: "c2", Content: "replication lag", Score: 0.0},
	}

	got, err := r.Rerank(context.Background(), "replication lag", docs, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c2", got[0].ID)
}

func TestLexicalReranker_EmptyDocs(t *testing.T) {
	got, err := NewLexicalReranker().Rerank(context.Background(), "query", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLexicalReranker_StopwordOnlyQueryKeepsOrder(t *testing.T) {
	r := NewLexicalReranker()
	docs := []Document{
		{ID: "c1", Content: "first", Score: 0.9},
		{ID: "c2", Content: "second", Score: 0.8},
	}

	got, err := r.Rerank(context.Background(), "what is the", docs, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].ID)
	assert.Equal(t, "c2", got[1].ID)
}

func TestLexicalReranker_Deterministic(t *testing.T) {
	r := NewLexicalReranker()
	// Identical content and score; original order must decide.
	docs := []Document{
		{ID: "c1", Content: "replication lag", Score: 0.5},
		{ID: "c2", Content: "replication lag", Score: 0.5},
		{ID: "c3", Content: "replication lag", Score: 0.5},
	}

	for i := 0; i < 5; i++ {
		got, err := r.Rerank(context.Background(), "replication lag", docs, 0)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "c1", got[0].ID)
		assert.Equal(t, "c2", got[1].ID)
		assert.Equal(t, "c3", got[2].ID)
	}
}

func TestLexicalReranker_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	_, err := NewLexicalReranker().Rerank(nil, "q", nil, 0)
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestPassthroughReranker(t *testing.T) {
	r := NewPassthroughReranker()
	docs := []Document{
		{ID: "c1", Content: "zzz irrelevant", Score: 0.3},
		{ID: "c2", Content: "query terms here", Score: 0.9},
	}

	got, err := r.Rerank(context.Background(), "query terms", docs, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Order is untouched regardless of relevance.
	assert.Equal(t, "c1", got[0].ID)
	assert.Equal(t, "c2", got[1].ID)

	got, err = r.Rerank(context.Background(), "query", docs, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestTermOverlap(t *testing.T) {
	assert.Equal(t, float32(1), termOverlap(tokenize("replication lag"), tokenize("replication lag is high")))
	assert.Equal(t, float32(0.5), termOverlap(tokenize("replication banana"), tokenize("replication lag")))
	assert.Equal(t, float32(0), termOverlap(tokenize("banana"), tokenize("replication lag")))
	// Duplicate query terms count once.
	assert.Equal(t, float32(1), termOverlap(tokenize("lag lag lag"), tokenize("lag")))
}
