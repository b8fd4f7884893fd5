package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetadataMatches(t *testing.T) {
	md := Metadata{
		VectorID:    "v1",
		ChunkID:     "c1",
		DocumentID:  "d1",
		SourcePath:  "doc/a.txt",
		Generation:  "g1",
		ChunkMethod: "semantic",
		Extra:       map[string]string{"category": "incident", "title": "Outage"},
	}

	tests := []struct {
		name    string
		filters map[string]string
		want    bool
	}{
		{"empty filters match everything", nil, true},
		{"fixed field match", map[string]string{"source_path": "doc/a.txt"}, true},
		{"fixed field mismatch", map[string]string{"source_path": "doc/b.txt"}, false},
		{"extra field match", map[string]string{"category": "incident"}, true},
		{"extra field mismatch", map[string]string{"category": "faq"}, false},
		{"all predicates must hold", map[string]string{"source_path": "doc/a.txt", "category": "faq"}, false},
		{"combined match", map[string]string{"generation": "g1", "chunk_method": "semantic", "title": "Outage"}, true},
		{"unknown key with empty value", map[string]string{"missing": ""}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, md.Matches(tt.filters))
		})
	}
}

func TestConsistencyReportConsistent(t *testing.T) {
	assert.True(t, ConsistencyReport{Total: 10}.Consistent())
	assert.False(t, ConsistencyReport{OrphanedVectors: []string{"v1"}}.Consistent())
	assert.False(t, ConsistencyReport{OrphanedMetadata: []string{"v1"}}.Consistent())
}

func TestSortHits(t *testing.T) {
	hits := []Hit{
		{VectorID: "b", Similarity: 0.5, Metadata: Metadata{Seq: 2}},
		{VectorID: "c", Similarity: 0.9, Metadata: Metadata{Seq: 3}},
		{VectorID: "a", Similarity: 0.5, Metadata: Metadata{Seq: 1}},
	}
	sortHits(hits)

	assert.Equal(t, "c", hits[0].VectorID)
	// Equal similarity resolves by insertion order.
	assert.Equal(t, "a", hits[1].VectorID)
	assert.Equal(t, "b", hits[2].VectorID)
}
