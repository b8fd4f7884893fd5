package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/corpusd/internal/llm"
)

func TestRuleClassifier(t *testing.T) {
	c := NewRuleClassifier()
	ctx := context.Background()

	tests := []struct {
		name        string
		query       string
		wantIntent  Intent
		wantFilters map[string]string
	}{
		{
			name:       "plain question is semantic",
			query:      "why is replication lag increasing",
			wantIntent: IntentSemantic,
		},
		{
			name:        "how many is aggregation",
			query:       "how many incident reports do we have category: incident",
			wantIntent:  IntentAggregation,
			wantFilters: map[string]string{"category": "incident"},
		},
		{
			name:       "count of is aggregation",
			query:      "count of indexed documents",
			wantIntent: IntentAggregation,
		},
		{
			name:        "list all is listing",
			query:       "list all runbook documents category: runbook",
			wantIntent:  IntentListing,
			wantFilters: map[string]string{"category": "runbook"},
		},
		{
			name:       "show me every is listing",
			query:      "show me every document about failover",
			wantIntent: IntentListing,
		},
		{
			name:        "filters without count verbs is hybrid",
			query:       "failover steps category: runbook",
			wantIntent:  IntentHybrid,
			wantFilters: map[string]string{"category": "runbook"},
		},
		{
			name:        "tag filter extraction",
			query:       "deployment checklist tagged: kubernetes",
			wantIntent:  IntentHybrid,
			wantFilters: map[string]string{"tags": "kubernetes"},
		},
		{
			name:        "source filter extraction",
			query:       "summary of source: doc/a.txt",
			wantIntent:  IntentHybrid,
			wantFilters: map[string]string{"source_path": "doc/a.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIntent, got.Intent)
			assert.Equal(t, tt.wantFilters, got.Filters)
		})
	}
}

func TestRuleClassifier_EmptyQuery(t *testing.T) {
	_, err := NewRuleClassifier().Classify(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestLLMClassifier_ParsesModelOutput(t *testing.T) {
	client := llm.NewStaticClient(`{"intent": "aggregation", "filters": {"category": "incident"}}`)
	c, err := NewLLMClassifier(client, zap.NewNop())
	require.NoError(t, err)

	got, err := c.Classify(context.Background(), "how many incidents happened")
	require.NoError(t, err)
	assert.Equal(t, IntentAggregation, got.Intent)
	assert.Equal(t, map[string]string{"category": "incident"}, got.Filters)
}

func TestLLMClassifier_StripsCodeFences(t *testing.T) {
	client := llm.NewStaticClient("```json\n{\"intent\": \"listing\"}\n```")
	c, err := NewLLMClassifier(client, zap.NewNop())
	require.NoError(t, err)

	got, err := c.Classify(context.Background(), "list all the things")
	require.NoError(t, err)
	assert.Equal(t, IntentListing, got.Intent)
}

func TestLLMClassifier_FallsBackOnError(t *testing.T) {
	client := llm.NewStaticClient("unused")
	client.Err = assert.AnError
	c, err := NewLLMClassifier(client, zap.NewNop())
	require.NoError(t, err)

	got, err := c.Classify(context.Background(), "how many documents are indexed")
	require.NoError(t, err)
	// Rules take over and still detect aggregation.
	assert.Equal(t, IntentAggregation, got.Intent)
}

func TestLLMClassifier_FallsBackOnGarbage(t *testing.T) {
	c, err := NewLLMClassifier(llm.NewStaticClient("I think this is semantic, probably"), zap.NewNop())
	require.NoError(t, err)

	got, err := c.Classify(context.Background(), "list all runbooks")
	require.NoError(t, err)
	assert.Equal(t, IntentListing, got.Intent)
}

func TestLLMClassifier_FallsBackOnUnknownIntent(t *testing.T) {
	c, err := NewLLMClassifier(llm.NewStaticClient(`{"intent": "philosophical"}`), zap.NewNop())
	require.NoError(t, err)

	got, err := c.Classify(context.Background(), "what is the meaning of uptime")
	require.NoError(t, err)
	assert.Equal(t, IntentSemantic, got.Intent)
}
