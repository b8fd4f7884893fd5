package query

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/corpusd/internal/llm"
)

// Intent detection patterns, checked in order. Aggregation wins over listing
// because "how many" questions often also contain "all".
var (
	aggregationPattern = regexp.MustCompile(`(?i)^\s*(how many|count( of| the)?|number of|total (number|count) of)\b`)
	listingPattern     = regexp.MustCompile(`(?i)\b(list|show( me)?|enumerate|give me|what are)\b.*\b(all|every|each)\b|\ball (the )?\w+ (documents|files|sources|entries|chunks)\b`)

	categoryPattern = regexp.MustCompile(`(?i)\bcategory[:\s]+"?([\w-]+)"?`)
	tagPattern      = regexp.MustCompile(`(?i)\b(?:tag|tagged)[:\s]+"?([\w-]+)"?`)
	sourcePattern   = regexp.MustCompile(`(?i)\b(?:source|path|from file)[:\s]+"?([\w./-]+)"?`)
)

// RuleClassifier detects intent with regular expressions. It is deterministic
// and needs no model, which makes it the default classifier and the fallback
// for the LLM classifier.
type RuleClassifier struct{}

// NewRuleClassifier creates a RuleClassifier.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// Classify detects intent and extracts structured filters.
func (c *RuleClassifier) Classify(ctx context.Context, query string) (Classification, error) {
	if strings.TrimSpace(query) == "" {
		return Classification{}, ErrEmptyQuery
	}

	filters := extractFilters(query)

	switch {
	case aggregationPattern.MatchString(query):
		return Classification{Intent: IntentAggregation, Filters: filters}, nil
	case listingPattern.MatchString(query):
		return Classification{Intent: IntentListing, Filters: filters}, nil
	case len(filters) > 0:
		return Classification{Intent: IntentHybrid, Filters: filters}, nil
	default:
		return Classification{Intent: IntentSemantic}, nil
	}
}

// extractFilters pulls structured predicates out of the query text.
func extractFilters(query string) map[string]string {
	filters := make(map[string]string)
	if m := categoryPattern.FindStringSubmatch(query); m != nil {
		filters["category"] = strings.ToLower(m[1])
	}
	if m := tagPattern.FindStringSubmatch(query); m != nil {
		filters["tags"] = strings.ToLower(m[1])
	}
	if m := sourcePattern.FindStringSubmatch(query); m != nil {
		filters["source_path"] = m[1]
	}
	if len(filters) == 0 {
		return nil
	}
	return filters
}

const classifyPromptTemplate = `Classify the user query into exactly one intent and extract filters.

Intents:
- "semantic": general question answered by similarity search
- "aggregation": asks for an exact count ("how many ...")
- "listing": asks to enumerate all matching items
- "hybrid": question constrained by structured attributes

Respond with JSON only, no prose:
{"intent": "<semantic|aggregation|listing|hybrid>", "filters": {"category": "...", "tags": "...", "source_path": "..."}}
Omit filter keys that do not apply.

Query: %s`

// llmClassification mirrors the JSON the model is asked to produce.
type llmClassification struct {
	Intent  string            `json:"intent"`
	Filters map[string]string `json:"filters"`
}

// LLMClassifier asks a completion model to classify the query. Any failure,
// including unparseable output, falls back to the rule classifier so
// classification never blocks a query.
type LLMClassifier struct {
	client llm.Client
	rules  *RuleClassifier
	logger *zap.Logger
}

// NewLLMClassifier creates an LLMClassifier.
func NewLLMClassifier(client llm.Client, logger *zap.Logger) (*LLMClassifier, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: llm client required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMClassifier{
		client: client,
		rules:  NewRuleClassifier(),
		logger: logger,
	}, nil
}

// Classify detects intent via the model, falling back to rules.
func (c *LLMClassifier) Classify(ctx context.Context, query string) (Classification, error) {
	if strings.TrimSpace(query) == "" {
		return Classification{}, ErrEmptyQuery
	}

	raw, err := c.client.Complete(ctx, fmt.Sprintf(classifyPromptTemplate, query), 128, 0)
	if err != nil {
		c.logger.Warn("llm classification failed, using rules", zap.Error(err))
		return c.rules.Classify(ctx, query)
	}

	var parsed llmClassification
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		c.logger.Warn("unparseable llm classification, using rules",
			zap.String("output", raw), zap.Error(err))
		return c.rules.Classify(ctx, query)
	}

	intent := Intent(strings.ToLower(parsed.Intent))
	switch intent {
	case IntentSemantic, IntentAggregation, IntentListing, IntentHybrid:
	default:
		c.logger.Warn("unknown intent from llm, using rules", zap.String("intent", parsed.Intent))
		return c.rules.Classify(ctx, query)
	}

	filters := parsed.Filters
	if len(filters) == 0 {
		filters = nil
	}
	return Classification{Intent: intent, Filters: filters}, nil
}

// extractJSON strips prose or code fences around a JSON object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

// Ensure implementations satisfy Classifier.
var (
	_ Classifier = (*RuleClassifier)(nil)
	_ Classifier = (*LLMClassifier)(nil)
)
