package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/corpusd/internal/llm"
)

// defaultMaxVariants bounds how many rewrites one query produces.
const defaultMaxVariants = 3

const enhancePromptTemplate = `Rewrite the search query into up to %d alternative phrasings that could
retrieve the same information, and extract structured filters if the query
names a category, tag, or source file.

Respond with JSON only, no prose:
{"variants": ["...", "..."], "filters": {"category": "...", "tags": "...", "source_path": "..."}}
Omit filter keys that do not apply. Variants must differ from the original.

Query: %s`

// llmEnhancement mirrors the JSON the model is asked to produce.
type llmEnhancement struct {
	Variants []string          `json:"variants"`
	Filters  map[string]string `json:"filters"`
}

// NoopEnhancer returns the original query untouched. It stands in when
// enhancement is disabled.
type NoopEnhancer struct{}

// NewNoopEnhancer creates a NoopEnhancer.
func NewNoopEnhancer() *NoopEnhancer {
	return &NoopEnhancer{}
}

// Enhance returns the query as-is.
func (e *NoopEnhancer) Enhance(ctx context.Context, query string) Enhancement {
	return Enhancement{Original: query}
}

// LLMEnhancer asks a completion model for query rewrites. Enhancement is
// strictly additive: on any failure it returns the original query alone and
// retrieval proceeds.
type LLMEnhancer struct {
	client      llm.Client
	maxVariants int
	logger      *zap.Logger
}

// NewLLMEnhancer creates an LLMEnhancer. maxVariants <= 0 uses the default.
func NewLLMEnhancer(client llm.Client, maxVariants int, logger *zap.Logger) (*LLMEnhancer, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: llm client required", ErrInvalidConfig)
	}
	if maxVariants <= 0 {
		maxVariants = defaultMaxVariants
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMEnhancer{client: client, maxVariants: maxVariants, logger: logger}, nil
}

// Enhance produces bounded query variants and optional filters.
func (e *LLMEnhancer) Enhance(ctx context.Context, query string) Enhancement {
	result := Enhancement{Original: query}

	raw, err := e.client.Complete(ctx, fmt.Sprintf(enhancePromptTemplate, e.maxVariants, query), 256, 0.7)
	if err != nil {
		e.logger.Warn("query enhancement failed, using original query", zap.Error(err))
		return result
	}

	var parsed llmEnhancement
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		e.logger.Warn("unparseable enhancement output, using original query",
			zap.String("output", raw), zap.Error(err))
		return result
	}

	seen := map[string]bool{strings.ToLower(strings.TrimSpace(query)): true}
	for _, v := range parsed.Variants {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		result.Variants = append(result.Variants, v)
		if len(result.Variants) == e.maxVariants {
			break
		}
	}
	if len(parsed.Filters) > 0 {
		result.Filters = parsed.Filters
	}
	return result
}

// Ensure implementations satisfy Enhancer.
var (
	_ Enhancer = (*NoopEnhancer)(nil)
	_ Enhancer = (*LLMEnhancer)(nil)
)
