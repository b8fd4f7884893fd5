package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/corpusd/internal/embeddings"
	"github.com/fyrsmithlabs/corpusd/internal/llm"
	"github.com/fyrsmithlabs/corpusd/internal/reranker"
	"github.com/fyrsmithlabs/corpusd/internal/vectorstore"
)

var queryTracer = otel.Tracer("corpusd.query")

// noAnswerText is returned when retrieval finds nothing relevant.
const noAnswerText = "No relevant information found in the indexed documents."

const synthesisPromptTemplate = `Answer the question using only the context below. If the context does
not contain the answer, say so. Cite which source the answer comes from.

Context:
%s

Question: %s

Answer:`

// Config holds query engine tuning.
type Config struct {
	// MaxResults is the default result cap for similarity paths.
	// Default: 5
	MaxResults int

	// SimilarityFloor drops weak matches on the semantic and hybrid paths.
	// Aggregation and listing paths never apply it.
	// Default: 0.25
	SimilarityFloor float32

	// SynthesisMaxTokens bounds the completion for answer synthesis.
	// Default: 512
	SynthesisMaxTokens int

	// SynthesisTemperature keeps answers factual.
	// Default: 0.2
	SynthesisTemperature float64

	// ContextCharBudget bounds how much chunk text goes into the prompt.
	// Default: 6000
	ContextCharBudget int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxResults == 0 {
		c.MaxResults = 5
	}
	if c.SimilarityFloor == 0 {
		c.SimilarityFloor = 0.25
	}
	if c.SynthesisMaxTokens == 0 {
		c.SynthesisMaxTokens = 512
	}
	if c.SynthesisTemperature == 0 {
		c.SynthesisTemperature = 0.2
	}
	if c.ContextCharBudget == 0 {
		c.ContextCharBudget = 6000
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.MaxResults < 0 {
		return fmt.Errorf("%w: max results cannot be negative", ErrInvalidConfig)
	}
	if c.SimilarityFloor < 0 || c.SimilarityFloor > 1 {
		return fmt.Errorf("%w: similarity floor must be in [0,1]", ErrInvalidConfig)
	}
	return nil
}

// Engine routes queries by intent, retrieves and re-ranks chunks, and
// synthesizes grounded answers.
type Engine struct {
	cfg        Config
	store      vectorstore.Store
	embedder   embeddings.Provider
	classifier Classifier
	enhancer   Enhancer
	reranker   reranker.Reranker
	llm        llm.Client
	logger     *zap.Logger
}

// NewEngine creates a query engine. classifier, enhancer, and reranker may be
// nil, in which case the rule classifier, no-op enhancer, and passthrough
// reranker are used. llm may be nil; answers then degrade to source listings.
func NewEngine(cfg Config, store vectorstore.Store, embedder embeddings.Provider, classifier Classifier, enhancer Enhancer, rr reranker.Reranker, client llm.Client, logger *zap.Logger) (*Engine, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil || embedder == nil {
		return nil, fmt.Errorf("%w: store and embedder are required", ErrInvalidConfig)
	}
	if classifier == nil {
		classifier = NewRuleClassifier()
	}
	if enhancer == nil {
		enhancer = NewNoopEnhancer()
	}
	if rr == nil {
		rr = reranker.NewPassthroughReranker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:        cfg,
		store:      store,
		embedder:   embedder,
		classifier: classifier,
		enhancer:   enhancer,
		reranker:   rr,
		llm:        client,
		logger:     logger,
	}, nil
}

// Query answers one query. maxResults <= 0 uses the configured default.
// Caller-supplied filters are merged over classifier-extracted ones and
// promote a semantic query to the hybrid path.
func (e *Engine) Query(ctx context.Context, text string, maxResults int, filters map[string]string) (Response, error) {
	ctx, span := queryTracer.Start(ctx, "Engine.Query")
	defer span.End()

	if strings.TrimSpace(text) == "" {
		span.SetStatus(codes.Error, ErrEmptyQuery.Error())
		return Response{}, ErrEmptyQuery
	}
	if maxResults <= 0 {
		maxResults = e.cfg.MaxResults
	}

	classification, err := e.classifier.Classify(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Response{}, fmt.Errorf("classifying query: %w", err)
	}

	merged := mergeFilters(classification.Filters, filters)
	intent := classification.Intent
	if intent == IntentSemantic && len(merged) > 0 {
		intent = IntentHybrid
	}
	span.SetAttributes(
		attribute.String("intent", string(intent)),
		attribute.Int("max_results", maxResults),
	)

	var resp Response
	switch intent {
	case IntentAggregation:
		resp, err = e.aggregate(ctx, text, merged)
	case IntentListing:
		resp, err = e.list(ctx, text, merged)
	case IntentHybrid:
		resp, err = e.similaritySearch(ctx, text, maxResults, merged, IntentHybrid)
	default:
		resp, err = e.similaritySearch(ctx, text, maxResults, nil, IntentSemantic)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Response{}, err
	}

	span.SetAttributes(
		attribute.Int("sources", len(resp.Sources)),
		attribute.Bool("answer_generated", resp.AnswerGenerated),
	)
	span.SetStatus(codes.Ok, "success")
	return resp, nil
}

// similaritySearch handles the semantic and hybrid paths: embed the query and
// its variants, search, merge, floor, rerank, synthesize.
func (e *Engine) similaritySearch(ctx context.Context, text string, maxResults int, filters map[string]string, intent Intent) (Response, error) {
	enhancement := e.enhancer.Enhance(ctx, text)
	queries := append([]string{enhancement.Original}, enhancement.Variants...)
	if intent == IntentSemantic && len(enhancement.Filters) > 0 {
		filters = mergeFilters(enhancement.Filters, filters)
		intent = IntentHybrid
	}

	// Over-fetch per variant so the floor and filters have room to drop
	// weak matches before the final cap.
	fetchK := maxResults * 4
	byChunk := make(map[string]vectorstore.Hit)
	for _, q := range queries {
		vector, err := e.embedder.EmbedQuery(ctx, q)
		if err != nil {
			return Response{}, fmt.Errorf("embedding query: %w", err)
		}
		hits, err := e.store.Search(ctx, vector, fetchK)
		if err != nil {
			return Response{}, fmt.Errorf("searching: %w", err)
		}
		for _, h := range hits {
			if len(filters) > 0 && !h.Metadata.Matches(filters) {
				continue
			}
			// Keep the best similarity seen for a chunk across variants.
			if prev, ok := byChunk[h.Metadata.ChunkID]; !ok || h.Similarity > prev.Similarity {
				byChunk[h.Metadata.ChunkID] = h
			}
		}
	}

	hits := make([]vectorstore.Hit, 0, len(byChunk))
	for _, h := range byChunk {
		if h.Similarity >= e.cfg.SimilarityFloor {
			hits = append(hits, h)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Metadata.Seq < hits[j].Metadata.Seq
	})

	if len(hits) == 0 {
		return Response{
			Answer:     noAnswerText,
			Sources:    []Source{},
			Confidence: 0.1,
			QueryType:  intent,
		}, nil
	}

	sources := e.rerank(ctx, text, hits, maxResults)
	answer, generated := e.synthesize(ctx, text, sources, "")
	return Response{
		Answer:          answer,
		Sources:         sources,
		Confidence:      confidence(sources, maxResults),
		QueryType:       intent,
		AnswerGenerated: generated,
	}, nil
}

// aggregate handles exact-count queries over the complete match set. No
// similarity floor and no result cap apply: counting needs completeness.
func (e *Engine) aggregate(ctx context.Context, text string, filters map[string]string) (Response, error) {
	hits, err := e.store.SearchByFilter(ctx, filters, 0)
	if err != nil {
		return Response{}, fmt.Errorf("aggregating: %w", err)
	}

	docs := distinctSourcePaths(hits)
	count := len(docs)
	if count == 0 {
		return Response{
			Answer:     noAnswerText,
			Sources:    []Source{},
			Confidence: 0.1,
			QueryType:  IntentAggregation,
		}, nil
	}

	// The count is computed exactly; synthesis only phrases it.
	factual := fmt.Sprintf("Exact result: %d matching documents (%d chunks).", count, len(hits))
	sources := hitsToSources(hits, e.cfg.MaxResults)
	answer, generated := e.synthesize(ctx, text, sources, factual)
	if !generated {
		answer = factual
	}
	return Response{
		Answer:          answer,
		Sources:         sources,
		Confidence:      0.95,
		QueryType:       IntentAggregation,
		AnswerGenerated: generated,
	}, nil
}

// list handles enumeration queries: every match comes back, one source per
// document, no floor, no rerank.
func (e *Engine) list(ctx context.Context, text string, filters map[string]string) (Response, error) {
	hits, err := e.store.SearchByFilter(ctx, filters, 0)
	if err != nil {
		return Response{}, fmt.Errorf("listing: %w", err)
	}
	if len(hits) == 0 {
		return Response{
			Answer:     noAnswerText,
			Sources:    []Source{},
			Confidence: 0.1,
			QueryType:  IntentListing,
		}, nil
	}

	paths := distinctSourcePaths(hits)
	seen := make(map[string]bool)
	sources := make([]Source, 0, len(paths))
	for _, h := range hits {
		if seen[h.Metadata.SourcePath] {
			continue
		}
		seen[h.Metadata.SourcePath] = true
		sources = append(sources, hitToSource(h))
	}

	answer := fmt.Sprintf("Found %d matching documents:\n- %s", len(paths), strings.Join(paths, "\n- "))
	return Response{
		Answer:          answer,
		Sources:         sources,
		Confidence:      0.9,
		QueryType:       IntentListing,
		AnswerGenerated: true,
	}, nil
}

// rerank re-orders hits and converts the winners to sources.
func (e *Engine) rerank(ctx context.Context, text string, hits []vectorstore.Hit, topK int) []Source {
	byChunk := make(map[string]vectorstore.Hit, len(hits))
	docs := make([]reranker.Document, len(hits))
	for i, h := range hits {
		byChunk[h.Metadata.ChunkID] = h
		docs[i] = reranker.Document{
			ID:      h.Metadata.ChunkID,
			Content: h.Metadata.Text,
			Score:   h.Similarity,
		}
	}

	ranked, err := e.reranker.Rerank(ctx, text, docs, topK)
	if err != nil {
		// Degrade to the similarity ordering rather than failing the query.
		e.logger.Warn("reranking failed, keeping similarity order", zap.Error(err))
		return hitsToSources(hits, topK)
	}

	sources := make([]Source, 0, len(ranked))
	for _, rd := range ranked {
		src := hitToSource(byChunk[rd.ID])
		src.RerankScore = rd.RerankerScore
		sources = append(sources, src)
	}
	return sources
}

// synthesize builds a grounding context and asks the completion provider for
// an answer. On failure the sources survive and the answer degrades.
func (e *Engine) synthesize(ctx context.Context, question string, sources []Source, factualNote string) (string, bool) {
	if e.llm == nil {
		return degradedAnswer(sources), false
	}

	var b strings.Builder
	if factualNote != "" {
		b.WriteString(factualNote)
		b.WriteString("\n\n")
	}
	for i, src := range sources {
		entry := fmt.Sprintf("[%d] %s:\n%s\n\n", i+1, src.SourcePath, src.Text)
		if b.Len()+len(entry) > e.cfg.ContextCharBudget {
			break
		}
		b.WriteString(entry)
	}

	prompt := fmt.Sprintf(synthesisPromptTemplate, b.String(), question)
	answer, err := e.llm.Complete(ctx, prompt, e.cfg.SynthesisMaxTokens, e.cfg.SynthesisTemperature)
	if err != nil {
		e.logger.Warn("answer synthesis failed, returning sources without answer", zap.Error(err))
		return degradedAnswer(sources), false
	}
	return strings.TrimSpace(answer), true
}

// degradedAnswer stands in when synthesis is unavailable.
func degradedAnswer(sources []Source) string {
	if len(sources) == 0 {
		return noAnswerText
	}
	return fmt.Sprintf("Answer generation unavailable; %d relevant sources retrieved.", len(sources))
}

// confidence derives a score from the top similarity and how full the result
// set is.
func confidence(sources []Source, maxResults int) float64 {
	if len(sources) == 0 {
		return 0.1
	}
	top := float64(sources[0].Similarity)
	fill := float64(len(sources)) / float64(maxResults)
	if fill > 1 {
		fill = 1
	}
	c := top * (0.7 + 0.3*fill)
	if c > 1 {
		c = 1
	}
	if c < 0.1 {
		c = 0.1
	}
	return c
}

// mergeFilters overlays b on top of a; caller-supplied filters win.
func mergeFilters(a, b map[string]string) map[string]string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	merged := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range b {
		merged[k] = v
	}
	return merged
}

func hitToSource(h vectorstore.Hit) Source {
	return Source{
		ChunkID:    h.Metadata.ChunkID,
		DocumentID: h.Metadata.DocumentID,
		SourcePath: h.Metadata.SourcePath,
		Text:       h.Metadata.Text,
		Similarity: h.Similarity,
	}
}

func hitsToSources(hits []vectorstore.Hit, limit int) []Source {
	if limit > 0 && limit < len(hits) {
		hits = hits[:limit]
	}
	sources := make([]Source, len(hits))
	for i, h := range hits {
		sources[i] = hitToSource(h)
	}
	return sources
}

// distinctSourcePaths returns the unique source paths in hit order.
func distinctSourcePaths(hits []vectorstore.Hit) []string {
	seen := make(map[string]bool)
	var paths []string
	for _, h := range hits {
		if !seen[h.Metadata.SourcePath] {
			seen[h.Metadata.SourcePath] = true
			paths = append(paths, h.Metadata.SourcePath)
		}
	}
	return paths
}
