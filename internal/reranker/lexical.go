package reranker

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// ErrNilContext is returned when a nil context is passed to Rerank.
var ErrNilContext = errors.New("context cannot be nil")

// Weights for combining the original similarity with term overlap. Keeping
// half the weight on the original score preserves semantic ranking while
// boosting chunks that literally contain the query terms.
const (
	originalWeight = 0.5
	overlapWeight  = 0.5
)

// LexicalReranker combines the original similarity score with query term
// overlap. It needs no model or network and is the default re-ranker.
type LexicalReranker struct{}

// NewLexicalReranker creates a LexicalReranker.
func NewLexicalReranker() *LexicalReranker {
	return &LexicalReranker{}
}

// Rerank re-orders documents by combined score.
func (r *LexicalReranker) Rerank(ctx context.Context, query string, docs []Document, topK int) ([]ScoredDocument, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if topK <= 0 {
		topK = len(docs)
	}
	if len(docs) == 0 {
		return []ScoredDocument{}, nil
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		// Nothing to overlap against; keep the original ranking.
		return passthrough(docs, topK), nil
	}

	type scoredDoc struct {
		doc      ScoredDocument
		combined float32
	}
	scored := make([]scoredDoc, len(docs))
	for i, doc := range docs {
		overlap := termOverlap(queryTokens, tokenize(doc.Content))
		scored[i] = scoredDoc{
			doc: ScoredDocument{
				Document:      doc,
				RerankerScore: overlap,
				OriginalRank:  i,
			},
			combined: originalWeight*doc.Score + overlapWeight*overlap,
		}
	}

	// Equal combined scores fall back to literal overlap before the stable
	// sort preserves original rank.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].combined != scored[j].combined {
			return scored[i].combined > scored[j].combined
		}
		return scored[i].doc.RerankerScore > scored[j].doc.RerankerScore
	})

	if topK > len(scored) {
		topK = len(scored)
	}
	result := make([]ScoredDocument, topK)
	for i := range result {
		result[i] = scored[i].doc
	}
	return result, nil
}

// Close is a no-op.
func (r *LexicalReranker) Close() error {
	return nil
}

// PassthroughReranker keeps the original ordering. It stands in when
// re-ranking is disabled or a configured re-ranker fails to initialize.
type PassthroughReranker struct{}

// NewPassthroughReranker creates a PassthroughReranker.
func NewPassthroughReranker() *PassthroughReranker {
	return &PassthroughReranker{}
}

// Rerank returns the documents in their original order, truncated to topK.
func (r *PassthroughReranker) Rerank(ctx context.Context, query string, docs []Document, topK int) ([]ScoredDocument, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if topK <= 0 {
		topK = len(docs)
	}
	return passthrough(docs, topK), nil
}

// Close is a no-op.
func (r *PassthroughReranker) Close() error {
	return nil
}

// passthrough converts documents in place, preserving their order.
func passthrough(docs []Document, topK int) []ScoredDocument {
	if topK > len(docs) {
		topK = len(docs)
	}
	result := make([]ScoredDocument, topK)
	for i := 0; i < topK; i++ {
		result[i] = ScoredDocument{
			Document:      docs[i],
			RerankerScore: docs[i].Score,
			OriginalRank:  i,
		}
	}
	return result
}

// tokenize splits text into lowercase terms, filtering stopwords and tokens
// shorter than three characters.
func tokenize(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isAlphanumeric(r)
	})
	filtered := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if !isStopword(token) && len(token) > 2 {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true, "this": true,
	"that": true, "these": true, "those": true, "i": true, "you": true, "he": true,
	"she": true, "it": true, "we": true, "they": true, "what": true, "which": true,
	"who": true, "when": true, "where": true, "why": true, "how": true,
}

func isStopword(token string) bool {
	return stopwords[token]
}

// termOverlap is the fraction of unique query terms found in the document.
func termOverlap(queryTokens, docTokens []string) float32 {
	if len(queryTokens) == 0 {
		return 0
	}
	docSet := make(map[string]bool, len(docTokens))
	for _, token := range docTokens {
		docSet[token] = true
	}
	matched := make(map[string]bool)
	for _, token := range queryTokens {
		if docSet[token] {
			matched[token] = true
		}
	}
	unique := make(map[string]bool)
	for _, token := range queryTokens {
		unique[token] = true
	}
	return float32(len(matched)) / float32(len(unique))
}

// Ensure implementations satisfy Reranker.
var (
	_ Reranker = (*LexicalReranker)(nil)
	_ Reranker = (*PassthroughReranker)(nil)
)
