package chunker

import (
	"strings"
	"unicode"
)

// defaultBoundaryThreshold marks a topic shift when adjacent sentences share
// fewer tokens than this fraction.
const defaultBoundaryThreshold = 0.12

// sentence is a contiguous span of the source text with rune offsets.
type sentence struct {
	text  string
	start int
	end   int
}

// SemanticChunker groups sentences into chunks, preferring to cut where
// adjacent sentences diverge lexically. Text without detectable sentence
// boundaries falls back to the fixed-size window, as do single sentences
// longer than the chunk size.
type SemanticChunker struct {
	cfg       Config
	threshold float64
	fixed     *FixedChunker
}

// NewSemanticChunker creates a SemanticChunker.
func NewSemanticChunker(cfg Config) (*SemanticChunker, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fixed, err := NewFixedChunker(cfg)
	if err != nil {
		return nil, err
	}
	return &SemanticChunker{cfg: cfg, threshold: defaultBoundaryThreshold, fixed: fixed}, nil
}

// Chunk splits text along sentence boundaries.
func (c *SemanticChunker) Chunk(documentID, text string, metadata map[string]string) ([]Chunk, error) {
	if len(strings.TrimSpace(text)) == 0 {
		return nil, nil
	}

	sentences := splitSentences(text)
	if len(sentences) <= 1 {
		// No usable boundaries; the fixed window is the only sane split.
		return c.fixed.Chunk(documentID, text, metadata)
	}

	runes := []rune(text)
	var chunks []Chunk
	var group []sentence
	groupLen := 0

	flush := func() {
		if len(group) == 0 {
			return
		}
		start, end := group[0].start, group[len(group)-1].end
		chunks = append(chunks, newChunk(documentID, len(chunks), string(runes[start:end]), start, end, MethodSemantic, metadata))
		group = nil
		groupLen = 0
	}

	for i, s := range sentences {
		sentLen := s.end - s.start
		if sentLen > c.cfg.ChunkSize {
			// An oversized sentence gets the fixed window on its own.
			flush()
			sub, err := c.fixed.Chunk(documentID, s.text, metadata)
			if err != nil {
				return nil, err
			}
			for _, sc := range sub {
				chunks = append(chunks, newChunk(documentID, len(chunks), sc.Text, s.start+sc.StartOffset, s.start+sc.EndOffset, MethodFixed, metadata))
			}
			continue
		}

		switch {
		case groupLen == 0:
			// First sentence of a new group.
		case groupLen+sentLen > c.cfg.ChunkSize:
			flush()
		case groupLen >= c.cfg.ChunkSize/2 && tokenSimilarity(sentences[i-1].text, s.text) < c.threshold:
			// Topic shift at a sentence boundary; only honored once the group
			// is substantial so divergent openers do not shred the text.
			flush()
		}
		group = append(group, s)
		groupLen = s.end - group[0].start
	}
	flush()
	return chunks, nil
}

// splitSentences scans text into sentence spans with rune offsets. A sentence
// ends after terminal punctuation followed by whitespace, or at a blank line.
func splitSentences(text string) []sentence {
	runes := []rune(text)
	var out []sentence
	start := -1

	emit := func(end int) {
		if start < 0 {
			return
		}
		s := string(runes[start:end])
		if strings.TrimSpace(s) != "" {
			out = append(out, sentence{text: s, start: start, end: end})
		}
		start = -1
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if start < 0 {
			if !unicode.IsSpace(r) {
				start = i
			}
			continue
		}
		switch {
		case r == '.' || r == '!' || r == '?':
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				emit(i + 1)
			}
		case r == '\n' && i+1 < len(runes) && runes[i+1] == '\n':
			emit(i)
		}
	}
	emit(len(runes))
	return out
}

// tokenSimilarity is the Jaccard overlap of lowercased word sets.
func tokenSimilarity(a, b string) float64 {
	as := tokenSet(a)
	bs := tokenSet(b)
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}
	shared := 0
	for tok := range as {
		if _, ok := bs[tok]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(as)+len(bs)-shared)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		set[tok] = struct{}{}
	}
	return set
}
