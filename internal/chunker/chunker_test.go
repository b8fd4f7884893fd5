package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults are valid", Config{ChunkSize: 1000, Overlap: 200}, false},
		{"zero chunk size", Config{ChunkSize: 0, Overlap: 0}, true},
		{"negative overlap", Config{ChunkSize: 100, Overlap: -1}, true},
		{"overlap equals chunk size", Config{ChunkSize: 100, Overlap: 100}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewSelectsMethod(t *testing.T) {
	c, err := New(MethodFixed, Config{})
	require.NoError(t, err)
	assert.IsType(t, (*FixedChunker)(nil), c)

	c, err = New(MethodSemantic, Config{})
	require.NoError(t, err)
	assert.IsType(t, (*SemanticChunker)(nil), c)

	c, err = New("", Config{})
	require.NoError(t, err)
	assert.IsType(t, (*FixedChunker)(nil), c)

	_, err = New("recursive", Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFixedChunker_EmptyText(t *testing.T) {
	c, err := NewFixedChunker(Config{ChunkSize: 10, Overlap: 2})
	require.NoError(t, err)

	for _, text := range []string{"", "   ", "\n\t\n"} {
		chunks, err := c.Chunk("doc-1", text, nil)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestFixedChunker_ShortTextSingleChunk(t *testing.T) {
	c, err := NewFixedChunker(Config{ChunkSize: 100, Overlap: 20})
	require.NoError(t, err)

	chunks, err := c.Chunk("doc-1", "short text", nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "doc-1:0", chunks[0].ChunkID)
	assert.Equal(t, "short text", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, 10, chunks[0].EndOffset)
	assert.Equal(t, MethodFixed, chunks[0].Method)
}

func TestFixedChunker_WindowAndOverlap(t *testing.T) {
	c, err := NewFixedChunker(Config{ChunkSize: 10, Overlap: 4})
	require.NoError(t, err)

	text := strings.Repeat("abcdef", 5) // 30 runes
	chunks, err := c.Chunk("doc-1", text, nil)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	runes := []rune(text)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, string(runes[ch.StartOffset:ch.EndOffset]), ch.Text)
		assert.LessOrEqual(t, ch.EndOffset-ch.StartOffset, 10)
		if i > 0 {
			// Consecutive windows share the configured overlap.
			assert.Equal(t, chunks[i-1].EndOffset-4, ch.StartOffset)
		}
	}
	// The last chunk reaches the end of the text.
	assert.Equal(t, len(runes), chunks[len(chunks)-1].EndOffset)
}

func TestFixedChunker_OffsetsRoundTrip(t *testing.T) {
	c, err := NewFixedChunker(Config{ChunkSize: 7, Overlap: 3})
	require.NoError(t, err)

	// Multibyte runes keep offsets honest.
	text := "héllo wörld données résumé naïve café crème brûlée"
	chunks, err := c.Chunk("doc-1", text, nil)
	require.NoError(t, err)

	runes := []rune(text)
	covered := make([]bool, len(runes))
	for _, ch := range chunks {
		assert.Equal(t, string(runes[ch.StartOffset:ch.EndOffset]), ch.Text)
		for i := ch.StartOffset; i < ch.EndOffset; i++ {
			covered[i] = true
		}
	}
	for i, ok := range covered {
		assert.True(t, ok, "rune %d not covered by any chunk", i)
	}
}

func TestFixedChunker_InheritsMetadata(t *testing.T) {
	c, err := NewFixedChunker(Config{ChunkSize: 5, Overlap: 1})
	require.NoError(t, err)

	meta := map[string]string{"category": "incident", "title": "Outage"}
	chunks, err := c.Chunk("doc-1", "0123456789", meta)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.Equal(t, meta, ch.Metadata)
		assert.Equal(t, "doc-1", ch.DocumentID)
	}
}

func TestSemanticChunker_EmptyText(t *testing.T) {
	c, err := NewSemanticChunker(Config{ChunkSize: 50, Overlap: 10})
	require.NoError(t, err)

	chunks, err := c.Chunk("doc-1", "  \n ", nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSemanticChunker_CutsAtSentenceBoundaries(t *testing.T) {
	c, err := NewSemanticChunker(Config{ChunkSize: 80, Overlap: 10})
	require.NoError(t, err)

	text := "The database cluster uses streaming replication. Replication lag is monitored continuously. " +
		"Bananas ripen faster in warm kitchens. Fruit storage benefits from ventilation."
	chunks, err := c.Chunk("doc-1", text, nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	runes := []rune(text)
	for _, ch := range chunks {
		assert.Equal(t, MethodSemantic, ch.Method)
		assert.Equal(t, string(runes[ch.StartOffset:ch.EndOffset]), ch.Text)
		// Every cut lands after terminal punctuation.
		assert.Regexp(t, `[.!?]$`, strings.TrimSpace(ch.Text))
	}
}

func TestSemanticChunker_RespectsChunkSize(t *testing.T) {
	c, err := NewSemanticChunker(Config{ChunkSize: 60, Overlap: 10})
	require.NoError(t, err)

	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("This sentence repeats with identical words each time. ")
	}
	chunks, err := c.Chunk("doc-1", b.String(), nil)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.EndOffset-ch.StartOffset, 60)
	}
}

func TestSemanticChunker_FallsBackWithoutBoundaries(t *testing.T) {
	c, err := NewSemanticChunker(Config{ChunkSize: 10, Overlap: 2})
	require.NoError(t, err)

	// One long run with no terminal punctuation.
	chunks, err := c.Chunk("doc-1", strings.Repeat("x", 35), nil)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.Equal(t, MethodFixed, ch.Method)
	}
}

func TestSemanticChunker_OversizedSentenceUsesFixedWindow(t *testing.T) {
	c, err := NewSemanticChunker(Config{ChunkSize: 20, Overlap: 4})
	require.NoError(t, err)

	text := "Short lead. " + strings.Repeat("y", 50) + ". Short tail."
	chunks, err := c.Chunk("doc-1", text, nil)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	var sawFixed bool
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		if ch.Method == MethodFixed {
			sawFixed = true
		}
	}
	assert.True(t, sawFixed)
}

func TestSplitSentences(t *testing.T) {
	text := "First sentence. Second one!\n\nParagraph break without punctuation\nThird? Yes."
	sentences := splitSentences(text)
	require.Len(t, sentences, 4)
	assert.Equal(t, "First sentence.", sentences[0].text)
	assert.Equal(t, "Second one!", sentences[1].text)
	assert.Equal(t, "Paragraph break without punctuation\nThird?", sentences[2].text)
	assert.Equal(t, "Yes.", sentences[3].text)

	runes := []rune(text)
	for _, s := range sentences {
		assert.Equal(t, s.text, string(runes[s.start:s.end]))
	}
}

func TestTokenSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, tokenSimilarity("the same words", "the same words"))
	assert.Equal(t, 0.0, tokenSimilarity("alpha beta", "gamma delta"))
	assert.Equal(t, 0.0, tokenSimilarity("", "words"))
	assert.Greater(t, tokenSimilarity("replication lag metrics", "replication lag alerts"), 0.4)
}
