// Package chunker splits extracted document text into overlapping retrieval
// units.
//
// Two algorithms are provided. FixedChunker slides a fixed-size window with a
// configured overlap. SemanticChunker prefers sentence boundaries where
// adjacent sentences diverge lexically, and falls back to the fixed window
// when no strong boundary appears within a size window.
package chunker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Method identifies the algorithm that produced a chunk.
type Method string

const (
	// MethodFixed is the fixed-size sliding window.
	MethodFixed Method = "fixed"
	// MethodSemantic is the sentence-boundary algorithm.
	MethodSemantic Method = "semantic"
)

// ErrInvalidConfig indicates invalid chunker configuration.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// Chunk is a contiguous span of text from one source document. Chunks are
// immutable once stored; they are destroyed only by deleting the owning
// document.
type Chunk struct {
	// ChunkID is unique within the document generation.
	ChunkID string

	// DocumentID identifies the owning document.
	DocumentID string

	// Index is the chunk's ordinal within the document.
	Index int

	// Text is the chunk's raw text.
	Text string

	// StartOffset and EndOffset are rune offsets into the source text.
	StartOffset int
	EndOffset   int

	// Method records which algorithm produced the chunk.
	Method Method

	// Metadata is inherited from the document (title, category, tags...).
	Metadata map[string]string
}

// Chunker splits document text into an ordered sequence of chunks.
//
// Text shorter than the chunk size yields exactly one chunk. Empty or
// whitespace-only text yields zero chunks and a nil error; the caller reports
// it as a no-op, not a failure.
type Chunker interface {
	Chunk(documentID, text string, metadata map[string]string) ([]Chunk, error)
}

// Config holds sizing shared by both algorithms.
type Config struct {
	// ChunkSize is the maximum chunk length in runes.
	// Default: 1000
	ChunkSize int

	// Overlap is the number of runes shared by consecutive chunks.
	// Default: 200
	Overlap int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = 1000
	}
	if c.Overlap == 0 {
		c.Overlap = 200
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidConfig)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap cannot be negative", ErrInvalidConfig)
	}
	if c.Overlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfig, c.Overlap, c.ChunkSize)
	}
	return nil
}

// New creates a chunker for the given method.
func New(method Method, cfg Config) (Chunker, error) {
	switch method {
	case MethodFixed, "":
		return NewFixedChunker(cfg)
	case MethodSemantic:
		return NewSemanticChunker(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown method %q", ErrInvalidConfig, method)
	}
}

// FixedChunker slides a fixed-size window across the text with overlap.
type FixedChunker struct {
	cfg Config
}

// NewFixedChunker creates a FixedChunker.
func NewFixedChunker(cfg Config) (*FixedChunker, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &FixedChunker{cfg: cfg}, nil
}

// Chunk splits text into fixed-size overlapping chunks.
func (c *FixedChunker) Chunk(documentID, text string, metadata map[string]string) ([]Chunk, error) {
	runes := []rune(text)
	if len(strings.TrimSpace(text)) == 0 {
		return nil, nil
	}

	step := c.cfg.ChunkSize - c.cfg.Overlap
	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + c.cfg.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, newChunk(documentID, len(chunks), string(runes[start:end]), start, end, MethodFixed, metadata))
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

// newChunk builds a chunk with its derived ID.
func newChunk(documentID string, index int, text string, start, end int, method Method, metadata map[string]string) Chunk {
	return Chunk{
		ChunkID:     documentID + ":" + strconv.Itoa(index),
		DocumentID:  documentID,
		Index:       index,
		Text:        text,
		StartOffset: start,
		EndOffset:   end,
		Method:      method,
		Metadata:    metadata,
	}
}

// Ensure implementations satisfy Chunker.
var (
	_ Chunker = (*FixedChunker)(nil)
	_ Chunker = (*SemanticChunker)(nil)
)
