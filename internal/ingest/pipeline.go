// Package ingest runs documents through the chunk, embed, and store stages.
//
// Re-ingesting a source path replaces its chunks atomically from the reader's
// perspective: the new generation is stored first and the old one deleted
// after, so a failure mid-way leaves the previous generation intact and
// queryable. Concurrent ingestion of the same path is serialized with a
// per-path lock.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/corpusd/internal/chunker"
	"github.com/fyrsmithlabs/corpusd/internal/embeddings"
	"github.com/fyrsmithlabs/corpusd/internal/vectorstore"
)

var ingestTracer = otel.Tracer("corpusd.ingest")

var (
	// ErrInvalidDocument indicates a document that fails validation before
	// any store mutation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrIngestFailed indicates a failure during chunking, embedding, or
	// storage. The previously active generation, if any, is untouched.
	ErrIngestFailed = errors.New("ingestion failed")
)

// Status reports the outcome of one document's ingestion.
type Status string

const (
	// StatusStored means the document's chunks are stored and active.
	StatusStored Status = "stored"
	// StatusSkipped means the document had no indexable content.
	StatusSkipped Status = "skipped"
	// StatusFailed means ingestion aborted; no partial generation is active.
	StatusFailed Status = "failed"
)

// Document is the pipeline input: plain text plus a metadata map. Binary
// format parsing happens upstream.
type Document struct {
	// SourcePath is the stable identifier for the document.
	SourcePath string
	// Text is the extracted plain text.
	Text string
	// Metadata is inherited by every chunk (title, category, tags...).
	Metadata map[string]string
}

// Result reports the outcome of ingesting one document.
type Result struct {
	Status      Status `json:"status"`
	SourcePath  string `json:"source_path"`
	DocumentID  string `json:"document_id,omitempty"`
	Generation  string `json:"generation,omitempty"`
	ChunkCount  int    `json:"chunk_count"`
	VectorCount int    `json:"vector_count"`
	// StaleRemoved counts vectors of prior generations deleted after the
	// new generation was committed.
	StaleRemoved int `json:"stale_removed"`
	// Error carries the failure reason for StatusFailed entries in a batch.
	Error string `json:"error,omitempty"`
}

// Pipeline ingests documents into the vector-metadata store.
type Pipeline struct {
	chunker  chunker.Chunker
	embedder embeddings.Provider
	store    vectorstore.Store
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(ch chunker.Chunker, embedder embeddings.Provider, store vectorstore.Store, logger *zap.Logger) (*Pipeline, error) {
	if ch == nil || embedder == nil || store == nil {
		return nil, fmt.Errorf("%w: chunker, embedder, and store are required", ErrInvalidDocument)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		chunker:  ch,
		embedder: embedder,
		store:    store,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// pathLock returns the mutex serializing ingestion for one source path.
func (p *Pipeline) pathLock(path string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.locks[path]; ok {
		return l
	}
	l := &sync.Mutex{}
	p.locks[path] = l
	return l
}

// Ingest runs one document through the pipeline.
//
// Empty or whitespace-only text is a no-op reported as StatusSkipped. Any
// stage failure aborts the document and leaves the prior generation, if one
// exists, fully queryable.
func (p *Pipeline) Ingest(ctx context.Context, doc Document) (Result, error) {
	ctx, span := ingestTracer.Start(ctx, "Pipeline.Ingest")
	defer span.End()
	span.SetAttributes(attribute.String("source_path", doc.SourcePath))

	if strings.TrimSpace(doc.SourcePath) == "" {
		err := fmt.Errorf("%w: source path required", ErrInvalidDocument)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{Status: StatusFailed, Error: err.Error()}, err
	}

	lock := p.pathLock(doc.SourcePath)
	lock.Lock()
	defer lock.Unlock()

	result := Result{SourcePath: doc.SourcePath}

	documentID := documentIDFor(doc.SourcePath)
	generation := uuid.NewString()
	result.DocumentID = documentID
	result.Generation = generation

	chunks, err := p.chunker.Chunk(documentID, doc.Text, doc.Metadata)
	if err != nil {
		return p.fail(span, result, fmt.Errorf("%w: chunking: %v", ErrIngestFailed, err))
	}
	if len(chunks) == 0 {
		p.logger.Info("document has no indexable content, skipping",
			zap.String("source_path", doc.SourcePath))
		result.Status = StatusSkipped
		span.SetStatus(codes.Ok, "skipped")
		return result, nil
	}
	result.ChunkCount = len(chunks)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return p.fail(span, result, fmt.Errorf("%w: embedding: %v", ErrIngestFailed, err))
	}
	if len(vectors) != len(chunks) {
		return p.fail(span, result, fmt.Errorf("%w: embedded %d of %d chunks", ErrIngestFailed, len(vectors), len(chunks)))
	}

	// Collect the prior generation's vector IDs before committing the new
	// one, so only pre-existing vectors are cleaned up afterwards.
	stale, err := p.store.SearchByFilter(ctx, map[string]string{"source_path": doc.SourcePath}, 0)
	if err != nil {
		return p.fail(span, result, fmt.Errorf("%w: listing prior generation: %v", ErrIngestFailed, err))
	}

	now := time.Now().UTC()
	records := make([]vectorstore.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vectorstore.Record{
			Vector: vectors[i],
			Metadata: vectorstore.Metadata{
				ChunkID:     c.ChunkID,
				DocumentID:  documentID,
				SourcePath:  doc.SourcePath,
				Generation:  generation,
				ChunkIndex:  c.Index,
				StartOffset: c.StartOffset,
				EndOffset:   c.EndOffset,
				ChunkMethod: string(c.Method),
				Text:        c.Text,
				IngestedAt:  now,
				Extra:       doc.Metadata,
			},
		}
	}

	ids, err := p.store.Add(ctx, records)
	if err != nil {
		return p.fail(span, result, fmt.Errorf("%w: storing: %v", ErrIngestFailed, err))
	}
	result.VectorCount = len(ids)

	// The new generation is committed; now the old one can go. A failure
	// here leaves both generations briefly queryable, which consistency
	// checks and the next re-ingestion clean up.
	if len(stale) > 0 {
		staleIDs := make([]string, len(stale))
		for i, h := range stale {
			staleIDs[i] = h.VectorID
		}
		if err := p.store.DeleteByID(ctx, staleIDs); err != nil {
			p.logger.Warn("failed to delete superseded generation",
				zap.String("source_path", doc.SourcePath),
				zap.Int("stale_vectors", len(staleIDs)),
				zap.Error(err))
		} else {
			result.StaleRemoved = len(staleIDs)
		}
	}

	p.logger.Info("document ingested",
		zap.String("source_path", doc.SourcePath),
		zap.String("generation", generation),
		zap.Int("chunks", result.ChunkCount),
		zap.Int("stale_removed", result.StaleRemoved))

	result.Status = StatusStored
	span.SetAttributes(
		attribute.Int("chunks", result.ChunkCount),
		attribute.Int("stale_removed", result.StaleRemoved),
	)
	span.SetStatus(codes.Ok, "stored")
	return result, nil
}

// IngestAll ingests documents independently. One failing document never
// aborts the batch; its Result carries StatusFailed and the reason.
func (p *Pipeline) IngestAll(ctx context.Context, docs []Document) []Result {
	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		res, err := p.Ingest(ctx, doc)
		if err != nil {
			res.Status = StatusFailed
			res.Error = err.Error()
			p.logger.Error("document ingestion failed",
				zap.String("source_path", doc.SourcePath),
				zap.Error(err))
		}
		results = append(results, res)
	}
	return results
}

// Delete removes the current generation for a source path and returns the
// number of vectors removed. Deleting an unknown path removes zero.
func (p *Pipeline) Delete(ctx context.Context, sourcePath string) (int, error) {
	if strings.TrimSpace(sourcePath) == "" {
		return 0, fmt.Errorf("%w: source path required", ErrInvalidDocument)
	}
	lock := p.pathLock(sourcePath)
	lock.Lock()
	defer lock.Unlock()
	return p.store.DeleteBySourcePath(ctx, sourcePath)
}

func (p *Pipeline) fail(span trace.Span, result Result, err error) (Result, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	result.Status = StatusFailed
	result.Error = err.Error()
	return result, err
}

// documentIDFor derives a stable document ID from a source path, so every
// generation of one path shares the same document identity.
func documentIDFor(sourcePath string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("corpusd:"+sourcePath)).String()
}
