// Package vectorstore provides vector storage implementations.
package vectorstore

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("corpusd.vectorstore.chromem")

// metadataSnapshotFile is the gob file holding the metadata half of the store.
const metadataSnapshotFile = "metadata.gob"

// ChromemConfig holds configuration for the embedded chromem-go backend.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.config/corpusd/index"
	Path string

	// Compress enables gzip compression for stored vector data.
	Compress bool

	// Collection is the chromem collection name.
	// Default: "corpusd_chunks"
	Collection string

	// Dimension is the expected embedding dimension. Must match the
	// embedder's output; a persisted store with a different dimension fails
	// to open with ErrDimensionMismatch.
	// Default: 384
	Dimension int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.config/corpusd/index"
	}
	if c.Collection == "" {
		c.Collection = "corpusd_chunks"
	}
	if c.Dimension == 0 {
		c.Dimension = 384
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// chromemSnapshot is the persisted form of the metadata half.
type chromemSnapshot struct {
	Dimension int
	NextSeq   uint64
	Records   map[string]Metadata
}

// ChromemStore implements Store with chromem-go as the vector index and a
// gob-persisted table as the metadata half.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies: pure Go, no external service, exhaustive cosine search.
// The index and the metadata table are the two structures the linkage
// invariant binds; writes to both are serialized behind one lock while reads
// run concurrently.
type ChromemStore struct {
	db     *chromem.DB
	coll   *chromem.Collection
	config ChromemConfig
	logger *zap.Logger
	path   string

	mu      sync.RWMutex
	records map[string]Metadata
	nextSeq uint64
}

// NewChromemStore opens (or creates) an embedded store at the configured path.
//
// A persisted store carries its dimension in the metadata snapshot; opening it
// with a different configured dimension returns ErrDimensionMismatch rather
// than silently mixing embedding spaces. An index/metadata count divergence at
// load time is reported in the log, not dropped.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	expandedPath, err := expandChromemPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}

	if err := os.MkdirAll(expandedPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
	}

	db, err := chromem.NewPersistentDB(expandedPath, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	coll, err := db.GetOrCreateCollection(config.Collection, nil, rejectEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", config.Collection, err)
	}

	store := &ChromemStore{
		db:      db,
		coll:    coll,
		config:  config,
		logger:  logger,
		path:    expandedPath,
		records: make(map[string]Metadata),
		nextSeq: 1,
	}

	if err := store.loadSnapshot(); err != nil {
		return nil, err
	}

	if indexed := coll.Count(); indexed != len(store.records) {
		logger.Warn("index/metadata divergence detected at load",
			zap.Int("indexed_vectors", indexed),
			zap.Int("metadata_entries", len(store.records)),
		)
	}

	logger.Info("chromem store initialized",
		zap.String("path", expandedPath),
		zap.Bool("compress", config.Compress),
		zap.Int("dimension", config.Dimension),
		zap.String("collection", config.Collection),
		zap.Int("vectors", len(store.records)),
	)

	return store, nil
}

// rejectEmbeddingFunc is installed on the collection so chromem never falls
// back to its default OpenAI embedder. The store only accepts precomputed
// vectors, so this must never be called.
func rejectEmbeddingFunc(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("store does not embed; vectors must be precomputed")
}

// expandChromemPath expands ~ to home directory.
func expandChromemPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// loadSnapshot restores the metadata half from disk, validating dimension.
func (s *ChromemStore) loadSnapshot() error {
	snapshotPath := filepath.Join(s.path, metadataSnapshotFile)
	f, err := os.Open(snapshotPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening metadata snapshot: %w", err)
	}
	defer f.Close()

	var snap chromemSnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return fmt.Errorf("decoding metadata snapshot: %w", err)
	}

	if snap.Dimension != s.config.Dimension {
		return fmt.Errorf("%w: store persisted with dimension %d, configured %d (full reindex required)",
			ErrDimensionMismatch, snap.Dimension, s.config.Dimension)
	}

	s.records = snap.Records
	if s.records == nil {
		s.records = make(map[string]Metadata)
	}
	s.nextSeq = snap.NextSeq
	if s.nextSeq == 0 {
		s.nextSeq = 1
	}
	return nil
}

// persistSnapshot writes the metadata half to disk atomically.
// Caller must hold the write lock.
func (s *ChromemStore) persistSnapshot() error {
	snapshotPath := filepath.Join(s.path, metadataSnapshotFile)
	tmp := snapshotPath + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating metadata snapshot: %w", err)
	}

	snap := chromemSnapshot{
		Dimension: s.config.Dimension,
		NextSeq:   s.nextSeq,
		Records:   s.records,
	}
	if err := gob.NewEncoder(f).Encode(&snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encoding metadata snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing metadata snapshot: %w", err)
	}
	if err := os.Rename(tmp, snapshotPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("committing metadata snapshot: %w", err)
	}
	return nil
}

// Add inserts records. Vector IDs are generated here and never reused. The
// batch commits as a unit: any failure rolls back vectors already placed in
// the index so neither half carries a partial batch.
func (s *ChromemStore) Add(ctx context.Context, records []Record) ([]string, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Add")
	defer span.End()

	span.SetAttributes(attribute.Int("record_count", len(records)))

	if len(records) == 0 {
		return nil, ErrEmptyRecords
	}

	for i, rec := range records {
		if len(rec.Vector) != s.config.Dimension {
			return nil, fmt.Errorf("%w: record %d has dimension %d, store expects %d",
				ErrDimensionMismatch, i, len(rec.Vector), s.config.Dimension)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(records))
	added := make([]string, 0, len(records))

	rollback := func() {
		if len(added) == 0 {
			return
		}
		if err := s.coll.Delete(ctx, nil, nil, added...); err != nil {
			s.logger.Error("rollback failed, orphaned vectors left in index",
				zap.Int("count", len(added)),
				zap.Error(err),
			)
		}
	}

	now := timeNow().UTC()
	for i, rec := range records {
		id := uuid.New().String()
		ids[i] = id

		doc := chromem.Document{
			ID:        id,
			Content:   rec.Metadata.Text,
			Metadata:  map[string]string{"vector_id": id},
			Embedding: rec.Vector,
		}
		if err := s.coll.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
			rollback()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("adding vector to index: %w", err)
		}
		added = append(added, id)

		md := rec.Metadata
		md.VectorID = id
		md.Seq = s.nextSeq
		s.nextSeq++
		if md.IngestedAt.IsZero() {
			md.IngestedAt = now
		}
		s.records[id] = md
	}

	if err := s.persistSnapshot(); err != nil {
		for _, id := range added {
			delete(s.records, id)
		}
		rollback()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	recordAdd(BackendChromem, len(ids))
	span.SetAttributes(attribute.Int("records_added", len(ids)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("added records to chromem",
		zap.Int("count", len(ids)),
		zap.Int("total", len(s.records)),
	)

	return ids, nil
}

// Search performs similarity search over the index and joins each hit with
// its metadata entry. A hit whose metadata is missing is an orphaned vector;
// it is logged and skipped rather than surfaced half-formed.
func (s *ChromemStore) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Search")
	defer span.End()

	span.SetAttributes(attribute.Int("k", k))

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vector) != s.config.Dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, store expects %d",
			ErrDimensionMismatch, len(vector), s.config.Dimension)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// chromem requires nResults <= doc count.
	count := s.coll.Count()
	if count == 0 {
		return []Hit{}, nil
	}
	if k > count {
		k = count
	}

	results, err := s.coll.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying index: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		md, ok := s.records[r.ID]
		if !ok {
			recordOrphan("vector")
			s.logger.Warn("orphaned vector surfaced at read time, skipping",
				zap.String("vector_id", r.ID),
			)
			continue
		}
		hits = append(hits, Hit{
			VectorID:   r.ID,
			Similarity: r.Similarity,
			Metadata:   md,
		})
	}

	sortHits(hits)
	recordSearch(BackendChromem)

	span.SetAttributes(attribute.Int("results_count", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}

// SearchByFilter scans the metadata half for exact predicate matches. The
// scan is complete: with limit <= 0 every match is returned, independent of
// any similarity machinery, so exact counts are exact.
func (s *ChromemStore) SearchByFilter(ctx context.Context, filters map[string]string, limit int) ([]Hit, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.SearchByFilter")
	defer span.End()

	span.SetAttributes(
		attribute.Int("filter_count", len(filters)),
		attribute.Int("limit", limit),
	)

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]Hit, 0)
	for id, md := range s.records {
		if !md.Matches(filters) {
			continue
		}
		hits = append(hits, Hit{VectorID: id, Metadata: md})
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Metadata.Seq < hits[j].Metadata.Seq
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	span.SetAttributes(attribute.Int("results_count", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}

// DeleteBySourcePath removes every pair owned by the source path.
func (s *ChromemStore) DeleteBySourcePath(ctx context.Context, path string) (int, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteBySourcePath")
	defer span.End()

	span.SetAttributes(attribute.String("source_path", path))

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0)
	for id, md := range s.records {
		if md.SourcePath == path {
			ids = append(ids, id)
		}
	}

	if err := s.deleteLocked(ctx, ids); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetAttributes(attribute.Int("deleted", len(ids)))
	span.SetStatus(codes.Ok, "success")
	return len(ids), nil
}

// DeleteByID removes the given pairs. Unknown IDs are ignored.
func (s *ChromemStore) DeleteByID(ctx context.Context, ids []string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteByID")
	defer span.End()

	span.SetAttributes(attribute.Int("id_count", len(ids)))

	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deleteLocked(ctx, ids); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// deleteLocked removes pairs from both halves. Caller must hold the write
// lock. Metadata entries are removed only after the index delete succeeds so
// a failure cannot strand index-only orphans.
func (s *ChromemStore) deleteLocked(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if err := s.coll.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("deleting vectors from index: %w", err)
	}
	for _, id := range ids {
		delete(s.records, id)
	}
	if err := s.persistSnapshot(); err != nil {
		return err
	}

	recordDelete(BackendChromem, len(ids))
	s.logger.Debug("deleted records from chromem",
		zap.Int("count", len(ids)),
		zap.Int("total", len(s.records)),
	)
	return nil
}

// GetMetadata returns the metadata entry for a vector ID.
func (s *ChromemStore) GetMetadata(ctx context.Context, id string) (Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	md, ok := s.records[id]
	if !ok {
		return Metadata{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return md, nil
}

// Stats returns store totals. TotalVectors counts metadata entries, which
// the linkage invariant keeps equal to the index count.
func (s *ChromemStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		TotalVectors: len(s.records),
		Dimension:    s.config.Dimension,
		Backend:      BackendChromem,
	}, nil
}

// CheckConsistency diffs the index against the metadata table both ways.
// With repair set, orphaned vectors are deleted from the index and orphaned
// metadata entries are dropped from the table.
func (s *ChromemStore) CheckConsistency(ctx context.Context, repair bool) (ConsistencyReport, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.CheckConsistency")
	defer span.End()

	span.SetAttributes(attribute.Bool("repair", repair))

	s.mu.Lock()
	defer s.mu.Unlock()

	report := ConsistencyReport{CheckedAt: timeNow().UTC()}

	indexIDs, err := s.indexIDsLocked(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}

	for id := range indexIDs {
		if _, ok := s.records[id]; !ok {
			report.OrphanedVectors = append(report.OrphanedVectors, id)
		}
	}
	for id := range s.records {
		if !indexIDs[id] {
			report.OrphanedMetadata = append(report.OrphanedMetadata, id)
		}
	}
	report.Total = len(indexIDs)
	if len(s.records) > report.Total {
		report.Total = len(s.records)
	}

	for range report.OrphanedVectors {
		recordOrphan("vector")
	}
	for range report.OrphanedMetadata {
		recordOrphan("metadata")
	}

	if repair && !report.Consistent() {
		if len(report.OrphanedVectors) > 0 {
			if err := s.coll.Delete(ctx, nil, nil, report.OrphanedVectors...); err != nil {
				span.RecordError(err)
				return report, fmt.Errorf("repairing orphaned vectors: %w", err)
			}
			report.Repaired += len(report.OrphanedVectors)
		}
		for _, id := range report.OrphanedMetadata {
			delete(s.records, id)
		}
		report.Repaired += len(report.OrphanedMetadata)
		if err := s.persistSnapshot(); err != nil {
			span.RecordError(err)
			return report, err
		}
		recordRepair(report.Repaired)
		s.logger.Info("repaired store consistency",
			zap.Int("orphaned_vectors", len(report.OrphanedVectors)),
			zap.Int("orphaned_metadata", len(report.OrphanedMetadata)),
		)
	}

	span.SetAttributes(
		attribute.Int("orphaned_vectors", len(report.OrphanedVectors)),
		attribute.Int("orphaned_metadata", len(report.OrphanedMetadata)),
	)
	span.SetStatus(codes.Ok, "success")
	return report, nil
}

// indexIDsLocked enumerates every vector ID in the index. chromem's search is
// exhaustive, so a full-count probe query visits all documents.
func (s *ChromemStore) indexIDsLocked(ctx context.Context) (map[string]bool, error) {
	count := s.coll.Count()
	ids := make(map[string]bool, count)
	if count == 0 {
		return ids, nil
	}

	probe := make([]float32, s.config.Dimension)
	probe[0] = 1
	results, err := s.coll.QueryEmbedding(ctx, probe, count, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("enumerating index: %w", err)
	}
	for _, r := range results {
		ids[r.ID] = true
	}
	return ids, nil
}

// Capabilities reports backend behavior.
func (s *ChromemStore) Capabilities() Capabilities {
	return Capabilities{UnboundedFilter: true}
}

// Close flushes the metadata snapshot. chromem persists vectors on write, so
// no index flush is needed.
func (s *ChromemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persistSnapshot(); err != nil {
		return err
	}
	s.logger.Info("chromem store closed")
	return nil
}

// sortHits orders hits by similarity descending with insertion-order tie
// breaking, keeping results stable across runs.
func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Metadata.Seq < hits[j].Metadata.Seq
	})
}

// Ensure ChromemStore implements Store interface.
var _ Store = (*ChromemStore)(nil)
