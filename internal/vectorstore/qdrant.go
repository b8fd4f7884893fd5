// Package vectorstore provides vector storage implementations.
package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Tracer for OpenTelemetry instrumentation.
var qdrantTracer = otel.Tracer("corpusd.vectorstore.qdrant")

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// extraKeyPrefix namespaces inherited document metadata in the Qdrant payload
// so it round-trips without colliding with the fixed record fields.
const extraKeyPrefix = "x_"

// QdrantConfig holds configuration for the Qdrant gRPC backend.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (NOT the HTTP REST port).
	// Default: 6334
	Port int

	// Collection is the collection holding the records.
	// Default: "corpusd_chunks"
	Collection string

	// Dimension is the embedding dimension. Must match the embedder's
	// output; an existing collection with a different vector size fails
	// initialization with ErrDimensionMismatch.
	Dimension int

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// MaxRetries is the maximum retry count for transient failures.
	// Default: 3
	MaxRetries int

	// RetryBackoff is the initial backoff duration, doubled per retry.
	// Default: 1 second
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "corpusd_chunks"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// ValidateCollectionName validates a collection name against security rules.
// Pattern: ^[a-z0-9_]{1,64}$
// Rejects: uppercase, special chars, path traversal, spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// IsTransientError checks if an error is transient (should retry).
// Returns true for network timeouts, temporary unavailability.
// Returns false for invalid argument, not found, permission denied.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	st, ok := status.FromError(err)
	if !ok {
		return false
	}

	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantStore implements Store against an external Qdrant server over gRPC.
//
// Each record is one Qdrant point: the vector and the full metadata payload
// are upserted together, so the two halves of the linkage invariant live in a
// single server-side record and cannot diverge. Filtered search uses exact
// server-side predicates and a scroll for unbounded listing, which is what
// makes this backend suitable for aggregation queries at any scale.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger
	seq    atomic.Uint64
}

// NewQdrantStore connects to Qdrant, verifies health, and ensures the
// configured collection exists with the configured vector dimension.
func NewQdrantStore(config QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if !config.UseTLS {
		logger.Warn("qdrant gRPC using plaintext, insecure for production")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &QdrantStore{
		client: client,
		config: config,
		logger: logger,
	}
	store.seq.Store(uint64(timeNow().UnixNano()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	if err := store.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("qdrant store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("collection", config.Collection),
		zap.Int("dimension", config.Dimension),
	)

	return store, nil
}

// ensureCollection creates the collection if missing and rejects an existing
// one whose vector size does not match the configured dimension.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	info, err := s.client.GetCollectionInfo(ctx, s.config.Collection)
	if err != nil {
		st, ok := status.FromError(err)
		if !ok || st.Code() != grpccodes.NotFound {
			return fmt.Errorf("checking collection %s: %w", s.config.Collection, err)
		}
		if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.config.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.config.Dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("creating collection %s: %w", s.config.Collection, err)
		}
		return nil
	}

	size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if size != 0 && size != uint64(s.config.Dimension) {
		return fmt.Errorf("%w: collection %s has vector size %d, configured %d (full reindex required)",
			ErrDimensionMismatch, s.config.Collection, size, s.config.Dimension)
	}
	return nil
}

// retryOperation retries an operation with exponential backoff for transient
// gRPC failures.
func (s *QdrantStore) retryOperation(ctx context.Context, operationName string, operation func() error) error {
	backoff := s.config.RetryBackoff

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", operationName, err)
		}

		if attempt == s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", operationName, s.config.MaxRetries, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", operationName, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}

// Add inserts records as Qdrant points. Vector and payload land in one upsert
// per batch, keeping each record's halves atomic on the server.
func (s *QdrantStore) Add(ctx context.Context, records []Record) ([]string, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Add")
	defer span.End()

	span.SetAttributes(
		attribute.Int("record_count", len(records)),
		attribute.String("collection", s.config.Collection),
	)

	if len(records) == 0 {
		return nil, ErrEmptyRecords
	}

	now := timeNow().UTC()
	points := make([]*qdrant.PointStruct, len(records))
	ids := make([]string, len(records))

	for i, rec := range records {
		if len(rec.Vector) != s.config.Dimension {
			return nil, fmt.Errorf("%w: record %d has dimension %d, store expects %d",
				ErrDimensionMismatch, i, len(rec.Vector), s.config.Dimension)
		}

		id := uuid.New().String()
		ids[i] = id

		md := rec.Metadata
		md.VectorID = id
		md.Seq = s.seq.Add(1)
		if md.IngestedAt.IsZero() {
			md.IngestedAt = now
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(id),
			Vectors: qdrant.NewVectors(rec.Vector...),
			Payload: metadataToPayload(md),
		}
	}

	err := s.retryOperation(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.config.Collection,
			Points:         points,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("upserting points to collection %s: %w", s.config.Collection, err)
	}

	recordAdd(BackendQdrant, len(ids))
	span.SetAttributes(attribute.Int("points_added", len(ids)))
	span.SetStatus(codes.Ok, "success")
	return ids, nil
}

// Search performs top-k similarity search.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int("k", k),
	)

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vector) != s.config.Dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, store expects %d",
			ErrDimensionMismatch, len(vector), s.config.Dimension)
	}

	var results []*qdrant.ScoredPoint
	err := s.retryOperation(ctx, "search", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.config.Collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching collection %s: %w", s.config.Collection, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, point := range results {
		md := payloadToMetadata(point.GetPayload())
		hits = append(hits, Hit{
			VectorID:   md.VectorID,
			Similarity: point.GetScore(),
			Metadata:   md,
		})
	}

	sortHits(hits)
	recordSearch(BackendQdrant)

	span.SetAttributes(attribute.Int("results_count", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}

// scrollPageSize bounds one scroll response; large match sets page through
// the cursor instead of risking the gRPC message size limit.
const scrollPageSize = 256

// scrollPager fetches one page of points starting at the cursor offset and
// returns the next cursor, nil when the match set is exhausted.
type scrollPager func(offset *qdrant.PointId, limit uint32) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error)

// scrollAll pages through a match set until want points are collected or the
// cursor runs out.
func scrollAll(pager scrollPager, want uint64, pageSize uint32) ([]*qdrant.RetrievedPoint, error) {
	var points []*qdrant.RetrievedPoint
	var offset *qdrant.PointId
	for uint64(len(points)) < want {
		limit := pageSize
		if remaining := want - uint64(len(points)); remaining < uint64(limit) {
			limit = uint32(remaining)
		}
		batch, next, err := pager(offset, limit)
		if err != nil {
			return nil, err
		}
		points = append(points, batch...)
		if next == nil || len(batch) == 0 {
			break
		}
		offset = next
	}
	return points, nil
}

// SearchByFilter returns every record matching the predicates via an exact
// count plus a paged scroll; a limit <= 0 returns the complete match set.
func (s *QdrantStore) SearchByFilter(ctx context.Context, filters map[string]string, limit int) ([]Hit, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.SearchByFilter")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int("filter_count", len(filters)),
		attribute.Int("limit", limit),
	)

	filter := buildFilter(filters)

	var total uint64
	err := s.retryOperation(ctx, "count", func() error {
		n, err := s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: s.config.Collection,
			Filter:         filter,
			Exact:          qdrant.PtrOf(true),
		})
		if err != nil {
			return err
		}
		total = n
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("counting matches in collection %s: %w", s.config.Collection, err)
	}

	if total == 0 {
		span.SetStatus(codes.Ok, "success")
		return []Hit{}, nil
	}

	want := total
	if limit > 0 && uint64(limit) < want {
		want = uint64(limit)
	}

	points, err := scrollAll(func(offset *qdrant.PointId, limit uint32) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error) {
		var batch []*qdrant.RetrievedPoint
		var next *qdrant.PointId
		err := s.retryOperation(ctx, "scroll", func() error {
			b, n, err := s.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
				CollectionName: s.config.Collection,
				Filter:         filter,
				Offset:         offset,
				Limit:          qdrant.PtrOf(limit),
				WithPayload:    qdrant.NewWithPayload(true),
			})
			if err != nil {
				return err
			}
			batch, next = b, n
			return nil
		})
		return batch, next, err
	}, want, scrollPageSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("scrolling collection %s: %w", s.config.Collection, err)
	}

	hits := make([]Hit, 0, len(points))
	for _, point := range points {
		md := payloadToMetadata(point.GetPayload())
		hits = append(hits, Hit{VectorID: md.VectorID, Metadata: md})
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Metadata.Seq < hits[j].Metadata.Seq
	})

	span.SetAttributes(attribute.Int("results_count", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}

// DeleteBySourcePath removes every point owned by the source path.
func (s *QdrantStore) DeleteBySourcePath(ctx context.Context, path string) (int, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.DeleteBySourcePath")
	defer span.End()

	span.SetAttributes(attribute.String("source_path", path))

	filter := buildFilter(map[string]string{"source_path": path})

	var total uint64
	err := s.retryOperation(ctx, "count", func() error {
		n, err := s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: s.config.Collection,
			Filter:         filter,
			Exact:          qdrant.PtrOf(true),
		})
		if err != nil {
			return err
		}
		total = n
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("counting matches in collection %s: %w", s.config.Collection, err)
	}

	err = s.retryOperation(ctx, "delete", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.config.Collection,
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
			},
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("deleting by source path: %w", err)
	}

	recordDelete(BackendQdrant, int(total))
	span.SetAttributes(attribute.Int("deleted", int(total)))
	span.SetStatus(codes.Ok, "success")
	return int(total), nil
}

// DeleteByID removes the given points. Unknown IDs are ignored.
func (s *QdrantStore) DeleteByID(ctx context.Context, ids []string) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.DeleteByID")
	defer span.End()

	span.SetAttributes(attribute.Int("id_count", len(ids)))

	if len(ids) == 0 {
		return nil
	}

	err := s.retryOperation(ctx, "delete", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.config.Collection,
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
					Filter: &qdrant.Filter{
						Must: []*qdrant.Condition{
							{
								ConditionOneOf: &qdrant.Condition_Field{
									Field: &qdrant.FieldCondition{
										Key: "vector_id",
										Match: &qdrant.Match{
											MatchValue: &qdrant.Match_Keywords{
												Keywords: &qdrant.RepeatedStrings{Strings: ids},
											},
										},
									},
								},
							},
						},
					},
				},
			},
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting by id: %w", err)
	}

	recordDelete(BackendQdrant, len(ids))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// GetMetadata retrieves one point's payload by vector ID.
func (s *QdrantStore) GetMetadata(ctx context.Context, id string) (Metadata, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.GetMetadata")
	defer span.End()

	span.SetAttributes(attribute.String("vector_id", id))

	var points []*qdrant.RetrievedPoint
	err := s.retryOperation(ctx, "get", func() error {
		res, err := s.client.Get(ctx, &qdrant.GetPoints{
			CollectionName: s.config.Collection,
			Ids:            []*qdrant.PointId{qdrant.NewIDUUID(id)},
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		points = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Metadata{}, fmt.Errorf("getting point %s: %w", id, err)
	}

	if len(points) == 0 {
		span.SetStatus(codes.Error, "not found")
		return Metadata{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	span.SetStatus(codes.Ok, "success")
	return payloadToMetadata(points[0].GetPayload()), nil
}

// Stats returns collection totals.
func (s *QdrantStore) Stats(ctx context.Context) (Stats, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Stats")
	defer span.End()

	var count int
	err := s.retryOperation(ctx, "collection_info", func() error {
		info, err := s.client.GetCollectionInfo(ctx, s.config.Collection)
		if err != nil {
			return err
		}
		if info.PointsCount != nil {
			count = int(*info.PointsCount)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Stats{}, fmt.Errorf("getting collection info for %s: %w", s.config.Collection, err)
	}

	span.SetStatus(codes.Ok, "success")
	return Stats{
		TotalVectors: count,
		Dimension:    s.config.Dimension,
		Backend:      BackendQdrant,
	}, nil
}

// CheckConsistency is trivially consistent for Qdrant: each point carries its
// vector and payload in one server-side record, so the halves cannot diverge.
func (s *QdrantStore) CheckConsistency(ctx context.Context, repair bool) (ConsistencyReport, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return ConsistencyReport{}, err
	}
	return ConsistencyReport{
		Total:     stats.TotalVectors,
		CheckedAt: timeNow().UTC(),
	}, nil
}

// Capabilities reports backend behavior.
func (s *QdrantStore) Capabilities() Capabilities {
	return Capabilities{UnboundedFilter: true}
}

// Close closes the Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// buildFilter converts equality predicates into a Qdrant must-filter.
// Unknown keys address inherited document metadata, which is namespaced in
// the payload.
func buildFilter(filters map[string]string) *qdrant.Filter {
	if len(filters) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(filters))
	for key, value := range filters {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: payloadKey(key),
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: value},
					},
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

// payloadKey maps a filter key to its payload field name.
func payloadKey(key string) string {
	switch key {
	case "vector_id", "chunk_id", "document_id", "source_path", "generation", "chunk_method":
		return key
	default:
		return extraKeyPrefix + key
	}
}

// metadataToPayload flattens a metadata entry into a Qdrant payload.
func metadataToPayload(md Metadata) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		"vector_id":    stringValue(md.VectorID),
		"chunk_id":     stringValue(md.ChunkID),
		"document_id":  stringValue(md.DocumentID),
		"source_path":  stringValue(md.SourcePath),
		"generation":   stringValue(md.Generation),
		"chunk_index":  intValue(int64(md.ChunkIndex)),
		"start_offset": intValue(int64(md.StartOffset)),
		"end_offset":   intValue(int64(md.EndOffset)),
		"chunk_method": stringValue(md.ChunkMethod),
		"text":         stringValue(md.Text),
		"ingested_at":  stringValue(md.IngestedAt.Format(time.RFC3339Nano)),
		"seq":          intValue(int64(md.Seq)),
	}
	for k, v := range md.Extra {
		payload[extraKeyPrefix+k] = stringValue(v)
	}
	return payload
}

// payloadToMetadata rebuilds a metadata entry from a Qdrant payload.
func payloadToMetadata(payload map[string]*qdrant.Value) Metadata {
	md := Metadata{}
	for k, v := range payload {
		switch k {
		case "vector_id":
			md.VectorID = v.GetStringValue()
		case "chunk_id":
			md.ChunkID = v.GetStringValue()
		case "document_id":
			md.DocumentID = v.GetStringValue()
		case "source_path":
			md.SourcePath = v.GetStringValue()
		case "generation":
			md.Generation = v.GetStringValue()
		case "chunk_index":
			md.ChunkIndex = int(v.GetIntegerValue())
		case "start_offset":
			md.StartOffset = int(v.GetIntegerValue())
		case "end_offset":
			md.EndOffset = int(v.GetIntegerValue())
		case "chunk_method":
			md.ChunkMethod = v.GetStringValue()
		case "text":
			md.Text = v.GetStringValue()
		case "ingested_at":
			if t, err := time.Parse(time.RFC3339Nano, v.GetStringValue()); err == nil {
				md.IngestedAt = t
			}
		case "seq":
			md.Seq = uint64(v.GetIntegerValue())
		default:
			if len(k) > len(extraKeyPrefix) && k[:len(extraKeyPrefix)] == extraKeyPrefix {
				if md.Extra == nil {
					md.Extra = make(map[string]string)
				}
				md.Extra[k[len(extraKeyPrefix):]] = v.GetStringValue()
			}
		}
	}
	return md
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func intValue(i int64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: i}}
}

// Ensure QdrantStore implements Store interface.
var _ Store = (*QdrantStore)(nil)
