package embeddings

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewProviderSelection(t *testing.T) {
	p, err := NewProvider(Config{Provider: "hash", Dimension: 8}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, (*HashProvider)(nil), p)

	p, err = NewProvider(Config{BaseURL: "http://localhost:8081"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, (*HTTPProvider)(nil), p)

	_, err = NewProvider(Config{Provider: "onnx"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDetectDimensionFromModel(t *testing.T) {
	assert.Equal(t, 384, detectDimensionFromModel("BAAI/bge-small-en-v1.5"))
	assert.Equal(t, 768, detectDimensionFromModel("BAAI/bge-base-en-v1.5"))
	assert.Equal(t, 1024, detectDimensionFromModel("BAAI/bge-large-en-v1.5"))
	assert.Equal(t, 384, detectDimensionFromModel("unknown-model"))
}

func TestHashProvider_Deterministic(t *testing.T) {
	p, err := NewHashProvider(16)
	require.NoError(t, err)
	ctx := context.Background()

	a, err := p.EmbedQuery(ctx, "database replication lag")
	require.NoError(t, err)
	b, err := p.EmbedQuery(ctx, "database replication lag")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

func TestHashProvider_UnitNorm(t *testing.T) {
	p, err := NewHashProvider(32)
	require.NoError(t, err)

	vec, err := p.EmbedQuery(context.Background(), "some text to embed here")
	require.NoError(t, err)

	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestHashProvider_SimilarTextsCloser(t *testing.T) {
	p, err := NewHashProvider(64)
	require.NoError(t, err)
	ctx := context.Background()

	base, err := p.EmbedQuery(ctx, "postgres replication lag metrics")
	require.NoError(t, err)
	near, err := p.EmbedQuery(ctx, "postgres replication lag alerts")
	require.NoError(t, err)
	far, err := p.EmbedQuery(ctx, "banana bread recipe ideas")
	require.NoError(t, err)

	dot := func(a, b []float32) float64 {
		var s float64
		for i := range a {
			s += float64(a[i]) * float64(b[i])
		}
		return s
	}
	assert.Greater(t, dot(base, near), dot(base, far))
}

func TestHashProvider_SharedTokensNeverCancel(t *testing.T) {
	p, err := NewHashProvider(64)
	require.NoError(t, err)
	ctx := context.Background()

	doc, err := p.EmbedQuery(ctx, "Streaming replication lag grows when the standby cannot keep up with WAL.")
	require.NoError(t, err)
	query, err := p.EmbedQuery(ctx, "why does replication lag grow")
	require.NoError(t, err)
	other, err := p.EmbedQuery(ctx, "Banana bread needs ripe bananas, butter, and a moderate oven.")
	require.NoError(t, err)

	dot := func(a, b []float32) float64 {
		var s float64
		for i := range a {
			s += float64(a[i]) * float64(b[i])
		}
		return s
	}
	// Shared terms must hold the pair clearly above any retrieval floor;
	// collisions with unshared tokens are not allowed to cancel them.
	assert.Greater(t, dot(query, doc), 0.2)
	assert.Greater(t, dot(query, doc), dot(query, other))
}

func TestHashProvider_EmptyInputs(t *testing.T) {
	p, err := NewHashProvider(8)
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

// fakeEmbedServer returns fixed-dimension vectors and counts requests.
func fakeEmbedServer(t *testing.T, dim int, failures int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		inputs := req.Inputs.([]interface{})

		vectors := make([][]float32, len(inputs))
		for i := range vectors {
			vectors[i] = make([]float32, dim)
			vectors[i][0] = 1
		}
		require.NoError(t, json.NewEncoder(w).Encode(vectors))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestHTTPProvider(t *testing.T, baseURL string, dim int) *HTTPProvider {
	t.Helper()
	p, err := NewHTTPProvider(Config{
		BaseURL:           baseURL,
		Dimension:         dim,
		BatchSize:         2,
		RequestsPerSecond: 1000,
		MaxRetries:        2,
	}, zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestHTTPProvider_EmbedDocumentsBatches(t *testing.T) {
	srv, calls := fakeEmbedServer(t, 4, 0)
	p := newTestHTTPProvider(t, srv.URL, 4)

	vectors, err := p.EmbedDocuments(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Len(t, vectors, 5)
	// Batch size 2 over five texts means three requests.
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPProvider_RetriesTransientFailures(t *testing.T) {
	srv, calls := fakeEmbedServer(t, 4, 2)
	p := newTestHTTPProvider(t, srv.URL, 4)

	vec, err := p.EmbedQuery(context.Background(), "query")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPProvider_GivesUpAfterMaxRetries(t *testing.T) {
	srv, _ := fakeEmbedServer(t, 4, 100)
	p := newTestHTTPProvider(t, srv.URL, 4)

	_, err := p.EmbedQuery(context.Background(), "query")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestHTTPProvider_NonRetryableStatusFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad input", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	p := newTestHTTPProvider(t, srv.URL, 4)
	_, err := p.EmbedQuery(context.Background(), "query")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPProvider_RejectsWrongDimension(t *testing.T) {
	srv, _ := fakeEmbedServer(t, 8, 0)
	p := newTestHTTPProvider(t, srv.URL, 4)

	_, err := p.EmbedQuery(context.Background(), "query")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "dimension")
}
