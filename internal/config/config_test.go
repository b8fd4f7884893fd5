package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "chromem", cfg.Store.Backend)
	assert.Equal(t, "corpusd_chunks", cfg.Store.Chromem.Collection)
	assert.Equal(t, "fixed", cfg.Chunker.Method)
	assert.Equal(t, 1000, cfg.Chunker.ChunkSize)
	assert.Equal(t, 5, cfg.Query.MaxResults)
	assert.InDelta(t, 0.25, cfg.Query.SimilarityFloor, 1e-9)
	assert.Equal(t, "rules", cfg.Query.Classifier)
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9100
store:
  backend: qdrant
  qdrant:
    host: qdrant.internal
    collection: my_chunks
chunker:
  method: semantic
  chunk_size: 500
query:
  max_results: 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "qdrant", cfg.Store.Backend)
	assert.Equal(t, "qdrant.internal", cfg.Store.Qdrant.Host)
	assert.Equal(t, "my_chunks", cfg.Store.Qdrant.Collection)
	assert.Equal(t, 6334, cfg.Store.Qdrant.Port) // default survives partial override
	assert.Equal(t, "semantic", cfg.Chunker.Method)
	assert.Equal(t, 500, cfg.Chunker.ChunkSize)
	assert.Equal(t, 10, cfg.Query.MaxResults)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9100\n")
	t.Setenv("CORPUSD_SERVER_PORT", "9200")
	t.Setenv("CORPUSD_STORE_CHROMEM_PATH", "/var/lib/corpusd")
	t.Setenv("CORPUSD_EMBEDDINGS_BASE_URL", "http://embed.internal:8081")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "/var/lib/corpusd", cfg.Store.Chromem.Path)
	assert.Equal(t, "http://embed.internal:8081", cfg.Embeddings.BaseURL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad log level", "logging:\n  level: loud\n"},
		{"bad log format", "logging:\n  format: xml\n"},
		{"bad backend", "store:\n  backend: pinecone\n"},
		{"bad classifier", "query:\n  classifier: oracle\n"},
		{"llm classifier without llm", "query:\n  classifier: llm\n"},
		{"enhancer without llm", "query:\n  enhancer_enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [not a map"))
	assert.Error(t, err)
}

func TestEnvTransform(t *testing.T) {
	assert.Equal(t, "server.port", envTransform("CORPUSD_SERVER_PORT"))
	assert.Equal(t, "embeddings.base_url", envTransform("CORPUSD_EMBEDDINGS_BASE_URL"))
	assert.Equal(t, "store.chromem.path", envTransform("CORPUSD_STORE_CHROMEM_PATH"))
	assert.Equal(t, "store.qdrant.use_tls", envTransform("CORPUSD_STORE_QDRANT_USE_TLS"))
	assert.Equal(t, "store.backend", envTransform("CORPUSD_STORE_BACKEND"))
}
