// Package embeddings provides embedding generation via multiple providers.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid embeddings configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider generates embedding vectors for text.
//
// All vectors returned by one provider have the same dimension, reported by
// Dimension. Stores are opened with that dimension so one value governs the
// whole engine.
type Provider interface {
	// EmbedDocuments generates embeddings for a batch of chunk texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// Config holds configuration for creating an embedding provider.
type Config struct {
	// Provider is the provider type: "http" (default) or "hash".
	Provider string

	// BaseURL is the embedding server URL for the HTTP provider.
	// Default: http://localhost:8081
	BaseURL string

	// Model is the embedding model name.
	// Default: BAAI/bge-small-en-v1.5
	Model string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Dimension is the vector dimension. Zero derives it from the model name.
	Dimension int

	// BatchSize caps how many texts go in one HTTP request.
	// Default: 32
	BatchSize int

	// RequestsPerSecond throttles outbound requests.
	// Default: 10
	RequestsPerSecond float64

	// MaxRetries bounds retry attempts for transient failures.
	// Default: 3
	MaxRetries int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "http"
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8081"
	}
	if c.Model == "" {
		c.Model = "BAAI/bge-small-en-v1.5"
	}
	if c.Dimension == 0 {
		c.Dimension = detectDimensionFromModel(c.Model)
	}
	if c.BatchSize == 0 {
		c.BatchSize = 32
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 10
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Provider != "hash" && c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return nil
}

// detectDimensionFromModel returns the embedding dimension for a model name.
// Falls back to 384 if the model is unknown.
func detectDimensionFromModel(model string) int {
	switch {
	case contains(model, "base"):
		return 768
	case contains(model, "large"):
		return 1024
	case contains(model, "small"), contains(model, "mini"):
		return 384
	default:
		return 384
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg Config, logger *zap.Logger) (Provider, error) {
	cfg.ApplyDefaults()
	switch cfg.Provider {
	case "http":
		return NewHTTPProvider(cfg, logger)
	case "hash":
		return NewHashProvider(cfg.Dimension)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// Ensure implementations satisfy Provider.
var (
	_ Provider = (*HTTPProvider)(nil)
	_ Provider = (*HashProvider)(nil)
)
