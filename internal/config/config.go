// Package config provides configuration loading for corpusd.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrInvalidConfig indicates invalid configuration values.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full corpusd configuration tree.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Store      StoreConfig      `koanf:"store"`
	Chunker    ChunkerConfig    `koanf:"chunker"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	LLM        LLMConfig        `koanf:"llm"`
	Query      QueryConfig      `koanf:"query"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is json or console.
	Format string `koanf:"format"`
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	// Backend is "chromem" or "qdrant".
	Backend string        `koanf:"backend"`
	Chromem ChromemConfig `koanf:"chromem"`
	Qdrant  QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig configures the embedded backend.
type ChromemConfig struct {
	Path       string `koanf:"path"`
	Collection string `koanf:"collection"`
	Compress   bool   `koanf:"compress"`
}

// QdrantConfig configures the external backend.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Collection string `koanf:"collection"`
	UseTLS     bool   `koanf:"use_tls"`
}

// ChunkerConfig configures document chunking.
type ChunkerConfig struct {
	// Method is "fixed" or "semantic".
	Method    string `koanf:"method"`
	ChunkSize int    `koanf:"chunk_size"`
	Overlap   int    `koanf:"overlap"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "http" or "hash".
	Provider          string  `koanf:"provider"`
	BaseURL           string  `koanf:"base_url"`
	Model             string  `koanf:"model"`
	APIKey            string  `koanf:"api_key"`
	Dimension         int     `koanf:"dimension"`
	BatchSize         int     `koanf:"batch_size"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	MaxRetries        int     `koanf:"max_retries"`
}

// LLMConfig configures the completion client used for synthesis,
// classification, and enhancement.
type LLMConfig struct {
	// Enabled turns completion features on. When false the engine degrades
	// to retrieval-only answers.
	Enabled           bool    `koanf:"enabled"`
	BaseURL           string  `koanf:"base_url"`
	Model             string  `koanf:"model"`
	APIKey            string  `koanf:"api_key"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	MaxRetries        int     `koanf:"max_retries"`
}

// QueryConfig configures the query engine.
type QueryConfig struct {
	MaxResults      int     `koanf:"max_results"`
	SimilarityFloor float64 `koanf:"similarity_floor"`
	// Classifier is "rules" (default) or "llm".
	Classifier string `koanf:"classifier"`
	// EnhancerEnabled turns LLM query rewriting on.
	EnhancerEnabled bool `koanf:"enhancer_enabled"`
	MaxVariants     int  `koanf:"max_variants"`
	// RerankEnabled turns lexical re-ranking on.
	RerankEnabled bool `koanf:"rerank_enabled"`
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "corpusd", "config.yaml"), nil
}

// applyDefaults fills unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "chromem"
	}
	if cfg.Store.Chromem.Collection == "" {
		cfg.Store.Chromem.Collection = "corpusd_chunks"
	}
	if cfg.Store.Qdrant.Port == 0 {
		cfg.Store.Qdrant.Port = 6334
	}
	if cfg.Store.Qdrant.Collection == "" {
		cfg.Store.Qdrant.Collection = "corpusd_chunks"
	}
	if cfg.Chunker.Method == "" {
		cfg.Chunker.Method = "fixed"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = 200
	}
	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "http"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.Query.MaxResults == 0 {
		cfg.Query.MaxResults = 5
	}
	if cfg.Query.SimilarityFloor == 0 {
		cfg.Query.SimilarityFloor = 0.25
	}
	if cfg.Query.Classifier == "" {
		cfg.Query.Classifier = "rules"
	}
	if cfg.Query.MaxVariants == 0 {
		cfg.Query.MaxVariants = 3
	}
}

// Validate checks cross-field constraints. Per-package configs validate the
// rest when their components are constructed.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Logging.Format)
	}
	switch c.Store.Backend {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.Store.Backend)
	}
	switch c.Query.Classifier {
	case "rules", "llm":
	default:
		return fmt.Errorf("%w: unknown classifier %q", ErrInvalidConfig, c.Query.Classifier)
	}
	if c.Query.Classifier == "llm" && !c.LLM.Enabled {
		return fmt.Errorf("%w: llm classifier requires llm.enabled", ErrInvalidConfig)
	}
	if c.Query.EnhancerEnabled && !c.LLM.Enabled {
		return fmt.Errorf("%w: query enhancer requires llm.enabled", ErrInvalidConfig)
	}
	return nil
}
