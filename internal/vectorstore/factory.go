// Package vectorstore provides vector storage implementations.
package vectorstore

import (
	"fmt"

	"go.uber.org/zap"
)

// Config selects and configures a store backend.
type Config struct {
	// Backend is "chromem" (default, embedded) or "qdrant" (external server).
	Backend string

	// Chromem configures the embedded backend.
	Chromem ChromemConfig

	// Qdrant configures the external backend.
	Qdrant QdrantConfig
}

// NewStore creates a Store based on the configuration.
//
// The backend field selects the implementation:
//   - "chromem" (default): embedded chromem-go index, no external deps
//   - "qdrant": external Qdrant server over gRPC
//
// The dimension passed here comes from the embedding provider and overrides
// any backend-level dimension so one value governs the whole engine.
func NewStore(cfg Config, dimension int, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case "chromem", "":
		chromemCfg := cfg.Chromem
		chromemCfg.Dimension = dimension
		return NewChromemStore(chromemCfg, logger)

	case "qdrant":
		qdrantCfg := cfg.Qdrant
		qdrantCfg.Dimension = dimension
		return NewQdrantStore(qdrantCfg, logger)

	default:
		return nil, fmt.Errorf("%w: unsupported backend %q (supported: chromem, qdrant)", ErrInvalidConfig, cfg.Backend)
	}
}

// ApplyDefaults sets default values on the selected backend config.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = "chromem"
	}
	c.Chromem.ApplyDefaults()
	c.Qdrant.ApplyDefaults()
}
