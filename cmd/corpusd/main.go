// Corpusd indexes documents into a vector-metadata store and answers
// questions grounded in the retrieved text.
//
// Usage:
//
//	# Start the HTTP server
//	corpusd serve
//
//	# Ingest plain-text files
//	corpusd ingest docs/*.md
//
//	# Ask a question
//	corpusd query "why does replication lag grow"
//
// Configuration is loaded from ~/.config/corpusd/config.yaml and CORPUSD_*
// environment variables.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/corpusd/internal/chunker"
	"github.com/fyrsmithlabs/corpusd/internal/config"
	"github.com/fyrsmithlabs/corpusd/internal/embeddings"
	"github.com/fyrsmithlabs/corpusd/internal/ingest"
	"github.com/fyrsmithlabs/corpusd/internal/llm"
	"github.com/fyrsmithlabs/corpusd/internal/logging"
	"github.com/fyrsmithlabs/corpusd/internal/query"
	"github.com/fyrsmithlabs/corpusd/internal/reranker"
	"github.com/fyrsmithlabs/corpusd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var version = "dev"

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "corpusd",
	Short:   "Vector-indexed document retrieval and answering",
	Version: version,
	Long: `corpusd ingests plain-text documents, indexes them as embedding vectors
with structured metadata, and answers natural-language questions grounded in
the retrieved chunks.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/corpusd/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(checkCmd)
}

// app holds the wired component stack shared by all commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    vectorstore.Store
	embedder embeddings.Provider
	pipeline *ingest.Pipeline
	engine   *query.Engine
}

// buildApp loads configuration and wires the full component stack.
func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	embedder, err := embeddings.NewProvider(embeddings.Config{
		Provider:          cfg.Embeddings.Provider,
		BaseURL:           cfg.Embeddings.BaseURL,
		Model:             cfg.Embeddings.Model,
		APIKey:            cfg.Embeddings.APIKey,
		Dimension:         cfg.Embeddings.Dimension,
		BatchSize:         cfg.Embeddings.BatchSize,
		RequestsPerSecond: cfg.Embeddings.RequestsPerSecond,
		MaxRetries:        cfg.Embeddings.MaxRetries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("building embedding provider: %w", err)
	}

	store, err := vectorstore.NewStore(vectorstore.Config{
		Backend: cfg.Store.Backend,
		Chromem: vectorstore.ChromemConfig{
			Path:       cfg.Store.Chromem.Path,
			Collection: cfg.Store.Chromem.Collection,
			Compress:   cfg.Store.Chromem.Compress,
		},
		Qdrant: vectorstore.QdrantConfig{
			Host:       cfg.Store.Qdrant.Host,
			Port:       cfg.Store.Qdrant.Port,
			Collection: cfg.Store.Qdrant.Collection,
			UseTLS:     cfg.Store.Qdrant.UseTLS,
		},
	}, embedder.Dimension(), logger)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	ch, err := chunker.New(chunker.Method(cfg.Chunker.Method), chunker.Config{
		ChunkSize: cfg.Chunker.ChunkSize,
		Overlap:   cfg.Chunker.Overlap,
	})
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("building chunker: %w", err)
	}

	pipeline, err := ingest.NewPipeline(ch, embedder, store, logger)
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("building pipeline: %w", err)
	}

	var client llm.Client
	if cfg.LLM.Enabled {
		httpClient, err := llm.NewHTTPClient(llm.Config{
			BaseURL:           cfg.LLM.BaseURL,
			Model:             cfg.LLM.Model,
			APIKey:            cfg.LLM.APIKey,
			RequestsPerSecond: cfg.LLM.RequestsPerSecond,
			MaxRetries:        cfg.LLM.MaxRetries,
		}, logger)
		if err != nil {
			_ = store.Close()
			_ = embedder.Close()
			return nil, fmt.Errorf("building llm client: %w", err)
		}
		client = httpClient
	}

	var classifier query.Classifier
	if cfg.Query.Classifier == "llm" {
		classifier, err = query.NewLLMClassifier(client, logger)
		if err != nil {
			_ = store.Close()
			_ = embedder.Close()
			return nil, fmt.Errorf("building classifier: %w", err)
		}
	}

	var enhancer query.Enhancer
	if cfg.Query.EnhancerEnabled {
		enhancer, err = query.NewLLMEnhancer(client, cfg.Query.MaxVariants, logger)
		if err != nil {
			_ = store.Close()
			_ = embedder.Close()
			return nil, fmt.Errorf("building enhancer: %w", err)
		}
	}

	var rr reranker.Reranker = reranker.NewPassthroughReranker()
	if cfg.Query.RerankEnabled {
		rr = reranker.NewLexicalReranker()
	}

	engine, err := query.NewEngine(query.Config{
		MaxResults:      cfg.Query.MaxResults,
		SimilarityFloor: float32(cfg.Query.SimilarityFloor),
	}, store, embedder, classifier, enhancer, rr, client, logger)
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("building query engine: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		embedder: embedder,
		pipeline: pipeline,
		engine:   engine,
	}, nil
}

// Close releases the stack's resources.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", zap.Error(err))
	}
	if err := a.embedder.Close(); err != nil {
		a.logger.Warn("closing embedder", zap.Error(err))
	}
	_ = logging.Sync(a.logger)
}
