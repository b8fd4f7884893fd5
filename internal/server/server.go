// Package server provides the HTTP API for corpusd.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/corpusd/internal/ingest"
	"github.com/fyrsmithlabs/corpusd/internal/query"
	"github.com/fyrsmithlabs/corpusd/internal/vectorstore"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server exposes ingestion, querying, and store health over HTTP.
type Server struct {
	echo     *echo.Echo
	pipeline *ingest.Pipeline
	engine   *query.Engine
	store    vectorstore.Store
	logger   *zap.Logger
	config   Config
}

// NewServer creates the HTTP server.
func NewServer(pipeline *ingest.Pipeline, engine *query.Engine, store vectorstore.Store, logger *zap.Logger, cfg Config) (*Server, error) {
	if pipeline == nil || engine == nil || store == nil {
		return nil, fmt.Errorf("pipeline, engine, and store are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8090
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:     e,
		pipeline: pipeline,
		engine:   engine,
		store:    store,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/v1")
	v1.POST("/ingest", s.handleIngest)
	v1.POST("/query", s.handleQuery)
	v1.DELETE("/documents", s.handleDelete)
	v1.GET("/stats", s.handleStats)
	v1.POST("/consistency", s.handleConsistency)
}

// IngestRequest is the body for POST /v1/ingest.
type IngestRequest struct {
	Documents []IngestDocument `json:"documents"`
}

// IngestDocument is one document in an ingest request.
type IngestDocument struct {
	SourcePath string            `json:"source_path"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// IngestResponse is the body for POST /v1/ingest.
type IngestResponse struct {
	Results []ingest.Result `json:"results"`
}

// QueryRequest is the body for POST /v1/query.
type QueryRequest struct {
	Query      string            `json:"query"`
	MaxResults int               `json:"max_results,omitempty"`
	Filters    map[string]string `json:"filters,omitempty"`
}

// DeleteRequest is the body for DELETE /v1/documents.
type DeleteRequest struct {
	SourcePath string `json:"source_path"`
}

// DeleteResponse is the body for DELETE /v1/documents.
type DeleteResponse struct {
	Status         string `json:"status"`
	VectorsRemoved int    `json:"vectors_removed"`
}

// StatsResponse is the body for GET /v1/stats.
type StatsResponse struct {
	TotalVectors int    `json:"total_vectors"`
	Dimension    int    `json:"dimension"`
	Backend      string `json:"backend"`
}

// HealthResponse is the body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleIngest(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Documents) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "documents field is required")
	}

	docs := make([]ingest.Document, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = ingest.Document{
			SourcePath: d.SourcePath,
			Text:       d.Text,
			Metadata:   d.Metadata,
		}
	}

	// Batch semantics: per-document results, never a batch-level failure.
	results := s.pipeline.IngestAll(c.Request().Context(), docs)
	return c.JSON(http.StatusOK, IngestResponse{Results: results})
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := s.engine.Query(c.Request().Context(), req.Query, req.MaxResults, req.Filters)
	if err != nil {
		if errors.Is(err, query.ErrEmptyQuery) {
			return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
		}
		// Engine errors carry provider details; log them, return a reason.
		s.logger.Error("query failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDelete(c echo.Context) error {
	var req DeleteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SourcePath == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "source_path field is required")
	}

	removed, err := s.pipeline.Delete(c.Request().Context(), req.SourcePath)
	if err != nil {
		s.logger.Error("delete failed", zap.String("source_path", req.SourcePath), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "delete failed")
	}
	return c.JSON(http.StatusOK, DeleteResponse{Status: "deleted", VectorsRemoved: removed})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.store.Stats(c.Request().Context())
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "stats failed")
	}
	return c.JSON(http.StatusOK, StatsResponse{
		TotalVectors: stats.TotalVectors,
		Dimension:    stats.Dimension,
		Backend:      string(stats.Backend),
	})
}

func (s *Server) handleConsistency(c echo.Context) error {
	repair := c.QueryParam("repair") == "true"
	report, err := s.store.CheckConsistency(c.Request().Context(), repair)
	if err != nil {
		s.logger.Error("consistency check failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "consistency check failed")
	}
	return c.JSON(http.StatusOK, report)
}

// Start starts the HTTP server and blocks.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
