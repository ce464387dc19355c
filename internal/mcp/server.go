package mcp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/popoloni/codescope/internal/config"
	"github.com/popoloni/codescope/internal/embedder"
	"github.com/popoloni/codescope/internal/indexer"
	"github.com/popoloni/codescope/internal/logging"
	"github.com/popoloni/codescope/internal/metrics"
	"github.com/popoloni/codescope/internal/searcher"
	"github.com/popoloni/codescope/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "codescope"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies.
type Server struct {
	mcp      *server.MCPServer
	store    storage.Store
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	logger   logging.Logger

	metricsAddr string
	registry    *prometheus.Registry
}

// NewServer wires storage, embedder, indexer and searcher from
// configuration and registers the tool handlers.
func NewServer(cfg *config.Config, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	provider, err := embedder.New(cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	generator := embedder.NewGenerator(provider, logger,
		embedder.WithVectorCache(store),
		embedder.WithMetrics(m),
	)

	idx := indexer.New(store, generator, logger, m, indexer.Config{
		Workers:   cfg.Workers,
		BatchSize: cfg.BatchSize,
	})
	srch := searcher.New(store, generator, logger, m)

	s := newServerWith(store, idx, srch, logger)
	s.metricsAddr = cfg.MetricsAddr
	s.registry = registry
	return s, nil
}

// newServerWith assembles a Server from prebuilt components. Tests use
// it to inject in-memory stores.
func newServerWith(store storage.Store, idx *indexer.Indexer, srch *searcher.Searcher, logger logging.Logger) *Server {
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		store:    store,
		indexer:  idx,
		searcher: srch,
		logger:   logger,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown.
// When a metrics address is configured, Prometheus metrics are served
// over HTTP alongside.
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.store.Close() }()

	if s.metricsAddr != "" && s.registry != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
		srv := &http.Server{
			Addr:              s.metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error("metrics listener failed", "addr", s.metricsAddr, "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools.
func (s *Server) registerTools() {
	s.mcp.AddTool(indexRepositoryTool(), s.handleIndexRepository)
	s.mcp.AddTool(updateIndexTool(), s.handleUpdateIndex)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(searchSimilarCodeTool(), s.handleSearchSimilarCode)
	s.mcp.AddTool(dependencyInsightsTool(), s.handleDependencyInsights)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
