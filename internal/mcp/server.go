package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/catalog-search/internal/config"
	"github.com/dshills/catalog-search/internal/searcher"
	"github.com/dshills/catalog-search/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "catalog-search"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// SearchEngine is the search capability the server exposes
type SearchEngine interface {
	Search(ctx context.Context, categoryID, query string, filters *types.FilterSet) ([]string, error)
	HasCategory(categoryID string) bool
	Status() searcher.Status
}

// route binds a search tool to its endpoint and category
type route struct {
	endpoint   config.Endpoint
	categoryID string
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp    *server.MCPServer
	engine SearchEngine
	routes map[string]route // keyed by tool name
	logger *slog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates an MCP server with one search tool per endpoint.
// Every endpoint must have a category id in cfg.
func NewServer(engine SearchEngine, cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		mcp: server.NewMCPServer(
			ServerName,
			ServerVersion,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		engine: engine,
		routes: make(map[string]route, len(config.Endpoints)),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.registerTools(cfg); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	return s, nil
}

// Serve runs the MCP protocol on stdin/stdout until ctx is cancelled
func (s *Server) Serve(ctx context.Context) error {
	return s.Listen(ctx, os.Stdin, os.Stdout)
}

// Listen runs the MCP protocol over the given streams until ctx is cancelled
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("mcp server listening", "tools", len(s.routes)+1)
	return stdio.Listen(ctx, in, out)
}

// registerTools registers every search tool and get_status
func (s *Server) registerTools(cfg *config.Config) error {
	for _, e := range config.Endpoints {
		categoryID, err := cfg.CategoryID(e.Name)
		if err != nil {
			return err
		}
		if !s.engine.HasCategory(categoryID) {
			// Searches will fail with category not found until the catalog has rows for it
			s.logger.Warn("endpoint category not loaded", "endpoint", e.Name, "category", categoryID)
		}

		r := route{endpoint: e, categoryID: categoryID}
		s.routes[ToolName(e.Name)] = r
		s.mcp.AddTool(searchTool(e), s.searchHandler(r))
	}

	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	return nil
}
