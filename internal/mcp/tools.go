package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/catalog-search/internal/config"
	"github.com/dshills/catalog-search/internal/embedder"
	"github.com/dshills/catalog-search/internal/searcher"
	"github.com/dshills/catalog-search/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams    = -32602 // Invalid method parameters
	ErrorCodeInternalError    = -32603 // Internal JSON-RPC error
	ErrorCodeCategoryNotFound = -32001 // Endpoint's category is not in the loaded catalog
	ErrorCodeNotReady         = -32002 // Embedding model not loaded yet
	ErrorCodeEmptyQuery       = -32004 // Query parameter is empty
	ErrorCodeFilterNotAllowed = -32005 // Filter field not supported by the endpoint
	ErrorCodeEmbeddingFailure = -32006 // Embedding provider failed for the query
)

// PageSize is the number of product ids per result page
const PageSize = 10

// Paginate returns the 1-based page of ids. Pages past the end are empty.
func Paginate(ids []string, page int) ([]string, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: got %d", types.ErrInvalidPage, page)
	}
	start := (page - 1) * PageSize
	if start >= len(ids) {
		return []string{}, nil
	}
	end := min(start+PageSize, len(ids))
	return ids[start:end], nil
}

func (s *Server) searchHandler(r route) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.handleSearch(ctx, r, request)
	}
}

// handleSearch handles every search_<endpoint> tool invocation
func (s *Server) handleSearch(ctx context.Context, r route, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, _ := args[argQuery].(string)
	if strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  argQuery,
			"reason": "missing or empty",
		})
	}

	page, err := parsePage(args)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), map[string]interface{}{
			"param": argPage,
			"value": args[argPage],
		})
	}

	filters, err := parseFilters(args, r.endpoint)
	if err != nil {
		var fieldErr *types.FilterFieldError
		if errors.As(err, &fieldErr) {
			return nil, newMCPError(ErrorCodeFilterNotAllowed, err.Error(), map[string]interface{}{
				"param":   fieldErr.Field,
				"allowed": r.endpoint.Filters,
			})
		}
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	}

	start := time.Now()
	ids, err := s.engine.Search(ctx, r.categoryID, query, filters)
	if err != nil {
		return nil, s.searchError(r, err)
	}

	results, _ := Paginate(ids, page)
	s.logger.Info("search",
		"endpoint", r.endpoint.Name,
		"page", page,
		"matches", len(ids),
		"returned", len(results),
		"duration", time.Since(start))

	return mcp.NewToolResultText(formatJSON(results)), nil
}

// searchError maps engine failures to MCP errors
func (s *Server) searchError(r route, err error) error {
	switch {
	case errors.Is(err, searcher.ErrUnknownCategory):
		return newMCPError(ErrorCodeCategoryNotFound, "category not loaded", map[string]interface{}{
			"endpoint": r.endpoint.Name,
			"category": r.categoryID,
		})
	case errors.Is(err, embedder.ErrNotReady):
		return newMCPError(ErrorCodeNotReady, "search engine is not ready", nil)
	case errors.Is(err, embedder.ErrProviderFailed):
		s.logger.Error("query embedding failed", "endpoint", r.endpoint.Name, "error", err)
		return newMCPError(ErrorCodeEmbeddingFailure, "query embedding failed", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		s.logger.Error("search failed", "endpoint", r.endpoint.Name, "error", err)
		return newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.engine.Status()

	endpoints := make(map[string]interface{}, len(s.routes))
	for _, r := range s.routes {
		endpoints[r.endpoint.Name] = map[string]interface{}{
			"category": r.categoryID,
			"products": st.PerCategory[r.categoryID],
			"loaded":   s.engine.HasCategory(r.categoryID),
		}
	}

	response := map[string]interface{}{
		"ready": st.Ready,
		"index": map[string]interface{}{
			"categories":   st.Categories,
			"products":     st.Products,
			"dimension":    st.Dimension,
			"embedding_mb": fmt.Sprintf("%.2f", st.EmbeddingMB),
		},
		"cache": map[string]interface{}{
			"size":     st.CacheSize,
			"capacity": st.CacheCapacity,
		},
		"embedder": map[string]interface{}{
			"provider": st.Provider,
			"model":    st.Model,
		},
		"endpoints": endpoints,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// parsePage reads the optional page argument, defaulting to 1
func parsePage(args map[string]interface{}) (int, error) {
	raw, ok := args[argPage]
	if !ok || raw == nil {
		return 1, nil
	}
	var page int
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: page must be an integer", types.ErrInvalidPage)
		}
		page = int(v)
	case int:
		page = v
	default:
		return 0, fmt.Errorf("%w: page must be an integer", types.ErrInvalidPage)
	}
	if page < 1 {
		return 0, fmt.Errorf("%w: got %d", types.ErrInvalidPage, page)
	}
	return page, nil
}

// parseFilters builds the filter set from tool arguments. Arguments other
// than query, page and the endpoint's filter fields are rejected; null
// values count as absent.
func parseFilters(args map[string]interface{}, e config.Endpoint) (*types.FilterSet, error) {
	filters := &types.FilterSet{}

	for key, raw := range args {
		if key == argQuery || key == argPage {
			continue
		}
		if !slices.Contains(e.Filters, key) {
			return nil, &types.FilterFieldError{Field: key}
		}
		if raw == nil {
			continue
		}

		switch key {
		case types.FieldHoleSpacing:
			v, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("%s must be a string", key)
			}
			filters.HoleSpacing = v
		case types.FieldLocations:
			list, ok := raw.([]interface{})
			if !ok {
				return nil, fmt.Errorf("%s must be an array of strings", key)
			}
			for _, item := range list {
				loc, ok := item.(string)
				if !ok || !slices.Contains(validLocations, loc) {
					return nil, fmt.Errorf("%s: unsupported location %v", key, item)
				}
				filters.Locations = append(filters.Locations, loc)
			}
		case types.FieldHasTubSpout:
			v, ok := raw.(bool)
			if !ok {
				return nil, fmt.Errorf("%s must be a boolean", key)
			}
			filters.HasTubSpout = types.Bool(v)
		case types.FieldLengthMax, types.FieldWidthMax:
			v, ok := raw.(float64)
			if !ok {
				return nil, fmt.Errorf("%s must be a number", key)
			}
			if key == types.FieldLengthMax {
				filters.LengthMax = types.Float(v)
			} else {
				filters.WidthMax = types.Float(v)
			}
		}
	}

	if err := filters.Allows(e.Filters); err != nil {
		return nil, err
	}
	return filters, nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}
