package mcp

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/catalog-search/internal/config"
	"github.com/dshills/catalog-search/pkg/types"
)

// Argument names shared by every search tool
const (
	argQuery = "query"
	argPage  = "page"
)

// ToolName returns the MCP tool name for a search endpoint
func ToolName(endpoint string) string {
	return "search_" + strings.ReplaceAll(endpoint, "-", "_")
}

// filterProperties holds the input schema for each filter field
var filterProperties = map[string]map[string]interface{}{
	types.FieldHoleSpacing: {
		"type": "string",
		"description": "Faucet hole spacing compatibility: " + types.HoleSpacingSingleHole + ", " +
			types.HoleSpacingWidespread + " or " + types.HoleSpacingCenterset,
	},
	types.FieldLocations: {
		"type":        "array",
		"description": "Placement locations the tile must support; every listed location is required",
		"items": map[string]interface{}{
			"type": "string",
			"enum": validLocations,
		},
	},
	types.FieldHasTubSpout: {
		"type":        "boolean",
		"description": "Only return shower systems with (true) or without (false) a tub spout",
	},
	types.FieldLengthMax: {
		"type":        "number",
		"description": "Maximum product length; products without a recorded length are kept",
	},
	types.FieldWidthMax: {
		"type":        "number",
		"description": "Maximum product width; products without a recorded width are kept",
	},
}

var validLocations = []string{
	types.LocationWall,
	types.LocationFloor,
	types.LocationShowerWall,
	types.LocationShowerFloor,
}

// searchTool returns the tool definition for one search endpoint
func searchTool(e config.Endpoint) mcp.Tool {
	properties := map[string]interface{}{
		argQuery: map[string]interface{}{
			"type":        "string",
			"description": "Free-text product query, e.g. \"matte black faucet\"",
		},
		argPage: map[string]interface{}{
			"type":        "integer",
			"description": "1-based page number; each page holds 10 product ids",
			"default":     1,
			"minimum":     1,
		},
	}
	for _, field := range e.Filters {
		properties[field] = filterProperties[field]
	}

	return mcp.Tool{
		Name:        ToolName(e.Name),
		Description: e.Description + " Returns a JSON array of product ids ordered by relevance.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: properties,
			Required:   []string{argQuery},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report loaded catalog statistics, query cache usage and embedding provider",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
