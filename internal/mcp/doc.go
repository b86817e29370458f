// Package mcp implements the Model Context Protocol (MCP) server for catalog-search.
//
// The server exposes one search tool per catalog endpoint plus get_status:
//   - search_faucets, search_tiles, search_tub_fillers, ...: rank products of
//     the endpoint's category against a free-text query
//   - get_status: loaded catalog statistics and query cache usage
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// stdout carries protocol messages only; logs go to stderr.
//
// # Basic Usage
//
//	catalogsearch serve --config catalog.yaml
//
// # Search Tools
//
// Every search tool takes a required query and an optional 1-based page.
// Each endpoint also accepts its own filter fields and rejects all others:
//
//	faucets                                  holeSpacingCompatibility
//	tiles                                    locations
//	shower-systems                           hasTubSpout
//	vanities, lightings, shower-glasses,
//	tub-doors                                lengthMax
//	mirrors                                  widthMax
//
//	Request:
//	{
//	  "name": "search_faucets",
//	  "arguments": {
//	    "query": "matte black faucet",
//	    "page": 1,
//	    "holeSpacingCompatibility": "Single Hole"
//	  }
//	}
//
//	Response (text content):
//	["F-1001", "F-2040", "F-0733"]
//
// Pages hold PageSize ids; a page past the end returns [].
//
// # Error Codes
//
//	-32602  invalid arguments (bad page, wrong filter type, unknown location)
//	-32603  internal error
//	-32001  the endpoint's category is not in the loaded catalog
//	-32002  the embedding model is not ready
//	-32004  empty query
//	-32005  filter field not supported by the endpoint
//	-32006  the embedding provider failed for this query
package mcp
