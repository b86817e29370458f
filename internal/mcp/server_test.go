package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/catalog-search/internal/catalog"
	"github.com/dshills/catalog-search/internal/config"
	"github.com/dshills/catalog-search/internal/embedder"
	"github.com/dshills/catalog-search/internal/searcher"
	"github.com/dshills/catalog-search/pkg/types"
)

// fakeEngine records the last search and returns canned results
type fakeEngine struct {
	ids        []string
	err        error
	loaded     map[string]bool
	lastCat    string
	lastQuery  string
	lastFilter *types.FilterSet
	calls      int
}

func (f *fakeEngine) Search(ctx context.Context, categoryID, query string, filters *types.FilterSet) ([]string, error) {
	f.calls++
	f.lastCat, f.lastQuery, f.lastFilter = categoryID, query, filters
	return f.ids, f.err
}

func (f *fakeEngine) HasCategory(categoryID string) bool { return f.loaded[categoryID] }

func (f *fakeEngine) Status() searcher.Status {
	return searcher.Status{Categories: 1, Products: 3, Dimension: 2, Ready: true,
		CacheSize: 4, CacheCapacity: 2000, Provider: "local", Model: "m",
		PerCategory: map[string]int{"cat-faucets": 3}}
}

func testConfig() *config.Config {
	cfg := config.Default()
	for _, e := range config.Endpoints {
		cfg.Categories[e.Name] = "cat-" + e.Name
	}
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, engine SearchEngine) *Server {
	t.Helper()
	s, err := NewServer(engine, testConfig(), WithLogger(quietLogger()))
	require.NoError(t, err)
	return s
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func call(t *testing.T, s *Server, tool string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	t.Helper()
	r, ok := s.routes[tool]
	require.True(t, ok, "tool %s not registered", tool)
	return s.handleSearch(context.Background(), r, callRequest(args))
}

func resultIDs(t *testing.T, res *mcp.CallToolResult) []string {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	var ids []string
	require.NoError(t, json.Unmarshal([]byte(text.Text), &ids))
	return ids
}

func requireMCPError(t *testing.T, err error, code int) *MCPError {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected MCPError, got %v", err)
	assert.Equal(t, code, mcpErr.Code)
	return mcpErr
}

func TestNewServer_RegistersEveryEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeEngine{})

	assert.Len(t, s.routes, len(config.Endpoints))
	tools := s.mcp.ListTools()
	assert.Len(t, tools, len(config.Endpoints)+1)
	assert.Contains(t, tools, "get_status")
	assert.Contains(t, tools, "search_toilet_paper_holders")
	assert.Equal(t, "cat-tub-fillers", s.routes["search_tub_fillers"].categoryID)
}

func TestNewServer_MissingCategory(t *testing.T) {
	cfg := testConfig()
	delete(cfg.Categories, "mirrors")

	_, err := NewServer(&fakeEngine{}, cfg, WithLogger(quietLogger()))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestSearchTool_Schema(t *testing.T) {
	faucets, err := config.LookupEndpoint("faucets")
	require.NoError(t, err)
	tool := searchTool(faucets)

	assert.Equal(t, "search_faucets", tool.Name)
	assert.Equal(t, []string{argQuery}, tool.InputSchema.Required)
	assert.Contains(t, tool.InputSchema.Properties, types.FieldHoleSpacing)
	assert.NotContains(t, tool.InputSchema.Properties, types.FieldLengthMax)

	tubs, err := config.LookupEndpoint("tubs")
	require.NoError(t, err)
	assert.Len(t, searchTool(tubs).InputSchema.Properties, 2)
}

func TestHandleSearch_PassesFilters(t *testing.T) {
	engine := &fakeEngine{ids: []string{"F1", "F3"}}
	s := newTestServer(t, engine)

	res, err := call(t, s, "search_faucets", map[string]interface{}{
		"query":                    "matte black faucet",
		"holeSpacingCompatibility": "Single Hole",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"F1", "F3"}, resultIDs(t, res))
	assert.Equal(t, "cat-faucets", engine.lastCat)
	assert.Equal(t, "matte black faucet", engine.lastQuery)
	assert.Equal(t, &types.FilterSet{HoleSpacing: types.HoleSpacingSingleHole}, engine.lastFilter)
}

func TestHandleSearch_FilterTypes(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(t, engine)

	_, err := call(t, s, "search_tiles", map[string]interface{}{
		"query":     "marble",
		"locations": []interface{}{"floor", "shower_wall"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"floor", "shower_wall"}, engine.lastFilter.Locations)

	_, err = call(t, s, "search_shower_systems", map[string]interface{}{"query": "rain", "hasTubSpout": false})
	require.NoError(t, err)
	require.NotNil(t, engine.lastFilter.HasTubSpout)
	assert.False(t, *engine.lastFilter.HasTubSpout)

	_, err = call(t, s, "search_mirrors", map[string]interface{}{"query": "round", "widthMax": 36.0})
	require.NoError(t, err)
	assert.Equal(t, types.Float(36), engine.lastFilter.WidthMax)

	// null counts as absent
	_, err = call(t, s, "search_vanities", map[string]interface{}{"query": "oak", "lengthMax": nil})
	require.NoError(t, err)
	assert.True(t, engine.lastFilter.IsEmpty())
}

func TestHandleSearch_RejectsForeignFilter(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(t, engine)

	_, err := call(t, s, "search_tubs", map[string]interface{}{"query": "soaking", "lengthMax": 60.0})
	mcpErr := requireMCPError(t, err, ErrorCodeFilterNotAllowed)
	assert.Contains(t, mcpErr.Message, types.FieldLengthMax)
	assert.Zero(t, engine.calls)
}

func TestHandleSearch_InvalidArguments(t *testing.T) {
	s := newTestServer(t, &fakeEngine{})

	tests := []struct {
		name string
		tool string
		args map[string]interface{}
		code int
	}{
		{"missing query", "search_tubs", map[string]interface{}{}, ErrorCodeEmptyQuery},
		{"blank query", "search_tubs", map[string]interface{}{"query": "   "}, ErrorCodeEmptyQuery},
		{"page zero", "search_tubs", map[string]interface{}{"query": "x", "page": 0.0}, ErrorCodeInvalidParams},
		{"fractional page", "search_tubs", map[string]interface{}{"query": "x", "page": 1.5}, ErrorCodeInvalidParams},
		{"string page", "search_tubs", map[string]interface{}{"query": "x", "page": "2"}, ErrorCodeInvalidParams},
		{"unknown location", "search_tiles", map[string]interface{}{"query": "x", "locations": []interface{}{"ceiling"}}, ErrorCodeInvalidParams},
		{"wrong type", "search_shower_systems", map[string]interface{}{"query": "x", "hasTubSpout": "yes"}, ErrorCodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call(t, s, tt.tool, tt.args)
			requireMCPError(t, err, tt.code)
		})
	}

	_, err := s.handleSearch(context.Background(), s.routes["search_tubs"], mcp.CallToolRequest{})
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestHandleSearch_Pagination(t *testing.T) {
	ids := make([]string, 23)
	for i := range ids {
		ids[i] = fmt.Sprintf("P%02d", i)
	}
	s := newTestServer(t, &fakeEngine{ids: ids})

	res, err := call(t, s, "search_paints", map[string]interface{}{"query": "sage green"})
	require.NoError(t, err)
	assert.Equal(t, ids[:10], resultIDs(t, res))

	res, err = call(t, s, "search_paints", map[string]interface{}{"query": "sage green", "page": 3.0})
	require.NoError(t, err)
	assert.Equal(t, ids[20:], resultIDs(t, res))

	res, err = call(t, s, "search_paints", map[string]interface{}{"query": "sage green", "page": 4.0})
	require.NoError(t, err)
	assert.Empty(t, resultIDs(t, res))
}

func TestHandleSearch_EngineErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"unknown category", fmt.Errorf("%w: cat-x", searcher.ErrUnknownCategory), ErrorCodeCategoryNotFound},
		{"not ready", embedder.ErrNotReady, ErrorCodeNotReady},
		{"provider failed", fmt.Errorf("embed query: %w", embedder.ErrProviderFailed), ErrorCodeEmbeddingFailure},
		{"other", errors.New("boom"), ErrorCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeEngine{err: tt.err})
			_, err := call(t, s, "search_faucets", map[string]interface{}{"query": "faucet"})
			requireMCPError(t, err, tt.code)
		})
	}
}

func TestHandleGetStatus(t *testing.T) {
	s := newTestServer(t, &fakeEngine{loaded: map[string]bool{"cat-faucets": true}})

	res, err := s.handleGetStatus(context.Background(), callRequest(nil))
	require.NoError(t, err)

	text, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	var body struct {
		Ready bool `json:"ready"`
		Index struct {
			Products int `json:"products"`
		} `json:"index"`
		Cache struct {
			Capacity int `json:"capacity"`
		} `json:"cache"`
		Endpoints map[string]struct {
			Category string `json:"category"`
			Products int    `json:"products"`
			Loaded   bool   `json:"loaded"`
		} `json:"endpoints"`
	}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &body))

	assert.True(t, body.Ready)
	assert.Equal(t, 3, body.Index.Products)
	assert.Equal(t, 2000, body.Cache.Capacity)
	assert.Len(t, body.Endpoints, len(config.Endpoints))
	assert.True(t, body.Endpoints["faucets"].Loaded)
	assert.Equal(t, 3, body.Endpoints["faucets"].Products)
	assert.False(t, body.Endpoints["tubs"].Loaded)
}

// staticEmbedder maps every text to the same vector
type staticEmbedder struct{ vec []float32 }

func (e staticEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	return &embedder.Embedding{Vector: e.vec, Dimension: len(e.vec), Provider: "static", Model: "static"}, nil
}
func (e staticEmbedder) Dimension() int   { return len(e.vec) }
func (e staticEmbedder) Provider() string { return "static" }
func (e staticEmbedder) Model() string    { return "static" }
func (e staticEmbedder) Close() error     { return nil }

func TestHandleSearch_WithSearcher(t *testing.T) {
	faucets := catalog.NewCategoryIndex()
	for _, p := range []struct {
		id, name string
		vec      []float32
		single   bool
	}{
		{"F1", "matte black faucet", []float32{1, 0}, true},
		{"F2", "matte black widespread faucet", []float32{0.8, 0.6}, false},
		{"F3", "black bathroom faucet", []float32{0.6, 0.8}, true},
		{"F4", "chrome tub filler", []float32{0, 1}, true},
	} {
		faucets.ProductIDs = append(faucets.ProductIDs, p.id)
		faucets.Names = append(faucets.Names, p.name)
		faucets.Embeddings = append(faucets.Embeddings, p.vec)
		faucets.Filters[p.id] = catalog.Attributes{catalog.FlagSingleHole: p.single}
	}

	cache := embedder.NewQueryCache(10)
	require.NoError(t, cache.Attach(context.Background(), staticEmbedder{vec: []float32{1, 0}}))
	engine := searcher.New(catalog.Index{"cat-faucets": faucets}, cache, searcher.WithLogger(quietLogger()))
	s := newTestServer(t, engine)

	res, err := call(t, s, "search_faucets", map[string]interface{}{
		"query":                    "matte black faucet",
		"holeSpacingCompatibility": "Single Hole",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"F1", "F3"}, resultIDs(t, res))

	_, err = call(t, s, "search_tubs", map[string]interface{}{"query": "soaking tub"})
	requireMCPError(t, err, ErrorCodeCategoryNotFound)
}
