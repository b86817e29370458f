package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dshills/catalog-search/internal/catalog"
	"github.com/dshills/catalog-search/internal/embedder"
	"github.com/dshills/catalog-search/pkg/types"
)

var (
	// ErrUnknownCategory is returned when searching a category that was not loaded
	ErrUnknownCategory = errors.New("unknown category")
	// ErrDimensionMismatch is returned when the query embedding and the category differ in width
	ErrDimensionMismatch = errors.New("query embedding dimension mismatch")
)

// Searcher ranks products of one category against a free-text query.
// It owns the index and the query cache for the life of the process and is
// safe for concurrent use.
type Searcher struct {
	index  catalog.Index
	cache  *embedder.QueryCache
	logger *slog.Logger
}

// Option configures a Searcher
type Option func(*Searcher)

// WithLogger sets the logger used for per-search debug output
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Searcher over a loaded index
func New(index catalog.Index, cache *embedder.QueryCache, opts ...Option) *Searcher {
	s := &Searcher{
		index:  index,
		cache:  cache,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns product ids of categoryID ordered by descending relevance.
// Ties keep category source order. Results scoring below RelevanceThreshold
// of the best surviving score are dropped.
func (s *Searcher) Search(ctx context.Context, categoryID, query string, filters *types.FilterSet) ([]string, error) {
	start := time.Now()

	category, ok := s.index.Category(categoryID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, categoryID)
	}

	queryVec, err := s.cache.GetEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}
	if dim := category.Dimension(); dim > 0 && len(queryVec) != dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, category %s has %d",
			ErrDimensionMismatch, len(queryVec), categoryID, dim)
	}

	results := ScoreProducts(category, query, queryVec)
	if !filters.IsEmpty() {
		results = ApplyFilters(results, category, filters)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	results = applyRelevanceFloor(results)

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ProductID
	}

	s.logger.Debug("search",
		"category", categoryID,
		"query", query,
		"filters", filters.Fields(),
		"scored", category.Len(),
		"returned", len(ids),
		"duration", time.Since(start))

	return ids, nil
}

// applyRelevanceFloor drops results below the threshold derived from the
// top score. results must already be sorted descending.
func applyRelevanceFloor(results []ScoredProduct) []ScoredProduct {
	if len(results) == 0 {
		return results
	}
	threshold := RelevanceThreshold(results[0].Score)
	kept := results[:0]
	for _, r := range results {
		if r.Score >= threshold {
			kept = append(kept, r)
		}
	}
	return kept
}

// Status describes the searcher's index and query cache
type Status struct {
	Categories    int
	Products      int
	Dimension     int
	EmbeddingMB   float64
	PerCategory   map[string]int
	Ready         bool
	CacheSize     int
	CacheCapacity int
	Provider      string
	Model         string
}

// Status reports index size and cache state
func (s *Searcher) Status() Status {
	stats := s.index.Stats()
	st := Status{
		Categories:    stats.Categories,
		Products:      stats.Products,
		Dimension:     stats.Dimension,
		EmbeddingMB:   stats.EmbeddingMB,
		PerCategory:   stats.PerCategory,
		Ready:         s.cache.Ready(),
		CacheSize:     s.cache.Len(),
		CacheCapacity: s.cache.Capacity(),
	}
	if emb := s.cache.Embedder(); emb != nil {
		st.Provider = emb.Provider()
		st.Model = emb.Model()
	}
	return st
}

// HasCategory reports whether categoryID was loaded
func (s *Searcher) HasCategory(categoryID string) bool {
	_, ok := s.index.Category(categoryID)
	return ok
}
