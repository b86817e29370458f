package searcher

import (
	"strings"

	"github.com/dshills/catalog-search/internal/catalog"
)

// ScoredProduct pairs a product with its blended relevance score
type ScoredProduct struct {
	ProductID string
	Score     float64
}

// ScoreProducts scores every product in the category against the query.
// The output has one entry per product in category order. It is pure:
// identical inputs give bit-identical scores.
//
// queryVec must be unit length and as wide as the category's embeddings.
func ScoreProducts(idx *catalog.CategoryIndex, query string, queryVec []float32) []ScoredProduct {
	queryLower := strings.ToLower(strings.TrimSpace(query))
	queryTokens := tokenSet(queryLower)

	results := make([]ScoredProduct, len(idx.ProductIDs))
	for i, id := range idx.ProductIDs {
		name := idx.Names[i]

		exact := 0.0
		if strings.Contains(name, queryLower) {
			exact = 1.0
		}

		overlap := 0.0
		if len(queryTokens) > 0 {
			overlap = float64(sharedTokens(queryTokens, name)) / float64(len(queryTokens))
		}

		results[i] = ScoredProduct{
			ProductID: id,
			Score: VectorWeight*dot(idx.Embeddings[i], queryVec) +
				ExactMatchWeight*exact +
				OverlapWeight*overlap,
		}
	}
	return results
}

// dot accumulates in float64; with unit vectors this is cosine similarity
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// sharedTokens counts distinct tokens of name that appear in query
func sharedTokens(query map[string]struct{}, name string) int {
	seen := make(map[string]struct{})
	n := 0
	for _, tok := range strings.Fields(name) {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := query[tok]; ok {
			n++
		}
	}
	return n
}
