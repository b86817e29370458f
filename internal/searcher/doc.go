// Package searcher ranks catalog products against free-text queries.
//
// A search runs entirely in memory against one category of a catalog.Index:
//
//  1. The query embedding comes from an embedder.QueryCache.
//  2. ScoreProducts blends cosine similarity with two lexical signals, an
//     exact substring match on the product name and query token overlap.
//  3. ApplyFilters narrows the results by attribute flags and measurements.
//  4. Results are sorted by score, keeping source order on ties.
//  5. Anything below max(MinRelevanceFloor, top*RelativeFloorRatio) is dropped.
//
// The weights and thresholds live in policy.go.
//
// # Basic Usage
//
//	s := searcher.New(index, cache)
//	ids, err := s.Search(ctx, faucetsCategoryID, "matte black faucet",
//	    &types.FilterSet{HoleSpacing: types.HoleSpacingSingleHole})
//
// Scoring is an exhaustive scan over the category; there is no approximate
// index.
package searcher
