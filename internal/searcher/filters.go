package searcher

import (
	"github.com/dshills/catalog-search/internal/catalog"
	"github.com/dshills/catalog-search/pkg/types"
)

// holeSpacingFlags maps a hole spacing label to the attribute it requires
var holeSpacingFlags = map[string]string{
	types.HoleSpacingSingleHole: catalog.FlagSingleHole,
	types.HoleSpacingWidespread: catalog.FlagWidespread,
	types.HoleSpacingCenterset:  catalog.FlagCenterset,
}

// ApplyFilters keeps the results that pass every set filter field, preserving order.
//
// Missing data policy per field:
//   - HoleSpacing: an unrecognized label filters nothing; a product without flags fails
//   - Locations: a product without flags fails
//   - HasTubSpout: a product without flags counts as false
//   - LengthMax, WidthMax: a product without that measurement passes
func ApplyFilters(results []ScoredProduct, idx *catalog.CategoryIndex, filters *types.FilterSet) []ScoredProduct {
	if filters.IsEmpty() {
		return results
	}

	kept := make([]ScoredProduct, 0, len(results))
	for _, r := range results {
		if passes(r.ProductID, idx, filters) {
			kept = append(kept, r)
		}
	}
	return kept
}

func passes(productID string, idx *catalog.CategoryIndex, f *types.FilterSet) bool {
	attrs := idx.Filters[productID] // nil map reads as all false

	if f.HoleSpacing != "" {
		if flag, ok := holeSpacingFlags[f.HoleSpacing]; ok && !attrs[flag] {
			return false
		}
	}

	for _, loc := range f.Locations {
		if !attrs[loc] {
			return false
		}
	}

	if f.HasTubSpout != nil && attrs[catalog.FlagHasTubSpout] != *f.HasTubSpout {
		return false
	}

	if f.LengthMax != nil || f.WidthMax != nil {
		dims := idx.Dimensions[productID]
		if exceeds(dims.Length, f.LengthMax) || exceeds(dims.Width, f.WidthMax) {
			return false
		}
	}

	return true
}

// exceeds reports whether a recorded value is over the limit; unknown values never exceed
func exceeds(value, limit *float64) bool {
	return value != nil && limit != nil && *value > *limit
}
