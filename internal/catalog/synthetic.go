package catalog

// SyntheticSpec describes a derived category: every product of the base
// category followed by the products of the subset category whose SubsetFlag is true.
type SyntheticSpec struct {
	CategoryID       string
	BaseCategoryID   string
	SubsetCategoryID string
	SubsetFlag       string
}

// Enabled reports whether a synthetic category is configured
func (s SyntheticSpec) Enabled() bool {
	return s.CategoryID != ""
}

// Synthesize builds the derived category from idx. The result carries no
// filters or dimensions. Rows are shared with the source categories, not copied.
// If either source category is missing the result is empty.
func Synthesize(idx Index, spec SyntheticSpec) *CategoryIndex {
	out := NewCategoryIndex()

	base, ok := idx[spec.BaseCategoryID]
	if !ok {
		return out
	}
	subset, ok := idx[spec.SubsetCategoryID]
	if !ok {
		return out
	}

	for i, id := range base.ProductIDs {
		out.appendProduct(id, base.Names[i], base.Embeddings[i])
	}
	for i, id := range subset.ProductIDs {
		if subset.Filters[id][spec.SubsetFlag] {
			out.appendProduct(id, subset.Names[i], subset.Embeddings[i])
		}
	}
	return out
}
