package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// Attribute flag names stored in CategoryIndex.Filters
const (
	FlagSingleHole  = "single_hole"
	FlagWidespread  = "widespread" // eight inch spacing
	FlagCenterset   = "centerset"  // four inch spacing
	FlagWall        = "wall"
	FlagFloor       = "floor"
	FlagShowerWall  = "shower_wall"
	FlagShowerFloor = "shower_floor"
	FlagHasTubSpout = "has_tub_spout"
)

var (
	// ErrMalformedEmbedding is returned when a stored embedding cannot be parsed
	// or does not match the index dimension
	ErrMalformedEmbedding = errors.New("malformed embedding")
	// ErrInconsistentIndex is returned when a category's parallel arrays disagree
	ErrInconsistentIndex = errors.New("inconsistent category index")
)

// Attributes holds the boolean flags known for one product.
// A flag missing from the map is unknown, not false.
type Attributes map[string]bool

// Dimensions holds optional measurements; nil means not measured
type Dimensions struct {
	Length *float64
	Width  *float64
}

// CategoryIndex is the searchable data for one category.
// ProductIDs, Embeddings and Names are position-aligned and keep source order.
// A CategoryIndex is read-only once loaded and safe for concurrent use.
type CategoryIndex struct {
	ProductIDs []string
	Embeddings [][]float32 // unit-normalized rows
	Names      []string    // lowercased
	Filters    map[string]Attributes
	Dimensions map[string]Dimensions
}

// NewCategoryIndex returns an empty category
func NewCategoryIndex() *CategoryIndex {
	return &CategoryIndex{
		Filters:    make(map[string]Attributes),
		Dimensions: make(map[string]Dimensions),
	}
}

// Len returns the number of products in the category
func (c *CategoryIndex) Len() int {
	return len(c.ProductIDs)
}

// Dimension returns the embedding width, or 0 for an empty category
func (c *CategoryIndex) Dimension() int {
	if len(c.Embeddings) == 0 {
		return 0
	}
	return len(c.Embeddings[0])
}

// Validate checks the parallel-array invariant and that every row has the same width
func (c *CategoryIndex) Validate() error {
	if len(c.ProductIDs) != len(c.Embeddings) || len(c.ProductIDs) != len(c.Names) {
		return fmt.Errorf("%w: %d ids, %d embeddings, %d names",
			ErrInconsistentIndex, len(c.ProductIDs), len(c.Embeddings), len(c.Names))
	}
	dim := c.Dimension()
	for i, row := range c.Embeddings {
		if len(row) != dim {
			return fmt.Errorf("%w: product %s has %d dimensions, want %d",
				ErrInconsistentIndex, c.ProductIDs[i], len(row), dim)
		}
	}
	return nil
}

// Attributes returns the flags recorded for productID
func (c *CategoryIndex) Attributes(productID string) (Attributes, bool) {
	attrs, ok := c.Filters[productID]
	return attrs, ok
}

// DimensionsOf returns the measurements recorded for productID
func (c *CategoryIndex) DimensionsOf(productID string) (Dimensions, bool) {
	dims, ok := c.Dimensions[productID]
	return dims, ok
}

// EmbeddingBytes returns the memory held by embedding rows
func (c *CategoryIndex) EmbeddingBytes() int64 {
	var n int64
	for _, row := range c.Embeddings {
		n += int64(len(row)) * 4
	}
	return n
}

func (c *CategoryIndex) appendProduct(id, name string, embedding []float32) {
	c.ProductIDs = append(c.ProductIDs, id)
	c.Names = append(c.Names, name)
	c.Embeddings = append(c.Embeddings, embedding)
}

// Index maps category id to its searchable data. It is built once by Loader
// and never modified afterwards.
type Index map[string]*CategoryIndex

// Category looks up a category by id
func (idx Index) Category(id string) (*CategoryIndex, bool) {
	c, ok := idx[id]
	return c, ok
}

// CategoryIDs returns all category ids in sorted order
func (idx Index) CategoryIDs() []string {
	ids := make([]string, 0, len(idx))
	for id := range idx {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks every category
func (idx Index) Validate() error {
	for _, id := range idx.CategoryIDs() {
		if err := idx[id].Validate(); err != nil {
			return fmt.Errorf("category %s: %w", id, err)
		}
	}
	return nil
}

// Stats summarizes an index
type Stats struct {
	Categories  int
	Products    int
	Dimension   int
	EmbeddingMB float64
	PerCategory map[string]int
}

// Stats computes size statistics. Products counts synthetic categories too,
// so a product can be counted more than once.
func (idx Index) Stats() Stats {
	stats := Stats{
		Categories:  len(idx),
		PerCategory: make(map[string]int, len(idx)),
	}
	var bytes int64
	for id, c := range idx {
		stats.Products += c.Len()
		stats.PerCategory[id] = c.Len()
		if stats.Dimension == 0 {
			stats.Dimension = c.Dimension()
		}
		bytes += c.EmbeddingBytes()
	}
	stats.EmbeddingMB = float64(bytes) / (1024 * 1024)
	return stats
}
