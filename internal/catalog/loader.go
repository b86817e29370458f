package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/catalog-search/internal/embedder"
	"github.com/dshills/catalog-search/internal/storage"
)

// Loader builds an Index from a catalog source
type Loader struct {
	Source    storage.CatalogSource
	Synthetic SyntheticSpec
	// Dimension is the expected embedding width; 0 takes it from the first product
	Dimension int
	Logger    *slog.Logger
}

// LoadStats describes one load
type LoadStats struct {
	Products          int
	Categories        int
	AttributeRows     map[string]int // per source table
	SkippedRows       map[string]int // rows whose product is not in the catalog
	SyntheticProducts int
	EmbeddingMB       float64
	Duration          time.Duration
}

// sourceRows is everything fetched from the source for one load
type sourceRows struct {
	products   []storage.ProductRow
	faucets    []storage.FaucetRow
	tiles      []storage.TileRow
	showers    []storage.ShowerSystemRow
	dimensions [][]storage.DimensionRow // aligned with storage.DimensionTables
}

// attributeRow is the table-independent shape attached to a category
type attributeRow struct {
	productID string
	flags     Attributes
}

// Load fetches the catalog and builds the index. Any malformed embedding
// aborts the load; no partial index is returned.
func (l *Loader) Load(ctx context.Context) (Index, *LoadStats, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	rows, err := l.fetch(ctx)
	if err != nil {
		return nil, nil, err
	}

	stats := &LoadStats{
		AttributeRows: make(map[string]int),
		SkippedRows:   make(map[string]int),
	}

	index, owners, err := l.buildCategories(rows.products)
	if err != nil {
		return nil, nil, err
	}
	stats.Products = len(rows.products)
	stats.Categories = len(index)
	logger.Info("loaded embeddings", "products", stats.Products, "categories", stats.Categories)

	attach := func(table string, attrs []attributeRow) {
		owner := ""
		for _, row := range attrs {
			catID, ok := owners[row.productID]
			if !ok {
				stats.SkippedRows[table]++
				continue
			}
			if owner == "" {
				owner = catID
			}
			index[catID].Filters[row.productID] = row.flags
		}
		stats.AttributeRows[table] = len(attrs)
		logger.Info("loaded attribute table", "table", table, "rows", len(attrs),
			"category", owner, "skipped", stats.SkippedRows[table])
	}

	attach("faucet", faucetAttributes(rows.faucets))
	attach("tile", tileAttributes(rows.tiles))
	attach("shower_system", showerAttributes(rows.showers))

	totalDims := 0
	for i, table := range storage.DimensionTables {
		for _, row := range rows.dimensions[i] {
			catID, ok := owners[row.ProductID]
			if !ok {
				stats.SkippedRows[table]++
				continue
			}
			index[catID].Dimensions[row.ProductID] = Dimensions{
				Length: measured(row.Length),
				Width:  measured(row.Width),
			}
		}
		stats.AttributeRows[table] = len(rows.dimensions[i])
		totalDims += len(rows.dimensions[i])
	}
	logger.Info("loaded dimensions", "rows", totalDims, "tables", len(storage.DimensionTables))

	if l.Synthetic.Enabled() {
		if _, exists := index[l.Synthetic.CategoryID]; exists {
			logger.Warn("synthetic category replaces a catalog category", "category", l.Synthetic.CategoryID)
		}
		synthetic := Synthesize(index, l.Synthetic)
		index[l.Synthetic.CategoryID] = synthetic
		stats.SyntheticProducts = synthetic.Len()
		logger.Info("built synthetic category", "category", l.Synthetic.CategoryID, "products", synthetic.Len())
	}

	if err := index.Validate(); err != nil {
		return nil, nil, err
	}

	stats.Categories = len(index)
	stats.EmbeddingMB = index.Stats().EmbeddingMB
	stats.Duration = time.Since(start)
	logger.Info("index ready", "embedding_mb", fmt.Sprintf("%.1f", stats.EmbeddingMB), "duration", stats.Duration)

	return index, stats, nil
}

// fetch reads all source tables concurrently
func (l *Loader) fetch(ctx context.Context) (*sourceRows, error) {
	if l.Source == nil {
		return nil, fmt.Errorf("catalog source is required")
	}

	rows := &sourceRows{dimensions: make([][]storage.DimensionRow, len(storage.DimensionTables))}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		rows.products, err = l.Source.ListProducts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		rows.faucets, err = l.Source.ListFaucets(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		rows.tiles, err = l.Source.ListTiles(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		rows.showers, err = l.Source.ListShowerSystems(gctx)
		return err
	})
	for i, table := range storage.DimensionTables {
		g.Go(func() error {
			dims, err := l.Source.ListDimensions(gctx, table)
			if err != nil {
				return err
			}
			rows.dimensions[i] = dims
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return rows, nil
}

// buildCategories groups products by category in fetch order and returns the
// reverse index product id -> category id
func (l *Loader) buildCategories(products []storage.ProductRow) (Index, map[string]string, error) {
	index := make(Index)
	owners := make(map[string]string, len(products))
	dim := l.Dimension

	for _, p := range products {
		vec, err := ParseEmbedding(p.Embedding)
		if err != nil {
			return nil, nil, fmt.Errorf("product %s: %w", p.ID, err)
		}
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) != dim {
			return nil, nil, fmt.Errorf("product %s: %w: got %d dimensions, want %d",
				p.ID, ErrMalformedEmbedding, len(vec), dim)
		}

		c, ok := index[p.CategoryID]
		if !ok {
			c = NewCategoryIndex()
			index[p.CategoryID] = c
		}
		c.appendProduct(p.ID, strings.ToLower(p.Name), embedder.NormalizeVector(vec))
		owners[p.ID] = p.CategoryID
	}
	return index, owners, nil
}

// ParseEmbedding decodes a stored embedding payload
func ParseEmbedding(payload []byte) ([]float32, error) {
	vec, err := storage.DecodeEmbedding(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEmbedding, err)
	}
	return vec, nil
}

func faucetAttributes(rows []storage.FaucetRow) []attributeRow {
	out := make([]attributeRow, len(rows))
	for i, r := range rows {
		out[i] = attributeRow{productID: r.ProductID, flags: Attributes{
			FlagSingleHole: r.SingleHole,
			FlagWidespread: r.EightInch,
			FlagCenterset:  r.FourInch,
		}}
	}
	return out
}

func tileAttributes(rows []storage.TileRow) []attributeRow {
	out := make([]attributeRow, len(rows))
	for i, r := range rows {
		out[i] = attributeRow{productID: r.ProductID, flags: Attributes{
			FlagWall:        r.Wall,
			FlagFloor:       r.Floor,
			FlagShowerWall:  r.ShowerWall,
			FlagShowerFloor: r.ShowerFloor,
		}}
	}
	return out
}

func showerAttributes(rows []storage.ShowerSystemRow) []attributeRow {
	out := make([]attributeRow, len(rows))
	for i, r := range rows {
		out[i] = attributeRow{productID: r.ProductID, flags: Attributes{
			FlagHasTubSpout: r.HasTubSpout,
		}}
	}
	return out
}

// measured treats a missing or zero measurement as unknown
func measured(v *float64) *float64 {
	if v == nil || *v == 0 {
		return nil
	}
	out := *v
	return &out
}
