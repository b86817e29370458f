package storage

import (
	"context"
)

// CatalogSource supplies the source-of-truth rows the in-memory index is built from
type CatalogSource interface {
	// ListProducts returns every product that has a name embedding, in source order
	ListProducts(ctx context.Context) ([]ProductRow, error)

	// Attribute tables
	ListFaucets(ctx context.Context) ([]FaucetRow, error)
	ListTiles(ctx context.Context) ([]TileRow, error)
	ListShowerSystems(ctx context.Context) ([]ShowerSystemRow, error)

	// ListDimensions returns length/width rows for one of DimensionTables
	ListDimensions(ctx context.Context, table string) ([]DimensionRow, error)
}

// Storage defines the interface for maintaining and reading catalog data
type Storage interface {
	CatalogSource

	// Product operations
	UpsertProduct(ctx context.Context, product *Product) error
	GetProduct(ctx context.Context, productID string) (*Product, error)

	// Attribute operations
	UpsertFaucet(ctx context.Context, row FaucetRow) error
	UpsertTile(ctx context.Context, row TileRow) error
	UpsertShowerSystem(ctx context.Context, row ShowerSystemRow) error
	UpsertDimensions(ctx context.Context, table string, row DimensionRow) error

	// Status operations
	GetStatus(ctx context.Context) (*CatalogStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// DimensionTables lists the attribute tables that carry a render_id into
// renderable_product. Table names are interpolated into SQL, so only these are accepted.
var DimensionTables = []string{"vanity", "mirror", "lighting", "shower_glass", "tub_door"}

// IsDimensionTable reports whether table is one of DimensionTables
func IsDimensionTable(table string) bool {
	for _, t := range DimensionTables {
		if t == table {
			return true
		}
	}
	return false
}

// Product is a catalog product together with its stored name embedding
type Product struct {
	ID         string
	CategoryID string
	Name       string
	Embedding  []byte // pgvector text ("[0.1,0.2]") or little-endian float32 blob
}

// ProductRow is one row of the product/product_ai_data join
type ProductRow struct {
	ID         string
	CategoryID string
	Name       string
	Embedding  []byte
}

// FaucetRow holds hole-spacing compatibility flags. NULL columns read as false.
type FaucetRow struct {
	ProductID  string
	SingleHole bool
	FourInch   bool // centerset
	EightInch  bool // widespread
}

// TileRow holds tile placement flags. NULL columns read as false.
type TileRow struct {
	ProductID   string
	Wall        bool
	Floor       bool
	ShowerWall  bool
	ShowerFloor bool
}

// ShowerSystemRow holds the tub spout flag. NULL reads as false.
type ShowerSystemRow struct {
	ProductID   string
	HasTubSpout bool
}

// DimensionRow holds the rendered product measurements. Nil means not recorded.
type DimensionRow struct {
	ProductID string
	RenderID  string
	Length    *float64
	Width     *float64
}

// CatalogStatus contains row counts for the catalog database
type CatalogStatus struct {
	ProductsCount     int
	EmbeddingsCount   int
	FaucetsCount      int
	TilesCount        int
	ShowerSystemCount int
	DimensionCounts   map[string]int
	DatabaseSizeMB    float64
	SchemaVersion     string
}
