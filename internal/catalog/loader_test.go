package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/catalog-search/internal/storage"
)

const (
	faucetCat = "cat-faucet"
	tileCat   = "cat-tile"
	lvpCat    = "cat-lvp"
	vanityCat = "cat-vanity"
	floorCat  = "cat-flooring"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedCatalog(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	products := []storage.Product{
		{ID: "F1", CategoryID: faucetCat, Name: "Matte Black Faucet", Embedding: []byte("[1,0,0]")},
		{ID: "F2", CategoryID: faucetCat, Name: "Chrome Widespread Faucet", Embedding: storage.EncodeVectorBlob([]float32{0, 2, 0})},
		{ID: "L1", CategoryID: lvpCat, Name: "Oak Plank", Embedding: []byte("[0,0,1]")},
		{ID: "L2", CategoryID: lvpCat, Name: "Grey Plank", Embedding: []byte("[0,1,0]")},
		{ID: "T1", CategoryID: tileCat, Name: "Marble Floor Tile", Embedding: []byte("[0.6,0.8,0]")},
		{ID: "T2", CategoryID: tileCat, Name: "Glass Wall Tile", Embedding: []byte("[0.8,0.6,0]")},
		{ID: "V1", CategoryID: vanityCat, Name: "Double Vanity", Embedding: []byte("[1,1,0]")},
		{ID: "V2", CategoryID: vanityCat, Name: "Compact Vanity", Embedding: []byte("[1,0,1]")},
		{ID: "X1", CategoryID: vanityCat, Name: "No Embedding"},
	}
	for i := range products {
		require.NoError(t, db.UpsertProduct(ctx, &products[i]))
	}

	require.NoError(t, db.UpsertFaucet(ctx, storage.FaucetRow{ProductID: "F1", SingleHole: true}))
	require.NoError(t, db.UpsertFaucet(ctx, storage.FaucetRow{ProductID: "F2", EightInch: true}))
	require.NoError(t, db.UpsertFaucet(ctx, storage.FaucetRow{ProductID: "GONE", SingleHole: true}))
	require.NoError(t, db.UpsertTile(ctx, storage.TileRow{ProductID: "T1", Floor: true, ShowerFloor: true}))
	require.NoError(t, db.UpsertTile(ctx, storage.TileRow{ProductID: "T2", Wall: true}))

	length, width, zero := 60.0, 21.0, 0.0
	require.NoError(t, db.UpsertDimensions(ctx, "vanity", storage.DimensionRow{ProductID: "V1", Length: &length, Width: &width}))
	require.NoError(t, db.UpsertDimensions(ctx, "vanity", storage.DimensionRow{ProductID: "V2", Length: &zero}))

	return db
}

func TestLoader_Load(t *testing.T) {
	db := seedCatalog(t)
	loader := &Loader{
		Source: db,
		Synthetic: SyntheticSpec{
			CategoryID:       floorCat,
			BaseCategoryID:   lvpCat,
			SubsetCategoryID: tileCat,
			SubsetFlag:       FlagFloor,
		},
		Logger: quietLogger(),
	}

	idx, stats, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, idx.Validate())

	t.Run("groups by category in source order", func(t *testing.T) {
		faucets, ok := idx.Category(faucetCat)
		require.True(t, ok)
		assert.Equal(t, []string{"F1", "F2"}, faucets.ProductIDs)
		assert.Equal(t, []string{"matte black faucet", "chrome widespread faucet"}, faucets.Names)

		vanities := idx[vanityCat]
		assert.Equal(t, []string{"V1", "V2"}, vanities.ProductIDs)
	})

	t.Run("embeddings are unit length", func(t *testing.T) {
		assert.Equal(t, []float32{0, 1, 0}, idx[faucetCat].Embeddings[1])
		v1 := idx[vanityCat].Embeddings[0]
		assert.InDelta(t, 0.70710678, v1[0], 1e-6)
		assert.InDelta(t, 0.70710678, v1[1], 1e-6)
	})

	t.Run("attributes attach to the owning category", func(t *testing.T) {
		faucets := idx[faucetCat]
		assert.Equal(t, Attributes{FlagSingleHole: true, FlagWidespread: false, FlagCenterset: false}, faucets.Filters["F1"])
		assert.True(t, faucets.Filters["F2"][FlagWidespread])
		_, unknown := faucets.Filters["GONE"]
		assert.False(t, unknown)

		tiles := idx[tileCat]
		assert.True(t, tiles.Filters["T1"][FlagFloor])
		assert.True(t, tiles.Filters["T1"][FlagShowerFloor])
		assert.False(t, tiles.Filters["T2"][FlagFloor])

		assert.Empty(t, idx[lvpCat].Filters)
	})

	t.Run("dimensions treat zero as unknown", func(t *testing.T) {
		v1, ok := idx[vanityCat].DimensionsOf("V1")
		require.True(t, ok)
		require.NotNil(t, v1.Length)
		assert.Equal(t, 60.0, *v1.Length)
		assert.Equal(t, 21.0, *v1.Width)

		v2, ok := idx[vanityCat].DimensionsOf("V2")
		require.True(t, ok)
		assert.Nil(t, v2.Length)
		assert.Nil(t, v2.Width)
	})

	t.Run("synthetic category", func(t *testing.T) {
		flooring, ok := idx.Category(floorCat)
		require.True(t, ok)
		assert.Equal(t, []string{"L1", "L2", "T1"}, flooring.ProductIDs)
		assert.Equal(t, idx[tileCat].Embeddings[0], flooring.Embeddings[2])
		assert.Equal(t, "marble floor tile", flooring.Names[2])
		assert.Empty(t, flooring.Filters)
	})

	t.Run("stats", func(t *testing.T) {
		assert.Equal(t, 8, stats.Products)
		assert.Equal(t, 5, stats.Categories)
		assert.Equal(t, 3, stats.AttributeRows["faucet"])
		assert.Equal(t, 1, stats.SkippedRows["faucet"])
		assert.Equal(t, 2, stats.AttributeRows["vanity"])
		assert.Equal(t, 3, stats.SyntheticProducts)
		assert.Greater(t, stats.EmbeddingMB, 0.0)
	})
}

func TestLoader_Deterministic(t *testing.T) {
	db := seedCatalog(t)
	loader := &Loader{Source: db, Logger: quietLogger()}

	first, _, err := loader.Load(context.Background())
	require.NoError(t, err)
	second, _, err := loader.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLoader_MalformedEmbeddingAborts(t *testing.T) {
	db := seedCatalog(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertProduct(ctx, &storage.Product{
		ID: "BAD", CategoryID: faucetCat, Name: "Broken", Embedding: []byte("[0.1,oops]"),
	}))

	idx, stats, err := (&Loader{Source: db, Logger: quietLogger()}).Load(ctx)
	assert.ErrorIs(t, err, ErrMalformedEmbedding)
	assert.Contains(t, err.Error(), "BAD")
	assert.Nil(t, idx)
	assert.Nil(t, stats)
}

func TestLoader_DimensionMismatchAborts(t *testing.T) {
	db := seedCatalog(t)
	ctx := context.Background()

	t.Run("configured dimension", func(t *testing.T) {
		_, _, err := (&Loader{Source: db, Dimension: 1024, Logger: quietLogger()}).Load(ctx)
		assert.ErrorIs(t, err, ErrMalformedEmbedding)
	})

	t.Run("inferred dimension", func(t *testing.T) {
		require.NoError(t, db.UpsertProduct(ctx, &storage.Product{
			ID: "SHORT", CategoryID: tileCat, Name: "Short", Embedding: []byte("[1,0]"),
		}))
		_, _, err := (&Loader{Source: db, Logger: quietLogger()}).Load(ctx)
		assert.ErrorIs(t, err, ErrMalformedEmbedding)
		assert.Contains(t, err.Error(), "SHORT")
	})
}

func TestLoader_SyntheticReplacesCollidingCategory(t *testing.T) {
	db := seedCatalog(t)
	loader := &Loader{
		Source: db,
		Synthetic: SyntheticSpec{
			CategoryID:       vanityCat,
			BaseCategoryID:   lvpCat,
			SubsetCategoryID: tileCat,
			SubsetFlag:       FlagFloor,
		},
		Logger: quietLogger(),
	}

	idx, _, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"L1", "L2", "T1"}, idx[vanityCat].ProductIDs)
	assert.Empty(t, idx[vanityCat].Dimensions)
}

func TestLoader_SyntheticWithMissingSource(t *testing.T) {
	db := seedCatalog(t)
	loader := &Loader{
		Source: db,
		Synthetic: SyntheticSpec{
			CategoryID:       floorCat,
			BaseCategoryID:   "not-loaded",
			SubsetCategoryID: tileCat,
			SubsetFlag:       FlagFloor,
		},
		Logger: quietLogger(),
	}

	idx, stats, err := loader.Load(context.Background())
	require.NoError(t, err)
	flooring, ok := idx.Category(floorCat)
	require.True(t, ok)
	assert.Equal(t, 0, flooring.Len())
	assert.Equal(t, 0, stats.SyntheticProducts)
}

// failingSource fails one table so the whole load must fail
type failingSource struct {
	storage.CatalogSource
	err error
}

func (f *failingSource) ListTiles(ctx context.Context) ([]storage.TileRow, error) {
	return nil, f.err
}

func TestLoader_SourceError(t *testing.T) {
	db := seedCatalog(t)
	cause := errors.New("connection reset")

	_, _, err := (&Loader{Source: &failingSource{CatalogSource: db, err: cause}, Logger: quietLogger()}).Load(context.Background())
	assert.ErrorIs(t, err, cause)

	_, _, err = (&Loader{Logger: quietLogger()}).Load(context.Background())
	assert.Error(t, err)
}
