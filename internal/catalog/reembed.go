package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/catalog-search/internal/embedder"
	"github.com/dshills/catalog-search/internal/storage"
)

// DefaultReembedWorkers bounds concurrent embedder calls during a reembed
const DefaultReembedWorkers = 4

// Reembedder regenerates the stored name embedding of every product with
// the given embedder. Vectors are unit-normalized and written as vector text
// in one transaction, so a failed run leaves the catalog unchanged.
type Reembedder struct {
	Store    storage.Storage
	Embedder embedder.Embedder
	Workers  int
	Logger   *slog.Logger
}

// ReembedStats describes one reembed run
type ReembedStats struct {
	Products  int
	Skipped   int // products with an empty name keep their stored vector
	Dimension int
	// SelfCheck is the cosine between the first product's stored vector and a
	// fresh encode of the same name; anything far from 1 means a nondeterministic model
	SelfCheck float64
	Duration  time.Duration
}

// Run reembeds all products
func (r *Reembedder) Run(ctx context.Context) (*ReembedStats, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := r.Workers
	if workers <= 0 {
		workers = DefaultReembedWorkers
	}
	start := time.Now()

	products, err := r.Store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	logger.Info("reembedding products", "products", len(products), "provider", r.Embedder.Provider(), "model", r.Embedder.Model())

	vectors := make([][]float32, len(products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range products {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		g.Go(func() error {
			vec, err := r.encode(gctx, p.Name)
			if err != nil {
				return fmt.Errorf("product %s: %w", p.ID, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &ReembedStats{}
	first := -1
	for i, vec := range vectors {
		if vec == nil {
			stats.Skipped++
			continue
		}
		stats.Products++
		if first < 0 {
			first = i
		}
	}
	if first < 0 {
		stats.Duration = time.Since(start)
		return stats, nil
	}
	stats.Dimension = len(vectors[first])

	check, err := r.encode(ctx, products[first].Name)
	if err != nil {
		return nil, fmt.Errorf("self check: %w", err)
	}
	stats.SelfCheck = cosine(vectors[first], check)
	if math.Abs(stats.SelfCheck-1) > 1e-3 {
		logger.Warn("embedder self check drifted", "cosine", stats.SelfCheck)
	}

	tx, err := r.Store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	written := 0
	for i, p := range products {
		if vectors[i] == nil {
			continue
		}
		err := tx.UpsertProduct(ctx, &storage.Product{
			ID:         p.ID,
			CategoryID: p.CategoryID,
			Name:       p.Name,
			Embedding:  storage.EncodeVectorText(vectors[i]),
		})
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("write product %s: %w", p.ID, err)
		}
		written++
		if written%500 == 0 {
			logger.Info("reembed progress", "written", written, "total", stats.Products)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	stats.Duration = time.Since(start)
	logger.Info("reembed complete", "products", stats.Products, "skipped", stats.Skipped, "dimension", stats.Dimension, "duration", stats.Duration)
	return stats, nil
}

func (r *Reembedder) encode(ctx context.Context, text string) ([]float32, error) {
	emb, err := r.Embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		return nil, err
	}
	return embedder.NormalizeVector(emb.Vector), nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
