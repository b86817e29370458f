// Package catalog holds the in-memory search index and the loader that builds it.
//
// An Index maps category id to a CategoryIndex: position-aligned product
// ids, unit-normalized name embeddings and lowercased names, plus sparse
// attribute flags and measurements keyed by product id. A product missing
// from those maps has unknown attributes, which is not the same as false.
//
// Loader reads every source table concurrently, groups products by category
// in source order, attaches attribute rows through a product id -> category
// reverse index and finally builds the configured synthetic category. The
// index is never modified after Load returns, so it can be shared across
// goroutines without locking.
package catalog
