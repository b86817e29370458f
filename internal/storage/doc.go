// Package storage provides SQLite-based access to the product catalog.
//
// The catalog database is the source of truth the in-memory search index is
// built from. It is written by the offline embedding job and by catalog
// maintenance tooling; the search service only reads it at startup.
//
// # Database Schema
//
// Tables:
//   - product: id, category_id, name
//   - product_ai_data: name_embedding per product (pgvector text or float32 blob)
//   - faucet: hole spacing compatibility flags
//   - tile: placement flags (wall, floor, shower wall, shower floor)
//   - shower_system: tub spout flag
//   - renderable_product: shared length/width measurements
//   - vanity, mirror, lighting, shower_glass, tub_door: product -> render link
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("/var/lib/catalog/catalog.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	products, err := db.ListProducts(ctx)
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go). Building with
// -tags sqlite_cgo switches to github.com/mattn/go-sqlite3.
package storage
