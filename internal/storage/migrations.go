package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.1.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
	{
		Version: "1.1.0",
		Up:      migrationV11Up,
		Down:    migrationV11Down,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Products table
CREATE TABLE IF NOT EXISTS product (
    id TEXT PRIMARY KEY,
    category_id TEXT NOT NULL,
    name TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_product_category ON product(category_id);

-- Name embeddings, written by the offline embedding job
CREATE TABLE IF NOT EXISTS product_ai_data (
    product_id TEXT PRIMARY KEY,
    name_embedding BLOB NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (product_id) REFERENCES product(id) ON DELETE CASCADE
);

-- Faucet attributes
CREATE TABLE IF NOT EXISTS faucet (
    product_id TEXT PRIMARY KEY,
    single_hole_spacing_compatible INTEGER,
    four_inch_hole_spacing_compatible INTEGER,
    eight_inch_hole_spacing_compatible INTEGER
);

-- Tile attributes
CREATE TABLE IF NOT EXISTS tile (
    product_id TEXT PRIMARY KEY,
    available_for_wall INTEGER,
    available_for_floor INTEGER,
    available_for_shower_wall INTEGER,
    available_for_shower_floor INTEGER
);

-- Shower system attributes
CREATE TABLE IF NOT EXISTS shower_system (
    product_id TEXT PRIMARY KEY,
    has_tub_spout INTEGER
);
`

const migrationV1Down = `
DROP TABLE IF EXISTS shower_system;
DROP TABLE IF EXISTS tile;
DROP TABLE IF EXISTS faucet;
DROP TABLE IF EXISTS product_ai_data;
DROP TABLE IF EXISTS product;
DROP TABLE IF EXISTS schema_version;
`

const migrationV11Up = `
-- Shared render dimensions
CREATE TABLE IF NOT EXISTS renderable_product (
    id TEXT PRIMARY KEY,
    length REAL,
    width REAL
);

-- Dimension-bearing product tables
CREATE TABLE IF NOT EXISTS vanity (
    product_id TEXT PRIMARY KEY,
    render_id TEXT REFERENCES renderable_product(id)
);

CREATE TABLE IF NOT EXISTS mirror (
    product_id TEXT PRIMARY KEY,
    render_id TEXT REFERENCES renderable_product(id)
);

CREATE TABLE IF NOT EXISTS lighting (
    product_id TEXT PRIMARY KEY,
    render_id TEXT REFERENCES renderable_product(id)
);

CREATE TABLE IF NOT EXISTS shower_glass (
    product_id TEXT PRIMARY KEY,
    render_id TEXT REFERENCES renderable_product(id)
);

CREATE TABLE IF NOT EXISTS tub_door (
    product_id TEXT PRIMARY KEY,
    render_id TEXT REFERENCES renderable_product(id)
);
`

const migrationV11Down = `
DROP TABLE IF EXISTS tub_door;
DROP TABLE IF EXISTS shower_glass;
DROP TABLE IF EXISTS lighting;
DROP TABLE IF EXISTS mirror;
DROP TABLE IF EXISTS vanity;
DROP TABLE IF EXISTS renderable_product;
`

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	currentVersion, err := currentSchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		// Skip if already applied
		if !currentVersion.LessThan(migrationVersion) {
			continue
		}

		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		currentVersion = migrationVersion
	}

	return nil
}

// currentSchemaVersion returns the highest applied version, or 0.0.0 for a fresh database
func currentSchemaVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if err == sql.ErrNoRows {
		return semver.MustParse("0.0.0"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// applied_at has second resolution, so compare versions instead of ordering by time
	current := semver.MustParse("0.0.0")
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		parsed, err := semver.NewVersion(v)
		if err != nil {
			return nil, fmt.Errorf("invalid current schema version %s: %w", v, err)
		}
		if parsed.GreaterThan(current) {
			current = parsed
		}
	}
	return current, rows.Err()
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	current, err := currentSchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current.Equal(semver.MustParse("0.0.0")) {
		return fmt.Errorf("no migrations to rollback")
	}

	var migration *Migration
	for i := range AllMigrations {
		if semver.MustParse(AllMigrations[i].Version).Equal(current) {
			migration = &AllMigrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %s not found", current.Original())
	}

	// The 1.0.0 down script drops schema_version itself, so delete the record first
	if _, err := db.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", migration.Version); err != nil {
		return fmt.Errorf("failed to remove migration record %s: %w", migration.Version, err)
	}

	if _, err := db.ExecContext(ctx, migration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", migration.Version, err)
	}

	return nil
}
