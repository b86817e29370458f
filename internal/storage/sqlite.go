package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrUnknownTable is returned for a dimension table outside DimensionTables
	ErrUnknownTable = errors.New("unknown dimension table")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Product operations

// upsertProductWithQuerier writes the product row and its embedding row
func (s *SQLiteStorage) upsertProductWithQuerier(ctx context.Context, q querier, product *Product) error {
	if product.ID == "" {
		return fmt.Errorf("product id is required")
	}
	now := time.Now()
	_, err := q.ExecContext(ctx, `
		INSERT INTO product (id, category_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category_id = excluded.category_id,
			name = excluded.name,
			updated_at = excluded.updated_at
	`, product.ID, product.CategoryID, product.Name, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}

	if product.Embedding == nil {
		return nil
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO product_ai_data (product_id, name_embedding, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET
			name_embedding = excluded.name_embedding,
			updated_at = excluded.updated_at
	`, product.ID, product.Embedding, now)
	if err != nil {
		return fmt.Errorf("failed to upsert product embedding: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertProduct(ctx context.Context, product *Product) error {
	return s.upsertProductWithQuerier(ctx, s.querier(), product)
}

// getProductWithQuerier retrieves a product and its embedding, if any
func (s *SQLiteStorage) getProductWithQuerier(ctx context.Context, q querier, productID string) (*Product, error) {
	var product Product
	err := q.QueryRowContext(ctx, `
		SELECT p.id, p.category_id, p.name, pad.name_embedding
		FROM product p
		LEFT JOIN product_ai_data pad ON pad.product_id = p.id
		WHERE p.id = ?
	`, productID).Scan(&product.ID, &product.CategoryID, &product.Name, &product.Embedding)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *SQLiteStorage) GetProduct(ctx context.Context, productID string) (*Product, error) {
	return s.getProductWithQuerier(ctx, s.querier(), productID)
}

// listProductsWithQuerier returns products joined to their embeddings in insertion order
func (s *SQLiteStorage) listProductsWithQuerier(ctx context.Context, q querier) ([]ProductRow, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT p.id, p.category_id, p.name, pad.name_embedding
		FROM product p
		JOIN product_ai_data pad ON pad.product_id = p.id
		ORDER BY p.rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var products []ProductRow
	for rows.Next() {
		var row ProductRow
		if err := rows.Scan(&row.ID, &row.CategoryID, &row.Name, &row.Embedding); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, row)
	}
	return products, rows.Err()
}

func (s *SQLiteStorage) ListProducts(ctx context.Context) ([]ProductRow, error) {
	return s.listProductsWithQuerier(ctx, s.querier())
}

// Attribute operations

func (s *SQLiteStorage) upsertFaucetWithQuerier(ctx context.Context, q querier, row FaucetRow) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO faucet (product_id, single_hole_spacing_compatible,
		                    four_inch_hole_spacing_compatible, eight_inch_hole_spacing_compatible)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET
			single_hole_spacing_compatible = excluded.single_hole_spacing_compatible,
			four_inch_hole_spacing_compatible = excluded.four_inch_hole_spacing_compatible,
			eight_inch_hole_spacing_compatible = excluded.eight_inch_hole_spacing_compatible
	`, row.ProductID, row.SingleHole, row.FourInch, row.EightInch)
	if err != nil {
		return fmt.Errorf("failed to upsert faucet: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertFaucet(ctx context.Context, row FaucetRow) error {
	return s.upsertFaucetWithQuerier(ctx, s.querier(), row)
}

func (s *SQLiteStorage) listFaucetsWithQuerier(ctx context.Context, q querier) ([]FaucetRow, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT product_id,
		       single_hole_spacing_compatible,
		       four_inch_hole_spacing_compatible,
		       eight_inch_hole_spacing_compatible
		FROM faucet
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list faucets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []FaucetRow
	for rows.Next() {
		var pid string
		var single, four, eight sql.NullBool
		if err := rows.Scan(&pid, &single, &four, &eight); err != nil {
			return nil, fmt.Errorf("failed to scan faucet: %w", err)
		}
		result = append(result, FaucetRow{
			ProductID:  pid,
			SingleHole: single.Valid && single.Bool,
			FourInch:   four.Valid && four.Bool,
			EightInch:  eight.Valid && eight.Bool,
		})
	}
	return result, rows.Err()
}

func (s *SQLiteStorage) ListFaucets(ctx context.Context) ([]FaucetRow, error) {
	return s.listFaucetsWithQuerier(ctx, s.querier())
}

func (s *SQLiteStorage) upsertTileWithQuerier(ctx context.Context, q querier, row TileRow) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO tile (product_id, available_for_wall, available_for_floor,
		                  available_for_shower_wall, available_for_shower_floor)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET
			available_for_wall = excluded.available_for_wall,
			available_for_floor = excluded.available_for_floor,
			available_for_shower_wall = excluded.available_for_shower_wall,
			available_for_shower_floor = excluded.available_for_shower_floor
	`, row.ProductID, row.Wall, row.Floor, row.ShowerWall, row.ShowerFloor)
	if err != nil {
		return fmt.Errorf("failed to upsert tile: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertTile(ctx context.Context, row TileRow) error {
	return s.upsertTileWithQuerier(ctx, s.querier(), row)
}

func (s *SQLiteStorage) listTilesWithQuerier(ctx context.Context, q querier) ([]TileRow, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT product_id,
		       available_for_wall,
		       available_for_floor,
		       available_for_shower_wall,
		       available_for_shower_floor
		FROM tile
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []TileRow
	for rows.Next() {
		var pid string
		var wall, floor, showerWall, showerFloor sql.NullBool
		if err := rows.Scan(&pid, &wall, &floor, &showerWall, &showerFloor); err != nil {
			return nil, fmt.Errorf("failed to scan tile: %w", err)
		}
		result = append(result, TileRow{
			ProductID:   pid,
			Wall:        wall.Valid && wall.Bool,
			Floor:       floor.Valid && floor.Bool,
			ShowerWall:  showerWall.Valid && showerWall.Bool,
			ShowerFloor: showerFloor.Valid && showerFloor.Bool,
		})
	}
	return result, rows.Err()
}

func (s *SQLiteStorage) ListTiles(ctx context.Context) ([]TileRow, error) {
	return s.listTilesWithQuerier(ctx, s.querier())
}

func (s *SQLiteStorage) upsertShowerSystemWithQuerier(ctx context.Context, q querier, row ShowerSystemRow) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO shower_system (product_id, has_tub_spout)
		VALUES (?, ?)
		ON CONFLICT(product_id) DO UPDATE SET has_tub_spout = excluded.has_tub_spout
	`, row.ProductID, row.HasTubSpout)
	if err != nil {
		return fmt.Errorf("failed to upsert shower system: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertShowerSystem(ctx context.Context, row ShowerSystemRow) error {
	return s.upsertShowerSystemWithQuerier(ctx, s.querier(), row)
}

func (s *SQLiteStorage) listShowerSystemsWithQuerier(ctx context.Context, q querier) ([]ShowerSystemRow, error) {
	rows, err := q.QueryContext(ctx, `SELECT product_id, has_tub_spout FROM shower_system ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list shower systems: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []ShowerSystemRow
	for rows.Next() {
		var pid string
		var spout sql.NullBool
		if err := rows.Scan(&pid, &spout); err != nil {
			return nil, fmt.Errorf("failed to scan shower system: %w", err)
		}
		result = append(result, ShowerSystemRow{ProductID: pid, HasTubSpout: spout.Valid && spout.Bool})
	}
	return result, rows.Err()
}

func (s *SQLiteStorage) ListShowerSystems(ctx context.Context) ([]ShowerSystemRow, error) {
	return s.listShowerSystemsWithQuerier(ctx, s.querier())
}

// upsertDimensionsWithQuerier writes the render row and links the product to it
func (s *SQLiteStorage) upsertDimensionsWithQuerier(ctx context.Context, q querier, table string, row DimensionRow) error {
	if !IsDimensionTable(table) {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	renderID := row.RenderID
	if renderID == "" {
		renderID = row.ProductID
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO renderable_product (id, length, width)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET length = excluded.length, width = excluded.width
	`, renderID, nullFloat(row.Length), nullFloat(row.Width))
	if err != nil {
		return fmt.Errorf("failed to upsert renderable product: %w", err)
	}

	// table is whitelisted above
	_, err = q.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (product_id, render_id)
		VALUES (?, ?)
		ON CONFLICT(product_id) DO UPDATE SET render_id = excluded.render_id
	`, table), row.ProductID, renderID)
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", table, err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertDimensions(ctx context.Context, table string, row DimensionRow) error {
	return s.upsertDimensionsWithQuerier(ctx, s.querier(), table, row)
}

func (s *SQLiteStorage) listDimensionsWithQuerier(ctx context.Context, q querier, table string) ([]DimensionRow, error) {
	if !IsDimensionTable(table) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT t.product_id, rp.id, rp.length, rp.width
		FROM %s t
		JOIN renderable_product rp ON rp.id = t.render_id
		ORDER BY t.rowid
	`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s dimensions: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var result []DimensionRow
	for rows.Next() {
		var row DimensionRow
		var length, width sql.NullFloat64
		if err := rows.Scan(&row.ProductID, &row.RenderID, &length, &width); err != nil {
			return nil, fmt.Errorf("failed to scan %s dimensions: %w", table, err)
		}
		if length.Valid {
			row.Length = &length.Float64
		}
		if width.Valid {
			row.Width = &width.Float64
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (s *SQLiteStorage) ListDimensions(ctx context.Context, table string) ([]DimensionRow, error) {
	return s.listDimensionsWithQuerier(ctx, s.querier(), table)
}

// Status operations

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*CatalogStatus, error) {
	status := &CatalogStatus{
		DimensionCounts: make(map[string]int, len(DimensionTables)),
	}

	counts := []struct {
		table string
		dest  *int
	}{
		{"product", &status.ProductsCount},
		{"product_ai_data", &status.EmbeddingsCount},
		{"faucet", &status.FaucetsCount},
		{"tile", &status.TilesCount},
		{"shower_system", &status.ShowerSystemCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}

	for _, table := range DimensionTables {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		status.DimensionCounts[table] = n
	}

	// Calculate database size
	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.DatabaseSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	version, err := currentSchemaVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version.String()

	return status, nil
}

// nullFloat converts an optional float to a driver value
func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// Transaction implementations

func (t *sqliteTx) UpsertProduct(ctx context.Context, product *Product) error {
	return t.storage.upsertProductWithQuerier(ctx, t.querier(), product)
}

func (t *sqliteTx) GetProduct(ctx context.Context, productID string) (*Product, error) {
	return t.storage.getProductWithQuerier(ctx, t.querier(), productID)
}

func (t *sqliteTx) ListProducts(ctx context.Context) ([]ProductRow, error) {
	return t.storage.listProductsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) UpsertFaucet(ctx context.Context, row FaucetRow) error {
	return t.storage.upsertFaucetWithQuerier(ctx, t.querier(), row)
}

func (t *sqliteTx) ListFaucets(ctx context.Context) ([]FaucetRow, error) {
	return t.storage.listFaucetsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) UpsertTile(ctx context.Context, row TileRow) error {
	return t.storage.upsertTileWithQuerier(ctx, t.querier(), row)
}

func (t *sqliteTx) ListTiles(ctx context.Context) ([]TileRow, error) {
	return t.storage.listTilesWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) UpsertShowerSystem(ctx context.Context, row ShowerSystemRow) error {
	return t.storage.upsertShowerSystemWithQuerier(ctx, t.querier(), row)
}

func (t *sqliteTx) ListShowerSystems(ctx context.Context) ([]ShowerSystemRow, error) {
	return t.storage.listShowerSystemsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) UpsertDimensions(ctx context.Context, table string, row DimensionRow) error {
	return t.storage.upsertDimensionsWithQuerier(ctx, t.querier(), table, row)
}

func (t *sqliteTx) ListDimensions(ctx context.Context, table string) ([]DimensionRow, error) {
	return t.storage.listDimensionsWithQuerier(ctx, t.querier(), table)
}

// GetStatus reads committed state through the parent connection
func (t *sqliteTx) GetStatus(ctx context.Context) (*CatalogStatus, error) {
	return nil, fmt.Errorf("status not available inside a transaction")
}

func (t *sqliteTx) Close() error {
	return fmt.Errorf("cannot close storage from within a transaction")
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}
