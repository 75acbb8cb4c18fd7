package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sjsage522/flooringscraper/internal/catalog"
	"sjsage522/flooringscraper/logger"
	scrapeerrors "sjsage522/flooringscraper/pkg/errors"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS supplier_config (
	"key" TEXT NOT NULL PRIMARY KEY,
	"name" TEXT NOT NULL,
	"url" TEXT NOT NULL,
	"type" TEXT NOT NULL,
	"color" TEXT NOT NULL DEFAULT '#3b82f6',
	"protected" INTEGER NOT NULL DEFAULT 0,
	"enabled" INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS products (
	"id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
	"source" TEXT NOT NULL,
	"name" TEXT NOT NULL,
	"price" TEXT,
	"price_display" TEXT NOT NULL,
	"url" TEXT,
	"image" TEXT,
	"category" TEXT,
	"sku" TEXT,
	"description" TEXT
);
CREATE INDEX IF NOT EXISTS idx_products_source ON products ("source");
CREATE TABLE IF NOT EXISTS scrape_log (
	"id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
	"run_id" TEXT,
	"source" TEXT NOT NULL,
	"product_count" INTEGER NOT NULL,
	"products_with_price" INTEGER NOT NULL,
	"started_at" TEXT NOT NULL,
	"finished_at" TEXT,
	"status" TEXT NOT NULL
);`

// SQLiteStore implements Store on a local SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens path and creates the tables if needed
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, scrapeerrors.NewStore("", "open sqlite", err)
	}
	// in-memory databases exist per connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, scrapeerrors.NewStore("", "ping sqlite", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, scrapeerrors.NewStore("", "create tables", err)
	}

	logger.ForStore().Debug().Str("path", path).Msg("SQLite store initialized")
	return &SQLiteStore{db: db}, nil
}

// ListSuppliers implements Store
func (s *SQLiteStore) ListSuppliers(ctx context.Context) ([]catalog.Vendor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT "key", "name", "url", "type", "color", "protected", "enabled" FROM supplier_config ORDER BY "key"`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vendors []catalog.Vendor
	for rows.Next() {
		v, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

// GetSupplier implements Store
func (s *SQLiteStore) GetSupplier(ctx context.Context, key string) (catalog.Vendor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT "key", "name", "url", "type", "color", "protected", "enabled" FROM supplier_config WHERE "key" = ?`,
		strings.ToLower(key))
	v, err := scanSupplier(row)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Vendor{}, ErrSupplierNotFound
	}
	return v, err
}

// AddSupplier implements Store
func (s *SQLiteStore) AddSupplier(ctx context.Context, vendor catalog.Vendor) error {
	v := normalizeSupplier(vendor)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO supplier_config ("key", "name", "url", "type", "color", "protected", "enabled")
		 VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT ("key") DO NOTHING`,
		v.Key, v.DisplayName, v.BaseURL, string(v.AdapterType), v.Color, v.Protected, v.Enabled)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSupplierExists
	}
	return nil
}

// DeleteSupplier implements Store
func (s *SQLiteStore) DeleteSupplier(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM supplier_config WHERE "key" = ?`, strings.ToLower(key))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSupplierNotFound
	}
	return nil
}

// ReplaceVendorCatalog implements Store
func (s *SQLiteStore) ReplaceVendorCatalog(ctx context.Context, source string, products []catalog.Product) error {
	log := logger.ForStore()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE "source" = ?`, source); err != nil {
		return scrapeerrors.NewStore(source, "delete products", err)
	}

	for i, batch := range batches(products) {
		if err := s.insertBatch(ctx, source, batch); err != nil {
			return scrapeerrors.NewStore(source, fmt.Sprintf("insert batch %d", i+1), err)
		}
		log.Debug().Str("source", source).Int("batch", i+1).Int("rows", len(batch)).Msg("Inserted product batch")
	}
	return nil
}

func (s *SQLiteStore) insertBatch(ctx context.Context, source string, batch []catalog.Product) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO products ("source", "name", "price", "price_display", "url", "image", "category", "sku", "description")
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range batch {
		if _, err := stmt.ExecContext(ctx, source, p.Name, priceText(p.Price), p.PriceDisplay,
			p.URL, p.Image, p.Category, p.SKU, p.Description); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListProducts implements Store
func (s *SQLiteStore) ListProducts(ctx context.Context, source string) ([]catalog.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT "source", "name", "price", "price_display", "url", "image", "category", "sku", "description"
		 FROM products WHERE "source" = ? ORDER BY "id"`, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		var p catalog.Product
		var priceRaw, url, image, category, sku, description sql.NullString
		if err := rows.Scan(&p.Source, &p.Name, &priceRaw, &p.PriceDisplay,
			&url, &image, &category, &sku, &description); err != nil {
			return nil, err
		}
		p.Price = parsePrice(priceRaw.String, priceRaw.Valid)
		p.URL, p.Image, p.Category, p.SKU, p.Description = url.String, image.String, category.String, sku.String, description.String
		products = append(products, p)
	}
	return products, rows.Err()
}

// RecordRunOutcome implements Store
func (s *SQLiteStore) RecordRunOutcome(ctx context.Context, o catalog.RunOutcome) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scrape_log ("run_id", "source", "product_count", "products_with_price", "started_at", "finished_at", "status")
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, o.Source, o.ProductCount, o.ProductsWithPrice,
		o.StartedAt.UTC().Format(time.RFC3339Nano), o.FinishedAt.UTC().Format(time.RFC3339Nano), o.Status)
	return err
}

// ListRunOutcomes implements Store, newest first
func (s *SQLiteStore) ListRunOutcomes(ctx context.Context, limit int) ([]catalog.RunOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT "run_id", "source", "product_count", "products_with_price", "started_at", "finished_at", "status"
		 FROM scrape_log ORDER BY "id" DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []catalog.RunOutcome
	for rows.Next() {
		var (
			o               catalog.RunOutcome
			runID, finished sql.NullString
			started         string
		)
		if err := rows.Scan(&runID, &o.Source, &o.ProductCount, &o.ProductsWithPrice, &started, &finished, &o.Status); err != nil {
			return nil, err
		}
		o.RunID = runID.String
		o.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if finished.Valid {
			o.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSupplier(row rowScanner) (catalog.Vendor, error) {
	var (
		v       catalog.Vendor
		adapter string
	)
	if err := row.Scan(&v.Key, &v.DisplayName, &v.BaseURL, &adapter, &v.Color, &v.Protected, &v.Enabled); err != nil {
		return catalog.Vendor{}, err
	}
	v.AdapterType = catalog.AdapterType(adapter)
	return v, nil
}

func priceText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parsePrice(raw string, valid bool) *decimal.Decimal {
	if !valid || raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	return &d
}
