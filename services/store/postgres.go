package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sjsage522/flooringscraper/internal/catalog"
	"sjsage522/flooringscraper/logger"
	scrapeerrors "sjsage522/flooringscraper/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS supplier_config (
	key TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	url TEXT NOT NULL,
	type TEXT NOT NULL,
	color TEXT NOT NULL DEFAULT '#3b82f6',
	protected BOOLEAN NOT NULL DEFAULT FALSE,
	enabled BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE TABLE IF NOT EXISTS products (
	id BIGSERIAL PRIMARY KEY,
	source TEXT NOT NULL,
	name TEXT NOT NULL,
	price NUMERIC(12, 2),
	price_display TEXT NOT NULL,
	url TEXT,
	image TEXT,
	category TEXT,
	sku TEXT,
	description TEXT
);
CREATE INDEX IF NOT EXISTS idx_products_source ON products (source);
CREATE TABLE IF NOT EXISTS scrape_log (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT,
	source TEXT NOT NULL,
	product_count INTEGER NOT NULL,
	products_with_price INTEGER NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	status TEXT NOT NULL
);`

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects using dsn. A non-empty password overrides the one in dsn.
func NewPostgresStore(ctx context.Context, dsn, password string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, scrapeerrors.NewStore("", "parse DATABASE_URL", err)
	}
	if password != "" {
		cfg.ConnConfig.Password = password
	}
	cfg.MaxConns = 4
	// poolers in front of hosted Postgres reject prepared statements
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, scrapeerrors.NewStore("", "connect postgres", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, scrapeerrors.NewStore("", "ping postgres", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, scrapeerrors.NewStore("", "create tables", err)
	}

	logger.ForStore().Debug().Str("host", cfg.ConnConfig.Host).Msg("Postgres store initialized")
	return &PostgresStore{pool: pool}, nil
}

// ListSuppliers implements Store
func (s *PostgresStore) ListSuppliers(ctx context.Context) ([]catalog.Vendor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, name, url, type, color, protected, enabled FROM supplier_config ORDER BY key`)
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
func (s *PostgresStore) GetSupplier(ctx context.Context, key string) (catalog.Vendor, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT key, name, url, type, color, protected, enabled FROM supplier_config WHERE key = $1`,
		strings.ToLower(key))
	v, err := scanSupplier(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Vendor{}, ErrSupplierNotFound
	}
	return v, err
}

// AddSupplier implements Store
func (s *PostgresStore) AddSupplier(ctx context.Context, vendor catalog.Vendor) error {
	v := normalizeSupplier(vendor)
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO supplier_config (key, name, url, type, color, protected, enabled)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (key) DO NOTHING`,
		v.Key, v.DisplayName, v.BaseURL, string(v.AdapterType), v.Color, v.Protected, v.Enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSupplierExists
	}
	return nil
}

// DeleteSupplier implements Store
func (s *PostgresStore) DeleteSupplier(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM supplier_config WHERE key = $1`, strings.ToLower(key))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSupplierNotFound
	}
	return nil
}

// ReplaceVendorCatalog implements Store
func (s *PostgresStore) ReplaceVendorCatalog(ctx context.Context, source string, products []catalog.Product) error {
	log := logger.ForStore()

	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE source = $1`, source)
	if err != nil {
		return scrapeerrors.NewStore(source, "delete products", err)
	}
	log.Debug().Str("source", source).Int64("deleted", tag.RowsAffected()).Msg("Cleared previous catalog")

	for i, rows := range batches(products) {
		b := &pgx.Batch{}
		for _, p := range rows {
			b.Queue(
				`INSERT INTO products (source, name, price, price_display, url, image, category, sku, description)
				 VALUES ($1, $2, $3::text::numeric, $4, $5, $6, $7, $8, $9)`,
				source, p.Name, priceText(p.Price), p.PriceDisplay, p.URL, p.Image, p.Category, p.SKU, p.Description,
			)
		}

		br := s.pool.SendBatch(ctx, b)
		for range rows {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return scrapeerrors.NewStore(source, fmt.Sprintf("insert batch %d", i+1), err)
			}
		}
		if err := br.Close(); err != nil {
			return scrapeerrors.NewStore(source, fmt.Sprintf("insert batch %d", i+1), err)
		}
		log.Debug().Str("source", source).Int("batch", i+1).Int("rows", len(rows)).Msg("Inserted product batch")
	}
	return nil
}

// ListProducts implements Store
func (s *PostgresStore) ListProducts(ctx context.Context, source string) ([]catalog.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source, name, price::text, price_display, COALESCE(url, ''), COALESCE(image, ''),
		        COALESCE(category, ''), COALESCE(sku, ''), COALESCE(description, '')
		 FROM products WHERE source = $1 ORDER BY id`, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		var p catalog.Product
		var priceRaw *string
		if err := rows.Scan(&p.Source, &p.Name, &priceRaw, &p.PriceDisplay,
			&p.URL, &p.Image, &p.Category, &p.SKU, &p.Description); err != nil {
			return nil, err
		}
		if priceRaw != nil {
			p.Price = parsePrice(*priceRaw, true)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// RecordRunOutcome implements Store
func (s *PostgresStore) RecordRunOutcome(ctx context.Context, o catalog.RunOutcome) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scrape_log (run_id, source, product_count, products_with_price, started_at, finished_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.RunID, o.Source, o.ProductCount, o.ProductsWithPrice, o.StartedAt, o.FinishedAt, o.Status)
	return err
}

// ListRunOutcomes implements Store, newest first
func (s *PostgresStore) ListRunOutcomes(ctx context.Context, limit int) ([]catalog.RunOutcome, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT COALESCE(run_id, ''), source, product_count, products_with_price, started_at,
		        COALESCE(finished_at, started_at), status
		 FROM scrape_log ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []catalog.RunOutcome
	for rows.Next() {
		var o catalog.RunOutcome
		if err := rows.Scan(&o.RunID, &o.Source, &o.ProductCount, &o.ProductsWithPrice,
			&o.StartedAt, &o.FinishedAt, &o.Status); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// Close closes the pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
