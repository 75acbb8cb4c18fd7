// Package store persists supplier configuration, vendor catalogs and the scrape log.
package store

import (
	"context"
	"errors"
	"strings"

	"sjsage522/flooringscraper/internal/catalog"
)

// BatchSize is the number of product rows written per insert batch
const BatchSize = 500

// DefaultColor is applied to suppliers added without a color
const DefaultColor = "#3b82f6"

var (
	// ErrSupplierNotFound is returned when no registry row matches the key
	ErrSupplierNotFound = errors.New("supplier not found")
	// ErrSupplierExists is returned when adding a key that is already registered
	ErrSupplierExists = errors.New("supplier already exists")
)

// Store is the persistence boundary
type Store interface {
	// ListSuppliers returns every registry row, enabled or not
	ListSuppliers(ctx context.Context) ([]catalog.Vendor, error)
	GetSupplier(ctx context.Context, key string) (catalog.Vendor, error)
	AddSupplier(ctx context.Context, vendor catalog.Vendor) error
	DeleteSupplier(ctx context.Context, key string) error

	// ReplaceVendorCatalog deletes every product for source, then inserts
	// products in batches of BatchSize. The two steps are not atomic.
	ReplaceVendorCatalog(ctx context.Context, source string, products []catalog.Product) error
	ListProducts(ctx context.Context, source string) ([]catalog.Product, error)

	RecordRunOutcome(ctx context.Context, outcome catalog.RunOutcome) error
	ListRunOutcomes(ctx context.Context, limit int) ([]catalog.RunOutcome, error)

	Close() error
}

// EnabledOnly filters registry rows down to the ones eligible for a default run
func EnabledOnly(vendors []catalog.Vendor) []catalog.Vendor {
	out := make([]catalog.Vendor, 0, len(vendors))
	for _, v := range vendors {
		if v.Enabled {
			out = append(out, v)
		}
	}
	return out
}

func batches(products []catalog.Product) [][]catalog.Product {
	var out [][]catalog.Product
	for i := 0; i < len(products); i += BatchSize {
		end := min(i+BatchSize, len(products))
		out = append(out, products[i:end])
	}
	return out
}

func normalizeSupplier(v catalog.Vendor) catalog.Vendor {
	v.Key = strings.ToLower(strings.TrimSpace(v.Key))
	if v.Color == "" {
		v.Color = DefaultColor
	}
	return v
}
