// Package catalog holds the canonical product schema shared by every vendor adapter.
package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AdapterType selects the access surface used to read a vendor's catalog
type AdapterType string

const (
	// AdapterHTML walks configured category listing pages
	AdapterHTML AdapterType = "custom"
	// AdapterStoreAPI reads the WooCommerce Store API
	AdapterStoreAPI AdapterType = "store-api"
	// AdapterCommerceJSON reads a Shopify-style products.json feed
	AdapterCommerceJSON AdapterType = "commerce-json"
)

// Normalize maps registry spellings onto the canonical adapter types
func (t AdapterType) Normalize() (AdapterType, bool) {
	switch strings.ToLower(strings.TrimSpace(string(t))) {
	case "custom", "html":
		return AdapterHTML, true
	case "store-api", "woocommerce":
		return AdapterStoreAPI, true
	case "commerce-json", "shopify":
		return AdapterCommerceJSON, true
	}
	return t, false
}

// Vendor is one supplier entry from the registry
type Vendor struct {
	Key         string      `json:"key"`
	DisplayName string      `json:"name"`
	BaseURL     string      `json:"url"`
	AdapterType AdapterType `json:"type"`
	Enabled     bool        `json:"enabled"`
	Color       string      `json:"color"`
	Protected   bool        `json:"protected"`
}

// Product is the canonical record produced for a single catalog entry
type Product struct {
	Source       string           `json:"source"`
	Name         string           `json:"name"`
	Price        *decimal.Decimal `json:"price"`
	PriceDisplay string           `json:"price_display"`
	URL          string           `json:"url"`
	Image        string           `json:"image"`
	Category     string           `json:"category"`
	SKU          string           `json:"sku,omitempty"`
	Description  string           `json:"description,omitempty"`
}

// HasPrice reports whether the product carries a numeric price
func (p Product) HasPrice() bool {
	return p.Price != nil
}

// CountPriced returns how many products carry a numeric price
func CountPriced(products []Product) int {
	n := 0
	for _, p := range products {
		if p.HasPrice() {
			n++
		}
	}
	return n
}

// StatusSuccess marks a vendor run that reached the sink
const StatusSuccess = "success"

// ErrorStatus renders a failed run status
func ErrorStatus(err error) string {
	if err == nil {
		return "error: unknown"
	}
	return "error: " + err.Error()
}

// RunOutcome summarizes one vendor run
type RunOutcome struct {
	RunID             string    `json:"run_id"`
	Source            string    `json:"source"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	ProductCount      int       `json:"product_count"`
	ProductsWithPrice int       `json:"products_with_price"`
	Status            string    `json:"status"`
}

// Succeeded reports whether the run ended in success
func (o RunOutcome) Succeeded() bool {
	return o.Status == StatusSuccess
}
