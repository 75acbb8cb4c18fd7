package crawler

import (
	"context"
	"time"

	"sjsage522/flooringscraper/internal/catalog"
)

// Adapter reads the full catalog of one vendor
type Adapter interface {
	// Name identifies the adapter family for logging
	Name() string

	// Fetch returns every product the vendor lists, or an error when the
	// run should be recorded as failed
	Fetch(ctx context.Context, vendor catalog.Vendor) ([]catalog.Product, error)
}

// Selectors contains CSS selectors for the elements of a category listing
type Selectors struct {
	Item  string `yaml:"item"`
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
	Image string `yaml:"image"`
	Link  string `yaml:"link"`
	Next  string `yaml:"next"`
}

// Category is one listing to walk
type Category struct {
	URL   string `yaml:"url"`
	Label string `yaml:"label"`
}

// SiteDefinition configures the HTML category adapter for one vendor
type SiteDefinition struct {
	Key           string        `yaml:"key"`
	BaseURL       string        `yaml:"base_url"`
	PageParam     string        `yaml:"page_param"`
	MaxPages      int           `yaml:"max_pages"`
	PageDelay     time.Duration `yaml:"page_delay"`
	CategoryDelay time.Duration `yaml:"category_delay"`
	Selectors     Selectors     `yaml:"selectors"`
	Categories    []Category    `yaml:"categories"`
}

// Pacing and paging limits
const (
	HTMLMaxPages          = 20
	HTMLPageDelay         = 300 * time.Millisecond
	HTMLCategoryDelay     = 500 * time.Millisecond
	HTMLRequestTimeout    = 20 * time.Second
	StoreAPIPageDelay     = 300 * time.Millisecond
	CommerceJSONPageDelay = 500 * time.Millisecond
	APIRequestTimeout     = 30 * time.Second
	APIMaxPages           = 500
)
