package crawler

import (
	"fmt"

	"sjsage522/flooringscraper/internal"
	"sjsage522/flooringscraper/internal/catalog"
	"sjsage522/flooringscraper/pkg/errors"
)

// DefaultVendors is the built-in vendor list used when the registry is
// unavailable or a requested key is not registered
func DefaultVendors() []catalog.Vendor {
	vendors := []catalog.Vendor{
		{Key: "kevmor", DisplayName: "Kevmor", BaseURL: "https://kevmor.com.au", AdapterType: catalog.AdapterHTML, Color: "#ef4444"},
		{Key: "intafloors", DisplayName: "Intafloors", BaseURL: "https://intafloors.com.au", AdapterType: catalog.AdapterStoreAPI, Color: "#3b82f6"},
		{Key: "gibbon", DisplayName: "Gibbon Trade", BaseURL: "https://gibbontrade.com.au", AdapterType: catalog.AdapterStoreAPI, Color: "#22c55e"},
		{Key: "marques", DisplayName: "Marques Flooring", BaseURL: "https://marquesflooring.com.au", AdapterType: catalog.AdapterStoreAPI, Color: "#a855f7"},
		{Key: "floortrade", DisplayName: "Floortrade", BaseURL: "https://www.floortrade.au", AdapterType: catalog.AdapterStoreAPI, Color: "#f59e0b"},
		{Key: "homely", DisplayName: "Homely Flooring", BaseURL: "https://www.homelyflooring.com.au", AdapterType: catalog.AdapterStoreAPI, Color: "#14b8a6"},
		{Key: "gluesntools", DisplayName: "Glues n Tools", BaseURL: "https://gluesntools.com.au", AdapterType: catalog.AdapterCommerceJSON, Color: "#ec4899"},
	}
	for i := range vendors {
		vendors[i].Enabled = true
		vendors[i].Protected = true
	}
	return vendors
}

// DefaultVendor looks up a built-in vendor by key
func DefaultVendor(key string) (catalog.Vendor, bool) {
	for _, v := range DefaultVendors() {
		if v.Key == key {
			return v, true
		}
	}
	return catalog.Vendor{}, false
}

// Factory builds the adapter for a vendor from its adapter type
type Factory struct {
	deps    internal.Dependencies
	sites   map[string]SiteDefinition
	browser *BrowserFetcher

	storeAPI     *StoreAPIAdapter
	commerceJSON *CommerceJSONAdapter
}

// NewFactory creates a factory. sites holds HTML site definitions by vendor key.
func NewFactory(deps internal.Dependencies, sites map[string]SiteDefinition) *Factory {
	f := &Factory{
		deps:         deps,
		sites:        sites,
		storeAPI:     NewStoreAPIAdapter(deps.Cache),
		commerceJSON: NewCommerceJSONAdapter(),
	}
	if deps.Fetch.BrowserFallback {
		f.browser = NewBrowserFetcher(deps.Fetch.BrowserControlURL)
	}
	return f
}

// ForVendor returns the adapter for vendor or a configuration error
func (f *Factory) ForVendor(vendor catalog.Vendor) (Adapter, error) {
	adapterType, ok := vendor.AdapterType.Normalize()
	if !ok {
		return nil, errors.NewConfiguration(vendor.Key, fmt.Sprintf("unknown adapter type %q", vendor.AdapterType), nil)
	}

	switch adapterType {
	case catalog.AdapterStoreAPI:
		return f.storeAPI, nil
	case catalog.AdapterCommerceJSON:
		return f.commerceJSON, nil
	}

	site, ok := f.sites[vendor.Key]
	if !ok {
		return nil, errors.NewConfiguration(vendor.Key, "no site definition for custom vendor", nil)
	}
	if vendor.BaseURL != "" {
		site.BaseURL = vendor.BaseURL
	}
	return NewHTMLCategoryAdapter(site, f.fetcherFor(vendor.Key, site.Selectors.Item)), nil
}

func (f *Factory) fetcherFor(vendor, contentSelector string) PageFetcher {
	// only non-nil implementations go into the interface fields
	var solver, browser PageFetcher
	if f.deps.Fetch.FlareSolverrURL != "" {
		solver = NewFlareSolverr(f.deps.Fetch.FlareSolverrURL, f.deps.Fetch.FlareSolverrProxy)
	}
	if f.browser != nil {
		browser = f.browser
	}
	chain := NewChainFetcher(vendor, f.deps.Cache, f.deps.Fetch.BlockTime, solver, browser)
	chain.ContentSelector = contentSelector
	return chain
}

// Close releases the shared browser
func (f *Factory) Close() error {
	if f.browser == nil {
		return nil
	}
	return f.browser.Close()
}
