package internal

import (
	"time"

	"sjsage522/flooringscraper/services/cache"
	"sjsage522/flooringscraper/services/publisher"
	"sjsage522/flooringscraper/services/store"
)

// Dependencies holds all service dependencies. It is built once at startup
// and passed explicitly to the worker and the adapter factory.
type Dependencies struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Store     store.Store
	Fetch     FetchSettings
}

// FetchSettings configures the anti-bot fetch chain used by HTML vendors
type FetchSettings struct {
	FlareSolverrURL   string
	FlareSolverrProxy string
	BrowserFallback   bool
	// BrowserControlURL connects to a running browser instead of launching one
	BrowserControlURL string
	BlockTime         time.Duration
}
