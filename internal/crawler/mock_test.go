package crawler

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"sjsage522/flooringscraper/services/cache"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu    sync.Mutex
	cache map[string][]byte
	ttls  map[string]time.Duration
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
		ttls:  make(map[string]time.Duration),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, cache.ErrCacheMiss
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	m.ttls[key] = expiration
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	delete(m.ttls, key)
	return nil
}

// mockFetcher serves canned pages by URL and counts requests
type mockFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	// fallback renders any URL not in pages
	fallback func(url string) (string, error)
	calls    map[string]int
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{
		pages: make(map[string]string),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (m *mockFetcher) Fetch(_ context.Context, url string) (io.Reader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[url]++
	if err, ok := m.errs[url]; ok {
		return nil, err
	}
	if html, ok := m.pages[url]; ok {
		return strings.NewReader(html), nil
	}
	if m.fallback != nil {
		html, err := m.fallback(url)
		if err != nil {
			return nil, err
		}
		return strings.NewReader(html), nil
	}
	return strings.NewReader("<html><body></body></html>"), nil
}

func (m *mockFetcher) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

// listingPage renders a category page in the shape of testSite's selectors
func listingPage(next bool, items ...[3]string) string {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"grid\">")
	for _, it := range items {
		fmt.Fprintf(&b, `<article class="product"><h3><a href="%s">%s</a></h3><span class="price">%s</span><img data-src="%s.jpg"></article>`,
			it[0], it[1], it[2], it[0])
	}
	b.WriteString("</div>")
	if next {
		b.WriteString(`<a class="next" href="?page=next">Next</a>`)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func testSite(categories ...Category) SiteDefinition {
	return SiteDefinition{
		Key:       "kevmor",
		BaseURL:   "https://kevmor.test",
		PageParam: "page",
		Selectors: Selectors{
			Item:  "article.product",
			Name:  "h3 a",
			Price: ".price",
			Image: "img",
			Link:  "a[href]",
			Next:  "a.next",
		},
		Categories: categories,
	}
}
