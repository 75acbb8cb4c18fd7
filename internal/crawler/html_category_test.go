package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sjsage522/flooringscraper/internal/catalog"
	"sjsage522/flooringscraper/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var kevmor = catalog.Vendor{Key: "kevmor", BaseURL: "https://kevmor.test", AdapterType: catalog.AdapterHTML, Enabled: true}

func TestHTMLCategoryAdapterDedupAcrossCategories(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.pages["https://kevmor.test/adhesive"] = listingPage(false,
		[3]string{"/p/glue-a", "Glue A", "$12.50"},
		[3]string{"/p/trowel", "Trowel", "Instore/Phone Only"},
	)
	fetcher.pages["https://kevmor.test/tools"] = listingPage(false,
		[3]string{"/p/trowel", "Trowel", "$9.00"},
		[3]string{"/p/knife", "Knife", "$1,250.00"},
		[3]string{"/p/blank", "", "$3.00"},
	)

	adapter := NewHTMLCategoryAdapter(testSite(
		Category{URL: "https://kevmor.test/adhesive", Label: "Adhesive"},
		Category{URL: "https://kevmor.test/tools", Label: "Tools"},
	), fetcher)

	products, err := adapter.Fetch(context.Background(), kevmor)
	require.NoError(t, err)
	require.Len(t, products, 3)

	byURL := make(map[string]catalog.Product)
	for _, p := range products {
		byURL[p.URL] = p
		assert.Equal(t, "kevmor", p.Source)
	}

	glue := byURL["https://kevmor.test/p/glue-a"]
	assert.Equal(t, "Glue A", glue.Name)
	require.NotNil(t, glue.Price)
	assert.Equal(t, "12.5", glue.Price.String())
	assert.Equal(t, "$12.50", glue.PriceDisplay)
	assert.Equal(t, "Adhesive", glue.Category)
	assert.Equal(t, "https://kevmor.test/p/glue-a.jpg", glue.Image)

	// first sighting wins
	trowel := byURL["https://kevmor.test/p/trowel"]
	assert.Equal(t, "Adhesive", trowel.Category)
	assert.Nil(t, trowel.Price)
	assert.Equal(t, "Instore/Phone Only", trowel.PriceDisplay)

	knife := byURL["https://kevmor.test/p/knife"]
	require.NotNil(t, knife.Price)
	assert.Equal(t, "1250", knife.Price.String())

	assert.Equal(t, 2, catalog.CountPriced(products))
}

func TestHTMLCategoryAdapterFollowsNextLink(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.pages["https://kevmor.test/underlay"] = listingPage(true, [3]string{"/p/1", "One", "$1.00"})
	fetcher.pages["https://kevmor.test/underlay?page=2"] = listingPage(true, [3]string{"/p/2", "Two", "$2.00"})
	fetcher.pages["https://kevmor.test/underlay?page=3"] = listingPage(false, [3]string{"/p/3", "Three", "$3.00"})

	adapter := NewHTMLCategoryAdapter(testSite(Category{URL: "https://kevmor.test/underlay", Label: "Underlay"}), fetcher)

	products, err := adapter.Fetch(context.Background(), kevmor)
	require.NoError(t, err)
	assert.Len(t, products, 3)
	assert.Equal(t, 3, fetcher.total())
	assert.Zero(t, fetcher.calls["https://kevmor.test/underlay?page=4"])
}

func TestHTMLCategoryAdapterPageCap(t *testing.T) {
	fetcher := newMockFetcher()
	n := 0
	fetcher.fallback = func(string) (string, error) {
		n++
		return listingPage(true, [3]string{fmt.Sprintf("/p/%d", n), fmt.Sprintf("Item %d", n), "$5.00"}), nil
	}

	adapter := NewHTMLCategoryAdapter(testSite(Category{URL: "https://kevmor.test/endless", Label: "Endless"}), fetcher)

	products, err := adapter.Fetch(context.Background(), kevmor)
	require.NoError(t, err)
	assert.Equal(t, HTMLMaxPages, fetcher.total())
	assert.Len(t, products, HTMLMaxPages)
}

func TestHTMLCategoryAdapterSkipsFailedCategory(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.errs["https://kevmor.test/broken"] = errors.NewNetwork("kevmor", "fetch", fmt.Errorf("connection reset"))
	fetcher.pages["https://kevmor.test/ok"] = listingPage(false, [3]string{"/p/ok", "Fine", "$4.00"})

	adapter := NewHTMLCategoryAdapter(testSite(
		Category{URL: "https://kevmor.test/broken", Label: "Broken"},
		Category{URL: "https://kevmor.test/ok", Label: "Ok"},
	), fetcher)

	products, err := adapter.Fetch(context.Background(), kevmor)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Fine", products[0].Name)
}

func TestHTMLCategoryAdapterNoListingsIsAnError(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.errs["https://kevmor.test/a"] = errors.NewNetwork("kevmor", "fetch", fmt.Errorf("timeout"))

	adapter := NewHTMLCategoryAdapter(testSite(
		Category{URL: "https://kevmor.test/a", Label: "A"},
		Category{URL: "https://kevmor.test/b", Label: "B"},
	), fetcher)

	products, err := adapter.Fetch(context.Background(), kevmor)
	require.Error(t, err)
	assert.Nil(t, products)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "none of 2 categories")
	assert.Contains(t, err.Error(), "timeout")
}

func TestHTMLCategoryAdapterAbortsWhenBlocked(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.errs["https://kevmor.test/a"] = errors.NewRateLimit("kevmor", HTMLCategoryDelay)

	adapter := NewHTMLCategoryAdapter(testSite(
		Category{URL: "https://kevmor.test/a", Label: "A"},
		Category{URL: "https://kevmor.test/b", Label: "B"},
	), fetcher)

	_, err := adapter.Fetch(context.Background(), kevmor)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRateLimit))
	assert.Zero(t, fetcher.calls["https://kevmor.test/b"])
}

func TestHTMLCategoryAdapterKeepsListingsWhenBlockedMidRun(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/adhesive", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingPage(false, [3]string{"/p/glue", "Glue", "$12.00"}))
	})
	mux.HandleFunc("/tools", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "<title>Just a moment...</title>")
	})
	mux.HandleFunc("/underlay", func(w http.ResponseWriter, r *http.Request) {
		t.Error("category after the block was fetched")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cacheSvc := NewMockCacheService()
	fetcher := NewChainFetcher("kevmor", cacheSvc, time.Minute, nil, nil)
	adapter := NewHTMLCategoryAdapter(testSite(
		Category{URL: server.URL + "/adhesive", Label: "Adhesive"},
		Category{URL: server.URL + "/tools", Label: "Tools"},
		Category{URL: server.URL + "/underlay", Label: "Underlay"},
	), fetcher)

	products, err := adapter.Fetch(context.Background(), kevmor)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Glue", products[0].Name)

	_, err = cacheSvc.Get(BlockKey("kevmor"))
	assert.NoError(t, err)
}

func TestHTMLCategoryAdapterIgnoresPassiveChallengeScript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := listingPage(false, [3]string{"/p/oak", "Oak", "$45.00"})
		fmt.Fprint(w, page+`<script src="/cdn-cgi/challenge-platform/scripts/jsd/main.js"></script><script>window._cf_chl_opt={}</script>`)
	}))
	defer server.Close()

	cacheSvc := NewMockCacheService()
	fetcher := NewChainFetcher("kevmor", cacheSvc, time.Minute, nil, nil)
	fetcher.ContentSelector = "article.product"
	adapter := NewHTMLCategoryAdapter(testSite(Category{URL: server.URL + "/timber", Label: "Timber"}), fetcher)

	products, err := adapter.Fetch(context.Background(), kevmor)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Oak", products[0].Name)

	_, err = cacheSvc.Get(BlockKey("kevmor"))
	assert.Error(t, err)
}

func TestHTMLCategoryAdapterRerunIsIdempotent(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.pages["https://kevmor.test/adhesive"] = listingPage(true, [3]string{"/p/glue", "Glue", "$12.00"})
	fetcher.pages["https://kevmor.test/adhesive?page=2"] = listingPage(false, [3]string{"/p/tape", "Tape", "Phone for price"})
	fetcher.pages["https://kevmor.test/tools"] = listingPage(false, [3]string{"/p/glue", "Glue", "$12.00"}, [3]string{"/p/knife", "Knife", "$8.50"})

	adapter := NewHTMLCategoryAdapter(testSite(
		Category{URL: "https://kevmor.test/adhesive", Label: "Adhesive"},
		Category{URL: "https://kevmor.test/tools", Label: "Tools"},
	), fetcher)

	first, err := adapter.Fetch(context.Background(), kevmor)
	require.NoError(t, err)
	second, err := adapter.Fetch(context.Background(), kevmor)
	require.NoError(t, err)

	require.Len(t, first, 3)
	assert.ElementsMatch(t, first, second)
}

func TestHTMLCategoryAdapterPageURL(t *testing.T) {
	adapter := NewHTMLCategoryAdapter(testSite(), nil)

	assert.Equal(t, "https://kevmor.test/c", adapter.pageURL("https://kevmor.test/c", 1))
	assert.Equal(t, "https://kevmor.test/c?page=2", adapter.pageURL("https://kevmor.test/c", 2))
	assert.Equal(t, "https://kevmor.test/c?order=asc&page=3", adapter.pageURL("https://kevmor.test/c?order=asc", 3))
}
