package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sjsage522/flooringscraper/helpers"
	"sjsage522/flooringscraper/internal/catalog"
	"sjsage522/flooringscraper/internal/paginate"
	"sjsage522/flooringscraper/internal/price"
	"sjsage522/flooringscraper/logger"
	"sjsage522/flooringscraper/pkg/errors"
	"sjsage522/flooringscraper/services/cache"
)

const (
	storeAPIPath       = "/wp-json/wc/store/v1"
	storeAPIPerPage    = 100
	categoryCacheTTL   = 6 * time.Hour
	maxCategoryPages   = 10
	uncategorized      = "Uncategorized"
	maxCategoryLabels  = 2
	totalPagesHeader   = "X-WP-TotalPages"
	storeAPIAdapterTag = "store-api"
)

// StoreAPIAdapter reads a WooCommerce Store API catalog
type StoreAPIAdapter struct {
	Cache     cache.CacheService
	PageDelay time.Duration
	Timeout   time.Duration
}

// NewStoreAPIAdapter creates an adapter with production pacing
func NewStoreAPIAdapter(cacheSvc cache.CacheService) *StoreAPIAdapter {
	return &StoreAPIAdapter{
		Cache:     cacheSvc,
		PageDelay: StoreAPIPageDelay,
		Timeout:   APIRequestTimeout,
	}
}

// Name implements Adapter
func (a *StoreAPIAdapter) Name() string {
	return storeAPIAdapterTag
}

type wooCategoryRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type wooProduct struct {
	Name             string `json:"name"`
	Permalink        string `json:"permalink"`
	SKU              string `json:"sku"`
	ShortDescription string `json:"short_description"`
	Prices           struct {
		Price             flexString `json:"price"`
		RegularPrice      flexString `json:"regular_price"`
		CurrencyMinorUnit flexInt    `json:"currency_minor_unit"`
	} `json:"prices"`
	Images []struct {
		Src       string `json:"src"`
		Thumbnail string `json:"thumbnail"`
	} `json:"images"`
	Categories []wooCategoryRef `json:"categories"`
}

// wooSession carries the cookie session for one vendor run
type wooSession struct {
	vendor    catalog.Vendor
	base      string
	client    *http.Client
	userAgent string
	log       *logger.Logger
}

// Fetch implements Adapter
func (a *StoreAPIAdapter) Fetch(ctx context.Context, vendor catalog.Vendor) ([]catalog.Product, error) {
	s := &wooSession{
		vendor:    vendor,
		base:      strings.TrimSuffix(vendor.BaseURL, "/"),
		client:    helpers.NewSessionClient(a.Timeout),
		userAgent: helpers.NewRandomUserAgent(),
		log:       logger.ForAdapter(vendor.Key),
	}

	s.warmUp(ctx)
	categories := a.categoryNames(ctx, s)

	walker := paginate.New(func(ctx context.Context, page int) (paginate.Page[json.RawMessage], error) {
		s.log.Debug().Int("page", page).Msg("Fetching products")
		url := fmt.Sprintf("%s%s/products?per_page=%d&page=%d", s.base, storeAPIPath, storeAPIPerPage, page)

		body, header, err := helpers.Get(ctx, s.client, url, s.userAgent, helpers.AcceptJSON)
		if err != nil {
			s.log.Warn().Err(err).Int("page", page).Msg("Products request failed, re-establishing session")
			s.warmUp(ctx)
			body, header, err = helpers.Get(ctx, s.client, url, s.userAgent, helpers.AcceptJSON)
			if err != nil {
				return paginate.Page[json.RawMessage]{}, errors.NewNetwork(vendor.Key, fmt.Sprintf("products page %d", page), err)
			}
		}

		// items are decoded one at a time so a malformed product only costs itself
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return paginate.Page[json.RawMessage]{}, errors.NewParsing(vendor.Key, fmt.Sprintf("products page %d", page), err)
		}
		total, _ := strconv.Atoi(header.Get(totalPagesHeader))
		return paginate.Page[json.RawMessage]{Items: items, TotalPages: total}, nil
	}, paginate.Options{Policy: paginate.TotalPages, MaxPages: APIMaxPages, Delay: a.PageDelay})

	var (
		products []catalog.Product
		skipped  int
	)
	for raw := range walker.Items(ctx) {
		var item wooProduct
		if err := json.Unmarshal(raw, &item); err != nil {
			skipped++
			s.log.Warn().Err(errors.NewParsing(vendor.Key, "product", err)).Msg("Skipping malformed product")
			continue
		}
		products = append(products, toWooProduct(vendor.Key, item, categories))
	}

	event := s.log.Info()
	if err := walker.Err(); err != nil {
		event = s.log.Warn().Err(err)
	}
	event.
		Int("pages", walker.Pages()).
		Str("stop", string(walker.Stop())).
		Int("products", len(products)).
		Int("skipped", skipped).
		Msg("Vendor done")

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return products, nil
}

// warmUp visits the shop front with HTML accept headers so the store sets its session cookies
func (s *wooSession) warmUp(ctx context.Context) {
	if _, _, err := helpers.Get(ctx, s.client, s.base+"/shop/", s.userAgent, helpers.AcceptHTML); err != nil {
		s.log.Debug().Err(err).Msg("Shop warm-up failed")
	}
}

// categoryNames maps category ids to names. Failure yields an empty map.
func (a *StoreAPIAdapter) categoryNames(ctx context.Context, s *wooSession) map[int]string {
	key := "woo:categories:" + s.vendor.Key
	if a.Cache != nil {
		if data, err := a.Cache.Get(key); err == nil {
			var cached map[int]string
			if json.Unmarshal(data, &cached) == nil {
				return cached
			}
		}
	}

	names := make(map[int]string)
	walker := paginate.New(func(ctx context.Context, page int) (paginate.Page[wooCategoryRef], error) {
		url := fmt.Sprintf("%s%s/products/categories?per_page=%d&page=%d", s.base, storeAPIPath, storeAPIPerPage, page)
		body, header, err := helpers.Get(ctx, s.client, url, s.userAgent, helpers.AcceptJSON)
		if err != nil {
			return paginate.Page[wooCategoryRef]{}, err
		}
		var refs []wooCategoryRef
		if err := json.Unmarshal(body, &refs); err != nil {
			return paginate.Page[wooCategoryRef]{}, err
		}
		total, _ := strconv.Atoi(header.Get(totalPagesHeader))
		if total <= 0 {
			total = 1
		}
		return paginate.Page[wooCategoryRef]{Items: refs, TotalPages: total}, nil
	}, paginate.Options{Policy: paginate.TotalPages, MaxPages: maxCategoryPages, Delay: a.PageDelay})

	for ref := range walker.Items(ctx) {
		names[ref.ID] = html.UnescapeString(ref.Name)
	}
	if err := walker.Err(); err != nil {
		s.log.Warn().Err(err).Msg("Category list unavailable")
	}

	if a.Cache != nil && len(names) > 0 {
		if data, err := json.Marshal(names); err == nil {
			if err := a.Cache.Set(key, data, categoryCacheTTL); err != nil {
				s.log.Debug().Err(err).Msg("Failed to cache categories")
			}
		}
	}
	return names
}

func toWooProduct(source string, p wooProduct, categories map[int]string) catalog.Product {
	minorUnit := price.DefaultMinorUnit
	if p.Prices.CurrencyMinorUnit.Set {
		minorUnit = p.Prices.CurrencyMinorUnit.Value
	}
	amount, display := price.FromMinorUnits(string(p.Prices.Price), string(p.Prices.RegularPrice), minorUnit)

	name := strings.TrimSpace(html.UnescapeString(p.Name))
	if name == "" {
		name = "Unknown"
	}

	var image string
	if len(p.Images) > 0 {
		image = p.Images[0].Thumbnail
	}

	return catalog.Product{
		Source:       source,
		Name:         name,
		Price:        amount,
		PriceDisplay: display,
		URL:          p.Permalink,
		Image:        image,
		Category:     wooCategoryLabel(p.Categories, categories),
		SKU:          p.SKU,
		Description:  helpers.Description(p.ShortDescription),
	}
}

// wooCategoryLabel joins the first two category names
func wooCategoryLabel(refs []wooCategoryRef, names map[int]string) string {
	if len(refs) == 0 {
		return uncategorized
	}
	labels := make([]string, 0, maxCategoryLabels)
	for _, ref := range refs {
		if len(labels) == maxCategoryLabels {
			break
		}
		name, ok := names[ref.ID]
		if !ok {
			name = strings.TrimSpace(html.UnescapeString(ref.Name))
		}
		if name == "" {
			name = fmt.Sprintf("cat-%d", ref.ID)
		}
		labels = append(labels, name)
	}
	return strings.Join(labels, ", ")
}
