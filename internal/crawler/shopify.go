package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sjsage522/flooringscraper/helpers"
	"sjsage522/flooringscraper/internal/catalog"
	"sjsage522/flooringscraper/internal/paginate"
	"sjsage522/flooringscraper/internal/price"
	"sjsage522/flooringscraper/logger"
	"sjsage522/flooringscraper/pkg/errors"
)

const commerceJSONPageSize = 250

// CommerceJSONAdapter reads a Shopify products.json feed until an empty page
type CommerceJSONAdapter struct {
	PageDelay time.Duration
	Timeout   time.Duration
}

// NewCommerceJSONAdapter creates an adapter with production pacing
func NewCommerceJSONAdapter() *CommerceJSONAdapter {
	return &CommerceJSONAdapter{
		PageDelay: CommerceJSONPageDelay,
		Timeout:   APIRequestTimeout,
	}
}

// Name implements Adapter
func (a *CommerceJSONAdapter) Name() string {
	return "commerce-json"
}

// shopifyFeed keeps products raw so each one is decoded on its own
type shopifyFeed struct {
	Products []json.RawMessage `json:"products"`
}

type shopifyProduct struct {
	Title       string `json:"title"`
	Handle      string `json:"handle"`
	BodyHTML    string `json:"body_html"`
	ProductType string `json:"product_type"`
	Variants    []struct {
		Price          flexString `json:"price"`
		CompareAtPrice flexString `json:"compare_at_price"`
		SKU            string     `json:"sku"`
	} `json:"variants"`
	Images []struct {
		Src string `json:"src"`
	} `json:"images"`
}

// Fetch implements Adapter
func (a *CommerceJSONAdapter) Fetch(ctx context.Context, vendor catalog.Vendor) ([]catalog.Product, error) {
	log := logger.ForAdapter(vendor.Key)
	base := strings.TrimSuffix(vendor.BaseURL, "/")
	client := helpers.NewSessionClient(a.Timeout)
	userAgent := helpers.NewRandomUserAgent()

	walker := paginate.New(func(ctx context.Context, page int) (paginate.Page[json.RawMessage], error) {
		log.Debug().Int("page", page).Msg("Fetching products")
		url := fmt.Sprintf("%s/products.json?limit=%d&page=%d", base, commerceJSONPageSize, page)

		body, _, err := helpers.Get(ctx, client, url, userAgent, helpers.AcceptJSON)
		if err != nil {
			return paginate.Page[json.RawMessage]{}, errors.NewNetwork(vendor.Key, fmt.Sprintf("products page %d", page), err)
		}
		var feed shopifyFeed
		if err := json.Unmarshal(body, &feed); err != nil {
			return paginate.Page[json.RawMessage]{}, errors.NewParsing(vendor.Key, fmt.Sprintf("products page %d", page), err)
		}
		return paginate.Page[json.RawMessage]{Items: feed.Products}, nil
	}, paginate.Options{Policy: paginate.EmptyPage, MaxPages: APIMaxPages, Delay: a.PageDelay})

	var (
		products []catalog.Product
		skipped  int
	)
	for raw := range walker.Items(ctx) {
		var item shopifyProduct
		if err := json.Unmarshal(raw, &item); err != nil {
			skipped++
			log.Warn().Err(errors.NewParsing(vendor.Key, "product", err)).Msg("Skipping malformed product")
			continue
		}
		products = append(products, toShopifyProduct(vendor.Key, base, item))
	}

	event := log.Info()
	if err := walker.Err(); err != nil {
		event = log.Warn().Err(err)
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

func toShopifyProduct(source, base string, p shopifyProduct) catalog.Product {
	var priceRaw, compareAtRaw, sku string
	if len(p.Variants) > 0 {
		v := p.Variants[0]
		priceRaw, compareAtRaw, sku = string(v.Price), string(v.CompareAtPrice), v.SKU
	}
	amount, display := price.FromDecimal(priceRaw, compareAtRaw)

	name := strings.TrimSpace(p.Title)
	if name == "" {
		name = "Unknown"
	}

	var image string
	if len(p.Images) > 0 {
		image = p.Images[0].Src
	}

	category := strings.TrimSpace(p.ProductType)
	if category == "" {
		category = uncategorized
	}

	return catalog.Product{
		Source:       source,
		Name:         name,
		Price:        amount,
		PriceDisplay: display,
		URL:          base + "/products/" + p.Handle,
		Image:        image,
		Category:     category,
		SKU:          sku,
		Description:  helpers.Description(p.BodyHTML),
	}
}
