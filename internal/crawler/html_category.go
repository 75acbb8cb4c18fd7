package crawler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sjsage522/flooringscraper/helpers"
	"sjsage522/flooringscraper/internal/catalog"
	"sjsage522/flooringscraper/internal/paginate"
	"sjsage522/flooringscraper/internal/price"
	"sjsage522/flooringscraper/logger"
	"sjsage522/flooringscraper/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// HTMLCategoryAdapter walks a fixed list of category listings
type HTMLCategoryAdapter struct {
	Site    SiteDefinition
	Fetcher PageFetcher
}

// NewHTMLCategoryAdapter creates an adapter for a site definition
func NewHTMLCategoryAdapter(site SiteDefinition, fetcher PageFetcher) *HTMLCategoryAdapter {
	return &HTMLCategoryAdapter{Site: site, Fetcher: fetcher}
}

// Name implements Adapter
func (a *HTMLCategoryAdapter) Name() string {
	return "html-category"
}

// Fetch implements Adapter.
//
// A category that fails is logged and skipped. An anti-bot block stops the
// remaining categories and returns what was collected. When nothing was
// collected the run is reported as an error, so a broken category list never
// replaces the stored catalog with nothing.
func (a *HTMLCategoryAdapter) Fetch(ctx context.Context, vendor catalog.Vendor) ([]catalog.Product, error) {
	log := logger.ForAdapter(vendor.Key)

	var (
		products    []catalog.Product
		seen        = make(map[string]struct{})
		nonEmpty    int
		lastErr     error
		blocked     error
		total       = len(a.Site.Categories)
		maxPages    = a.Site.MaxPages
		categoryGap = a.Site.CategoryDelay
	)
	if maxPages <= 0 || maxPages > HTMLMaxPages {
		maxPages = HTMLMaxPages
	}

	for i, category := range a.Site.Categories {
		if i > 0 && categoryGap > 0 {
			if err := sleep(ctx, categoryGap); err != nil {
				return nil, err
			}
		}

		walker := paginate.New(a.pageFetcher(vendor.Key, category), paginate.Options{
			Policy:   paginate.NextLink,
			MaxPages: maxPages,
			Delay:    a.Site.PageDelay,
		})

		listings, added := 0, 0
		for p := range walker.Items(ctx) {
			listings++
			if p.Name == "" {
				continue
			}
			if _, dup := seen[p.URL]; dup {
				continue
			}
			seen[p.URL] = struct{}{}
			products = append(products, p)
			added++
		}

		if err := walker.Err(); err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Str("category", category.Label).Msg("Category failed")
		}
		if listings > 0 {
			nonEmpty++
		}

		log.Info().
			Str("category", category.Label).
			Int("index", i+1).
			Int("of", total).
			Int("pages", walker.Pages()).
			Str("stop", string(walker.Stop())).
			Int("added", added).
			Msg("Category done")

		// every later page would hit the same block
		if errors.IsType(walker.Err(), errors.ErrorTypeRateLimit) {
			blocked = walker.Err()
			log.Warn().Int("remaining", total-i-1).Msg("Vendor blocked, keeping listings collected so far")
			break
		}
	}

	if blocked != nil && len(products) == 0 {
		return nil, blocked
	}

	if total > 0 && nonEmpty == 0 {
		msg := fmt.Sprintf("none of %d categories returned any listings", total)
		if lastErr != nil {
			msg += "; last error: " + lastErr.Error()
		}
		return nil, errors.NewValidation(vendor.Key, msg)
	}

	log.Info().Int("products", len(products)).Int("categories_with_items", nonEmpty).Msg("Vendor done")
	return products, nil
}

func (a *HTMLCategoryAdapter) pageFetcher(vendor string, category Category) paginate.FetchFunc[catalog.Product] {
	return func(ctx context.Context, page int) (paginate.Page[catalog.Product], error) {
		pageURL := a.pageURL(category.URL, page)

		body, err := a.Fetcher.Fetch(ctx, pageURL)
		if err != nil {
			return paginate.Page[catalog.Product]{}, err
		}
		doc, err := goquery.NewDocumentFromReader(body)
		if err != nil {
			return paginate.Page[catalog.Product]{}, errors.NewParsing(vendor, "parse "+pageURL, err)
		}

		items := a.parseListings(doc, vendor, category.Label, pageURL)
		hasNext := a.Site.Selectors.Next != "" && doc.Find(a.Site.Selectors.Next).Length() > 0
		return paginate.Page[catalog.Product]{Items: items, HasNext: hasNext}, nil
	}
}

// pageURL returns the category URL for page n; page 1 is the bare URL
func (a *HTMLCategoryAdapter) pageURL(categoryURL string, page int) string {
	if page <= 1 {
		return categoryURL
	}
	sep := "?"
	if strings.Contains(categoryURL, "?") {
		sep = "&"
	}
	return categoryURL + sep + a.Site.PageParam + "=" + strconv.Itoa(page)
}

// parseListings returns one entry per listing element. Entries without a
// name are kept so the caller can tell an empty page from an unusable one.
func (a *HTMLCategoryAdapter) parseListings(doc *goquery.Document, vendor, label, pageURL string) []catalog.Product {
	sel := a.Site.Selectors
	var items []catalog.Product

	doc.Find(sel.Item).Each(func(_ int, s *goquery.Selection) {
		nameSel := s.Find(sel.Name).First()
		name := strings.TrimSpace(nameSel.Text())

		var href string
		if nameSel.Length() > 0 {
			href, _ = nameSel.Attr("href")
		} else if sel.Link != "" {
			href, _ = s.Find(sel.Link).First().Attr("href")
		}

		var priceText string
		if sel.Price != "" {
			priceText = s.Find(sel.Price).First().Text()
		}
		amount, display := price.FromText(priceText)

		items = append(items, catalog.Product{
			Source:       vendor,
			Name:         name,
			Price:        amount,
			PriceDisplay: display,
			URL:          helpers.ResolveURL(pageURL, href),
			Image:        helpers.ResolveURL(pageURL, imageSource(s, sel.Image)),
			Category:     label,
		})
	})
	return items
}

func imageSource(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	img := s.Find(selector).First()
	for _, attr := range []string{"src", "data-src", "data-full-size-image-url"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return ""
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
