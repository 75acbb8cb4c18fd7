package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sjsage522/flooringscraper/helpers"
	"sjsage522/flooringscraper/logger"
	scrapeerrors "sjsage522/flooringscraper/pkg/errors"
	"sjsage522/flooringscraper/services/cache"

	"github.com/PuerkitoBio/goquery"
)

// PageFetcher returns the UTF-8 HTML of a page
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (io.Reader, error)
}

// ChainFetcher tries a plain request first and escalates to FlareSolverr and
// then a stealth browser when the response is an anti-bot challenge. When
// every strategy fails the vendor is blocked in the cache for BlockTime.
type ChainFetcher struct {
	Vendor    string
	Client    *http.Client
	UserAgent string
	Cache     cache.CacheService
	BlockTime time.Duration
	Solver    PageFetcher
	Browser   PageFetcher
	// ContentSelector matches listing nodes; a page containing one is
	// never treated as a challenge
	ContentSelector string

	log *logger.Logger
}

// NewChainFetcher creates a fetch chain with its own cookie session
func NewChainFetcher(vendor string, cacheSvc cache.CacheService, blockTime time.Duration, solver, browser PageFetcher) *ChainFetcher {
	return &ChainFetcher{
		Vendor:    vendor,
		Client:    helpers.NewSessionClient(HTMLRequestTimeout),
		UserAgent: helpers.NewRandomUserAgent(),
		Cache:     cacheSvc,
		BlockTime: blockTime,
		Solver:    solver,
		Browser:   browser,
		log:       logger.ForAdapter(vendor),
	}
}

// BlockKey is the cache key marking a vendor as blocked
func BlockKey(vendor string) string {
	return "block:" + vendor
}

// Fetch implements PageFetcher
func (c *ChainFetcher) Fetch(ctx context.Context, url string) (io.Reader, error) {
	if c.isBlocked() {
		return nil, scrapeerrors.NewRateLimit(c.Vendor, c.BlockTime)
	}

	body, header, err := helpers.Get(ctx, c.Client, url, c.UserAgent, helpers.AcceptHTML)
	if err == nil && !c.isChallengePage(body) {
		return helpers.DecodeBody(body, header.Get("Content-Type"))
	}

	var statusErr *helpers.StatusError
	challenged := err == nil || (errors.As(err, &statusErr) && statusErr.IsChallenge())
	if !challenged {
		return nil, scrapeerrors.NewNetwork(c.Vendor, "fetch "+url, err)
	}
	c.log.Debug().Str("url", url).Msg("Challenge detected, escalating")

	for _, strategy := range []struct {
		name    string
		fetcher PageFetcher
	}{
		{"flaresolverr", c.Solver},
		{"browser", c.Browser},
	} {
		if strategy.fetcher == nil {
			continue
		}
		reader, err := strategy.fetcher.Fetch(ctx, url)
		if err == nil {
			c.log.Info().Str("url", url).Str("strategy", strategy.name).Msg("Challenge bypassed")
			return reader, nil
		}
		c.log.Warn().Err(err).Str("strategy", strategy.name).Msg("Bypass failed")
	}

	c.block()
	return nil, scrapeerrors.NewRateLimit(c.Vendor, c.BlockTime)
}

// isChallengePage reports whether a successful response is an interstitial
func (c *ChainFetcher) isChallengePage(body []byte) bool {
	if !helpers.LooksLikeChallenge(body) {
		return false
	}
	if c.ContentSelector == "" {
		return true
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}
	return doc.Find(c.ContentSelector).Length() == 0
}

func (c *ChainFetcher) isBlocked() bool {
	if c.Cache == nil {
		return false
	}
	_, err := c.Cache.Get(BlockKey(c.Vendor))
	return err == nil
}

func (c *ChainFetcher) block() {
	if c.Cache == nil || c.BlockTime <= 0 {
		return
	}
	seconds := fmt.Sprintf("%d", int(c.BlockTime/time.Second))
	if err := c.Cache.Set(BlockKey(c.Vendor), []byte(seconds), c.BlockTime); err != nil {
		c.log.Warn().Err(err).Msg("Failed to record block")
	}
}

// FlareSolverr fetches pages through a FlareSolverr instance
type FlareSolverr struct {
	Endpoint string
	Proxy    string
	Client   *http.Client
}

// NewFlareSolverr creates a FlareSolverr client for baseURL, e.g. http://localhost:8191
func NewFlareSolverr(baseURL, proxy string) *FlareSolverr {
	return &FlareSolverr{
		Endpoint: strings.TrimSuffix(baseURL, "/") + "/v1",
		Proxy:    proxy,
		Client:   &http.Client{Timeout: 120 * time.Second},
	}
}

type flareSolverrResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Solution struct {
		Status   int    `json:"status"`
		Response string `json:"response"`
	} `json:"solution"`
}

// Fetch implements PageFetcher
func (f *FlareSolverr) Fetch(ctx context.Context, url string) (io.Reader, error) {
	payload := map[string]interface{}{
		"cmd":        "request.get",
		"url":        url,
		"maxTimeout": 60000,
	}
	if f.Proxy != "" {
		payload["proxy"] = map[string]interface{}{"url": f.Proxy}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("FlareSolverr not available: %w", err)
	}
	defer resp.Body.Close()

	var flareResp flareSolverrResponse
	if err := json.NewDecoder(resp.Body).Decode(&flareResp); err != nil {
		return nil, fmt.Errorf("failed to parse FlareSolverr response: %w", err)
	}
	if flareResp.Status != "ok" {
		return nil, fmt.Errorf("FlareSolverr error: %s", flareResp.Message)
	}
	if flareResp.Solution.Status != 0 && flareResp.Solution.Status != http.StatusOK {
		return nil, &helpers.StatusError{URL: url, StatusCode: flareResp.Solution.Status}
	}
	if flareResp.Solution.Response == "" {
		return nil, fmt.Errorf("no content in FlareSolverr response")
	}
	if helpers.LooksLikeChallenge([]byte(flareResp.Solution.Response)) {
		return nil, fmt.Errorf("FlareSolverr returned a challenge page")
	}
	return strings.NewReader(flareResp.Solution.Response), nil
}
