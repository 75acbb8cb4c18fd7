package helpers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"net/http/cookiejar"
	"slices"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// Accept headers used by browser-like requests
const (
	AcceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	AcceptJSON = "application/json"
)

var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	}

	referers = []string{
		"https://www.google.com.au/",
		"https://www.bing.com/",
		"https://duckduckgo.com/",
	}

	// challengeStatuses are responses anti-bot layers answer with
	challengeStatuses = []int{http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable, 430}

	// interstitial signatures only; protected sites also load the passive
	// /cdn-cgi/challenge-platform script on ordinary pages
	challengeMarkers = []string{
		"cf-browser-verification",
		"cf_chl_opt",
		"<title>Just a moment...</title>",
		"Attention Required! | Cloudflare",
	}
)

// StatusError is returned for non-2xx responses
type StatusError struct {
	URL        string
	StatusCode int
	RetryAfter string
}

func (e *StatusError) Error() string {
	if e.RetryAfter != "" {
		return fmt.Sprintf("fetch %s unexpected status code: %d (retry after %s)", e.URL, e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("fetch %s unexpected status code: %d", e.URL, e.StatusCode)
}

// IsChallenge reports whether the status is one an anti-bot layer returns
func (e *StatusError) IsChallenge() bool {
	return slices.Contains(challengeStatuses, e.StatusCode)
}

// NewSessionClient returns a client that keeps cookies across requests
func NewSessionClient(timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Timeout: timeout,
		Jar:     jar,
	}
}

// NewRandomUserAgent picks one of the browser user agents
func NewRandomUserAgent() string {
	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	return userAgents[rnd.Intn(len(userAgents))]
}

// SetBrowserHeaders sets browser-like headers on req
func SetBrowserHeaders(req *http.Request, userAgent, accept string) {
	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-AU,en;q=0.9")
	if accept == AcceptHTML {
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
		req.Header.Set("Referer", referers[rnd.Intn(len(referers))])
		req.Header.Set("Upgrade-Insecure-Requests", "1")
		req.Header.Set("Sec-Fetch-Mode", "navigate")
		req.Header.Set("Sec-Fetch-Site", "cross-site")
		req.Header.Set("Sec-Fetch-User", "?1")
	}
}

// Get performs a GET with browser-like headers and returns the raw body.
// Non-2xx responses yield a *StatusError.
func Get(ctx context.Context, client *http.Client, url, userAgent, accept string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	SetBrowserHeaders(req, userAgent, accept)

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.Header, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, resp.Header, &StatusError{
			URL:        url,
			StatusCode: resp.StatusCode,
			RetryAfter: resp.Header.Get("Retry-After"),
		}
	}
	return body, resp.Header, nil
}

// DecodeBody converts body to UTF-8 using the Content-Type header and meta tags
func DecodeBody(body []byte, contentType string) (io.Reader, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)
	if strings.EqualFold(name, "utf-8") {
		return bytes.NewReader(body), nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}
	return &buf, nil
}

// LooksLikeChallenge reports whether an HTML body is an anti-bot interstitial
func LooksLikeChallenge(body []byte) bool {
	for _, marker := range challengeMarkers {
		if bytes.Contains(body, []byte(marker)) {
			return true
		}
	}
	return false
}
