package crawler

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"sjsage522/flooringscraper/helpers"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// BrowserFetcher renders pages in a headless browser with stealth patches.
// The browser is started on first use and shared by every vendor.
type BrowserFetcher struct {
	controlURL string

	mu       sync.Mutex
	browser  *rod.Browser
	launched *launcher.Launcher
}

// NewBrowserFetcher creates a fetcher. An empty controlURL launches a local headless browser.
func NewBrowserFetcher(controlURL string) *BrowserFetcher {
	return &BrowserFetcher{controlURL: controlURL}
}

func (b *BrowserFetcher) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return b.browser, nil
	}

	u := b.controlURL
	if u == "" {
		l := launcher.New().Headless(true)
		launched, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		b.launched, u = l, launched
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	b.browser = browser
	return browser, nil
}

// Fetch implements PageFetcher
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) (io.Reader, error) {
	browser, err := b.connect()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("open stealth page: %w", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	if err := page.Timeout(40 * time.Second).Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := page.Timeout(30 * time.Second).WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}
	// challenge pages redirect once solved
	_ = page.Timeout(15 * time.Second).WaitStable(time.Second)

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}
	if helpers.LooksLikeChallenge([]byte(html)) {
		return nil, fmt.Errorf("browser still on challenge page")
	}
	return strings.NewReader(html), nil
}

// Close shuts down the browser if one was started
func (b *BrowserFetcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.launched != nil {
		b.launched.Kill()
		b.launched = nil
	}
	return err
}
