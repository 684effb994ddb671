// Package renderer fetches pages through headless Chrome.
package renderer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	transport "github.com/BenjaminSRussell/paperboy/internal/http"
	"github.com/BenjaminSRussell/paperboy/internal/parser"
	"github.com/BenjaminSRussell/paperboy/internal/types"
)

// DefaultMaxTabs is the tab limit when none is configured
const DefaultMaxTabs = 8

// Options configures a ChromeFetcher
type Options struct {
	// MaxTabs bounds concurrent browser tabs; the worker pool is far larger.
	MaxTabs   int
	Timeout   time.Duration
	UserAgent string
}

// ChromeFetcher renders pages in headless Chrome and parses the final DOM.
type ChromeFetcher struct {
	opts        Options
	tabs        chan struct{}
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromeFetcher starts an allocator for headless Chrome. The browser process
// is launched lazily on the first fetch.
func NewChromeFetcher(opts Options) *ChromeFetcher {
	if opts.MaxTabs <= 0 {
		opts.MaxTabs = DefaultMaxTabs
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	return &ChromeFetcher{
		opts:        opts,
		tabs:        make(chan struct{}, opts.MaxTabs),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
	}
}

// Fetch navigates to rawURL and returns the rendered page. The final URL is
// read from the browser location after redirects and scripts have run.
func (cf *ChromeFetcher) Fetch(ctx context.Context, rawURL string) (*types.FetchedPage, error) {
	select {
	case cf.tabs <- struct{}{}:
	case <-ctx.Done():
		return nil, &transport.TransportError{URL: rawURL, Err: ctx.Err()}
	}
	defer func() { <-cf.tabs }()

	tabCtx, tabCancel := chromedp.NewContext(cf.allocCtx)
	defer tabCancel()
	tabCtx, cancel := context.WithTimeout(tabCtx, cf.opts.Timeout)
	defer cancel()

	// tie the tab to the caller's context as well as the allocator's
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	status := &documentStatus{}
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok {
			status.capture(e)
		}
	})

	var html, location string
	err := chromedp.Run(tabCtx,
		cf.setup(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, &transport.TransportError{URL: rawURL, Err: fmt.Errorf("chromedp run: %w", err)}
	}

	code, contentType := status.snapshot()
	if code != 0 && (code < 200 || code > 299) {
		return nil, &transport.TransportError{URL: rawURL, StatusCode: code}
	}
	if code == 0 {
		code = 200
	}

	finalURL, err := types.NormalizeURL(location)
	if err != nil {
		finalURL = rawURL
	}

	doc, err := parser.Parse(finalURL, []byte(html), "text/html; charset=utf-8")
	if err != nil {
		return nil, err
	}

	return &types.FetchedPage{
		RequestURL:  rawURL,
		FinalURL:    finalURL,
		StatusCode:  code,
		ContentType: contentType,
		Document:    doc,
	}, nil
}

func (cf *ChromeFetcher) setup() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if cf.opts.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(cf.opts.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// MaxTabs returns how many pages may render at once
func (cf *ChromeFetcher) MaxTabs() int {
	return cap(cf.tabs)
}

// Close shuts down the browser
func (cf *ChromeFetcher) Close() {
	if cf.allocCancel != nil {
		cf.allocCancel()
	}
}

// documentStatus keeps the status of the first document response seen on a
// tab. Redirect hops do not produce one, and frames load after the page.
type documentStatus struct {
	mu          sync.Mutex
	code        int
	contentType string
}

func (d *documentStatus) capture(e *network.EventResponseReceived) {
	if e.Type != network.ResourceTypeDocument || e.Response == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.code != 0 {
		return
	}
	d.code = int(e.Response.Status)
	d.contentType = e.Response.MimeType
}

func (d *documentStatus) snapshot() (int, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.code, d.contentType
}
