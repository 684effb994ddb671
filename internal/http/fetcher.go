// Package http is the net/http transport used by the crawler.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/BenjaminSRussell/paperboy/internal/parser"
	"github.com/BenjaminSRussell/paperboy/internal/proxy"
	"github.com/BenjaminSRussell/paperboy/internal/types"
)

// DefaultUserAgent is sent when no header rotation is configured
const DefaultUserAgent = "Paperboy/1.0 (+https://github.com/BenjaminSRussell/paperboy)"

// ErrBodyTooLarge is wrapped by a TransportError when a response exceeds the body cap
var ErrBodyTooLarge = errors.New("response body exceeds limit")

// TransportError reports a failed fetch: connect, timeout, TLS, body read or a
// non-2xx status. StatusCode is zero when no response was received.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 && e.Err == nil {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Options configures a Fetcher
type Options struct {
	Timeout        time.Duration
	UserAgent      string
	MaxBodyBytes   int64
	MaxIdleConns   int
	TLSFingerprint bool
	RotateHeaders  bool

	// Cookies keeps a cookie jar across requests
	Cookies bool

	// TLS is consulted only by the fingerprinting dialer
	TLS *TLSFingerprinter

	// Proxies, when set, replaces the environment proxy settings
	Proxies *proxy.Pool
}

// Fetcher downloads and parses pages over HTTP, following redirects.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
	headers   *HeaderRotator
	proxies   *proxy.Pool
}

// NewFetcher builds a Fetcher with a dedicated connection pool
func NewFetcher(opts Options) *Fetcher {
	idle := opts.MaxIdleConns
	if idle <= 0 {
		idle = 100
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        idle,
		MaxIdleConnsPerHost: idle,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if opts.TLSFingerprint {
		tf := opts.TLS
		if tf == nil {
			tf = NewTLSFingerprinter()
		}
		transport.DialTLSContext = tf.DialTLSContext
	}
	if opts.Proxies != nil {
		transport.Proxy = proxy.FromRequest
	}

	client := &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
	}
	if opts.Cookies {
		// cookiejar.New never returns an error
		client.Jar, _ = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	}

	f := &Fetcher{
		client:    client,
		userAgent: opts.UserAgent,
		maxBody:   opts.MaxBodyBytes,
		proxies:   opts.Proxies,
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	if opts.RotateHeaders {
		f.headers = NewHeaderRotator()
	}
	return f
}

// Fetch retrieves rawURL. The returned page carries the URL the response was
// finally served from and, for HTML responses, the parsed document.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*types.FetchedPage, error) {
	var px *proxy.Proxy
	if f.proxies != nil {
		var err error
		if px, err = f.proxies.Pick(); err != nil {
			return nil, &TransportError{URL: rawURL, Err: err}
		}
		ctx = proxy.WithProxy(ctx, px)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}
	if f.headers != nil {
		f.headers.ApplyHeaders(req)
	} else {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if px != nil && ctx.Err() == nil {
			f.proxies.RecordFailure(px)
		}
		return nil, &TransportError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()
	if px != nil {
		f.proxies.RecordSuccess(px)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &TransportError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := f.readBody(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
	}

	finalURL := types.StripFragment(resp.Request.URL)
	contentType := resp.Header.Get("Content-Type")
	page := &types.FetchedPage{
		RequestURL:  rawURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
	}

	if isHTML(contentType) {
		doc, err := parser.Parse(finalURL, body, contentType)
		if err != nil {
			return nil, err
		}
		page.Document = doc
	}
	return page, nil
}

func (f *Fetcher) readBody(r io.Reader) ([]byte, error) {
	if f.maxBody <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, f.maxBody+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.maxBody {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, f.maxBody)
	}
	return body, nil
}

// isHTML reports whether a response should be parsed for links. A missing
// Content-Type is treated as HTML.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}
