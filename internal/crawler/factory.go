package crawler

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BenjaminSRussell/paperboy/internal/classify"
	transport "github.com/BenjaminSRussell/paperboy/internal/http"
	"github.com/BenjaminSRussell/paperboy/internal/proxy"
	"github.com/BenjaminSRussell/paperboy/internal/renderer"
	"github.com/BenjaminSRussell/paperboy/internal/types"
	"github.com/BenjaminSRussell/paperboy/internal/visited"
)

// Transport kinds accepted in transport.kind
const (
	TransportHTTP   = "http"
	TransportChrome = "chrome"
)

// NewFetcher builds the fetcher named by cfg.Transport.Kind. The returned
// close function releases browser resources and is never nil.
func NewFetcher(cfg types.Config) (Fetcher, func(), error) {
	switch cfg.Transport.Kind {
	case "", TransportHTTP:
		pool, err := NewProxyPool(cfg.Transport)
		if err != nil {
			return nil, nil, err
		}
		f := transport.NewFetcher(transport.Options{
			Timeout:        cfg.Crawler.RequestTimeout,
			UserAgent:      cfg.Crawler.UserAgent,
			MaxBodyBytes:   cfg.Crawler.MaxBodyBytes,
			MaxIdleConns:   cfg.Crawler.Concurrency,
			TLSFingerprint: cfg.Transport.TLSFingerprint,
			RotateHeaders:  cfg.Transport.RotateHeaders,
			Cookies:        cfg.Transport.Cookies,
			Proxies:        pool,
		})
		return f, func() {}, nil
	case TransportChrome:
		tabs := cfg.Transport.MaxTabs
		if tabs <= 0 {
			tabs = renderer.DefaultMaxTabs
		}
		if cfg.Crawler.Concurrency > 0 && tabs > cfg.Crawler.Concurrency {
			tabs = cfg.Crawler.Concurrency
		}
		f := renderer.NewChromeFetcher(renderer.Options{
			MaxTabs:   tabs,
			Timeout:   cfg.Crawler.RequestTimeout,
			UserAgent: cfg.Crawler.UserAgent,
		})
		return f, f.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q", cfg.Transport.Kind)
	}
}

// NewProxyPool builds the proxy pool named by cfg, or nil when no proxies are
// configured.
func NewProxyPool(cfg types.TransportConfig) (*proxy.Pool, error) {
	switch {
	case cfg.ProxyFile != "":
		return proxy.LoadFile(cfg.ProxyFile, cfg.Proxies, cfg.ProxyMaxFailures)
	case len(cfg.Proxies) > 0:
		return proxy.NewPool(cfg.Proxies, cfg.ProxyMaxFailures)
	default:
		return nil, nil
	}
}

// NewFromConfig wires a crawler from configuration: classifier, visited set,
// transport and metrics registered with reg.
func NewFromConfig(cfg types.Config, logger *zap.Logger, reg prometheus.Registerer) (*Crawler, func(), error) {
	classifier, err := classify.New(cfg.Classify.ExplorePattern, cfg.Classify.TerminalPattern)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid classification patterns: %w", err)
	}

	set, err := visited.New(cfg.Visited.Backend, cfg.Visited.BloomCapacity, cfg.Visited.BloomFPRate)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid visited set: %w", err)
	}

	fetcher, closeFetcher, err := NewFetcher(cfg)
	if err != nil {
		return nil, nil, err
	}

	c := New(cfg.Crawler, fetcher, set, classifier, logger, NewMetrics(reg))
	return c, closeFetcher, nil
}
