// Package crawler schedules fetches over a shared frontier, deduplicates them
// through the visited set, and streams results to a consumer.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BenjaminSRussell/paperboy/internal/classify"
	transport "github.com/BenjaminSRussell/paperboy/internal/http"
	"github.com/BenjaminSRussell/paperboy/internal/parser"
	"github.com/BenjaminSRussell/paperboy/internal/types"
	"github.com/BenjaminSRussell/paperboy/internal/visited"
)

// DefaultConcurrency is the worker pool size when none is configured
const DefaultConcurrency = 1000

// Fetcher retrieves a page and its parsed document
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*types.FetchedPage, error)
}

// Sink receives every terminal URL. An error from Append stops the crawl.
type Sink interface {
	Append(line string) error
}

// Recorder receives every crawl result. Its errors are logged and ignored.
type Recorder interface {
	Record(ctx context.Context, result types.CrawlResult, terminal bool) error
}

// Crawler is the crawl engine
type Crawler struct {
	cfg        types.CrawlerConfig
	fetcher    Fetcher
	visited    visited.Set
	classifier *classify.Classifier
	frontier   *Frontier
	results    chan types.CrawlResult
	logger     *zap.Logger
	metrics    *Metrics

	// Stats
	discovered atomic.Int64
	fetched    atomic.Int64
	errors     atomic.Int64
	discarded  atomic.Int64
	written    atomic.Int64
	panics     atomic.Int64

	// results handed out by Next whose hold on the frontier is not yet released
	delivered atomic.Int64

	startOnce sync.Once
	done      chan struct{}
}

// New creates a crawler. A nil logger or metrics is replaced with a no-op one.
func New(cfg types.CrawlerConfig, fetcher Fetcher, set visited.Set, classifier *classify.Classifier, logger *zap.Logger, metrics *Metrics) *Crawler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.ResultsBuffer < 0 {
		cfg.ResultsBuffer = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if classifier == nil {
		classifier = classify.Default()
	}

	return &Crawler{
		cfg:        cfg,
		fetcher:    fetcher,
		visited:    set,
		classifier: classifier,
		frontier:   NewFrontier(),
		results:    make(chan types.CrawlResult, cfg.ResultsBuffer),
		logger:     logger.Named("crawler"),
		metrics:    metrics,
		done:       make(chan struct{}),
	}
}

// Visit queues rawURL for fetching at depth zero. It never blocks and may be
// called from any goroutine, including a result consumer between two calls to
// Next. The URL is claimed by the worker that picks it up, so concurrent
// visits of one URL fetch it once.
func (c *Crawler) Visit(rawURL, referrer string) error {
	normalized, err := types.NormalizeURL(rawURL)
	if err != nil {
		return fmt.Errorf("visit %q: %w", rawURL, err)
	}
	return c.frontier.Push(types.FetchTask{
		URL:      normalized,
		Referrer: referrer,
		Depth:    0,
	})
}

// Start launches the worker pool. Cancelling ctx closes the frontier and
// ends the result stream once in-flight tasks return. Only the first call
// has any effect.
func (c *Crawler) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		stop := context.AfterFunc(ctx, c.frontier.Close)
		c.frontier.CloseIfIdle()

		c.logger.Info("starting workers",
			zap.Int("concurrency", c.cfg.Concurrency),
			zap.Int("queued", c.frontier.Size()))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.cfg.Concurrency)
		for i := 0; i < c.cfg.Concurrency; i++ {
			g.Go(func() error {
				return c.worker(gctx)
			})
		}

		go func() {
			if err := g.Wait(); err != nil {
				c.logger.Debug("workers stopped", zap.Error(err))
			}
			stop()
			cancel()
			close(c.results)
			close(c.done)
		}()
	})
}

// Next blocks until a result is available. It returns false once the crawl is
// exhausted or ctx is done.
//
// Each result keeps the crawl open until the following call to Next, so the
// consumer can still Visit URLs in response to it.
func (c *Crawler) Next(ctx context.Context) (types.CrawlResult, bool) {
	c.releaseDelivered()

	select {
	case result, ok := <-c.results:
		if ok {
			c.delivered.Add(1)
		}
		return result, ok
	case <-ctx.Done():
		return types.CrawlResult{}, false
	}
}

func (c *Crawler) releaseDelivered() {
	for {
		n := c.delivered.Load()
		if n == 0 {
			return
		}
		if c.delivered.CompareAndSwap(n, n-1) {
			c.frontier.Release()
			return
		}
	}
}

// Wait blocks until every worker has exited. Start must have been called.
func (c *Crawler) Wait() {
	<-c.done
}

// Classifier returns the classifier deciding explore and terminal verdicts
func (c *Crawler) Classifier() *classify.Classifier {
	return c.classifier
}

// Results returns a snapshot of the crawl counters
func (c *Crawler) Results() *types.Results {
	return &types.Results{
		Discovered: int(c.discovered.Load()),
		Fetched:    int(c.fetched.Load()),
		Errors:     int(c.errors.Load()),
		Discarded:  int(c.discarded.Load()),
		Written:    int(c.written.Load()),
	}
}

// Crawl queues seeds, runs the crawl to exhaustion, and appends every terminal
// result to sink. recorder may be nil. A sink failure cancels the crawl and is
// returned; cancellation of ctx returns the counters gathered so far with the
// context's error.
func (c *Crawler) Crawl(parent context.Context, seeds []string, sink Sink, recorder Recorder) (*types.Results, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	for _, seed := range seeds {
		if err := c.Visit(seed, ""); err != nil {
			return nil, err
		}
		c.logger.Info("queued seed", zap.String("url", seed))
	}

	c.Start(ctx)
	go c.reportProgress(ctx)

	var sinkErr error
	for {
		result, ok := c.Next(ctx)
		if !ok {
			break
		}

		terminal := c.classifier.IsTerminal(result.URL)
		if recorder != nil {
			if err := recorder.Record(ctx, result, terminal); err != nil {
				c.logger.Warn("journal write failed", zap.String("url", result.URL), zap.Error(err))
			}
		}
		if !terminal {
			continue
		}

		c.logger.Info("scraping", zap.String("url", result.URL), zap.Int("depth", result.Depth))
		if err := sink.Append(result.URL); err != nil {
			sinkErr = err
			cancel()
			break
		}
		c.written.Add(1)
		c.metrics.TerminalWritten.Inc()
	}

	c.Wait()
	c.metrics.observeFrontier(c.frontier)
	results := c.Results()

	if sinkErr != nil {
		return results, fmt.Errorf("crawl aborted: %w", sinkErr)
	}
	if err := parent.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// worker returns nil when the crawl is exhausted and the context error when it
// was cancelled.
func (c *Crawler) worker(ctx context.Context) error {
	for {
		task, ok := c.frontier.Pop()
		if !ok {
			return ctx.Err()
		}
		c.safely(task, func() {
			c.runTask(ctx, task)
		})
		c.frontier.Done()
	}
}

func (c *Crawler) runTask(ctx context.Context, task types.FetchTask) {
	if !task.Claimed {
		won := c.visited.TryClaim(task.URL)
		c.metrics.claim(won)
		if !won {
			c.logger.Debug("already claimed", zap.String("url", task.URL))
			return
		}
	}

	page, err := c.fetcher.Fetch(ctx, task.URL)
	if err != nil {
		c.recordFetchError(ctx, task, err)
		return
	}
	page.Depth = task.Depth
	page.Referrer = task.Referrer
	c.fetched.Add(1)
	c.metrics.PagesFetched.Inc()

	result, ok := c.processPage(task, page)
	if !ok {
		return
	}

	c.frontier.Hold()
	select {
	case c.results <- result:
	case <-ctx.Done():
		c.frontier.Release()
	}
}

func (c *Crawler) recordFetchError(ctx context.Context, task types.FetchTask, err error) {
	if ctx.Err() != nil {
		// cancelled mid-flight; not a fetch failure
		return
	}
	c.errors.Add(1)

	cause := "transport"
	var te *transport.TransportError
	var pe *parser.ParseError
	switch {
	case errors.As(err, &te) && te.StatusCode != 0:
		cause = "status"
	case errors.As(err, &pe):
		cause = "parse"
	}
	c.metrics.FetchErrors.WithLabelValues(cause).Inc()

	c.logger.Warn("fetch failed",
		zap.String("url", task.URL),
		zap.Int("depth", task.Depth),
		zap.String("cause", cause),
		zap.Error(err))
}

func (c *Crawler) reportProgress(ctx context.Context) {
	interval := c.cfg.ProgressInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			queued, inFlight, _ := c.frontier.Stats()
			c.metrics.observeFrontier(c.frontier)
			c.logger.Info("progress",
				zap.Int64("discovered", c.discovered.Load()),
				zap.Int64("fetched", c.fetched.Load()),
				zap.Int64("errors", c.errors.Load()),
				zap.Int64("written", c.written.Load()),
				zap.Int("queued", queued),
				zap.Int("in_flight", inFlight),
				zap.Int("visited", c.visited.Len()))
		case <-ctx.Done():
			return
		case <-c.done:
			return
		}
	}
}
