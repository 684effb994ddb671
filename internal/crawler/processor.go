package crawler

import (
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/BenjaminSRussell/paperboy/internal/classify"
	"github.com/BenjaminSRussell/paperboy/internal/parser"
	"github.com/BenjaminSRussell/paperboy/internal/types"
)

// processPage turns a fetched page into a result and queues its links.
//
// The task already owns the claim for its own URL. A page served from a
// different URL must also win the claim for that URL, otherwise another task
// has or will handle it and the page is dropped. Every resolved link is
// claimed before it is classified, so a link is evaluated at most once per
// crawl: Discard leaves it claimed and unfetched, Explore queues it with the
// claim already held.
func (c *Crawler) processPage(task types.FetchTask, page *types.FetchedPage) (types.CrawlResult, bool) {
	finalURL := task.URL
	if page.FinalURL != "" {
		if normalized, err := types.NormalizeURL(page.FinalURL); err == nil {
			finalURL = normalized
		}
	}

	if finalURL != task.URL {
		won := c.visited.TryClaim(finalURL)
		c.metrics.claim(won)
		if !won {
			c.logger.Debug("redirect target already claimed",
				zap.String("url", task.URL),
				zap.String("final_url", finalURL))
			return types.CrawlResult{}, false
		}
	}

	base, err := url.Parse(finalURL)
	if err != nil {
		c.logger.Warn("unusable final url", zap.String("url", finalURL), zap.Error(err))
		return types.CrawlResult{}, false
	}

	var hrefs []string
	if page.Document != nil {
		hrefs = page.Document.ExtractLinks()
	}

	for _, href := range hrefs {
		link, err := parser.Resolve(base, href)
		if err != nil {
			c.logger.Debug("skipping link", zap.String("page", finalURL), zap.Error(err))
			continue
		}

		won := c.visited.TryClaim(link)
		c.metrics.claim(won)
		if !won {
			continue
		}
		c.discovered.Add(1)

		if c.classifier.Classify(link) == classify.Discard {
			c.discarded.Add(1)
			c.metrics.LinksDiscarded.Inc()
			continue
		}

		err = c.frontier.Push(types.FetchTask{
			URL:      link,
			Referrer: finalURL,
			Depth:    task.Depth + 1,
			Claimed:  true,
		})
		if err != nil {
			// frontier closed by cancellation
			break
		}
	}

	return types.CrawlResult{
		URL:        finalURL,
		Depth:      task.Depth,
		Referrer:   task.Referrer,
		StatusCode: page.StatusCode,
		LinkCount:  len(hrefs),
		CrawledAt:  time.Now(),
	}, true
}
