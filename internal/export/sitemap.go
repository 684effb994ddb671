package export

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/BenjaminSRussell/paperboy/internal/storage"
)

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

// MaxSitemapURLs is the per-file limit of the sitemap protocol
const MaxSitemapURLs = 50000

// SitemapConfig holds export configuration
type SitemapConfig struct {
	IncludeLastmod  bool
	Changefreq      string
	DefaultPriority float64
}

// DefaultSitemapConfig marks archived issues as never changing
func DefaultSitemapConfig() SitemapConfig {
	return SitemapConfig{
		IncludeLastmod:  true,
		Changefreq:      "never",
		DefaultPriority: 0.8,
	}
}

// URLSet represents the XML sitemap structure
type URLSet struct {
	XMLName xml.Name `xml:"urlset"`
	XMLNS   string   `xml:"xmlns,attr"`
	URLs    []URL    `xml:"url"`
}

// URL represents a single URL in the sitemap
type URL struct {
	Loc        string  `xml:"loc"`
	Lastmod    string  `xml:"lastmod,omitempty"`
	Changefreq string  `xml:"changefreq,omitempty"`
	Priority   float64 `xml:"priority,omitempty"`
}

// WriteSitemap writes records with a 2xx status as an XML sitemap. lastmod is
// the issue date when known, otherwise the crawl date.
func WriteSitemap(w io.Writer, records []storage.PageRecord, config SitemapConfig) (int, error) {
	urlSet := URLSet{
		XMLNS: sitemapNS,
		URLs:  make([]URL, 0, len(records)),
	}

	for _, rec := range records {
		if rec.StatusCode < 200 || rec.StatusCode > 299 {
			continue
		}

		u := URL{
			Loc:        rec.URL,
			Changefreq: config.Changefreq,
			Priority:   config.DefaultPriority,
		}
		if config.IncludeLastmod {
			if rec.IssueDate != nil {
				u.Lastmod = rec.IssueDate.Format("2006-01-02")
			} else if !rec.CrawledAt.IsZero() {
				u.Lastmod = rec.CrawledAt.Format("2006-01-02")
			}
		}
		urlSet.URLs = append(urlSet.URLs, u)
	}

	if len(urlSet.URLs) > MaxSitemapURLs {
		return 0, fmt.Errorf("sitemap would hold %d URLs, limit is %d", len(urlSet.URLs), MaxSitemapURLs)
	}

	output, err := xml.MarshalIndent(urlSet, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to marshal XML: %w", err)
	}

	if _, err := io.WriteString(w, xml.Header+string(output)+"\n"); err != nil {
		return 0, fmt.Errorf("failed to write sitemap: %w", err)
	}
	return len(urlSet.URLs), nil
}
