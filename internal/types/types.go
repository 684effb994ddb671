package types

import (
	"time"
)

// Config holds crawler configuration
type Config struct {
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Seeds     SeedConfig      `mapstructure:"seeds"`
	Classify  ClassifyConfig  `mapstructure:"classify"`
	Visited   VisitedConfig   `mapstructure:"visited"`
	Transport TransportConfig `mapstructure:"transport"`
	Output    OutputConfig    `mapstructure:"output"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// CrawlerConfig controls the worker pool and fetch limits
type CrawlerConfig struct {
	Concurrency      int           `mapstructure:"concurrency"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	UserAgent        string        `mapstructure:"user_agent"`
	MaxBodyBytes     int64         `mapstructure:"max_body_bytes"`
	ResultsBuffer    int           `mapstructure:"results_buffer"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
}

// SeedConfig describes the daily seed range. Dates use the 2006-01-02 layout.
type SeedConfig struct {
	Start    string `mapstructure:"start"`
	End      string `mapstructure:"end"`
	Template string `mapstructure:"template"`
}

// ClassifyConfig holds the link classification patterns
type ClassifyConfig struct {
	ExplorePattern  string `mapstructure:"explore_pattern"`
	TerminalPattern string `mapstructure:"terminal_pattern"`
}

// VisitedConfig selects the visited-set backend
type VisitedConfig struct {
	Backend       string  `mapstructure:"backend"`
	BloomCapacity uint    `mapstructure:"bloom_capacity"`
	BloomFPRate   float64 `mapstructure:"bloom_fp_rate"`
}

// TransportConfig selects how pages are fetched
type TransportConfig struct {
	Kind           string `mapstructure:"kind"`
	TLSFingerprint bool   `mapstructure:"tls_fingerprint"`
	RotateHeaders  bool   `mapstructure:"rotate_headers"`
	Cookies        bool   `mapstructure:"cookies"`

	// MaxTabs bounds concurrent pages for the chrome transport
	MaxTabs int `mapstructure:"max_tabs"`

	// Proxies and ProxyFile list HTTP or SOCKS5 proxies for the http transport
	Proxies          []string `mapstructure:"proxies"`
	ProxyFile        string   `mapstructure:"proxy_file"`
	ProxyMaxFailures int      `mapstructure:"proxy_max_failures"`
}

// OutputConfig names the append-only result file
type OutputConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig configures the optional crawl journal
type StorageConfig struct {
	JournalPath string `mapstructure:"journal_path"`
}

// MetricsConfig configures the optional metrics listener
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Results contains crawl statistics
type Results struct {
	Discovered int
	Fetched    int
	Errors     int
	Discarded  int
	Written    int
}

// FetchTask is a pending unit of work in the frontier
type FetchTask struct {
	URL      string
	Referrer string
	Depth    int

	// Claimed is set when the producer already won the visited-set claim for URL.
	Claimed bool
}

// Document is the parsed form of a fetched page
type Document interface {
	ExtractLinks() []string
}

// FetchedPage is the outcome of a successful fetch
type FetchedPage struct {
	RequestURL  string
	FinalURL    string
	StatusCode  int
	ContentType string
	Depth       int
	Referrer    string
	Document    Document
}

// CrawlResult is emitted once for every fetched, newly claimed page
type CrawlResult struct {
	URL        string    `json:"url"`
	Depth      int       `json:"depth"`
	Referrer   string    `json:"referrer,omitempty"`
	StatusCode int       `json:"status_code"`
	LinkCount  int       `json:"link_count"`
	CrawledAt  time.Time `json:"crawled_at"`
}
