// Package config loads crawler configuration with Viper from defaults, an
// optional config file, PAPERBOY_* environment variables and bound flags.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/BenjaminSRussell/paperboy/internal/classify"
	"github.com/BenjaminSRussell/paperboy/internal/crawler"
	transport "github.com/BenjaminSRussell/paperboy/internal/http"
	"github.com/BenjaminSRussell/paperboy/internal/proxy"
	"github.com/BenjaminSRussell/paperboy/internal/renderer"
	"github.com/BenjaminSRussell/paperboy/internal/seeding"
	"github.com/BenjaminSRussell/paperboy/internal/types"
	"github.com/BenjaminSRussell/paperboy/internal/visited"
)

// AppName names the config file and its XDG directory
const AppName = "paperboy"

// Limits on crawler.concurrency
const (
	MinConcurrency = 1
	MaxConcurrency = 10000
)

// ConfigDir returns the XDG config directory, e.g. ~/.config/paperboy on Linux
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// New returns a Viper instance carrying the defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("crawler.concurrency", crawler.DefaultConcurrency)
	v.SetDefault("crawler.request_timeout", "20s")
	v.SetDefault("crawler.user_agent", transport.DefaultUserAgent)
	v.SetDefault("crawler.max_body_bytes", 10<<20)
	v.SetDefault("crawler.results_buffer", 1024)
	v.SetDefault("crawler.progress_interval", "5s")

	v.SetDefault("seeds.start", seeding.DefaultStart)
	v.SetDefault("seeds.end", seeding.DefaultEnd)
	v.SetDefault("seeds.template", seeding.DefaultTemplate)

	v.SetDefault("classify.explore_pattern", classify.DefaultExplorePattern)
	v.SetDefault("classify.terminal_pattern", classify.DefaultTerminalPattern)

	v.SetDefault("visited.backend", visited.BackendExact)
	v.SetDefault("visited.bloom_capacity", 10_000_000)
	v.SetDefault("visited.bloom_fp_rate", 0.001)

	v.SetDefault("transport.kind", crawler.TransportHTTP)
	v.SetDefault("transport.tls_fingerprint", false)
	v.SetDefault("transport.rotate_headers", false)
	v.SetDefault("transport.cookies", true)
	v.SetDefault("transport.max_tabs", renderer.DefaultMaxTabs)
	v.SetDefault("transport.proxies", []string{})
	v.SetDefault("transport.proxy_file", "")
	v.SetDefault("transport.proxy_max_failures", proxy.DefaultMaxFailures)

	v.SetDefault("output.path", "urls.txt")
	v.SetDefault("storage.journal_path", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", true)

	v.SetEnvPrefix("PAPERBOY") // e.g. PAPERBOY_CRAWLER_CONCURRENCY=200
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// ReadFile reads path into v. With an empty path it searches for
// paperboy.{yaml,toml,json} in the working directory and ConfigDir, and a
// missing file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName(AppName)
	v.AddConfigPath(".")
	v.AddConfigPath(ConfigDir())
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Decode unmarshals v into a Config and validates it
func Decode(v *viper.Viper) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// Load reads defaults, the config file at path (or the search path) and the
// environment.
func Load(path string) (types.Config, error) {
	v := New()
	if err := ReadFile(v, path); err != nil {
		return types.Config{}, err
	}
	return Decode(v)
}

// Validate reports the first invalid setting in cfg
func Validate(cfg types.Config) error {
	c := cfg.Crawler
	if c.Concurrency < MinConcurrency || c.Concurrency > MaxConcurrency {
		return fmt.Errorf("crawler.concurrency must be between %d and %d, got %d",
			MinConcurrency, MaxConcurrency, c.Concurrency)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be positive, got %v", c.RequestTimeout)
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("crawler.max_body_bytes cannot be negative, got %d", c.MaxBodyBytes)
	}
	if c.ResultsBuffer < 0 {
		return fmt.Errorf("crawler.results_buffer cannot be negative, got %d", c.ResultsBuffer)
	}
	if c.ProgressInterval < 0 {
		return fmt.Errorf("crawler.progress_interval cannot be negative, got %v", c.ProgressInterval)
	}

	start, end, err := seeding.ParseRange(cfg.Seeds.Start, cfg.Seeds.End)
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("seeds.end %s is before seeds.start %s",
			end.Format(seeding.DateLayout), start.Format(seeding.DateLayout))
	}
	if _, err := seeding.DailySeeds(start, start, templateOrDefault(cfg.Seeds.Template)); err != nil {
		return fmt.Errorf("seeds.template: %w", err)
	}

	if _, err := classify.New(cfg.Classify.ExplorePattern, cfg.Classify.TerminalPattern); err != nil {
		return err
	}

	switch cfg.Visited.Backend {
	case visited.BackendExact:
	case visited.BackendBloom:
		if cfg.Visited.BloomCapacity == 0 {
			return errors.New("visited.bloom_capacity must be positive")
		}
		if cfg.Visited.BloomFPRate <= 0 || cfg.Visited.BloomFPRate >= 1 {
			return fmt.Errorf("visited.bloom_fp_rate must be in (0, 1), got %v", cfg.Visited.BloomFPRate)
		}
	default:
		return fmt.Errorf("visited.backend must be %q or %q, got %q",
			visited.BackendExact, visited.BackendBloom, cfg.Visited.Backend)
	}

	switch cfg.Transport.Kind {
	case crawler.TransportHTTP, crawler.TransportChrome:
	default:
		return fmt.Errorf("transport.kind must be %q or %q, got %q",
			crawler.TransportHTTP, crawler.TransportChrome, cfg.Transport.Kind)
	}
	if cfg.Transport.MaxTabs < 0 {
		return fmt.Errorf("transport.max_tabs cannot be negative, got %d", cfg.Transport.MaxTabs)
	}
	if cfg.Transport.TLSFingerprint && cfg.Transport.Kind == crawler.TransportChrome {
		return errors.New("transport.tls_fingerprint applies only to the http transport")
	}
	if len(cfg.Transport.Proxies) > 0 || cfg.Transport.ProxyFile != "" {
		if cfg.Transport.Kind == crawler.TransportChrome {
			return errors.New("transport.proxies apply only to the http transport")
		}
		if cfg.Transport.TLSFingerprint {
			return errors.New("transport.proxies cannot be combined with transport.tls_fingerprint")
		}
		if _, err := crawler.NewProxyPool(cfg.Transport); err != nil {
			return fmt.Errorf("transport.proxies: %w", err)
		}
	}

	if cfg.Output.Path == "" {
		return errors.New("output.path is required")
	}
	return nil
}

func templateOrDefault(template string) string {
	if template == "" {
		return seeding.DefaultTemplate
	}
	return template
}

// Summary returns the settings worth logging at startup
func Summary(cfg types.Config) map[string]any {
	return map[string]any{
		"concurrency":     cfg.Crawler.Concurrency,
		"request_timeout": cfg.Crawler.RequestTimeout.String(),
		"seeds":           cfg.Seeds.Start + ".." + cfg.Seeds.End,
		"visited":         cfg.Visited.Backend,
		"transport":       cfg.Transport.Kind,
		"output":          cfg.Output.Path,
		"journal":         cfg.Storage.JournalPath,
		"metrics":         cfg.Metrics.Addr,
	}
}
