// Package seeding generates the crawl's starting URLs.
package seeding

import (
	"fmt"
	"strings"
	"time"

	"github.com/BenjaminSRussell/paperboy/internal/types"
)

// DateLayout is the layout of seed range bounds in configuration and flags
const DateLayout = "2006-01-02"

// Defaults for the People's Daily front-page seeds
const (
	DefaultStart    = "2023-04-01"
	DefaultEnd      = "2024-05-21"
	DefaultTemplate = "http://paper.people.com.cn/rmrb/html/%04d-%02d/%02d/nbs.D110000renmrb_01.htm"
)

// DailySeeds returns one URL per calendar day from start to end inclusive, in
// date order. template receives year, month and day as integers.
func DailySeeds(start, end time.Time, template string) ([]string, error) {
	if strings.Count(template, "%") != 3 {
		return nil, fmt.Errorf("seed template %q must take year, month and day", template)
	}

	start = truncateDay(start)
	end = truncateDay(end)
	if end.Before(start) {
		return nil, fmt.Errorf("seed range end %s is before start %s",
			end.Format(DateLayout), start.Format(DateLayout))
	}

	days := int(end.Sub(start).Hours()/24) + 1
	seeds := make([]string, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		seed := fmt.Sprintf(template, d.Year(), int(d.Month()), d.Day())
		if _, err := types.NormalizeURL(seed); err != nil {
			return nil, fmt.Errorf("seed template produced an invalid URL: %w", err)
		}
		seeds = append(seeds, seed)
	}
	return seeds, nil
}

// ParseRange parses start and end in DateLayout. Empty values fall back to
// the defaults.
func ParseRange(start, end string) (time.Time, time.Time, error) {
	if start == "" {
		start = DefaultStart
	}
	if end == "" {
		end = DefaultEnd
	}

	from, err := time.Parse(DateLayout, start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid seed start: %w", err)
	}
	to, err := time.Parse(DateLayout, end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid seed end: %w", err)
	}
	return from, to, nil
}

// FromConfig builds the seed list described by cfg
func FromConfig(cfg types.SeedConfig) ([]string, error) {
	from, to, err := ParseRange(cfg.Start, cfg.End)
	if err != nil {
		return nil, err
	}
	template := cfg.Template
	if template == "" {
		template = DefaultTemplate
	}
	return DailySeeds(from, to, template)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
