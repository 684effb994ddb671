// Package classify decides what the crawler does with a discovered link.
//
// A link is either explored (fetched so its own links can be discovered) or
// discarded (recorded as seen, never fetched). Whether a visited page is
// reportable output is a separate question answered by IsTerminal.
package classify

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"
)

// Verdict is the classification of a single discovered link
type Verdict int

const (
	// Discard marks a link that is claimed but never fetched.
	Discard Verdict = iota
	// Explore marks a link that should be fetched.
	Explore
)

func (v Verdict) String() string {
	switch v {
	case Explore:
		return "explore"
	case Discard:
		return "discard"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

const (
	// DefaultExplorePattern matches the escaped path of a daily section page
	// in the 2020s.
	DefaultExplorePattern = `^/rmrb/html/(?P<year>202\d)-(?P<month>\d{2})/(?P<day>\d{2})/.+\.htm$`

	// DefaultTerminalPattern matches the full URL of an article page.
	DefaultTerminalPattern = `^http://paper\.people\.com\.cn/rmrb/html/(?P<year>202\d)-(?P<month>\d{2})/(?P<day>\d{2})/nw[^/]*\.htm$`
)

// Classifier holds the compiled patterns. It has no mutable state and is safe
// for concurrent use.
type Classifier struct {
	explore  *regexp.Regexp
	terminal *regexp.Regexp
}

// New compiles a classifier. Empty patterns fall back to the defaults.
func New(explorePattern, terminalPattern string) (*Classifier, error) {
	if explorePattern == "" {
		explorePattern = DefaultExplorePattern
	}
	if terminalPattern == "" {
		terminalPattern = DefaultTerminalPattern
	}

	explore, err := regexp.Compile(explorePattern)
	if err != nil {
		return nil, fmt.Errorf("compile explore pattern: %w", err)
	}
	terminal, err := regexp.Compile(terminalPattern)
	if err != nil {
		return nil, fmt.Errorf("compile terminal pattern: %w", err)
	}

	return &Classifier{explore: explore, terminal: terminal}, nil
}

// Default returns a classifier using the built-in patterns.
func Default() *Classifier {
	return &Classifier{
		explore:  regexp.MustCompile(DefaultExplorePattern),
		terminal: regexp.MustCompile(DefaultTerminalPattern),
	}
}

// Classify returns Explore when rawURL is an http(s) URL without a query whose
// path matches the explore pattern, and Discard otherwise.
func (c *Classifier) Classify(rawURL string) Verdict {
	u, ok := c.explorable(rawURL)
	if !ok || !c.explore.MatchString(u.EscapedPath()) {
		return Discard
	}
	return Explore
}

// IsTerminal reports whether a visited URL is reportable output.
func (c *Classifier) IsTerminal(rawURL string) bool {
	return c.terminal.MatchString(rawURL)
}

// IssueDate extracts the newspaper issue date from an explorable URL.
func (c *Classifier) IssueDate(rawURL string) (time.Time, bool) {
	u, ok := c.explorable(rawURL)
	if !ok {
		return time.Time{}, false
	}
	m := c.explore.FindStringSubmatch(u.EscapedPath())
	if m == nil {
		return time.Time{}, false
	}

	year, ok1 := group(c.explore, m, "year")
	month, ok2 := group(c.explore, m, "month")
	day, ok3 := group(c.explore, m, "day")
	if !ok1 || !ok2 || !ok3 {
		return time.Time{}, false
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// reject 2023-02-30 style paths instead of letting time.Date roll over
	if date.Year() != year || int(date.Month()) != month || date.Day() != day {
		return time.Time{}, false
	}
	return date, true
}

func (c *Classifier) explorable(rawURL string) (*url.URL, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if u.RawQuery != "" || u.ForceQuery {
		return nil, false
	}
	return u, true
}

func group(re *regexp.Regexp, match []string, name string) (int, bool) {
	idx := re.SubexpIndex(name)
	if idx < 0 || idx >= len(match) {
		return 0, false
	}
	n, err := strconv.Atoi(match[idx])
	if err != nil {
		return 0, false
	}
	return n, true
}
