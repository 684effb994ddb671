package types

import (
	"fmt"
	"net/url"
)

// NormalizeURL parses rawURL and drops its fragment. Every other component is
// kept as-is, so two URLs are equal iff their normalized strings are equal.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("url %q is not absolute", rawURL)
	}
	return StripFragment(u), nil
}

// StripFragment serializes u without its fragment.
func StripFragment(u *url.URL) string {
	cp := *u
	cp.Fragment = ""
	cp.RawFragment = ""
	return cp.String()
}
