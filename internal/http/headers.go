package http

import (
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// BrowserProfile is a set of request headers sent by one real browser.
// Accept-Encoding is left to the transport so responses are decompressed.
type BrowserProfile struct {
	UserAgent       string
	AcceptLanguage  string
	Accept          string
	SecChUA         string
	SecChUAPlatform string
	SecChUAMobile   string
	SecFetchSite    string
	SecFetchMode    string
	SecFetchDest    string
	UpgradeInsecure string
	CacheControl    string
}

var browserProfiles = []BrowserProfile{
	// Chrome on Windows
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		AcceptLanguage:  "zh-CN,zh;q=0.9,en;q=0.8",
		Accept:          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		SecChUA:         `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
		SecChUAPlatform: `"Windows"`,
		SecChUAMobile:   "?0",
		SecFetchSite:    "none",
		SecFetchMode:    "navigate",
		SecFetchDest:    "document",
		UpgradeInsecure: "1",
		CacheControl:    "max-age=0",
	},
	// Chrome on macOS
	{
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		AcceptLanguage:  "zh-CN,zh;q=0.9,en;q=0.8",
		Accept:          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		SecChUA:         `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
		SecChUAPlatform: `"macOS"`,
		SecChUAMobile:   "?0",
		SecFetchSite:    "none",
		SecFetchMode:    "navigate",
		SecFetchDest:    "document",
		UpgradeInsecure: "1",
	},
	// Firefox on Windows
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:134.0) Gecko/20100101 Firefox/134.0",
		AcceptLanguage:  "zh-CN,zh;q=0.8,zh-TW;q=0.7,en-US;q=0.5,en;q=0.3",
		Accept:          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		SecFetchSite:    "none",
		SecFetchMode:    "navigate",
		SecFetchDest:    "document",
		UpgradeInsecure: "1",
		CacheControl:    "max-age=0",
	},
	// Safari on macOS
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.2 Safari/605.1.15",
		AcceptLanguage: "zh-CN,zh-Hans;q=0.9",
		Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		SecFetchSite:   "none",
		SecFetchMode:   "navigate",
		SecFetchDest:   "document",
	},
	// Edge on Windows
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
		AcceptLanguage:  "zh-CN,zh;q=0.9,en;q=0.8,en-GB;q=0.7,en-US;q=0.6",
		Accept:          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
		SecChUA:         `"Microsoft Edge";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
		SecChUAPlatform: `"Windows"`,
		SecChUAMobile:   "?0",
		SecFetchSite:    "none",
		SecFetchMode:    "navigate",
		SecFetchDest:    "document",
		UpgradeInsecure: "1",
	},
}

// HeaderRotator picks a browser profile per request. It is safe for
// concurrent use by the worker pool.
type HeaderRotator struct {
	profiles []BrowserProfile

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewHeaderRotator creates a new header rotator
func NewHeaderRotator() *HeaderRotator {
	return &HeaderRotator{
		profiles: browserProfiles,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GetRandomProfile returns a random browser profile
func (hr *HeaderRotator) GetRandomProfile() BrowserProfile {
	hr.mu.Lock()
	defer hr.mu.Unlock()
	return hr.profiles[hr.rnd.Intn(len(hr.profiles))]
}

// ApplyHeaders applies browser headers to an HTTP request
func (hr *HeaderRotator) ApplyHeaders(req *http.Request) {
	profile := hr.GetRandomProfile()

	req.Header.Set("User-Agent", profile.UserAgent)
	req.Header.Set("Accept", profile.Accept)
	req.Header.Set("Accept-Language", profile.AcceptLanguage)

	optional := []struct {
		name, value string
	}{
		{"Sec-Ch-Ua", profile.SecChUA},
		{"Sec-Ch-Ua-Platform", profile.SecChUAPlatform},
		{"Sec-Ch-Ua-Mobile", profile.SecChUAMobile},
		{"Sec-Fetch-Site", profile.SecFetchSite},
		{"Sec-Fetch-Mode", profile.SecFetchMode},
		{"Sec-Fetch-Dest", profile.SecFetchDest},
		{"Upgrade-Insecure-Requests", profile.UpgradeInsecure},
		{"Cache-Control", profile.CacheControl},
	}
	for _, h := range optional {
		if h.value != "" {
			req.Header.Set(h.name, h.value)
		}
	}
}
