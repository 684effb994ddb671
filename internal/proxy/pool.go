// Package proxy rotates outgoing requests across a fixed list of proxies.
package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
)

// DefaultMaxFailures is how many consecutive failures take a proxy out of rotation
const DefaultMaxFailures = 3

// ErrNoProxies is returned when every proxy in the pool has been benched
var ErrNoProxies = errors.New("no working proxies available")

// Proxy is one pool member
type Proxy struct {
	URL       *url.URL
	Failures  int
	Successes int
}

// Pool hands out proxies round-robin, skipping those that failed too often
type Pool struct {
	mu          sync.Mutex
	proxies     []*Proxy
	next        int
	maxFailures int
}

// ParseLine parses a proxy list entry. Accepted forms are host:port,
// http://host:port, https://host:port and socks5://host:port.
func ParseLine(line string) (*url.URL, error) {
	line = strings.TrimSpace(line)
	if !strings.Contains(line, "://") {
		line = "http://" + line
	}

	u, err := url.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q: %w", line, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return nil, fmt.Errorf("invalid proxy %q: unsupported scheme %q", line, u.Scheme)
	}
	if u.Hostname() == "" || u.Port() == "" {
		return nil, fmt.Errorf("invalid proxy %q: host and port required", line)
	}
	return u, nil
}

// NewPool builds a pool from proxy list entries. Blank lines and lines
// starting with # are skipped.
func NewPool(lines []string, maxFailures int) (*Pool, error) {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}

	p := &Pool{maxFailures: maxFailures}
	seen := make(map[string]bool)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, err := ParseLine(line)
		if err != nil {
			return nil, err
		}
		if seen[u.String()] {
			continue
		}
		seen[u.String()] = true
		p.proxies = append(p.proxies, &Proxy{URL: u})
	}

	if len(p.proxies) == 0 {
		return nil, errors.New("proxy list is empty")
	}
	return p, nil
}

// LoadFile reads one proxy per line from path and appends extra
func LoadFile(path string, extra []string, maxFailures int) (*Pool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open proxy list: %w", err)
	}
	defer file.Close()

	lines := append([]string(nil), extra...)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read proxy list: %w", err)
	}
	return NewPool(lines, maxFailures)
}

// Pick returns the next working proxy
func (p *Pool) Pick() (*Proxy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < len(p.proxies); i++ {
		px := p.proxies[p.next]
		p.next = (p.next + 1) % len(p.proxies)
		if px.Failures < p.maxFailures {
			return px, nil
		}
	}
	return nil, ErrNoProxies
}

// RecordSuccess resets the proxy's consecutive failure count
func (p *Pool) RecordSuccess(px *Proxy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	px.Successes++
	px.Failures = 0
}

// RecordFailure counts a failed request through px
func (p *Pool) RecordFailure(px *Proxy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	px.Failures++
}

// Stats returns the pool size and how many proxies are still in rotation
func (p *Pool) Stats() (total, working int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, px := range p.proxies {
		if px.Failures < p.maxFailures {
			working++
		}
	}
	return len(p.proxies), working
}

type ctxKey struct{}

// WithProxy routes requests made with the returned context through px
func WithProxy(ctx context.Context, px *Proxy) context.Context {
	return context.WithValue(ctx, ctxKey{}, px)
}

// FromRequest is an http.Transport Proxy func. Requests whose context carries
// no proxy go direct.
func FromRequest(req *http.Request) (*url.URL, error) {
	if px, ok := req.Context().Value(ctxKey{}).(*Proxy); ok && px != nil {
		return px.URL, nil
	}
	return nil, nil
}
