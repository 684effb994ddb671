// Package visited provides the crawl's single dedup authority.
//
// Every URL that is fetched, discarded, or reached through a redirect passes
// through TryClaim. The set has no separate membership test; TryClaim is the
// only way to read or write it.
package visited

import (
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Backend names accepted by New.
const (
	BackendExact = "exact"
	BackendBloom = "bloom"
)

// Set is an append-only set of normalized URLs.
type Set interface {
	// TryClaim records url and returns true iff it was not already a member.
	TryClaim(url string) bool
	// Len returns the number of claims won so far.
	Len() int
}

// New builds the backend named by backend.
func New(backend string, bloomCapacity uint, bloomFPRate float64) (Set, error) {
	switch backend {
	case "", BackendExact:
		return NewExact(), nil
	case BackendBloom:
		if bloomCapacity == 0 {
			return nil, fmt.Errorf("bloom capacity must be positive")
		}
		if bloomFPRate <= 0 || bloomFPRate >= 1 {
			return nil, fmt.Errorf("bloom false positive rate must be in (0, 1), got %v", bloomFPRate)
		}
		return NewBloom(bloomCapacity, bloomFPRate), nil
	default:
		return nil, fmt.Errorf("unknown visited backend %q", backend)
	}
}

// Exact is a map-backed Set with no false positives.
type Exact struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

// NewExact creates an empty exact set
func NewExact() *Exact {
	return &Exact{
		urls: make(map[string]struct{}),
	}
}

// TryClaim implements Set
func (s *Exact) TryClaim(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.urls[url]; ok {
		return false
	}
	s.urls[url] = struct{}{}
	return true
}

// Len implements Set
func (s *Exact) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}

// Bloom is a memory-bounded Set. A false positive makes an unseen URL look
// claimed, so it can skip a page but never dispatch one twice.
type Bloom struct {
	mu      sync.Mutex
	filter  *bloom.BloomFilter
	claimed int
}

// NewBloom sizes the filter for capacity URLs at the given false positive rate
func NewBloom(capacity uint, fpRate float64) *Bloom {
	return &Bloom{
		filter: bloom.NewWithEstimates(capacity, fpRate),
	}
}

// TryClaim implements Set
func (s *Bloom) TryClaim(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filter.TestAndAdd([]byte(url)) {
		return false
	}
	s.claimed++
	return true
}

// Len implements Set
func (s *Bloom) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimed
}
