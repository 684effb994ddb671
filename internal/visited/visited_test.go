package visited

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Set {
	t.Helper()
	return map[string]Set{
		BackendExact: NewExact(),
		BackendBloom: NewBloom(100_000, 0.0001),
	}
}

func TestTryClaimOnce(t *testing.T) {
	for name, set := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.True(t, set.TryClaim("http://x/y"))
			assert.False(t, set.TryClaim("http://x/y"))
			assert.True(t, set.TryClaim("http://x/z"))
			assert.Equal(t, 2, set.Len())
		})
	}
}

func TestTryClaimConcurrentSingleWinner(t *testing.T) {
	for name, set := range backends(t) {
		t.Run(name, func(t *testing.T) {
			const goroutines = 64
			const urls = 200

			var wins [urls]atomic.Int32
			var wg sync.WaitGroup
			start := make(chan struct{})
			for g := 0; g < goroutines; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					for i := 0; i < urls; i++ {
						if set.TryClaim(fmt.Sprintf("http://paper.people.com.cn/page/%d.htm", i)) {
							wins[i].Add(1)
						}
					}
				}()
			}
			close(start)
			wg.Wait()

			for i := range wins {
				require.Equalf(t, int32(1), wins[i].Load(), "url %d claimed %d times", i, wins[i].Load())
			}
			assert.Equal(t, urls, set.Len())
		})
	}
}

func TestNew(t *testing.T) {
	set, err := New("", 0, 0)
	require.NoError(t, err)
	assert.IsType(t, &Exact{}, set)

	set, err = New(BackendExact, 0, 0)
	require.NoError(t, err)
	assert.IsType(t, &Exact{}, set)

	set, err = New(BackendBloom, 1000, 0.01)
	require.NoError(t, err)
	assert.IsType(t, &Bloom{}, set)
}

func TestNewRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name     string
		backend  string
		capacity uint
		fpRate   float64
	}{
		{"unknown backend", "redis", 0, 0},
		{"zero capacity", BackendBloom, 0, 0.01},
		{"zero rate", BackendBloom, 1000, 0},
		{"rate of one", BackendBloom, 1000, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.backend, tt.capacity, tt.fpRate)
			require.Error(t, err)
		})
	}
}
