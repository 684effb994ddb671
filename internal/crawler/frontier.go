package crawler

import (
	"errors"
	"sync"

	"github.com/BenjaminSRussell/paperboy/internal/types"
)

// ErrFrontierClosed is returned by Visit once the crawl is exhausted or cancelled
var ErrFrontierClosed = errors.New("frontier closed")

// Frontier is an unbounded FIFO of pending fetch tasks shared by all workers.
//
// It counts outstanding work as queued plus in-flight tasks plus held units. A
// worker pushes the children of a page before calling Done for the page
// itself, so the count only reaches zero once no task can produce more work;
// the frontier then closes and every blocked Pop returns.
type Frontier struct {
	mu   sync.Mutex
	cond *sync.Cond

	queue []types.FetchTask
	head  int

	outstanding int
	inFlight    int
	closed      bool
}

// NewFrontier creates an empty, open frontier
func NewFrontier() *Frontier {
	f := &Frontier{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Push appends a task without blocking
func (f *Frontier) Push(task types.FetchTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrFrontierClosed
	}
	f.queue = append(f.queue, task)
	f.outstanding++
	f.cond.Signal()
	return nil
}

// Pop blocks until a task is available or the frontier closes. Every task
// returned with ok=true must be followed by exactly one call to Done.
func (f *Frontier) Pop() (types.FetchTask, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for !f.closed && f.head == len(f.queue) {
		f.cond.Wait()
	}
	if f.closed {
		return types.FetchTask{}, false
	}

	task := f.queue[f.head]
	f.queue[f.head] = types.FetchTask{}
	f.head++
	if f.head == len(f.queue) {
		f.queue = f.queue[:0]
		f.head = 0
	} else if f.head > 1024 && f.head > len(f.queue)/2 {
		n := copy(f.queue, f.queue[f.head:])
		f.queue = f.queue[:n]
		f.head = 0
	}
	f.inFlight++
	return task, true
}

// Done marks a popped task finished and closes the frontier when no work remains
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inFlight--
	f.outstanding--
	if f.outstanding == 0 {
		f.closeLocked()
	}
}

// Hold counts one unit of work that is not a queued or popped task, such as a
// result still waiting for its consumer.
func (f *Frontier) Hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outstanding++
}

// Release drops a unit added by Hold and closes the frontier when no work remains
func (f *Frontier) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.outstanding--
	if f.outstanding == 0 {
		f.closeLocked()
	}
}

// CloseIfIdle closes the frontier if it holds no work. It is used when the
// crawl starts with nothing seeded.
func (f *Frontier) CloseIfIdle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.outstanding == 0 {
		f.closeLocked()
		return true
	}
	return false
}

// Close drops queued tasks and wakes every waiting worker
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeLocked()
}

func (f *Frontier) closeLocked() {
	if f.closed {
		return
	}
	f.closed = true
	f.outstanding -= len(f.queue) - f.head
	f.queue = nil
	f.head = 0
	f.cond.Broadcast()
}

// Closed reports whether the frontier has closed
func (f *Frontier) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Size returns the number of queued tasks
func (f *Frontier) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) - f.head
}

// Stats returns the queued, in-flight and outstanding task counts
func (f *Frontier) Stats() (queued, inFlight, outstanding int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) - f.head, f.inFlight, f.outstanding
}
