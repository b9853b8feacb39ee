package dispatch

import (
	"errors"
	"sync"
	"time"

	"github.com/lattice-trading/hft-gateway/internal/wire"
)

// ErrQueueFull is returned by Send when the dispatcher FIFO has reached
// its capacity.
var ErrQueueFull = errors.New("dispatch: queue full")

// defaultQueueCapacity bounds the FIFO; the source specifies no exact
// cap but requires the implementation to enforce one.
const defaultQueueCapacity = 1 << 20

type work struct {
	service string
	message *wire.Message
}

// fifo is a bounded producer/consumer queue guarded by one mutex and one
// condition variable, matching the dispatcher's locking discipline: the
// lock is held only long enough to push or pop, never during delivery.
type fifo struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []work
	capacity int
}

func newFIFO(capacity int) *fifo {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	q := &fifo{capacity: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *fifo) push(w work) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		return ErrQueueFull
	}
	q.items = append(q.items, w)
	q.cond.Signal()
	return nil
}

// drainBatch pops up to max items, blocking for up to timeout if the
// queue is currently empty. It returns nil if nothing became available
// within timeout.
func (q *fifo) drainBatch(max int, timeout time.Duration) []work {
	q.mu.Lock()
	if len(q.items) == 0 {
		waitWithTimeout(q.cond, &q.mu, timeout)
	}

	if len(q.items) == 0 {
		q.mu.Unlock()
		return nil
	}

	n := max
	if n > len(q.items) {
		n = len(q.items)
	}
	batch := make([]work, n)
	copy(batch, q.items[:n])
	q.items = q.items[n:]
	q.mu.Unlock()
	return batch
}

// waitWithTimeout blocks on cond for at most timeout. sync.Cond has no
// native timeout, so a timer goroutine broadcasts the condition if it
// fires first; this mirrors the dispatcher's bounded condition-wait
// without busy-polling.
func waitWithTimeout(cond *sync.Cond, mu *sync.Mutex, timeout time.Duration) {
	done := make(chan struct{})
	timer := time.AfterFunc(timeout, func() {
		mu.Lock()
		cond.Broadcast()
		mu.Unlock()
		close(done)
	})
	cond.Wait()
	timer.Stop()
	select {
	case <-done:
	default:
	}
}
