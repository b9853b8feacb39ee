package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lattice-trading/hft-gateway/internal/observability/log"
	"github.com/lattice-trading/hft-gateway/internal/wire"
	"golang.org/x/sync/errgroup"
)

// BatchMax is the maximum number of queue items the dispatcher drains
// per iteration.
const BatchMax = 100

// Options configures the dispatcher's polling behavior. The source's
// 10us condition-wait plus 1us inter-batch sleep is a deliberate spin at
// low load; whether that tradeoff is wanted is left to the deployment.
type Options struct {
	// PollTimeout bounds how long the dispatcher blocks waiting for the
	// queue to become non-empty before re-checking the running flag.
	PollTimeout time.Duration
	// BatchSleep is the pause after a poll that returned no work, avoiding
	// a 100%-CPU spin when condition-wait returns spuriously on an empty
	// queue.
	BatchSleep time.Duration
	// QueueCapacity bounds the dispatcher FIFO. Zero uses the default.
	QueueCapacity int
}

// DefaultOptions mirrors the source's constants exactly.
func DefaultOptions() Options {
	return Options{
		PollTimeout: 10 * time.Microsecond,
		BatchSleep:  1 * time.Microsecond,
	}
}

// Registry is the process-wide named map of long-running services, plus
// the bounded FIFO and dispatcher goroutine that feeds them.
type Registry struct {
	opts Options
	log  log.Log

	mu       sync.RWMutex
	services map[string]Service

	queue   *fifo
	running atomic.Bool

	dispatchOnce sync.Once
	dispatchDone chan struct{}
}

// NewRegistry returns an empty Registry configured with opts.
func NewRegistry(opts Options, logger log.Log) *Registry {
	if opts.PollTimeout == 0 && opts.BatchSleep == 0 {
		capacity := opts.QueueCapacity
		opts = DefaultOptions()
		opts.QueueCapacity = capacity
	}
	if logger == nil {
		logger = log.Provide()
	}
	return &Registry{
		opts:         opts,
		log:          logger,
		services:     make(map[string]Service),
		queue:        newFIFO(opts.QueueCapacity),
		dispatchDone: make(chan struct{}),
	}
}

// Register inserts service, overwriting and stopping any prior service
// registered under the same name.
func (r *Registry) Register(service Service) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.services[service.Name()]; ok {
		r.log.Info("replacing registered service", log.String("name", service.Name()))
		if existing.IsRunning() {
			existing.Stop()
		}
	}
	r.services[service.Name()] = service
}

// Unregister stops (if running) and removes the named service.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, ok := r.services[name]
	if !ok {
		return
	}
	if svc.IsRunning() {
		svc.Stop()
	}
	delete(r.services, name)
}

// Get returns the named service and whether it is registered.
func (r *Registry) Get(name string) (Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	return svc, ok
}

// ActiveCount returns the number of currently running services.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, svc := range r.services {
		if svc.IsRunning() {
			count++
		}
	}
	return count
}

// StartAll starts every non-running registered service concurrently,
// aggregating the first error without cancelling siblings that have
// already begun, then starts the dispatcher goroutine exactly once.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.RLock()
	toStart := make([]Service, 0, len(r.services))
	for _, svc := range r.services {
		if !svc.IsRunning() {
			toStart = append(toStart, svc)
		}
	}
	r.mu.RUnlock()

	// Plain errgroup.Group, not errgroup.WithContext: its derived context
	// is canceled the instant Wait returns, which is right after every
	// Start call has finished. Services bind their own long-lived worker
	// goroutines to whatever context Start is given (base.start,
	// market_data's shard loops), so that context must outlive StartAll
	// itself: pass ctx, the caller's process lifetime, not a context
	// scoped to the start-up race.
	var group errgroup.Group
	for _, svc := range toStart {
		svc := svc
		group.Go(func() error {
			return svc.Start(ctx)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	r.running.Store(true)
	r.dispatchOnce.Do(func() {
		go r.dispatchLoop()
	})
	return nil
}

// StopAll marks the registry as not running and stops every running
// service. It does not wait for the dispatcher goroutine to observe the
// flag; callers that need that guarantee should select on a future
// shutdown signal of their own.
func (r *Registry) StopAll() {
	r.running.Store(false)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, svc := range r.services {
		if svc.IsRunning() {
			svc.Stop()
		}
	}
}

// Send enqueues m for delivery to the named service. It returns
// ErrQueueFull if the dispatcher FIFO is at capacity.
func (r *Registry) Send(name string, m *wire.Message) error {
	return r.queue.push(work{service: name, message: m})
}

// Broadcast synchronously delivers m to every currently-running service,
// bypassing the FIFO entirely. Delivery order relative to Send is
// unspecified.
func (r *Registry) Broadcast(m *wire.Message) {
	r.mu.RLock()
	targets := make([]Service, 0, len(r.services))
	for _, svc := range r.services {
		if svc.IsRunning() {
			targets = append(targets, svc)
		}
	}
	r.mu.RUnlock()

	for _, svc := range targets {
		svc.Process(m)
	}
}

// dispatchLoop is the single long-lived dispatcher goroutine: it drains
// up to BatchMax items per iteration, looks up each target service under
// the registry lock, and invokes Process outside the lock.
func (r *Registry) dispatchLoop() {
	defer close(r.dispatchDone)
	for r.running.Load() {
		batch := r.queue.drainBatch(BatchMax, r.opts.PollTimeout)
		for _, w := range batch {
			r.deliver(w)
		}
		if len(batch) == 0 {
			time.Sleep(r.opts.BatchSleep)
		}
	}
}

func (r *Registry) deliver(w work) {
	r.mu.RLock()
	svc, ok := r.services[w.service]
	r.mu.RUnlock()

	if !ok || !svc.IsRunning() {
		return
	}
	svc.Process(w.message)
}
