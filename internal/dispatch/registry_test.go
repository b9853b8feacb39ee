package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lattice-trading/hft-gateway/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	name    string
	running atomic.Bool
	mu      sync.Mutex
	seen    []*wire.Message
}

func newFakeService(name string) *fakeService {
	return &fakeService{name: name}
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(ctx context.Context) error {
	s.running.Store(true)
	return nil
}

func (s *fakeService) Stop() {
	s.running.Store(false)
}

func (s *fakeService) IsRunning() bool {
	return s.running.Load()
}

func (s *fakeService) Process(m *wire.Message) {
	s.mu.Lock()
	s.seen = append(s.seen, m)
	s.mu.Unlock()
}

func (s *fakeService) seenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// ctxAwareService mirrors the real service shells (services.base): Start
// derives its own worker goroutine from whatever context it is given and
// that goroutine keeps running, processing messages off a channel, until
// that context is canceled. A registry that hands Start a context scoped
// to StartAll's own duration (rather than the caller's long-lived ctx)
// kills this goroutine the instant StartAll returns, which this test
// would catch by seeing delivery stop working right after.
type ctxAwareService struct {
	name    string
	inbox   chan *wire.Message
	done    chan struct{}
	running atomic.Bool
	seen    atomic.Int64
}

func newCtxAwareService(name string) *ctxAwareService {
	return &ctxAwareService{name: name, inbox: make(chan *wire.Message, 64)}
}

func (s *ctxAwareService) Name() string { return s.name }

func (s *ctxAwareService) Start(ctx context.Context) error {
	s.running.Store(true)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-s.inbox:
				_ = m
				s.seen.Add(1)
			}
		}
	}()
	return nil
}

func (s *ctxAwareService) Stop() {
	s.running.Store(false)
}

func (s *ctxAwareService) IsRunning() bool { return s.running.Load() }

func (s *ctxAwareService) Process(m *wire.Message) {
	select {
	case s.inbox <- m:
	default:
	}
}

// Regression test: StartAll must hand each service's Start the long-lived
// context the caller passed in, not one scoped to the startup race itself.
// Before the fix, errgroup.WithContext's derived context was canceled the
// moment group.Wait() returned inside StartAll, so every service's worker
// goroutine exited right there: IsRunning stayed true, but nothing was
// ever delivered again.
func TestStartAllContextOutlivesTheCallItself(t *testing.T) {
	reg := NewRegistry(fastOptions(), nil)
	svc := newCtxAwareService("orders")
	reg.Register(svc)

	require.NoError(t, reg.StartAll(context.Background()))

	require.NoError(t, reg.Send("orders", &wire.Message{Sequence: 1}))
	require.Eventually(t, func() bool {
		return svc.seen.Load() == 1
	}, time.Second, time.Millisecond, "first message sent after StartAll returned was not delivered")

	require.NoError(t, reg.Send("orders", &wire.Message{Sequence: 2}))
	require.Eventually(t, func() bool {
		return svc.seen.Load() == 2
	}, time.Second, time.Millisecond, "service worker stopped processing after StartAll returned")

	reg.StopAll()
}

func fastOptions() Options {
	return Options{
		PollTimeout: time.Millisecond,
		BatchSleep:  time.Microsecond,
	}
}

// Property 7: dispatcher FIFO. Messages enqueued for service S with Send
// are delivered to S.Process in enqueue order.
func TestDispatcherFIFOOrdering(t *testing.T) {
	reg := NewRegistry(fastOptions(), nil)
	svc := newFakeService("orders")
	reg.Register(svc)
	require.NoError(t, reg.StartAll(context.Background()))
	defer reg.StopAll()

	const n = 500
	for i := 0; i < n; i++ {
		require.NoError(t, reg.Send("orders", &wire.Message{Sequence: uint64(i + 1)}))
	}

	require.Eventually(t, func() bool {
		return svc.seenCount() == n
	}, time.Second, time.Millisecond)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	for i, m := range svc.seen {
		assert.Equal(t, uint64(i+1), m.Sequence, "message %d delivered out of order", i)
	}
}

func TestDispatcherDropsUnknownService(t *testing.T) {
	reg := NewRegistry(fastOptions(), nil)
	require.NoError(t, reg.StartAll(context.Background()))
	defer reg.StopAll()

	err := reg.Send("nonexistent", &wire.Message{Sequence: 1})
	require.NoError(t, err, "Send to an unregistered service does not itself error")
	time.Sleep(5 * time.Millisecond) // the dispatcher simply drops it
}

func TestDispatcherQueueFull(t *testing.T) {
	opts := fastOptions()
	opts.QueueCapacity = 2
	reg := NewRegistry(opts, nil)
	svc := newFakeService("slow")
	reg.Register(svc)

	require.NoError(t, reg.queue.push(work{service: "slow", message: &wire.Message{}}))
	require.NoError(t, reg.queue.push(work{service: "slow", message: &wire.Message{}}))
	err := reg.Send("slow", &wire.Message{})
	assert.ErrorIs(t, err, ErrQueueFull)
}

// E5: register three services, start all, broadcast a heartbeat, stop.
func TestScenarioE5Broadcast(t *testing.T) {
	reg := NewRegistry(fastOptions(), nil)
	order := newFakeService("OrderMatching")
	market := newFakeService("MarketData")
	risk := newFakeService("Risk")
	reg.Register(order)
	reg.Register(market)
	reg.Register(risk)

	assert.Equal(t, 0, reg.ActiveCount())
	require.NoError(t, reg.StartAll(context.Background()))
	assert.Equal(t, 3, reg.ActiveCount())

	heartbeat := &wire.Message{Kind: wire.KindHeartbeat, Heartbeat: &wire.HeartbeatBody{}}
	reg.Broadcast(heartbeat)

	assert.Equal(t, 1, order.seenCount())
	assert.Equal(t, 1, market.seenCount())
	assert.Equal(t, 1, risk.seenCount())

	reg.StopAll()
	assert.Equal(t, 0, reg.ActiveCount())
}

// Property 8: graceful shutdown. After StopAll, the dispatcher goroutine
// terminates within roughly one poll interval.
func TestGracefulShutdown(t *testing.T) {
	reg := NewRegistry(fastOptions(), nil)
	svc := newFakeService("orders")
	reg.Register(svc)
	require.NoError(t, reg.StartAll(context.Background()))

	reg.StopAll()

	select {
	case <-reg.dispatchDone:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("dispatcher goroutine did not terminate within the poll interval")
	}
}
