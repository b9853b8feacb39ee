package gateway

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/lattice-trading/hft-gateway/internal/dispatch"
	"github.com/lattice-trading/hft-gateway/internal/interceptor"
	"github.com/lattice-trading/hft-gateway/internal/perf"
	"github.com/lattice-trading/hft-gateway/internal/wire"
	"github.com/stretchr/testify/require"
)

type capturingService struct {
	name string
	seen chan *wire.Message
}

func newCapturingService(name string) *capturingService {
	return &capturingService{name: name, seen: make(chan *wire.Message, 16)}
}

func (s *capturingService) Name() string                    { return s.name }
func (s *capturingService) Start(ctx context.Context) error { return nil }
func (s *capturingService) Stop()                           {}
func (s *capturingService) IsRunning() bool                 { return true }
func (s *capturingService) Process(m *wire.Message)          { s.seen <- m }

// TestServerEndToEndOrder exercises E1-shaped behavior over a real TCP
// socket: an encoded order flows through the acceptor, the interceptor
// chain, and into the registered service.
func TestServerEndToEndOrder(t *testing.T) {
	monitor := perf.NewMonitor()
	chain := interceptor.NewChain(
		interceptor.NewValidator(),
		interceptor.NewThrottler(1000000),
		interceptor.NewLogger(nil),
		interceptor.NewPerformance(monitor),
	)
	registry := dispatch.NewRegistry(dispatch.Options{PollTimeout: time.Millisecond, BatchSleep: time.Microsecond}, nil)
	orders := newCapturingService("OrderMatching")
	registry.Register(orders)
	require.NoError(t, registry.StartAll(context.Background()))
	defer registry.StopAll()

	cfg := Config{Port: 0, ThreadCount: 2, BufferSize: 4096, MaxConnections: 10}
	srv := NewServer(cfg, chain, monitor, registry, nil)
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	addr := srv.listener.Addr().String()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	m := &wire.Message{
		Kind:        wire.KindOrderNew,
		Priority:    wire.PriorityHigh,
		Sequence:    wire.NextSequence(),
		TimestampUs: 1,
		Order: &wire.OrderBody{
			OrderID:  12345,
			Symbol:   "AAPL",
			Price:    150.50,
			Quantity: 100,
			IsBuy:    true,
		},
	}
	_, err = conn.Write(wire.Encode(m))
	require.NoError(t, err)

	select {
	case received := <-orders.seen:
		require.Equal(t, m.Sequence, received.Sequence)
		require.Equal(t, "AAPL", received.Order.Symbol)
	case <-time.After(2 * time.Second):
		t.Fatal("order never reached the OrderMatching service")
	}
}

func TestServerRejectsBeyondMaxConnections(t *testing.T) {
	monitor := perf.NewMonitor()
	chain := interceptor.NewChain(interceptor.NewValidator())
	registry := dispatch.NewRegistry(dispatch.Options{PollTimeout: time.Millisecond, BatchSleep: time.Microsecond}, nil)

	cfg := Config{Port: 0, ThreadCount: 1, BufferSize: 4096, MaxConnections: 1}
	srv := NewServer(cfg, chain, monitor, registry, nil)
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	addr := srv.listener.Addr().String()

	conn1, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn1.Close()

	require.Eventually(t, func() bool {
		return srv.ActiveConnections() == 1
	}, time.Second, time.Millisecond)

	conn2, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn2.Close()

	buf := make([]byte, 1)
	conn2.SetReadDeadline(time.Now().Add(time.Second))
	_, err = conn2.Read(buf)
	require.Error(t, err, "the server should close connections beyond max_connections")
}
