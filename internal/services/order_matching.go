package services

import (
	"context"

	"github.com/lattice-trading/hft-gateway/internal/observability/log"
	"github.com/lattice-trading/hft-gateway/internal/wire"
)

// OrderMatching is the service shell behind the order book and matching
// algorithm. The matching logic itself is out of scope; this shell only
// proves out the lifecycle and handoff contract.
type OrderMatching struct {
	*base
}

// NewOrderMatching returns an OrderMatching service shell.
func NewOrderMatching(logger log.Log) *OrderMatching {
	return &OrderMatching{base: newBase("OrderMatching", logger)}
}

func (s *OrderMatching) Start(ctx context.Context) error {
	return s.start(ctx, s.handle)
}

func (s *OrderMatching) Stop() { s.stop() }

func (s *OrderMatching) Process(m *wire.Message) { s.process(m) }

// handle is the stub a real order book / matching engine would replace.
func (s *OrderMatching) handle(m *wire.Message) {
	switch m.Kind {
	case wire.KindOrderNew, wire.KindOrderCancel, wire.KindOrderReplace, wire.KindOrderFill:
		s.log.Debug("order accepted for matching",
			log.Uint64("order_id", orderID(m)),
			log.Uint64("seq", m.Sequence),
		)
	case wire.KindHeartbeat:
		// No-op: heartbeats only prove liveness through the broadcast path.
	default:
		s.log.Debug("order matching service ignored message kind",
			log.String("kind", m.Kind.String()),
		)
	}
}

func orderID(m *wire.Message) uint64 {
	if m.Order == nil {
		return 0
	}
	return m.Order.OrderID
}
