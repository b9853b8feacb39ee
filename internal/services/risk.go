package services

import (
	"context"

	"github.com/lattice-trading/hft-gateway/internal/observability/log"
	"github.com/lattice-trading/hft-gateway/internal/wire"
)

// Risk is the service shell behind pre-trade risk rule evaluation. The
// rule evaluation itself is out of scope; this shell only proves out the
// lifecycle and handoff contract.
type Risk struct {
	*base
}

// NewRisk returns a Risk service shell.
func NewRisk(logger log.Log) *Risk {
	return &Risk{base: newBase("Risk", logger)}
}

func (s *Risk) Start(ctx context.Context) error {
	return s.start(ctx, s.handle)
}

func (s *Risk) Stop() { s.stop() }

func (s *Risk) Process(m *wire.Message) { s.process(m) }

// handle is the stub a real risk engine would replace.
func (s *Risk) handle(m *wire.Message) {
	if m.Kind.IsOrder() && m.Order != nil {
		s.log.Debug("order passed through risk check",
			log.Uint64("order_id", m.Order.OrderID),
			log.Uint64("seq", m.Sequence),
		)
	}
}
