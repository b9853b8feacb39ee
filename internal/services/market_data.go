package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/lattice-trading/hft-gateway/internal/observability/log"
	"github.com/lattice-trading/hft-gateway/internal/wire"
)

// marketDataShards partitions symbols across independent worker
// goroutines so one hot symbol's fan-out never head-of-line blocks
// another's quote updates.
const marketDataShards = 8

// MarketData is the service shell behind the market-data fan-out. The
// fan-out mechanism itself (who subscribes to which symbol) is out of
// scope; this shell proves out the lifecycle contract and shows the
// per-symbol sharding the dispatcher hands work through.
type MarketData struct {
	log     log.Log
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	shards [marketDataShards]chan *wire.Message
}

// NewMarketData returns a MarketData service shell.
func NewMarketData(logger log.Log) *MarketData {
	if logger == nil {
		logger = log.Provide()
	}
	md := &MarketData{log: logger}
	for i := range md.shards {
		md.shards[i] = make(chan *wire.Message, inboxCapacity)
	}
	return md
}

func (s *MarketData) Name() string { return "MarketData" }

func (s *MarketData) IsRunning() bool { return s.running.Load() }

func (s *MarketData) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running.Store(true)

	for i := range s.shards {
		shard := s.shards[i]
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-runCtx.Done():
					return
				case m := <-shard:
					s.handle(m)
				}
			}
		}()
	}
	return nil
}

func (s *MarketData) Stop() {
	s.running.Store(false)
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Process routes m to the shard owning its symbol, falling back to shard
// 0 for header-only messages (heartbeats) that carry no symbol.
func (s *MarketData) Process(m *wire.Message) {
	shard := s.shards[s.shardFor(m)]
	select {
	case shard <- m:
	default:
		s.log.Warn("market data shard full, dropping message",
			log.Uint64("seq", m.Sequence),
		)
	}
}

func (s *MarketData) shardFor(m *wire.Message) int {
	if m.MarketData == nil {
		return 0
	}
	h := xxhash.Sum64String(m.MarketData.Symbol)
	return int(h % uint64(marketDataShards))
}

// handle is the stub a real fan-out / subscriber broadcast would replace.
func (s *MarketData) handle(m *wire.Message) {
	started := time.Now()
	if m.MarketData != nil {
		s.log.Debug("market data update",
			log.String("symbol", m.MarketData.Symbol),
			log.Uint64("seq", m.Sequence),
		)
	}
	if elapsed := time.Since(started); elapsed > processBudget {
		s.log.Warn("service exceeded processing budget",
			log.String("service", s.Name()),
			log.Uint64("seq", m.Sequence),
		)
	}
}
