// Package services provides the thin plumbing shells for the long-running
// domain services registered behind the dispatcher. The actual order
// book, matching algorithm, and risk rule evaluation are out of scope;
// each shell only proves out the Service lifecycle contract and forwards
// accepted messages to a stub hook a real implementation would replace.
package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lattice-trading/hft-gateway/internal/observability/log"
	"github.com/lattice-trading/hft-gateway/internal/wire"
)

// processBudget is the target latency for Process, per the dispatcher's
// contract; services that exceed it on any message log a warning rather
// than fail.
const processBudget = 10 * time.Microsecond

// inboxCapacity bounds each service's own inbound channel. Process sends
// non-blocking: a full inbox drops the message with a warning log,
// matching the "process must be non-blocking" requirement rather than
// ever stalling the dispatcher.
const inboxCapacity = 4096

// base implements the bookkeeping every service shell needs: the
// running flag, its own worker goroutine, and the non-blocking handoff
// from Process into that goroutine.
type base struct {
	name   string
	log    log.Log
	inbox  chan *wire.Message
	cancel context.CancelFunc
	done   chan struct{}

	running atomic.Bool
}

func newBase(name string, logger log.Log) *base {
	if logger == nil {
		logger = log.Provide()
	}
	return &base{
		name:  name,
		log:   logger,
		inbox: make(chan *wire.Message, inboxCapacity),
	}
}

func (b *base) Name() string { return b.name }

func (b *base) IsRunning() bool { return b.running.Load() }

// start spawns work as the service's own worker goroutine. Callers embed
// base and call this from their own Start, passing the handler that
// implements their (out-of-scope) business logic.
func (b *base) start(ctx context.Context, handle func(*wire.Message)) error {
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	b.running.Store(true)

	go func() {
		defer close(b.done)
		for {
			select {
			case <-runCtx.Done():
				return
			case m := <-b.inbox:
				b.processOne(m, handle)
			}
		}
	}()
	return nil
}

func (b *base) processOne(m *wire.Message, handle func(*wire.Message)) {
	started := time.Now()
	handle(m)
	if elapsed := time.Since(started); elapsed > processBudget {
		b.log.Warn("service exceeded processing budget",
			log.String("service", b.name),
			log.Uint64("seq", m.Sequence),
		)
	}
}

func (b *base) stop() {
	b.running.Store(false)
	if b.cancel != nil {
		b.cancel()
	}
	if b.done != nil {
		<-b.done
	}
}

// process hands m to the worker goroutine without blocking. A full inbox
// drops the message: the dispatcher's call to Process must never stall.
func (b *base) process(m *wire.Message) {
	select {
	case b.inbox <- m:
	default:
		b.log.Warn("service inbox full, dropping message",
			log.String("service", b.name),
			log.Uint64("seq", m.Sequence),
		)
	}
}
