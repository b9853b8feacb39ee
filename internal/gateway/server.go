package gateway

import (
	"context"
	"net"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/lattice-trading/hft-gateway/internal/dispatch"
	"github.com/lattice-trading/hft-gateway/internal/interceptor"
	"github.com/lattice-trading/hft-gateway/internal/observability/log"
	"github.com/lattice-trading/hft-gateway/internal/perf"
	"github.com/lattice-trading/hft-gateway/internal/wire"
	"github.com/lattice-trading/hft-gateway/pkg/pool"
)

// workQueueSize bounds the handoff from connection-reader goroutines to
// the CPU-pinned worker pool. Go's netpoller already multiplexes any
// number of blocked connection reads across a handful of OS threads, so
// unlike the source's reactor this queue exists only to bound how much
// decoded-but-not-yet-chained work can pile up, not to multiplex I/O.
const workQueueSize = 65536

// bufferPoolHotSize caps how many per-connection read buffers are
// pre-allocated at startup. MaxConnections can be far larger than the
// working set of simultaneously-busy connections, so this is a hot-start
// cushion, not an attempt to pre-allocate for every possible connection.
const bufferPoolHotSize = 256

type readyMessage struct {
	msg *wire.Message
}

// Server is the socket server: the listening endpoint, one goroutine per
// accepted connection doing the I/O and framing, and a fixed-size,
// CPU-pinned worker pool that runs the interceptor chain over decoded
// messages and hands accepted ones to the registry's dispatcher.
type Server struct {
	cfg      Config
	log      log.Log
	chain    *interceptor.Chain
	monitor  *perf.Monitor
	registry *dispatch.Registry

	listener net.Listener
	workCh   chan readyMessage
	stopCh   chan struct{}
	bufPool  *pool.Pool[[]byte]

	running           atomic.Bool
	activeConnections atomic.Int64

	wg sync.WaitGroup
}

// NewServer builds a Server. chain and monitor are shared with whatever
// constructed the registered interceptors; registry is where accepted
// messages are sent after the chain accepts them.
func NewServer(cfg Config, chain *interceptor.Chain, monitor *perf.Monitor, registry *dispatch.Registry, logger log.Log) *Server {
	if logger == nil {
		logger = log.Provide()
	}
	cfg = cfg.normalize()

	hotSize := cfg.MaxConnections
	if hotSize > bufferPoolHotSize {
		hotSize = bufferPoolHotSize
	}
	bufPool := pool.NewHot(func() []byte {
		return make([]byte, cfg.BufferSize)
	}, hotSize)

	return &Server{
		cfg:      cfg,
		log:      logger,
		chain:    chain,
		monitor:  monitor,
		registry: registry,
		workCh:   make(chan readyMessage, workQueueSize),
		stopCh:   make(chan struct{}),
		bufPool:  bufPool,
	}
}

// Start binds the listening socket, then launches the acceptor and
// worker pool goroutines. It returns once the listener is bound; the
// goroutines keep running until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{Control: controlReuseAddr}
	listener, err := lc.Listen(ctx, "tcp", s.addr())
	if err != nil {
		return err
	}
	s.listener = listener
	s.running.Store(true)

	s.log.Info("gateway listening",
		log.String("addr", s.addr()),
		log.Int("worker_count", s.cfg.ThreadCount),
		log.Int("max_connections", s.cfg.MaxConnections),
	)

	s.wg.Add(1)
	go s.acceptLoop()

	cores := runtime.NumCPU()
	for i := 0; i < s.cfg.ThreadCount; i++ {
		s.wg.Add(1)
		go s.worker(i, cores)
	}
	return nil
}

// Stop flips the running flag and closes the listener, unblocking
// Accept; the acceptor, connection readers, and workers finish their
// current iteration and exit. Stop blocks until every pooled worker and
// the acceptor have returned.
func (s *Server) Stop() {
	s.running.Store(false)
	close(s.stopCh)
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
}

// ActiveConnections returns the current number of accepted, not-yet-closed
// connections.
func (s *Server) ActiveConnections() int64 {
	return s.activeConnections.Load()
}

func (s *Server) addr() string {
	return "0.0.0.0:" + strconv.Itoa(s.cfg.Port)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			s.log.Warn("accept failed", log.Error(err))
			continue
		}

		if s.activeConnections.Load() >= int64(s.cfg.MaxConnections) {
			_ = conn.Close()
			continue
		}

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
			_ = tcpConn.SetReadBuffer(s.cfg.BufferSize)
			_ = tcpConn.SetWriteBuffer(s.cfg.BufferSize)
		}

		s.activeConnections.Add(1)
		go s.readConnection(conn)
	}
}

// readConnection owns one accepted connection for its entire lifetime:
// reading, partial-frame buffering, and decoding. Decoded messages are
// handed to the worker pool over workCh; the reader never itself runs
// the interceptor chain, so one slow or malicious peer never starves the
// CPU-pinned workers of cycles they'd otherwise spend on other clients.
func (s *Server) readConnection(conn net.Conn) {
	c := newConnection(conn, s.bufPool)
	defer func() {
		c.close(s.bufPool)
		s.activeConnections.Add(-1)
	}()

	for s.running.Load() {
		err := c.readFrames(s.submit)
		if err != nil {
			return
		}
	}
}

func (s *Server) submit(m *wire.Message) {
	select {
	case s.workCh <- readyMessage{msg: m}:
	case <-s.stopCh:
	default:
		s.log.Warn("worker queue full, dropping message",
			log.Uint64("seq", m.Sequence),
		)
	}
}

func (s *Server) worker(index, cores int) {
	defer s.wg.Done()
	if s.cfg.AffinityEnabled {
		pinToCPU(index%cores, s.log)
	}

	for {
		select {
		case <-s.stopCh:
			return
		case rm := <-s.workCh:
			s.process(rm.msg)
		}
	}
}

func (s *Server) process(m *wire.Message) {
	ctx := interceptor.Acquire(m)
	defer interceptor.Release(ctx)

	if !s.chain.Process(ctx) {
		return
	}

	if err := s.registry.Send(targetService(m), m); err != nil {
		s.log.Warn("dispatcher queue full, dropping message",
			log.Uint64("seq", m.Sequence),
			log.Error(err),
		)
	}
}

// targetService maps a message kind to the registered service name that
// owns it.
func targetService(m *wire.Message) string {
	switch {
	case m.Kind.IsOrder():
		return "OrderMatching"
	case m.Kind == wire.KindMarketData:
		return "MarketData"
	default:
		return "Risk"
	}
}
