package gateway

import (
	"bytes"
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/lattice-trading/hft-gateway/internal/wire"
	"github.com/lattice-trading/hft-gateway/pkg/pool"
)

// readDeadline bounds each Read call so a connection's reader goroutine
// notices server shutdown
// (or a silently dead peer) without blocking forever; it plays the role
// the source's 1ms notifier-wait timeout plays for the acceptor.
const readDeadline = time.Millisecond

// connection wraps a TCP socket with the partial-frame buffer the
// spec requires: incomplete trailing bytes from one read are retained
// until the next read completes the frame.
type connection struct {
	conn      net.Conn
	sessionID string

	buf bytes.Buffer
	tmp []byte
}

// newConnection takes a read buffer from bufPool rather than allocating
// one, so a hot pool of them can be pre-warmed once at server startup
// instead of every accepted connection paying for its own make([]byte).
func newConnection(conn net.Conn, bufPool *pool.Pool[[]byte]) *connection {
	return &connection{
		conn:      conn,
		sessionID: uuid.NewString(),
		tmp:       bufPool.Get(),
	}
}

// close tears down the socket and returns the read buffer to bufPool for
// the next connection to reuse.
func (c *connection) close(bufPool *pool.Pool[[]byte]) {
	_ = c.conn.Close()
	bufPool.Put(c.tmp)
}

// readFrames blocks for up to readDeadline reading new bytes, then
// decodes as many complete frames as are currently buffered, invoking fn
// for each in arrival order. It returns io.EOF or a read error when the
// connection should be torn down, and nil on a harmless deadline timeout
// (the caller should simply call again).
func (c *connection) readFrames(fn func(*wire.Message)) error {
	if err := c.conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		return err
	}

	n, err := c.conn.Read(c.tmp)
	if n > 0 {
		c.buf.Write(c.tmp[:n])
	}
	if err != nil {
		if isTimeout(err) {
			return c.decodeReady(fn)
		}
		// Decode whatever complete frames arrived before the error, then
		// surface the error so the caller tears the connection down.
		_ = c.decodeReady(fn)
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return err
	}

	return c.decodeReady(fn)
}

func (c *connection) decodeReady(fn func(*wire.Message)) error {
	for {
		data := c.buf.Bytes()
		if len(data) == 0 {
			return nil
		}
		m, consumed, err := wire.Decode(data)
		if err != nil {
			var decodeErr *wire.DecodeError
			if errors.As(err, &decodeErr) && decodeErr.Kind == wire.Truncated {
				// Not enough bytes yet; wait for the next read.
				return nil
			}
			// Unknown type: the frame is unrecoverable. Drop a single
			// byte and retry from the next offset so a bad byte can't
			// wedge the connection forever, and keep reading.
			c.buf.Next(1)
			continue
		}
		m.ReceiveTime = time.Now().UnixNano()
		fn(m)
		c.buf.Next(consumed)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
