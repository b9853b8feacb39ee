// Package dispatch implements the service registry and the bounded FIFO
// dispatcher that hands accepted messages to long-running domain
// services.
package dispatch

import (
	"context"

	"github.com/lattice-trading/hft-gateway/internal/wire"
)

// Service is a long-running domain worker registered behind the
// dispatcher. Process is called from the dispatcher's goroutine and must
// be non-blocking; it is treated as infallible from the caller's
// perspective — internal failures must be logged and swallowed by the
// implementation.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
	Process(m *wire.Message)
}
