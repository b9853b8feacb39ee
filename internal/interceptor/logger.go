package interceptor

import (
	"fmt"

	"github.com/lattice-trading/hft-gateway/internal/observability/log"
)

// Logger writes a short summary of every message into the context's
// metadata and emits a debug-level structured log line. It never fails.
type Logger struct {
	log log.Log
}

// NewLogger returns a Logger that emits through l. A nil l falls back to
// log.Provide().
func NewLogger(l log.Log) *Logger {
	if l == nil {
		l = log.Provide()
	}
	return &Logger{log: l}
}

func (lg *Logger) Name() string { return "logger" }

func (lg *Logger) Intercept(ctx *Context) bool {
	m := ctx.Message
	summary := fmt.Sprintf("type=%s seq=%d client_id=%d priority=%d", m.Kind, m.Sequence, m.ClientID, m.Priority)
	ctx.Set("log", summary)

	lg.log.Debug("message intercepted",
		log.String("type", m.Kind.String()),
		log.Uint64("seq", m.Sequence),
		log.Uint64("client_id", m.ClientID),
		log.Uint8("priority", uint8(m.Priority)),
	)
	return true
}
