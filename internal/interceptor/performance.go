package interceptor

import (
	"strconv"

	"github.com/lattice-trading/hft-gateway/internal/perf"
)

// performanceBudgetUs is the per-message tail-latency budget the message
// plane is designed to; Performance flags anything over it but never
// rejects the message.
const performanceBudgetUs = 10.0

// Performance stops the context timer, records the elapsed latency into
// the shared Monitor, and writes it into the context metadata. It always
// returns true: performance tracking never rejects a message.
type Performance struct {
	monitor *perf.Monitor
}

// NewPerformance returns a Performance interceptor recording into m.
func NewPerformance(m *perf.Monitor) *Performance {
	return &Performance{monitor: m}
}

func (p *Performance) Name() string { return "performance" }

func (p *Performance) Intercept(ctx *Context) bool {
	ctx.StopTimer()
	elapsed := ctx.ElapsedMicros()

	p.monitor.RecordLatency(elapsed)
	ctx.Set("latency_us", strconv.FormatFloat(elapsed, 'f', -1, 64))

	if elapsed > performanceBudgetUs {
		ctx.Set("performance_warning", "latency exceeded 10us budget")
	}
	return true
}
