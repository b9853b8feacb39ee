//go:build linux

package gateway

import (
	"runtime"

	"github.com/lattice-trading/hft-gateway/internal/observability/log"
	"golang.org/x/sys/unix"
)

// pinToCPU locks the calling goroutine to its current OS thread and pins
// that thread to cpu. Failures (commonly a missing CAP_SYS_NICE) are
// logged and otherwise ignored: affinity is throughput tuning, not
// correctness.
func pinToCPU(cpu int, logger log.Log) {
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		logger.Warn("failed to set worker CPU affinity",
			log.Int("cpu", cpu),
			log.Error(err),
		)
	}
}
