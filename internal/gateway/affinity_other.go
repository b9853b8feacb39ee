//go:build !linux

package gateway

import "github.com/lattice-trading/hft-gateway/internal/observability/log"

// pinToCPU is a no-op on platforms without a SchedSetaffinity-style API;
// affinity is always best-effort.
func pinToCPU(cpu int, logger log.Log) {}
