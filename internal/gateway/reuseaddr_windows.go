//go:build windows

package gateway

import "syscall"

// controlReuseAddr is a no-op on Windows: Go's net package already binds
// without the SO_REUSEADDR semantics this is meant to provide on Unix,
// and setting it explicitly there has different, surprising semantics.
func controlReuseAddr(_, _ string, _ syscall.RawConn) error {
	return nil
}
