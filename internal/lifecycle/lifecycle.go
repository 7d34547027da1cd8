// Package lifecycle holds process-wide lifecycle state read by the health endpoint.
package lifecycle

import "sync/atomic"

var shuttingDown atomic.Bool

// SetShuttingDown sets the shutdown flag. The serve command sets it on SIGTERM/SIGINT,
// after which /health answers 503 shutting-down while in-flight requests drain.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}
