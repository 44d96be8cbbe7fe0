package lifecycle

import (
	"sync/atomic"
	"time"
)

var (
	shuttingDown atomic.Bool
	startedAt    atomic.Int64
)

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// Health handler returns 503 with status shutting-down while true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// MarkStarted records the instant the process began serving.
func MarkStarted(t time.Time) {
	startedAt.Store(t.UnixNano())
}

// Uptime returns time since MarkStarted, or 0 if it was never called.
func Uptime(now time.Time) time.Duration {
	s := startedAt.Load()
	if s == 0 {
		return 0
	}
	return now.Sub(time.Unix(0, s))
}

// UptimeSeconds is Uptime against the wall clock, in seconds. Suitable for a gauge func.
func UptimeSeconds() float64 {
	return Uptime(time.Now()).Seconds()
}
