package http

import (
	"context"
	"sync/atomic"
	"time"
)

// defaultDrainInterval is used when WaitForZero gets a non-positive interval.
const defaultDrainInterval = 100 * time.Millisecond

// InFlightTracker counts requests currently being served, websocket sessions included,
// so shutdown can wait for them to drain.
type InFlightTracker struct {
	count atomic.Int64
}

func (t *InFlightTracker) Increment() { t.count.Add(1) }

func (t *InFlightTracker) Decrement() { t.count.Add(-1) }

func (t *InFlightTracker) Count() int64 { return t.count.Load() }

// WaitForZero blocks until the count reaches zero or ctx is done, polling every checkInterval.
func (t *InFlightTracker) WaitForZero(ctx context.Context, checkInterval time.Duration) error {
	if t.Count() == 0 {
		return nil
	}
	if checkInterval <= 0 {
		checkInterval = defaultDrainInterval
	}
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if t.Count() == 0 {
				return nil
			}
		}
	}
}

// globalInFlightTracker is fed by MetricsMiddleware for every routed request.
var globalInFlightTracker = &InFlightTracker{}

// InFlightCount returns the number of requests MetricsMiddleware has not finished yet.
func InFlightCount() int64 {
	return globalInFlightTracker.Count()
}

// WaitForInFlight waits for requests seen by MetricsMiddleware to finish, or for ctx.
func WaitForInFlight(ctx context.Context, checkInterval time.Duration) error {
	return globalInFlightTracker.WaitForZero(ctx, checkInterval)
}
