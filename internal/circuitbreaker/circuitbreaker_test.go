package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func fail(context.Context) error    { return errBoom }
func succeed(context.Context) error { return nil }

func newBreaker(t *testing.T, cfg Config) (*CircuitBreaker, *fakeClock, *[][2]State) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	var seen [][2]State
	cfg.Now = clock.Now
	cfg.OnStateChange = func(from, to State) { seen = append(seen, [2]State{from, to}) }
	return New(cfg), clock, &seen
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _, seen := newBreaker(t, Config{FailureThreshold: 3, Cooldown: time.Minute})

	for i := 0; i < 2; i++ {
		require.ErrorIs(t, cb.Call(context.Background(), fail), errBoom)
		assert.Equal(t, StateClosed, cb.State())
	}
	require.ErrorIs(t, cb.Call(context.Background(), fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, [][2]State{{StateClosed, StateOpen}}, *seen)

	called := false
	err := cb.Call(context.Background(), func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called, "open circuit must not call through")
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _, _ := newBreaker(t, Config{FailureThreshold: 2})

	_ = cb.Call(context.Background(), fail)
	require.NoError(t, cb.Call(context.Background(), succeed))
	_ = cb.Call(context.Background(), fail)

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb, clock, seen := newBreaker(t, Config{FailureThreshold: 1, SuccessThreshold: 2, Cooldown: 10 * time.Second})

	_ = cb.Call(context.Background(), fail)
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(5 * time.Second)
	assert.ErrorIs(t, cb.Call(context.Background(), succeed), ErrOpen)

	clock.Advance(5 * time.Second)
	require.NoError(t, cb.Call(context.Background(), succeed))
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Call(context.Background(), succeed))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, [][2]State{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}, *seen)
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb, clock, _ := newBreaker(t, Config{FailureThreshold: 3, Cooldown: time.Second})

	for i := 0; i < 3; i++ {
		_ = cb.Call(context.Background(), fail)
	}
	clock.Advance(time.Second)
	require.ErrorIs(t, cb.Call(context.Background(), fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Call(context.Background(), succeed), ErrOpen)
}

func TestCircuitBreaker_SingleProbeInHalfOpen(t *testing.T) {
	cb, clock, _ := newBreaker(t, Config{FailureThreshold: 1, Cooldown: time.Second})
	_ = cb.Call(context.Background(), fail)
	clock.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Call(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, cb.Call(context.Background(), succeed), ErrOpen)
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_TripsFilter(t *testing.T) {
	ignored := errors.New("caller error")
	cb, _, _ := newBreaker(t, Config{
		FailureThreshold: 1,
		Trips:            func(err error) bool { return !errors.Is(err, ignored) },
	})

	err := cb.Call(context.Background(), func(context.Context) error { return ignored })
	assert.ErrorIs(t, err, ignored)
	assert.Equal(t, StateClosed, cb.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
