// Package circuitbreaker stops calling an unhealthy dependency after repeated failures
// and lets probe calls through once a cooldown has passed.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Call while the circuit is open. No call is made.
var ErrOpen = errors.New("circuit breaker open")

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// State is the breaker state (Closed, Open, HalfOpen).
type State int

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds breaker parameters. Zero values get defaults (5 failures, 1 success, 30s cooldown).
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Cooldown         time.Duration
	// Trips reports whether err counts as a failure. Nil counts every non-nil error.
	Trips func(err error) bool
	// OnStateChange is called outside the lock after each transition.
	OnStateChange func(from, to State)
	// Now defaults to time.Now.
	Now func() time.Time
}

// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	probing   bool
	cfg       Config
}

func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{state: StateClosed, cfg: cfg}
}

// Call runs fn when the circuit allows it. While open it returns ErrOpen until the
// cooldown elapses; then one probe at a time runs in half-open state. A failing probe
// reopens the circuit, SuccessThreshold successful probes close it.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	var transitions [][2]State

	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if cb.cfg.Now().Sub(cb.openedAt) < cb.cfg.Cooldown {
			cb.mu.Unlock()
			return ErrOpen
		}
		transitions = append(transitions, cb.setStateLocked(StateHalfOpen))
		cb.probing = true
	case StateHalfOpen:
		if cb.probing {
			cb.mu.Unlock()
			return ErrOpen
		}
		cb.probing = true
	}
	cb.mu.Unlock()
	cb.notify(transitions)
	transitions = transitions[:0]

	err := fn(ctx)

	cb.mu.Lock()
	wasProbe := cb.state == StateHalfOpen
	if wasProbe {
		cb.probing = false
	}
	if err != nil && cb.trips(err) {
		cb.failures++
		if wasProbe || cb.failures >= cb.cfg.FailureThreshold {
			cb.openedAt = cb.cfg.Now()
			transitions = append(transitions, cb.setStateLocked(StateOpen))
		}
	} else {
		cb.failures = 0
		if wasProbe {
			cb.successes++
			if cb.successes >= cb.cfg.SuccessThreshold {
				transitions = append(transitions, cb.setStateLocked(StateClosed))
			}
		}
	}
	cb.mu.Unlock()
	cb.notify(transitions)
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) trips(err error) bool {
	if cb.cfg.Trips == nil {
		return true
	}
	return cb.cfg.Trips(err)
}

func (cb *CircuitBreaker) setStateLocked(to State) [2]State {
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	return [2]State{from, to}
}

func (cb *CircuitBreaker) notify(transitions [][2]State) {
	if cb.cfg.OnStateChange == nil {
		return
	}
	for _, t := range transitions {
		cb.cfg.OnStateChange(t[0], t[1])
	}
}
