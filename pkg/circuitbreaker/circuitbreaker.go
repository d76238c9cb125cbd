package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Execute while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open")

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

type Settings struct {
	Name string
	// Threshold is the number of consecutive failures that opens the
	// breaker. Defaults to 5.
	Threshold int
	// ResetAfter forgets isolated failures after a quiet period while
	// closed. Zero keeps them until the next success.
	ResetAfter time.Duration
	// Cooldown is how long the breaker stays open before one trial call
	// is let through.
	Cooldown time.Duration
	// OnStateChange, if set, is called after every transition with the
	// breaker's lock released.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker guards calls to a flaky dependency. While half-open only
// one trial call runs; concurrent callers are rejected until it finishes.
type CircuitBreaker struct {
	settings Settings
	now      func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	trial       bool
}

func NewCircuitBreaker(settings Settings) *CircuitBreaker {
	if settings.Threshold <= 0 {
		settings.Threshold = 5
	}
	return &CircuitBreaker{settings: settings, now: time.Now, state: StateClosed}
}

func (cb *CircuitBreaker) Name() string { return cb.settings.Name }

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute runs fn unless the breaker is open. Any error from fn counts as a
// failure, so callers return nil for answers that prove the dependency is
// up, even unwelcome ones.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	now := cb.now()
	var from State
	switch cb.state {
	case StateOpen:
		if now.Sub(cb.lastFailure) < cb.settings.Cooldown {
			cb.mu.Unlock()
			return ErrOpen
		}
		from = cb.setState(StateHalfOpen)
		cb.trial = true
	case StateHalfOpen:
		if cb.trial {
			cb.mu.Unlock()
			return ErrOpen
		}
		cb.trial = true
	case StateClosed:
		if cb.settings.ResetAfter > 0 && cb.failures > 0 && now.Sub(cb.lastFailure) > cb.settings.ResetAfter {
			cb.failures = 0
		}
	}
	cb.mu.Unlock()

	cb.notify(from, StateHalfOpen)
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	cb.trial = false
	var from, to State
	if err != nil {
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.state == StateHalfOpen || cb.failures >= cb.settings.Threshold {
			from, to = cb.setState(StateOpen), StateOpen
		}
	} else {
		cb.failures = 0
		from, to = cb.setState(StateClosed), StateClosed
	}
	cb.mu.Unlock()

	cb.notify(from, to)
}

// setState moves to s and returns the previous state, or "" when nothing
// changed.
func (cb *CircuitBreaker) setState(s State) State {
	prev := cb.state
	if prev == s {
		return ""
	}
	cb.state = s
	return prev
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from == "" || cb.settings.OnStateChange == nil {
		return
	}
	cb.settings.OnStateChange(cb.settings.Name, from, to)
}
