package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrProbeInFlight rejects calls while half-open probes are outstanding.
	ErrProbeInFlight = errors.New("circuit breaker probe in flight")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Openness maps a state onto a gauge value: 0 closed, 0.5 half-open, 1 open.
func (s State) Openness() float64 {
	switch s {
	case StateOpen:
		return 1
	case StateHalfOpen:
		return 0.5
	default:
		return 0
	}
}

// Settings configures a breaker guarding one upstream backend.
type Settings struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold uint32
	// CoolDown is how long the circuit stays open before probing again.
	CoolDown time.Duration
	// HalfOpenProbes is how many calls are let through while half-open; that
	// many successes in a row close the circuit.
	HalfOpenProbes uint32
	// IsFailure decides whether an error counts against the breaker.
	// Nil counts every non-nil error.
	IsFailure func(err error) bool
	// IsIgnored picks out errors that say nothing about the backend, such as
	// the caller giving up. They neither count as failures nor reset the
	// failure streak, and free a half-open probe slot without closing the
	// circuit. Checked before IsFailure.
	IsIgnored func(err error) bool
	// OnStateChange is called with the breaker lock held; keep it short.
	OnStateChange func(name string, from, to State)
}

// DefaultSettings returns the settings used for upstream backends: trip after
// three straight faults, probe again after fifteen seconds.
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: 3,
		CoolDown:         15 * time.Second,
		HalfOpenProbes:   1,
	}
}

// Breaker implements the circuit breaker pattern
type Breaker struct {
	name     string
	settings Settings

	mu         sync.Mutex
	state      State
	generation uint64
	failures   uint32 // consecutive, while closed
	inFlight   uint32 // probes admitted, while half-open
	successes  uint32 // consecutive probe successes, while half-open
	openedAt   time.Time
}

// New creates a breaker, filling unset settings from DefaultSettings.
func New(name string, settings Settings) *Breaker {
	defaults := DefaultSettings()
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = defaults.FailureThreshold
	}
	if settings.CoolDown == 0 {
		settings.CoolDown = defaults.CoolDown
	}
	if settings.HalfOpenProbes == 0 {
		settings.HalfOpenProbes = defaults.HalfOpenProbes
	}
	if settings.IsFailure == nil {
		settings.IsFailure = func(err error) bool { return err != nil }
	}

	return &Breaker{name: name, settings: settings}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.current(time.Now())
}

// ConsecutiveFailures returns the current failure streak.
func (b *Breaker) ConsecutiveFailures() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.failures
}

// Do runs fn if the circuit breaker accepts it
func (b *Breaker) Do(fn func() error) error {
	generation, err := b.admit()
	if err != nil {
		return err
	}

	defer func() {
		if e := recover(); e != nil {
			b.settle(generation, failed)
			panic(e)
		}
	}()

	err = fn()
	b.settle(generation, b.classify(err))
	return err
}

type outcome int

const (
	succeeded outcome = iota
	failed
	ignored
)

func (b *Breaker) classify(err error) outcome {
	switch {
	case err != nil && b.settings.IsIgnored != nil && b.settings.IsIgnored(err):
		return ignored
	case b.settings.IsFailure(err):
		return failed
	default:
		return succeeded
	}
}

// Call runs fn through the breaker and returns its result
func Call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var result T
	err := b.Do(func() error {
		var err error
		result, err = fn()
		return err
	})
	return result, err
}

// IsOpen reports whether err was produced by a breaker refusing a request
func IsOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrProbeInFlight)
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.current(time.Now()) {
	case StateOpen:
		return b.generation, ErrCircuitOpen
	case StateHalfOpen:
		if b.inFlight >= b.settings.HalfOpenProbes {
			return b.generation, ErrProbeInFlight
		}
		b.inFlight++
	}
	return b.generation, nil
}

// settle records an outcome. Outcomes from before the last transition are
// stale and ignored.
func (b *Breaker) settle(generation uint64, result outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state := b.current(now)
	if generation != b.generation {
		return
	}

	switch state {
	case StateClosed:
		switch result {
		case succeeded:
			b.failures = 0
		case failed:
			b.failures++
			if b.failures >= b.settings.FailureThreshold {
				b.transition(StateOpen, now)
			}
		}
	case StateHalfOpen:
		switch result {
		case ignored:
			b.inFlight--
			return
		case failed:
			b.transition(StateOpen, now)
			return
		}
		b.successes++
		if b.successes >= b.settings.HalfOpenProbes {
			b.transition(StateClosed, now)
		}
	}
}

// current moves an open circuit to half-open once the cool-down has passed.
func (b *Breaker) current(now time.Time) State {
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.settings.CoolDown {
		b.transition(StateHalfOpen, now)
	}
	return b.state
}

func (b *Breaker) transition(to State, now time.Time) {
	from := b.state
	b.state = to
	b.generation++
	b.failures, b.inFlight, b.successes = 0, 0, 0
	if to == StateOpen {
		b.openedAt = now
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}
