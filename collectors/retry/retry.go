// Package retry provides a circuit breaker that wraps sensor probes to handle
// persistent failures gracefully. A host without a readable temperature sensor
// fails on every tick; once the breaker opens, the probe is skipped for
// increasing intervals instead of being queried twice a second.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/stat-pulse/collectors"
)

// Compile-time check: CircuitBreaker satisfies the Probe interface.
var _ collectors.Probe = (*CircuitBreaker)(nil)

// ErrCircuitOpen is returned by Read while the breaker is skipping the probe.
var ErrCircuitOpen = errors.New("retry: circuit open")

// State represents the circuit breaker state.
type State int

const (
	// StateClosed is normal operation; reads pass through to the probe.
	StateClosed State = iota
	// StateOpen means failures exceeded the threshold; reads are skipped.
	StateOpen
	// StateHalfOpen is a probe state testing whether the sensor has recovered.
	StateHalfOpen
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Config configures the circuit breaker behavior.
type Config struct {
	// MaxFailures is the number of consecutive failures before opening the circuit.
	MaxFailures int
	// ResetTimeout is the initial wait duration before transitioning from Open to HalfOpen.
	ResetTimeout time.Duration
	// MaxResetTimeout caps the exponential backoff.
	MaxResetTimeout time.Duration
	// BackoffMultiplier is the factor by which ResetTimeout increases on each re-open.
	BackoffMultiplier float64
	// Logger for circuit breaker events. Nil is safe (a discard logger is used).
	Logger *slog.Logger
}

// DefaultConfig returns defaults tuned for a sub-second sampling loop.
func DefaultConfig() Config {
	return Config{
		MaxFailures:       3,
		ResetTimeout:      30 * time.Second,
		MaxResetTimeout:   10 * time.Minute,
		BackoffMultiplier: 2.0,
	}
}

// Stats holds circuit breaker statistics for external inspection.
type Stats struct {
	State            State
	ConsecutiveFails int
	TotalFailures    int
	TotalSuccesses   int
	LastFailure      time.Time
	LastSuccess      time.Time
	CurrentTimeout   time.Duration
	ConsecutiveSkips int
}

// CircuitBreaker wraps a collectors.Probe with failure tracking and
// automatic circuit opening/closing.
type CircuitBreaker struct {
	probe  collectors.Probe
	config Config
	logger *slog.Logger

	// now is overridable for tests.
	now func() time.Time

	mu               sync.Mutex
	state            State
	failures         int
	lastFailure      time.Time
	lastSuccess      time.Time
	currentTimeout   time.Duration
	totalFailures    int
	totalSuccesses   int
	consecutiveSkips int
}

// NewCircuitBreaker wraps a probe with circuit breaker logic.
// If cfg.Logger is nil, a discard logger is used. Zero-valued numeric fields
// fall back to DefaultConfig.
func NewCircuitBreaker(p collectors.Probe, cfg Config) *CircuitBreaker {
	def := DefaultConfig()
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.MaxResetTimeout < cfg.ResetTimeout {
		cfg.MaxResetTimeout = cfg.ResetTimeout
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = def.BackoffMultiplier
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CircuitBreaker{
		probe:          p,
		config:         cfg,
		logger:         logger,
		now:            time.Now,
		state:          StateClosed,
		currentTimeout: cfg.ResetTimeout,
	}
}

// Name delegates to the wrapped probe.
func (cb *CircuitBreaker) Name() string {
	return cb.probe.Name()
}

// Read checks the circuit state and either reads the wrapped probe or returns
// ErrCircuitOpen without touching the sensor.
func (cb *CircuitBreaker) Read(ctx context.Context) (float64, error) {
	cb.mu.Lock()

	switch cb.state {
	case StateClosed:
		cb.mu.Unlock()
		return cb.readClosed(ctx)

	case StateOpen:
		elapsed := cb.now().Sub(cb.lastFailure)
		if elapsed < cb.currentTimeout {
			cb.consecutiveSkips++
			cb.mu.Unlock()
			return 0, ErrCircuitOpen
		}

		// Timeout elapsed, transition to half-open.
		cb.state = StateHalfOpen
		cb.logger.Info("circuit breaker transitioning to half-open",
			"probe", cb.probe.Name(),
		)
		cb.mu.Unlock()
		return cb.readHalfOpen(ctx)

	case StateHalfOpen:
		// Another reader is already probing; do not pile on.
		cb.consecutiveSkips++
		cb.mu.Unlock()
		return 0, ErrCircuitOpen

	default:
		state := cb.state
		cb.mu.Unlock()
		return 0, fmt.Errorf("retry: circuit breaker in unknown state: %d", state)
	}
}

// readClosed runs the probe in closed (normal) state.
func (cb *CircuitBreaker) readClosed(ctx context.Context) (float64, error) {
	v, err := cb.probe.Read(ctx)
	if err != nil {
		cb.recordFailure(err)
		return 0, err
	}

	cb.recordSuccess()
	return v, nil
}

// readHalfOpen runs the probe once to test recovery.
func (cb *CircuitBreaker) readHalfOpen(ctx context.Context) (float64, error) {
	v, err := cb.probe.Read(ctx)
	if err != nil {
		cb.mu.Lock()
		cb.failures++
		cb.totalFailures++
		cb.lastFailure = cb.now()

		// Increase timeout with backoff, capped at max.
		cb.currentTimeout = time.Duration(float64(cb.currentTimeout) * cb.config.BackoffMultiplier)
		if cb.currentTimeout > cb.config.MaxResetTimeout {
			cb.currentTimeout = cb.config.MaxResetTimeout
		}

		cb.state = StateOpen
		cb.logger.Debug("circuit breaker re-opened after half-open failure",
			"probe", cb.probe.Name(),
			"failures", cb.failures,
			"next_timeout", cb.currentTimeout,
			"error", err,
		)
		cb.mu.Unlock()
		return 0, err
	}

	// Success in half-open: close the circuit.
	cb.mu.Lock()
	cb.state = StateClosed
	cb.failures = 0
	cb.consecutiveSkips = 0
	cb.totalSuccesses++
	cb.lastSuccess = cb.now()
	cb.currentTimeout = cb.config.ResetTimeout
	cb.logger.Info("circuit breaker closed after successful probe",
		"probe", cb.probe.Name(),
	)
	cb.mu.Unlock()
	return v, nil
}

// recordFailure increments failure counters and optionally opens the circuit.
func (cb *CircuitBreaker) recordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.totalFailures++
	cb.lastFailure = cb.now()

	if cb.failures >= cb.config.MaxFailures {
		cb.state = StateOpen
		cb.currentTimeout = cb.config.ResetTimeout
		cb.logger.Info("circuit breaker opened",
			"probe", cb.probe.Name(),
			"failures", cb.failures,
			"timeout", cb.currentTimeout,
			"error", err,
		)
	}
}

// recordSuccess resets the consecutive failure counter.
func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.consecutiveSkips = 0
	cb.totalSuccesses++
	cb.lastSuccess = cb.now()
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of the circuit breaker statistics.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{
		State:            cb.state,
		ConsecutiveFails: cb.failures,
		TotalFailures:    cb.totalFailures,
		TotalSuccesses:   cb.totalSuccesses,
		LastFailure:      cb.lastFailure,
		LastSuccess:      cb.lastSuccess,
		CurrentTimeout:   cb.currentTimeout,
		ConsecutiveSkips: cb.consecutiveSkips,
	}
}

// Reset forces the circuit breaker back to the closed state, clearing all
// failure counters and restoring the initial timeout.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.consecutiveSkips = 0
	cb.currentTimeout = cb.config.ResetTimeout
}
