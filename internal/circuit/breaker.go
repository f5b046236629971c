package circuit

import (
	"sync"
	"time"

	"polybot-server/internal/logging"
)

// BreakerState represents the current state of the circuit breaker
type BreakerState string

const (
	StateClosed   BreakerState = "closed"    // Normal operation, requests allowed
	StateOpen     BreakerState = "open"      // Tripped, requests blocked
	StateHalfOpen BreakerState = "half_open" // Testing recovery with limited probes
)

// Config holds circuit breaker settings
type Config struct {
	Enabled          bool          `json:"enabled"`
	FailureThreshold int           `json:"failure_threshold"` // Consecutive failures before tripping
	Cooldown         time.Duration `json:"cooldown"`          // Time to wait before probing again
	HalfOpenProbes   int           `json:"half_open_probes"`  // Successes required to close from half-open
}

// DefaultConfig returns sensible defaults for the bot connection breaker
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		HalfOpenProbes:   2,
	}
}

// StateChangeFunc is called when the breaker transitions between states
type StateChangeFunc func(from, to BreakerState, reason string)

// Breaker protects a downstream dependency from repeated failing calls.
// After FailureThreshold consecutive failures it opens and rejects
// requests until the cooldown elapses, then lets probe requests through
// in half-open state before fully closing again.
type Breaker struct {
	mu     sync.Mutex
	config Config
	logger *logging.Logger

	state               BreakerState
	consecutiveFailures int
	halfOpenSuccesses   int
	totalFailures       int64
	totalSuccesses      int64
	totalRejections     int64
	lastFailure         time.Time
	lastTransition      time.Time
	openedAt            time.Time
	lastError           string

	onStateChange StateChangeFunc
}

// NewBreaker creates a circuit breaker with the given config
func NewBreaker(name string, config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	if config.HalfOpenProbes <= 0 {
		config.HalfOpenProbes = 1
	}

	return &Breaker{
		config:         config,
		logger:         logging.WithComponent("circuit").WithField("breaker", name),
		state:          StateClosed,
		lastTransition: time.Now(),
	}
}

// OnStateChange registers a callback for state transitions. The callback
// runs outside the breaker's lock.
func (b *Breaker) OnStateChange(fn StateChangeFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Allow reports whether a request may proceed. In the open state it
// returns false until the cooldown elapses, at which point the breaker
// moves to half-open and admits probe requests.
func (b *Breaker) Allow() bool {
	b.mu.Lock()

	if !b.config.Enabled {
		b.mu.Unlock()
		return true
	}

	switch b.state {
	case StateClosed:
		b.mu.Unlock()
		return true

	case StateOpen:
		if time.Since(b.openedAt) >= b.config.Cooldown {
			notify := b.transition(StateHalfOpen, "cooldown elapsed")
			b.mu.Unlock()
			notify()
			return true
		}
		b.totalRejections++
		b.mu.Unlock()
		return false

	case StateHalfOpen:
		b.mu.Unlock()
		return true
	}

	b.mu.Unlock()
	return true
}

// RecordSuccess records a successful call
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()

	b.totalSuccesses++
	b.consecutiveFailures = 0

	notify := func() {}
	if b.state == StateHalfOpen {
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.config.HalfOpenProbes {
			notify = b.transition(StateClosed, "recovered")
		}
	}
	b.mu.Unlock()
	notify()
}

// RecordFailure records a failed call. errMsg is kept for stats.
func (b *Breaker) RecordFailure(errMsg string) {
	b.mu.Lock()

	b.totalFailures++
	b.consecutiveFailures++
	b.lastFailure = time.Now()
	b.lastError = errMsg

	notify := func() {}
	switch b.state {
	case StateClosed:
		if b.consecutiveFailures >= b.config.FailureThreshold {
			notify = b.transition(StateOpen, "failure threshold reached")
		}
	case StateHalfOpen:
		// A probe failed, back to open for another cooldown
		notify = b.transition(StateOpen, "probe failed")
	}
	b.mu.Unlock()
	notify()
}

// transition changes state and returns a function that fires the
// callback. Caller must hold the lock and invoke the returned func
// after releasing it.
func (b *Breaker) transition(to BreakerState, reason string) func() {
	from := b.state
	b.state = to
	b.lastTransition = time.Now()

	switch to {
	case StateOpen:
		b.openedAt = time.Now()
		b.logger.Warn("Circuit breaker opened",
			"from", string(from),
			"reason", reason,
			"consecutive_failures", b.consecutiveFailures,
			"last_error", b.lastError)
	case StateHalfOpen:
		b.halfOpenSuccesses = 0
		b.logger.Info("Circuit breaker half-open", "reason", reason)
	case StateClosed:
		b.consecutiveFailures = 0
		b.halfOpenSuccesses = 0
		b.logger.Info("Circuit breaker closed", "reason", reason)
	}

	fn := b.onStateChange
	if fn == nil {
		return func() {}
	}
	return func() { fn(from, to, reason) }
}

// ForceReset closes the breaker regardless of its current state
func (b *Breaker) ForceReset() {
	b.mu.Lock()
	notify := func() {}
	if b.state != StateClosed {
		notify = b.transition(StateClosed, "manual reset")
	} else {
		b.consecutiveFailures = 0
	}
	b.mu.Unlock()
	notify()
}

// GetState returns the current breaker state
func (b *Breaker) GetState() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats is a snapshot of breaker counters for status endpoints
type Stats struct {
	State               BreakerState `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	TotalFailures       int64        `json:"total_failures"`
	TotalSuccesses      int64        `json:"total_successes"`
	TotalRejections     int64        `json:"total_rejections"`
	LastFailure         time.Time    `json:"last_failure,omitempty"`
	LastTransition      time.Time    `json:"last_transition"`
	LastError           string       `json:"last_error,omitempty"`
	CooldownRemaining   float64      `json:"cooldown_remaining_seconds,omitempty"`
}

// GetStats returns a snapshot of the breaker's counters
func (b *Breaker) GetStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := Stats{
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		TotalFailures:       b.totalFailures,
		TotalSuccesses:      b.totalSuccesses,
		TotalRejections:     b.totalRejections,
		LastFailure:         b.lastFailure,
		LastTransition:      b.lastTransition,
		LastError:           b.lastError,
	}
	if b.state == StateOpen {
		remaining := b.config.Cooldown - time.Since(b.openedAt)
		if remaining > 0 {
			stats.CooldownRemaining = remaining.Seconds()
		}
	}
	return stats
}

// UpdateConfig replaces the breaker's configuration at runtime
func (b *Breaker) UpdateConfig(config Config) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if config.FailureThreshold <= 0 {
		config.FailureThreshold = b.config.FailureThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = b.config.Cooldown
	}
	if config.HalfOpenProbes <= 0 {
		config.HalfOpenProbes = b.config.HalfOpenProbes
	}
	b.config = config
}
