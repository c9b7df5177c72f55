// Package resilience wraps outbound gateway calls with retry, circuit
// breaking, and transient error classification so one flaky provider
// cannot stall the delivery loop.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrCircuitOpen is returned for sends rejected while a circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitState is the lifecycle state of a single breaker.
type CircuitState int

const (
	// CircuitClosed admits every send.
	CircuitClosed CircuitState = iota
	// CircuitOpen sheds sends until the reset timeout elapses.
	CircuitOpen
	// CircuitHalfOpen admits probe sends to test gateway recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreakerConfig tunes when a breaker opens and recovers.
type CircuitBreakerConfig struct {
	// FailureThreshold is the failure streak that opens the circuit.
	FailureThreshold int

	// ResetTimeout is how long an open circuit sheds sends before
	// admitting a probe.
	ResetTimeout time.Duration

	// HalfOpenMaxProbes is how many probes must succeed before the
	// circuit closes again.
	HalfOpenMaxProbes int

	// ShouldTrip decides which errors count toward the streak. Nil
	// counts every error; pass IsTransient to keep permanent
	// rejections such as bad recipients from tripping the breaker.
	ShouldTrip func(err error) bool

	// OnStateChange observes transitions, typically for logging.
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig opens after 5 straight failures and probes
// again after 30 seconds.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:  5,
		ResetTimeout:      30 * time.Second,
		HalfOpenMaxProbes: 1,
	}
}

// FromCircuitConfig builds a breaker config from raw settings values,
// keeping defaults for anything non-positive.
func FromCircuitConfig(failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return cfg
}

func (cfg CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	def := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenMaxProbes <= 0 {
		cfg.HalfOpenMaxProbes = def.HalfOpenMaxProbes
	}
	return cfg
}

// CircuitBreaker tracks the health of one gateway and sheds sends while
// it is failing.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu             sync.Mutex
	state          CircuitState
	failStreak     int
	lastFailure    time.Time
	probeSuccesses int

	// nowFunc is swapped in tests to step through the reset timeout.
	nowFunc func() time.Time
}

// NewCircuitBreaker returns a closed breaker with cfg's thresholds.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		cfg:     cfg.withDefaults(),
		state:   CircuitClosed,
		nowFunc: time.Now,
	}
}

// Execute runs fn unless the circuit is open, in which case it returns
// ErrCircuitOpen without calling fn. The outcome feeds the breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.observe(err)
	return err
}

// ExecuteVal is Execute for calls that return a value.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	if err := cb.admit(); err != nil {
		var zero T
		return zero, err
	}
	val, err := fn(ctx)
	cb.observe(err)
	return val, err
}

// State reports the effective state, promoting an expired open circuit
// to half-open without mutating it.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.resetElapsed() {
		return CircuitHalfOpen
	}
	return cb.state
}

// Counters exposes the failure streak and raw state for health checks.
func (cb *CircuitBreaker) Counters() (failStreak int, state CircuitState) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failStreak, cb.state
}

// Reset forces the circuit closed and clears the streak.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	was := cb.state
	cb.state = CircuitClosed
	cb.failStreak = 0
	cb.probeSuccesses = 0
	if was != CircuitClosed && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(was, CircuitClosed)
	}
}

// admit decides whether the next send may go out.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != CircuitOpen {
		return nil
	}
	if cb.resetElapsed() {
		cb.shift(CircuitHalfOpen)
		return nil
	}
	return ErrCircuitOpen
}

// observe feeds a send outcome back into the state machine.
func (cb *CircuitBreaker) observe(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	counts := cb.cfg.ShouldTrip
	if counts == nil {
		counts = func(e error) bool { return e != nil }
	}
	if err == nil || !counts(err) {
		cb.onSuccess()
		return
	}
	cb.onFailure()
}

func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case CircuitClosed:
		cb.failStreak = 0
	case CircuitHalfOpen:
		cb.probeSuccesses++
		if cb.probeSuccesses >= cb.cfg.HalfOpenMaxProbes {
			cb.shift(CircuitClosed)
			cb.failStreak = 0
			cb.probeSuccesses = 0
		}
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.failStreak++
	cb.lastFailure = cb.nowFunc()

	switch cb.state {
	case CircuitClosed:
		if cb.failStreak >= cb.cfg.FailureThreshold {
			cb.shift(CircuitOpen)
		}
	case CircuitHalfOpen:
		// A failed probe sends the circuit straight back to open.
		cb.shift(CircuitOpen)
		cb.probeSuccesses = 0
	}
}

// resetElapsed reports whether the open circuit has cooled down.
// Callers hold cb.mu.
func (cb *CircuitBreaker) resetElapsed() bool {
	return cb.nowFunc().Sub(cb.lastFailure) >= cb.cfg.ResetTimeout
}

func (cb *CircuitBreaker) shift(to CircuitState) {
	from := cb.state
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}

// ServiceBreakers holds one breaker per delivery channel so an SMS
// gateway outage never blocks email.
type ServiceBreakers struct {
	mu        sync.RWMutex
	byService map[string]*CircuitBreaker
	cfg       CircuitBreakerConfig
}

// NewServiceBreakers returns a registry that lazily creates a breaker
// per service name, all sharing cfg.
func NewServiceBreakers(cfg CircuitBreakerConfig) *ServiceBreakers {
	return &ServiceBreakers{
		byService: make(map[string]*CircuitBreaker),
		cfg:       cfg,
	}
}

// Get returns the breaker for service, creating it on first use.
func (sb *ServiceBreakers) Get(service string) *CircuitBreaker {
	sb.mu.RLock()
	cb := sb.byService[service]
	sb.mu.RUnlock()
	if cb != nil {
		return cb
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()
	if cb = sb.byService[service]; cb != nil {
		return cb
	}
	cb = NewCircuitBreaker(sb.cfg)
	sb.byService[service] = cb
	return cb
}

// States snapshots every breaker's effective state.
func (sb *ServiceBreakers) States() map[string]CircuitState {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	out := make(map[string]CircuitState, len(sb.byService))
	for service, cb := range sb.byService {
		out[service] = cb.State()
	}
	return out
}
