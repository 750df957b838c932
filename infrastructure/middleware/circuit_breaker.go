package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ahrav/go-funcreg/internal/domain"
	"github.com/ahrav/go-funcreg/internal/ports"
)

// ErrCircuitOpen indicates that the circuit breaker rejected an invocation
// without calling the function.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Counter names recorded by the circuit breaker.
const (
	MetricCircuitTrips    = "circuit_trip"
	MetricCircuitRejected = "circuit_rejected"
)

// CircuitState is the state of a circuit breaker.
type CircuitState int

// Circuit breaker states.
const (
	// StateClosed lets every invocation through.
	StateClosed CircuitState = iota
	// StateOpen rejects invocations until the cooldown expires.
	StateOpen
	// StateHalfOpen lets a single probe through to test recovery.
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("CircuitState(%d)", int(s))
	}
}

// CircuitBreaker opens after maxFailures consecutive failed invocations and
// rejects invocations for the cooldown. After the cooldown one probe is let
// through: success closes the circuit, failure opens it again.
//
// Every admission carries the generation it was let in under, and each trip
// starts a new generation. Outcomes from an older generation are ignored, so
// a slow call admitted before a trip can neither close the circuit nor
// extend its cooldown.
//
// The lock is never held while the function runs, so a closed breaker does
// not serialize invocations.
type CircuitBreaker struct {
	mu          sync.Mutex
	state       CircuitState
	failures    int
	maxFailures int
	cooldown    time.Duration
	openedAt    time.Time
	generation  uint64
	probing     bool
	now         func() time.Time
}

// admission identifies one invocation let through by allow.
type admission struct {
	generation uint64
	probe      bool
}

// NewCircuitBreaker creates a closed circuit breaker. maxFailures below one
// is treated as one.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures: max(1, maxFailures),
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// State returns the current state, reporting an open circuit whose cooldown
// has expired as half-open.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cooldown {
		return StateHalfOpen
	}
	return cb.state
}

// allow reports whether an invocation may proceed and, if so, the admission
// its outcome must be recorded against.
func (cb *CircuitBreaker) allow() (admission, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return admission{}, false
		}
		cb.state = StateHalfOpen
		cb.probing = true
		return admission{generation: cb.generation, probe: true}, true
	case StateHalfOpen:
		if cb.probing {
			return admission{}, false
		}
		cb.probing = true
		return admission{generation: cb.generation, probe: true}, true
	default:
		return admission{generation: cb.generation}, true
	}
}

// record updates the state with an invocation outcome and reports whether
// the circuit tripped.
func (cb *CircuitBreaker) record(a admission, failed bool) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if a.generation != cb.generation {
		return false
	}

	if a.probe {
		cb.probing = false
		if failed {
			cb.trip()
			return true
		}
		cb.state = StateClosed
		cb.failures = 0
		return false
	}

	if cb.state != StateClosed {
		return false
	}
	if !failed {
		cb.failures = 0
		return false
	}
	cb.failures++
	if cb.failures >= cb.maxFailures {
		cb.trip()
		return true
	}
	return false
}

// trip opens the circuit and starts a new generation. Callers hold mu.
func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = cb.now()
	cb.failures = 0
	cb.generation++
}

// release ends an admission without judging the function. A released probe
// lets the next caller probe instead.
func (cb *CircuitBreaker) release(a admission) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if a.probe && a.generation == cb.generation {
		cb.probing = false
	}
}

type breakerFunction struct {
	decorated
	typeName string
	breaker  *CircuitBreaker
	metrics  ports.MetricsCollector
}

// CircuitBreak returns middleware that fails fast with ErrCircuitOpen once
// a function type keeps failing. Each type gets its own breaker, shared by
// all instances of that type. Cancelled invocations do not count as
// failures. Trips and rejections are counted on collector when it is not
// nil.
func CircuitBreak(maxFailures int, cooldown time.Duration, collector ports.MetricsCollector) ports.FunctionMiddleware {
	var (
		mu       sync.Mutex
		breakers = make(map[string]*CircuitBreaker)
	)

	return func(typeName string, next ports.Function) ports.Function {
		mu.Lock()
		breaker, ok := breakers[typeName]
		if !ok {
			breaker = NewCircuitBreaker(maxFailures, cooldown)
			breakers[typeName] = breaker
		}
		mu.Unlock()

		return &breakerFunction{
			decorated: decorated{next},
			typeName:  typeName,
			breaker:   breaker,
			metrics:   collector,
		}
	}
}

func (b *breakerFunction) Apply(ctx context.Context, applier ports.Applier, input domain.Context) (domain.Output, error) {
	ticket, ok := b.breaker.allow()
	if !ok {
		b.count(MetricCircuitRejected)
		return domain.Output{}, fmt.Errorf("%s: %w", b.typeName, ErrCircuitOpen)
	}

	out, err := b.Function.Apply(ctx, applier, input)
	if errors.Is(err, context.Canceled) {
		b.breaker.release(ticket)
		return out, err
	}
	if b.breaker.record(ticket, err != nil) {
		b.count(MetricCircuitTrips)
	}
	return out, err
}

func (b *breakerFunction) count(metric string) {
	if b.metrics != nil {
		b.metrics.RecordCounter(metric, 1, map[string]string{"type": b.typeName})
	}
}
