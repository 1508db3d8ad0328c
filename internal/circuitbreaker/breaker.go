// Package circuitbreaker guards outbound executor calls against endpoints
// that are persistently down. An open circuit turns into an immediate
// executor failure, which lands on the normal job retry path instead of
// hammering a dead collaborator.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

type endpointState struct {
	state               state
	consecutiveFailures int
	openedAt            time.Time
}

// CircuitBreaker tracks consecutive failures per endpoint. After threshold
// failures the endpoint opens for cooldown, then a single probe call is let
// through (half-open); its outcome closes or reopens the circuit.
type CircuitBreaker struct {
	mu        sync.Mutex
	endpoints map[string]*endpointState
	threshold int
	cooldown  time.Duration
	clock     func() time.Time
}

func New(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		endpoints: make(map[string]*endpointState),
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

// Allow reports whether a call to endpoint may proceed.
func (cb *CircuitBreaker) Allow(endpoint string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.endpoints[endpoint]
	if !ok {
		return nil
	}

	switch s.state {
	case stateClosed:
		return nil
	case stateOpen:
		if cb.clock().Sub(s.openedAt) >= cb.cooldown {
			s.state = stateHalfOpen
			return nil
		}
		return ErrCircuitOpen
	case stateHalfOpen:
		// One probe is already in flight.
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (cb *CircuitBreaker) RecordSuccess(endpoint string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.endpoints[endpoint]
	if !ok {
		return
	}
	s.state = stateClosed
	s.consecutiveFailures = 0
}

func (cb *CircuitBreaker) RecordFailure(endpoint string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.endpoints[endpoint]
	if !ok {
		s = &endpointState{}
		cb.endpoints[endpoint] = s
	}

	s.consecutiveFailures++
	if s.consecutiveFailures >= cb.threshold {
		s.state = stateOpen
		s.openedAt = cb.clock()
	}
}
