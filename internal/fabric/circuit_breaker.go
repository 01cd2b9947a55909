// Copyright 2026 The Vega Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fabric implements the retry/backoff/circuit-breaker controls that
// gate agent sends (spec §4.7, §4.8).
package fabric

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vega-lang/vega/internal/vegalog"
)

// State is the circuit breaker's current gate.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig mirrors spec §3's SupervisionConfig circuit fields.
type CircuitBreakerConfig struct {
	FailureThreshold int
	CooldownMs       int64
}

// DefaultCircuitBreakerConfig matches the spec §3 defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{FailureThreshold: 5, CooldownMs: 60_000}
}

// CircuitBreaker is the three-state gate from spec §4.8: Closed allows all,
// Open denies until cooldown elapses, HalfOpen allows exactly one probe.
type CircuitBreaker struct {
	mu              sync.Mutex
	state           State
	failureCount    int
	config          CircuitBreakerConfig
	openedAt        time.Time
	halfOpenPending bool // a probe is currently in flight
}

// NewCircuitBreaker constructs a breaker in the Closed state.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultCircuitBreakerConfig().FailureThreshold
	}
	if config.CooldownMs <= 0 {
		config.CooldownMs = DefaultCircuitBreakerConfig().CooldownMs
	}
	return &CircuitBreaker{state: StateClosed, config: config}
}

// Allow reports whether a request may proceed right now, transitioning
// Open -> HalfOpen once the cooldown has elapsed (spec §4.8).
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if cb.halfOpenPending {
			return false // exactly one probe in flight at a time
		}
		cb.halfOpenPending = true
		return true
	case StateOpen:
		if time.Since(cb.openedAt) >= time.Duration(cb.config.CooldownMs)*time.Millisecond {
			cb.state = StateHalfOpen
			cb.halfOpenPending = true
			vegalog.Info("circuit_breaker_half_open", zap.Duration("cooldown_elapsed", time.Since(cb.openedAt)))
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess reports a successful request outcome.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.state = StateClosed
		cb.failureCount = 0
		cb.halfOpenPending = false
		vegalog.Info("circuit_breaker_closed", zap.String("reason", "half_open_probe_succeeded"))
	}
}

// RecordFailure reports a failed request outcome.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.state = StateOpen
			cb.openedAt = time.Now()
			vegalog.Warn("circuit_breaker_opened", zap.Int("failure_count", cb.failureCount))
		}
	case StateHalfOpen:
		cb.state = StateOpen
		cb.openedAt = time.Now()
		cb.halfOpenPending = false
		vegalog.Warn("circuit_breaker_reopened", zap.String("reason", "half_open_probe_failed"))
	}
}

// GetState returns the current gate state.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// FailureCount returns the consecutive-failure count in Closed state.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

// Reset forces the breaker back to Closed, clearing counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failureCount = 0
	cb.halfOpenPending = false
}
