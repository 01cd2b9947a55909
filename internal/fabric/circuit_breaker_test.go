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

package fabric

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCircuitBreakerOpensAtThreshold exercises the end-to-end scenario from
// spec §8: threshold 2, cooldown 100ms, two consecutive failures open the
// circuit; the third attempt is denied; after the cooldown the next attempt
// is admitted as a half-open probe.
func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, CooldownMs: 100})

	require.True(t, cb.Allow())
	cb.RecordFailure()
	require.True(t, cb.Allow())
	cb.RecordFailure()

	assert.Equal(t, StateOpen, cb.GetState())
	assert.False(t, cb.Allow(), "third attempt must be denied while open")

	time.Sleep(110 * time.Millisecond)
	assert.True(t, cb.Allow(), "probe after cooldown must be admitted")
	assert.Equal(t, StateHalfOpen, cb.GetState())
}

func TestCircuitBreakerHalfOpenSuccessCloses(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, CooldownMs: 1})
	require.True(t, cb.Allow())
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(5 * time.Millisecond)
	require.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, 0, cb.FailureCount())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, CooldownMs: 1})
	require.True(t, cb.Allow())
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	require.True(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestBackoffDelayShapes(t *testing.T) {
	assert.Equal(t, time.Duration(0), Delay(BackoffNone, 5, 1000, 30000))
	assert.Equal(t, 3*time.Second, Delay(BackoffLinear, 2, 1*1000, 30*1000))
	assert.Equal(t, 4*time.Second, Delay(BackoffExponential, 2, 1*1000, 30*1000))
	// Saturates at max, no overflow for large attempt counts.
	assert.Equal(t, 30*time.Second, Delay(BackoffExponential, 40, 1000, 30000))
}

func TestClassifyHTTP(t *testing.T) {
	assert.Equal(t, ClassNone, ClassifyHTTP(200, ""))
	assert.Equal(t, ClassRetriable, ClassifyHTTP(429, ""))
	assert.Equal(t, ClassRetriable, ClassifyHTTP(503, ""))
	assert.Equal(t, ClassRetriable, ClassifyHTTP(0, ""))
	assert.Equal(t, ClassRetriable, ClassifyHTTP(529, "the model is overloaded, try again"))
	assert.Equal(t, ClassFatal, ClassifyHTTP(401, "unauthorized"))
}
