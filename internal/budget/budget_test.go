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

package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnlimitedByDefault(t *testing.T) {
	a := New(Limits{})
	a.RecordResponse("claude-sonnet-4", 1_000_000, 1_000_000)
	assert.False(t, a.Exceeded())
}

func TestCostCeilingTripsAndSticks(t *testing.T) {
	a := New(Limits{MaxCostUSD: 0.00001})
	require.False(t, a.Exceeded())

	a.RecordResponse("claude-sonnet-4", 100, 100)
	require.True(t, a.Exceeded())
	assert.Contains(t, a.ExceededError(), "Budget exceeded")

	// Monotonicity: stays exceeded even though nothing further is recorded.
	assert.True(t, a.Exceeded())
}

func TestResetClearsStickyLatch(t *testing.T) {
	a := New(Limits{MaxInputTokens: 10})
	a.RecordResponse("claude-sonnet-4", 20, 0)
	require.True(t, a.Exceeded())

	a.Reset()
	assert.False(t, a.Exceeded())
	snap := a.Snapshot()
	assert.Zero(t, snap.InputTokens)
}

func TestTokenCeilingsIndependent(t *testing.T) {
	a := New(Limits{MaxOutputTokens: 50})
	a.RecordResponse("claude-haiku-4", 1000, 10)
	assert.False(t, a.Exceeded())
	a.RecordResponse("claude-haiku-4", 0, 40)
	assert.True(t, a.Exceeded())
}

func TestPricingForKnownAndUnknownModel(t *testing.T) {
	assert.Equal(t, Pricing{InputPerMillion: 3.0, OutputPerMillion: 15.0}, PricingFor("claude-sonnet-4"))
	assert.Equal(t, DefaultPricing, PricingFor("some-unlisted-model"))
}

func TestEstimateFallsBackWithoutEncoder(t *testing.T) {
	a := &Accountant{} // encoder nil, as if tiktoken.GetEncoding failed
	assert.Equal(t, len("abcd")/4, a.Estimate("abcd"))
}
