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

// Package budget implements the process-wide Budget Accountant (spec §3,
// §4.9): token and dollar-cost ceilings that gate every agent send, and a
// client-side token pre-estimate (Estimate) that the send path does not
// consult.
package budget

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Pricing is the per-model dollar cost in USD per million tokens. Defaults
// to Claude-family pricing (spec §3: "$3 / $15 per M tokens").
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// DefaultPricing is used for any model with no explicit entry.
var DefaultPricing = Pricing{InputPerMillion: 3.0, OutputPerMillion: 15.0}

// knownPricing holds per-model overrides. Unlisted models fall back to
// DefaultPricing.
var knownPricing = map[string]Pricing{
	"claude-opus-4":   {InputPerMillion: 15.0, OutputPerMillion: 75.0},
	"claude-sonnet-4": {InputPerMillion: 3.0, OutputPerMillion: 15.0},
	"claude-haiku-4":  {InputPerMillion: 0.80, OutputPerMillion: 4.0},
}

// PricingFor returns the configured price for model, or DefaultPricing.
func PricingFor(model string) Pricing {
	if p, ok := knownPricing[model]; ok {
		return p
	}
	return DefaultPricing
}

// Limits are the configured ceilings; zero means unlimited (spec §3).
type Limits struct {
	MaxInputTokens  int64
	MaxOutputTokens int64
	MaxCostUSD      float64
}

// Usage is a snapshot of the accumulated counters.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
}

// Accountant is the process-wide Budget Accountant. Safe for concurrent use,
// though spec §5's shared-resource policy only ever has the interpreter
// thread call RecordResponse/Exceeded on the response-handling path.
type Accountant struct {
	mu     sync.Mutex
	limits Limits
	used   Usage

	// sticky latches true the first time Exceeded() observes a breach and
	// never clears except via Reset (spec §8 property 7).
	sticky bool

	encoder *tiktoken.Tiktoken
}

// New constructs an Accountant with the given limits. The tiktoken encoder
// is loaded here, best-effort: if it cannot be loaded, Estimate
// falls back to a character-based approximation rather than failing.
func New(limits Limits) *Accountant {
	a := &Accountant{limits: limits}
	if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
		a.encoder = enc
	}
	return a
}

// Estimate returns a client-side pre-flight token estimate for text. No send
// path calls it: budget checks use only the response usage numbers passed to
// RecordResponse.
func (a *Accountant) Estimate(text string) int {
	if a.encoder == nil {
		return len(text) / 4
	}
	return len(a.encoder.Encode(text, nil, nil))
}

// RecordResponse adds a completed response's token usage and cost to the
// running totals (spec §4.9: "After every response, tokens ... are added").
func (a *Accountant) RecordResponse(model string, inputTokens, outputTokens int64) {
	price := PricingFor(model)
	cost := float64(inputTokens)/1e6*price.InputPerMillion + float64(outputTokens)/1e6*price.OutputPerMillion

	a.mu.Lock()
	defer a.mu.Unlock()
	a.used.InputTokens += inputTokens
	a.used.OutputTokens += outputTokens
	a.used.CostUSD += cost
}

// Exceeded reports whether any configured non-zero ceiling is at or above
// its limit. Once true it stays true until Reset, even if later calls would
// otherwise observe the raw counters back under the ceiling (spec §8
// property 7: budget monotonicity).
func (a *Accountant) Exceeded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sticky {
		return true
	}
	if a.breached() {
		a.sticky = true
	}
	return a.sticky
}

func (a *Accountant) breached() bool {
	if a.limits.MaxInputTokens > 0 && a.used.InputTokens >= a.limits.MaxInputTokens {
		return true
	}
	if a.limits.MaxOutputTokens > 0 && a.used.OutputTokens >= a.limits.MaxOutputTokens {
		return true
	}
	if a.limits.MaxCostUSD > 0 && a.used.CostUSD >= a.limits.MaxCostUSD {
		return true
	}
	return false
}

// ExceededError formats the "Budget exceeded (in: ..., out: ..., cost: ...)"
// message spec §4.9 requires when a response is vetoed.
func (a *Accountant) ExceededError() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fmt.Sprintf("Budget exceeded (in: %d, out: %d, cost: %.6f)",
		a.used.InputTokens, a.used.OutputTokens, a.used.CostUSD)
}

// Snapshot returns the current accumulated usage.
func (a *Accountant) Snapshot() Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used
}

// Limits returns the configured ceilings.
func (a *Accountant) Limits() Limits {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.limits
}

// Reset zeroes the counters and clears the sticky-exceeded latch.
func (a *Accountant) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.used = Usage{}
	a.sticky = false
}
