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

import "time"

// Backoff selects the retry-delay shape (spec §3 SupervisionConfig,
// §4.7 step 2).
type Backoff int

const (
	BackoffNone Backoff = iota
	BackoffLinear
	BackoffExponential
)

// Delay computes the backoff delay before retry attempt `attempt`
// (0-indexed), saturating at maxDelayMs. Exponential must not overflow for
// attempt >= 16 (spec §4.7): we clamp the shift count before computing 2^n.
func Delay(kind Backoff, attempt int, baseDelayMs, maxDelayMs int64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	var ms int64
	switch kind {
	case BackoffNone:
		ms = 0
	case BackoffLinear:
		ms = baseDelayMs * int64(attempt+1)
	case BackoffExponential:
		shift := attempt
		if shift > 32 { // 2^32 already dwarfs any sane maxDelayMs; clamp
			shift = 32
		}
		ms = baseDelayMs * (int64(1) << uint(shift))
	default:
		ms = 0
	}
	if maxDelayMs > 0 && ms > maxDelayMs {
		ms = maxDelayMs
	}
	if ms < 0 { // guard against pathological overflow into negative territory
		ms = maxDelayMs
	}
	return time.Duration(ms) * time.Millisecond
}
