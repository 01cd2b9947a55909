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

package agentrt

import "github.com/vega-lang/vega/internal/vmvalue"

// FutureState is the Future lifecycle (spec §3): becomes ready exactly once.
type FutureState int

const (
	FuturePending FutureState = iota
	FutureReady
	FutureError
)

// Future is the handle an async SEND_ASYNC leaves on the value stack (spec
// §3, §4.3). It transitions Pending -> (Ready|Error) exactly once; repeat
// AWAITs return the same result (spec §3 invariant, property #4).
type Future struct {
	vmvalue.Header

	Owner     *Agent
	RequestID string
	State     FutureState
	Result    string
	Err       string
}

// NewFuture allocates a pending Future owned by agent.
func NewFuture(agent *Agent, requestID string) *Future {
	return &Future{
		Header:    vmvalue.NewHeader(vmvalue.DefaultArena, "Future"),
		Owner:     agent,
		RequestID: requestID,
		State:     FuturePending,
	}
}

// Resolve transitions the future to Ready with result text. A no-op if
// already resolved (spec §3: "becomes ready exactly once").
func (f *Future) Resolve(result string) {
	if f.State != FuturePending {
		return
	}
	f.State = FutureReady
	f.Result = result
}

// Fail transitions the future to Error with an error message. A no-op if
// already resolved.
func (f *Future) Fail(errMsg string) {
	if f.State != FuturePending {
		return
	}
	f.State = FutureError
	f.Err = errMsg
}

// Release is Future's thin override matching vmvalue.Ref (Future carries no
// owned children to cascade-release; Owner is a borrowed reference).
func (f *Future) Release() {
	f.Header.Release(nil)
}

var _ vmvalue.Ref = (*Future)(nil)
