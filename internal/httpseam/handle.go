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

package httpseam

import (
	"context"
	"sync"
)

// Status is the mutex-guarded status word spec §5 describes: the
// interpreter polls it each step instead of blocking on the network.
type Status int

const (
	StatusPending Status = iota
	StatusReady
	StatusError
)

// Handle is one in-flight (or completed) async request. It is created by
// Launch, which starts the request on a private goroutine standing in for
// spec §5's "private OS thread owned by the HTTP seam". The interpreter
// thread only ever touches the guarded fields below; it never blocks on the
// goroutine except inside GetResponse/Cancel, which join it.
type Handle struct {
	mu       sync.Mutex
	status   Status
	response *MessagesResponse
	httpCode int
	err      error

	cancel context.CancelFunc
	done   chan struct{}
}

// Launch starts req against client on a helper goroutine and returns
// immediately with a Pending handle.
func Launch(client *Client, parent context.Context, req *MessagesRequest) *Handle {
	ctx, cancel := context.WithCancel(parent)
	h := &Handle{
		status: StatusPending,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		resp, code, err := client.Do(ctx, req)

		h.mu.Lock()
		defer h.mu.Unlock()
		h.response = resp
		h.httpCode = code
		h.err = err
		if err != nil {
			h.status = StatusError
		} else {
			h.status = StatusReady
		}
	}()

	return h
}

// Poll reports the handle's current status without blocking (spec §5: "The
// interpreter never blocks on network I/O; it polls per step").
func (h *Handle) Poll() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// GetResponse blocks until the request completes, joining the helper
// goroutine exactly once (spec §5), and transfers ownership of the response
// to the caller.
func (h *Handle) GetResponse() (*MessagesResponse, int, error) {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.response, h.httpCode, h.err
}

// Cancel cancels the request's context, aborting the network call (it is
// not left to run to completion), joins the helper goroutine, and resets
// nothing else — the caller's agent
// state transition back to Idle is its own responsibility (spec §5).
func (h *Handle) Cancel() {
	h.cancel()
	<-h.done
}
