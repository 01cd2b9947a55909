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

// Package trace implements the runtime's narrow publish/subscribe seam
// (spec §4.10): a bus of Events that the interactive front-end,
// observability exporters, and PRINT opcode all consume. Subscribers are
// called synchronously on the publishing goroutine (spec §5's
// shared-resource policy).
package trace

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is one of the ten event kinds enumerated in spec §4.10.
type Kind string

const (
	AgentSpawn      Kind = "AgentSpawn"
	AgentFree       Kind = "AgentFree"
	MessageSent     Kind = "MessageSent"
	MessageReceived Kind = "MessageReceived"
	ToolCall        Kind = "ToolCall"
	ToolResult      Kind = "ToolResult"
	HTTPStart       Kind = "HttpStart"
	HTTPDone        Kind = "HttpDone"
	ErrorEvent      Kind = "Error"
	PrintEvent      Kind = "Print"
)

// TokenUsage is the optional token-usage triple some events carry.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Event is one published trace record.
type Event struct {
	ID        string
	Kind      Kind
	Timestamp time.Time
	AgentID   uint64
	AgentName string
	Data      string
	Usage     *TokenUsage
	Duration  time.Duration
}

// NowFunc is overridable by tests that need deterministic timestamps.
var NowFunc = time.Now

// Subscriber is a registered callback plus its deregistration token.
type Subscriber struct {
	token    string
	callback func(Event)
}

// Bus is the process-wide publish/subscribe bus. The zero value is usable.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]*Subscriber)}
}

// Subscribe registers callback and returns a token for Unsubscribe.
func (b *Bus) Subscribe(callback func(Event)) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	token := uuid.NewString()
	b.subscribers[token] = &Subscriber{token: token, callback: callback}
	return token
}

// Unsubscribe removes a previously registered callback.
func (b *Bus) Unsubscribe(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, token)
}

// HasSubscribers reports whether any subscriber is currently registered;
// PRINT uses this to decide between routing through the bus and writing
// directly to stdout (spec §4.10).
func (b *Bus) HasSubscribers() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers) > 0
}

// Publish delivers ev to every current subscriber synchronously, so a slow
// subscriber delays Publish's return. Each callback runs within its own
// recover-guarded call, so a panicking subscriber cannot take down the
// runtime.
func (b *Bus) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = NowFunc()
	}
	b.mu.RLock()
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		func(cb func(Event)) {
			defer func() { _ = recover() }()
			cb(ev)
		}(s.callback)
	}
}
