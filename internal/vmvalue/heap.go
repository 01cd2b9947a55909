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

package vmvalue

import (
	"sync/atomic"

	"github.com/vega-lang/vega/internal/vegalog"
	"go.uber.org/zap"
)

// Header is the common prefix of every shared heap object (spec §3: "Heap
// object header"). It is embedded, not wrapped, so heap objects can
// implement Ref directly on top of it.
type Header struct {
	refcount uint32
	interned bool
	freed    bool
	kind     string
	arena    *Arena
}

// Arena tracks process-wide heap accounting: the live object count used for
// the `--debug` memory-stats line and for property #1 (refcount balance).
// The teacher encapsulates comparable process-wide counters in a runtime
// context object rather than hidden statics (budget accountant, circuit
// breaker manager); Arena follows the same shape.
type Arena struct {
	live      int64
	allocated int64
	freed     int64
}

// DefaultArena is used by objects constructed via the package-level
// constructors (NewString, NewArray, NewResult) when no Arena is threaded
// through explicitly — mirroring the teacher's GetTokenCounter/
// GetGlobalSharedMemory singleton pattern for incidental accounting.
var DefaultArena = &Arena{}

func (a *Arena) trackAlloc() {
	atomic.AddInt64(&a.live, 1)
	atomic.AddInt64(&a.allocated, 1)
}

func (a *Arena) trackFree() {
	atomic.AddInt64(&a.live, -1)
	atomic.AddInt64(&a.freed, 1)
}

// Stats is a snapshot of Arena counters for the CLI's --debug output.
type Stats struct {
	Live      int64
	Allocated int64
	Freed     int64
}

func (a *Arena) Stats() Stats {
	return Stats{
		Live:      atomic.LoadInt64(&a.live),
		Allocated: atomic.LoadInt64(&a.allocated),
		Freed:     atomic.LoadInt64(&a.freed),
	}
}

// initHeader sets up a fresh Header with refcount 1, registering the
// allocation with arena.
func initHeader(a *Arena, kind string) Header {
	if a == nil {
		a = DefaultArena
	}
	a.trackAlloc()
	return Header{refcount: 1, kind: kind, arena: a}
}

// NewHeader is the exported form of initHeader, for heap objects defined
// outside this package (agentrt's Agent and Future) that still want to
// embed Header and share its refcount/arena bookkeeping.
func NewHeader(a *Arena, kind string) Header {
	return initHeader(a, kind)
}

func (h *Header) RefCount() uint32 { return atomic.LoadUint32(&h.refcount) }

func (h *Header) HeapKind() string { return h.kind }

// Retain increments the refcount unless the object is interned (interned
// objects are never freed, so their count is immaterial) or already freed
// (a defect: reported, not fatal, per spec §3).
func (h *Header) Retain() {
	if h.freed {
		vegalog.Warn("retain on freed heap object",
			zap.String("kind", h.kind))
		return
	}
	if h.interned {
		return
	}
	atomic.AddUint32(&h.refcount, 1)
}

// Release decrements the refcount, invoking onZero and marking freed when it
// reaches zero. Returns true if this call actually freed the object.
func (h *Header) Release(onZero func()) bool {
	if h.interned || h.freed {
		return false
	}
	n := atomic.AddUint32(&h.refcount, ^uint32(0)) // decrement
	if n == 0 {
		h.freed = true
		if h.arena != nil {
			h.arena.trackFree()
		}
		if onZero != nil {
			onZero()
		}
		return true
	}
	return false
}

// Intern marks the object as interned: never freed, retain/release become
// no-ops. Used for compile-time string constants loaded from the constant
// pool, which are shared for the lifetime of the image.
func (h *Header) Intern() { h.interned = true }
