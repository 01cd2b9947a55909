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

// Package vmvalue implements the Vega runtime's value model: the tagged
// Value sum and the refcounted heap objects it can point to (spec §3).
//
// Value itself is small and copied by value (like the teacher's LLMResponse
// and Message structs in pkg/llm/types); only the heap-backed variants carry
// shared ownership, tracked via Ref.
package vmvalue

import "fmt"

// Kind tags a Value's active variant.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindStr
	KindAgent
	KindFuture
	KindArray
	KindResult
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindStr:
		return "str"
	case KindAgent:
		return "agent"
	case KindFuture:
		return "future"
	case KindArray:
		return "array"
	case KindResult:
		return "result"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// Ref is implemented by every heap-allocated object a Value can reference:
// String, Array, ResultObj here, plus Agent and Future (agentrt) by
// structural satisfaction — neither of those packages is imported here,
// which is what keeps the dependency graph a DAG (vmvalue sits at the leaf,
// per spec §2's "Value → Heap objects" ordering).
type Ref interface {
	Retain()
	Release()
	RefCount() uint32
	HeapKind() string
}

// Value is the tagged union described in spec §3.
type Value struct {
	kind Kind
	i    int64
	f    float64
	ref  Ref
}

// Null is the zero Value.
var Null = Value{kind: KindNull}

func Bool(b bool) Value {
	var i int64
	if b {
		i = 1
	}
	return Value{kind: KindBool, i: i}
}

func Int(i int64) Value { return Value{kind: KindInt, i: i} }

func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

func Function(idx uint32) Value { return Value{kind: KindFunction, i: int64(idx)} }

// FromRef wraps a heap object in a Value of the given kind. The caller
// transfers its retain to the returned Value (it does not retain again).
func FromRef(kind Kind, r Ref) Value {
	return Value{kind: kind, ref: r}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() bool { return v.i != 0 }

func (v Value) AsInt() int64 { return v.i }

func (v Value) AsFloat() float64 { return v.f }

func (v Value) AsFunction() uint32 { return uint32(v.i) }

// AsRef returns the heap object, or nil for non-heap kinds.
func (v Value) AsRef() Ref { return v.ref }

// AsString returns the payload of a KindStr value, or the empty string.
func (v Value) AsString() string {
	if v.kind != KindStr || v.ref == nil {
		return ""
	}
	s, _ := v.ref.(*String)
	if s == nil {
		return ""
	}
	return s.Data
}

// AsArray returns the backing *Array of a KindArray value, or nil.
func (v Value) AsArray() *Array {
	if v.kind != KindArray || v.ref == nil {
		return nil
	}
	a, _ := v.ref.(*Array)
	return a
}

// AsResult returns the backing *ResultObj of a KindResult value, or nil.
func (v Value) AsResult() *ResultObj {
	if v.kind != KindResult || v.ref == nil {
		return nil
	}
	r, _ := v.ref.(*ResultObj)
	return r
}

// Retain increments the refcount of the underlying heap object, if any.
// Mirrors the spec §3 invariant: "pushes retain".
func (v Value) Retain() {
	if v.ref != nil {
		v.ref.Retain()
	}
}

// Release decrements the refcount of the underlying heap object, if any,
// freeing it at zero. Mirrors "pops transfer ownership" / "overwrites
// release the prior".
func (v Value) Release() {
	if v.ref != nil {
		v.ref.Release()
	}
}

// Truthy implements the language's truthiness rule used by AND/OR/JUMP_IF:
// Null and false are falsy; zero Int/Float and empty Str/Array are falsy;
// everything else is truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.i != 0
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindStr:
		return v.AsString() != ""
	case KindArray:
		a := v.AsArray()
		return a != nil && a.Len() > 0
	default:
		return true
	}
}

// String renders a Value for PRINT / str::from_int-style coercions. It does
// not retain or release anything.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.i != 0)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindStr:
		return v.AsString()
	case KindArray:
		a := v.AsArray()
		if a == nil {
			return "[]"
		}
		return a.String()
	case KindResult:
		r := v.AsResult()
		if r == nil {
			return "Result(?)"
		}
		return r.String()
	case KindFunction:
		return fmt.Sprintf("<function %d>", v.i)
	case KindAgent:
		return "<agent>"
	case KindFuture:
		return "<future>"
	default:
		return "<?>"
	}
}

// Equal implements EQ/NE for the pair. It does not retain/release.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		// Numeric cross-type: promote to float (mirrors comparison rules).
		if isNumeric(a.kind) && isNumeric(b.kind) {
			return numericFloat(a) == numericFloat(b)
		}
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool, KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindStr:
		return a.AsString() == b.AsString()
	case KindFunction:
		return a.i == b.i
	default:
		return a.ref == b.ref
	}
}

func isNumeric(k Kind) bool { return k == KindInt || k == KindFloat }

func numericFloat(v Value) float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}
