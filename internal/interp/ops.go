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

package interp

import (
	"github.com/vega-lang/vega/internal/bytecode"
	"github.com/vega-lang/vega/internal/proc"
	"github.com/vega-lang/vega/internal/vmvalue"
)

// binaryArith implements ADD/SUB/MUL/DIV/MOD (spec §4.2). ADD is the one
// overloaded opcode: numeric promotion, string concatenation if either
// operand is a Str, array concatenation if both are Array.
func (it *Interpreter) binaryArith(m *machine, op bytecode.Op) bool {
	b, bok := m.pop()
	a, aok := m.pop()
	if !aok || !bok {
		m.fail("%s on empty stack", op)
		return false
	}
	defer a.Release()
	defer b.Release()

	if op == bytecode.OpAdd {
		if a.Kind() == vmvalue.KindStr || b.Kind() == vmvalue.KindStr {
			m.push(it.concatStrings(a, b))
			return true
		}
		if a.Kind() == vmvalue.KindArray && b.Kind() == vmvalue.KindArray {
			out := vmvalue.Concat(a.AsArray(), b.AsArray(), it.arena)
			m.push(vmvalue.FromRef(vmvalue.KindArray, out))
			return true
		}
	}

	if a.Kind() == vmvalue.KindInt && b.Kind() == vmvalue.KindInt {
		ai, bi := a.AsInt(), b.AsInt()
		switch op {
		case bytecode.OpAdd:
			m.push(vmvalue.Int(ai + bi))
		case bytecode.OpSub:
			m.push(vmvalue.Int(ai - bi))
		case bytecode.OpMul:
			m.push(vmvalue.Int(ai * bi))
		case bytecode.OpDiv:
			if bi == 0 {
				m.push(vmvalue.Null)
			} else {
				m.push(vmvalue.Int(ai / bi)) // Go / truncates toward zero
			}
		case bytecode.OpMod:
			if bi == 0 {
				m.push(vmvalue.Null)
			} else {
				m.push(vmvalue.Int(ai % bi))
			}
		}
		return true
	}

	af, aIsNum := numeric(a)
	bf, bIsNum := numeric(b)
	if !aIsNum || !bIsNum {
		m.push(vmvalue.Null)
		return true
	}
	switch op {
	case bytecode.OpAdd:
		m.push(vmvalue.Float(af + bf))
	case bytecode.OpSub:
		m.push(vmvalue.Float(af - bf))
	case bytecode.OpMul:
		m.push(vmvalue.Float(af * bf))
	case bytecode.OpDiv:
		if bf == 0 {
			m.push(vmvalue.Null)
		} else {
			m.push(vmvalue.Float(af / bf))
		}
	case bytecode.OpMod:
		m.push(vmvalue.Null) // float MOD is not specified; no-op to Null
	}
	return true
}

func numeric(v vmvalue.Value) (float64, bool) {
	switch v.Kind() {
	case vmvalue.KindInt:
		return float64(v.AsInt()), true
	case vmvalue.KindFloat:
		return v.AsFloat(), true
	default:
		return 0, false
	}
}

func (it *Interpreter) concatStrings(a, b vmvalue.Value) vmvalue.Value {
	s := a.String() + b.String()
	str := vmvalue.NewString(it.arena, s)
	return vmvalue.FromRef(vmvalue.KindStr, str)
}

// compare implements EQ/NE/LT/LE/GT/GE (spec §4.2): numeric cross-type
// compare promotes to float, strings compare lexicographically by bytes.
func (it *Interpreter) compare(m *machine, op bytecode.Op) bool {
	b, bok := m.pop()
	a, aok := m.pop()
	if !aok || !bok {
		m.fail("%s on empty stack", op)
		return false
	}
	defer a.Release()
	defer b.Release()

	if op == bytecode.OpEq {
		m.push(vmvalue.Bool(vmvalue.Equal(a, b)))
		return true
	}
	if op == bytecode.OpNe {
		m.push(vmvalue.Bool(!vmvalue.Equal(a, b)))
		return true
	}

	if a.Kind() == vmvalue.KindStr && b.Kind() == vmvalue.KindStr {
		as, bs := a.AsString(), b.AsString()
		var result bool
		switch op {
		case bytecode.OpLt:
			result = as < bs
		case bytecode.OpLe:
			result = as <= bs
		case bytecode.OpGt:
			result = as > bs
		case bytecode.OpGe:
			result = as >= bs
		}
		m.push(vmvalue.Bool(result))
		return true
	}

	af, aok2 := numeric(a)
	bf, bok2 := numeric(b)
	if !aok2 || !bok2 {
		m.push(vmvalue.Bool(false))
		return true
	}
	var result bool
	switch op {
	case bytecode.OpLt:
		result = af < bf
	case bytecode.OpLe:
		result = af <= bf
	case bytecode.OpGt:
		result = af > bf
	case bytecode.OpGe:
		result = af >= bf
	}
	m.push(vmvalue.Bool(result))
	return true
}

// execCall implements CALL argc (spec §4.2): pops the callee Function from
// the top of stack, opens a frame over the argc values now on top, reserving
// local_count - argc null slots, and jumps to the callee's code offset.
func (it *Interpreter) execCall(m *machine, argc int) bool {
	callee, ok := m.pop()
	if !ok {
		m.fail("CALL on empty stack")
		return false
	}
	if callee.Kind() != vmvalue.KindFunction {
		m.fail("CALL on a non-function value")
		return false
	}
	fnIdx := int(callee.AsFunction())
	if fnIdx < 0 || fnIdx >= len(it.image.Functions) {
		m.fail("CALL to invalid function id %d", fnIdx)
		return false
	}
	fn := it.image.Functions[fnIdx]
	if argc > len(m.vstack) {
		m.fail("CALL stack underflow")
		return false
	}
	if len(m.fstack) >= MaxFrameStack {
		m.fail("call-stack overflow")
		return false
	}

	base := len(m.vstack) - argc
	for i := argc; i < int(fn.Locals); i++ {
		m.vstack = append(m.vstack, vmvalue.Null)
	}
	m.fstack = append(m.fstack, proc.Frame{FunctionID: fnIdx, ReturnIP: m.ip, BasePtr: base})
	m.ip = int(fn.CodeOffset)
	return true
}

// execReturn implements RETURN (spec §4.2): pops the result, releases the
// frame's locals/args, restores ip and base pointer, pushes the result. An
// empty frame stack halts the VM with the result on the stack.
func (it *Interpreter) execReturn(m *machine) (halted bool, result vmvalue.Value) {
	res, ok := m.pop()
	if !ok {
		m.fail("RETURN on empty stack")
		return false, vmvalue.Null
	}
	if len(m.fstack) == 0 {
		m.push(res)
		return true, res
	}
	frame := m.fstack[len(m.fstack)-1]
	m.fstack = m.fstack[:len(m.fstack)-1]

	for i := frame.BasePtr; i < len(m.vstack); i++ {
		m.vstack[i].Release()
	}
	m.vstack = m.vstack[:frame.BasePtr]
	m.push(res)

	if len(m.fstack) == 0 {
		return true, res
	}
	m.ip = frame.ReturnIP
	return false, vmvalue.Null
}

// execCallMethod implements CALL_METHOD name_idx argc: the only methods
// supported are .has(sub) and .len() on strings (spec §4.2).
func (it *Interpreter) execCallMethod(m *machine, nameIdx uint32, argc int) bool {
	name := it.image.ConstStringAt(nameIdx)
	args := make([]vmvalue.Value, argc)
	for i := argc - 1; i >= 0; i-- {
		v, ok := m.pop()
		if !ok {
			m.fail("CALL_METHOD on empty stack")
			return false
		}
		args[i] = v
	}
	recv, ok := m.pop()
	if !ok {
		m.fail("CALL_METHOD on empty stack")
		return false
	}

	switch name {
	case "has":
		if recv.Kind() != vmvalue.KindStr || len(args) != 1 {
			m.fail("str.has requires a string receiver and one argument")
			return false
		}
		s, _ := recv.AsRef().(*vmvalue.String)
		m.push(vmvalue.Bool(s.Contains(args[0].String())))
	case "len":
		if recv.Kind() != vmvalue.KindStr {
			m.fail("str.len requires a string receiver")
			return false
		}
		m.push(vmvalue.Int(int64(len(recv.AsString()))))
	default:
		m.fail("unknown method '%s'", name)
		return false
	}

	for _, a := range args {
		a.Release()
	}
	recv.Release()
	return true
}

// execStrConcat implements STR_CONCAT (spec §4.2).
func (it *Interpreter) execStrConcat(m *machine) bool {
	b, bok := m.pop()
	a, aok := m.pop()
	if !aok || !bok {
		m.fail("STR_CONCAT on empty stack")
		return false
	}
	m.push(it.concatStrings(a, b))
	a.Release()
	b.Release()
	return true
}

// execStrHas implements STR_HAS (spec §4.2).
func (it *Interpreter) execStrHas(m *machine) bool {
	sub, subok := m.pop()
	s, sok := m.pop()
	if !subok || !sok {
		m.fail("STR_HAS on empty stack")
		return false
	}
	m.push(vmvalue.Bool(stringContains(s.String(), sub.String())))
	s.Release()
	sub.Release()
	return true
}

func stringContains(s, sub string) bool {
	if sub == "" {
		return true
	}
	n, mLen := len(s), len(sub)
	for i := 0; i+mLen <= n; i++ {
		if s[i:i+mLen] == sub {
			return true
		}
	}
	return false
}
