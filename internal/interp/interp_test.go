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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vega-lang/vega/internal/agentrt"
	"github.com/vega-lang/vega/internal/budget"
	"github.com/vega-lang/vega/internal/bytecode"
	"github.com/vega-lang/vega/internal/httpseam"
	"github.com/vega-lang/vega/internal/proc"
	"github.com/vega-lang/vega/internal/trace"
	"github.com/vega-lang/vega/internal/vmvalue"
)

// newTestInterpreter wires a fresh Interpreter against mod's built image
// with no-op ambient services, the way the agent e2e tests wire in a real
// httpseam.Client -- this helper is for pure-VM opcode tests that never
// spawn an agent.
func newTestInterpreter(t *testing.T, mod *bytecode.Module) *Interpreter {
	t.Helper()
	img := mod.Build()
	client := httpseam.NewClient("test-key", "http://unused.invalid")
	bus := trace.NewBus()
	acct := budget.New(budget.Limits{})
	sched := proc.NewScheduler()
	mgr := agentrt.NewManager(img, client, bus, acct, sched)
	return New(context.Background(), img, mgr, sched, bus, &vmvalue.Arena{})
}

func TestArithmeticPrecedence(t *testing.T) {
	mod := bytecode.NewModule()
	body := bytecode.NewCodeBuilder().
		PushInt(2).PushInt(3).PushInt(4).Mul().Add().
		Return()
	mod.AddFunction("main", 0, 0, body)

	it := newTestInterpreter(t, mod)
	result, err := it.RunMain()
	require.NoError(t, err)
	assert.Equal(t, int64(14), result.AsInt())
}

func TestStringConcat(t *testing.T) {
	mod := bytecode.NewModule()
	fooIdx := mod.Intern("foo")
	barIdx := mod.Intern("bar")
	body := bytecode.NewCodeBuilder().
		PushConst(fooIdx).PushConst(barIdx).StrConcat().
		Return()
	mod.AddFunction("main", 0, 0, body)

	it := newTestInterpreter(t, mod)
	result, err := it.RunMain()
	require.NoError(t, err)
	assert.Equal(t, "foobar", result.AsString())
}

func TestStrHas(t *testing.T) {
	mod := bytecode.NewModule()
	hayIdx := mod.Intern("haystack")
	needleIdx := mod.Intern("stack")
	body := bytecode.NewCodeBuilder().
		PushConst(hayIdx).PushConst(needleIdx).StrHas().
		Return()
	mod.AddFunction("main", 0, 0, body)

	it := newTestInterpreter(t, mod)
	result, err := it.RunMain()
	require.NoError(t, err)
	assert.True(t, result.Truthy())
}

// TestFactorialRecursion exercises CALL/RETURN's frame protocol across a
// genuinely recursive function (spec §4.2: "stack layout before CALL argc").
func TestFactorialRecursion(t *testing.T) {
	mod := bytecode.NewModule()

	// factorial(n): if n <= 1 return 1; return n * factorial(n-1)
	fact := bytecode.NewCodeBuilder()
	fact.LoadLocal(0).PushInt(1).Le() // n <= 1
	jumpIfNotOffset := fact.Len() + 1
	fact.JumpIfNot(0) // patched below
	fact.PushInt(1).Return()
	baseCaseEnd := fact.Len()
	fact.PatchI16(jumpIfNotOffset, int16(baseCaseEnd-(jumpIfNotOffset+2)))

	fact.LoadLocal(0).LoadLocal(0).PushInt(1).Sub()
	fact.LoadGlobal(uint16(mod.Intern("factorial")))
	fact.Call(1)
	fact.Mul()
	fact.Return()

	mod.AddFunction("factorial", 1, 1, fact)

	main := bytecode.NewCodeBuilder()
	main.PushInt(5)
	main.LoadGlobal(uint16(mod.Intern("factorial")))
	main.Call(1)
	main.Return()
	mod.AddFunction("main", 0, 0, main)

	it := newTestInterpreter(t, mod)
	result, err := it.RunMain()
	require.NoError(t, err)
	assert.Equal(t, int64(120), result.AsInt())
}

func TestComparisonAndLogical(t *testing.T) {
	mod := bytecode.NewModule()
	body := bytecode.NewCodeBuilder().
		PushInt(3).PushInt(5).Lt(). // true
		PushInt(5).PushInt(5).Ge(). // true
		And().
		Return()
	mod.AddFunction("main", 0, 0, body)

	it := newTestInterpreter(t, mod)
	result, err := it.RunMain()
	require.NoError(t, err)
	assert.True(t, result.Truthy())
}

func TestGlobalsStoreLoad(t *testing.T) {
	mod := bytecode.NewModule()
	nameIdx := mod.Intern("counter")
	body := bytecode.NewCodeBuilder().
		PushInt(41).StoreGlobal(uint16(nameIdx)).
		LoadGlobal(uint16(nameIdx)).PushInt(1).Add().
		Return()
	mod.AddFunction("main", 0, 0, body)

	it := newTestInterpreter(t, mod)
	result, err := it.RunMain()
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.AsInt())
}

func TestArrayPushGetLen(t *testing.T) {
	mod := bytecode.NewModule()
	body := bytecode.NewCodeBuilder().
		ArrayNew(4).
		PushInt(10).ArrayPush().
		PushInt(20).ArrayPush().
		Dup().ArrayLen(). // leaves [arr, len] -- pop len to inspect, then re-fetch element
		Pop().
		PushInt(1).ArrayGet().
		Return()
	mod.AddFunction("main", 0, 0, body)

	it := newTestInterpreter(t, mod)
	result, err := it.RunMain()
	require.NoError(t, err)
	assert.Equal(t, int64(20), result.AsInt())
}

func TestResultOkUnwrap(t *testing.T) {
	mod := bytecode.NewModule()
	body := bytecode.NewCodeBuilder().
		PushInt(7).ResultOk().
		Dup().ResultIsOk(). // leaves [result, bool]
		Pop().
		ResultUnwrap().
		Return()
	mod.AddFunction("main", 0, 0, body)

	it := newTestInterpreter(t, mod)
	result, err := it.RunMain()
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.AsInt())
}

func TestControlFlowJump(t *testing.T) {
	mod := bytecode.NewModule()
	body := bytecode.NewCodeBuilder()
	body.PushTrue()
	jumpIfOperand := body.Len() + 1
	body.JumpIf(0)
	body.PushInt(0).Return() // skipped
	target := body.Len()
	body.PatchI16(jumpIfOperand, int16(target-(jumpIfOperand+2)))
	body.PushInt(99).Return()
	mod.AddFunction("main", 0, 0, body)

	it := newTestInterpreter(t, mod)
	result, err := it.RunMain()
	require.NoError(t, err)
	assert.Equal(t, int64(99), result.AsInt())
}

func TestCallNativeStrLen(t *testing.T) {
	mod := bytecode.NewModule()
	strIdx := mod.Intern("hello")
	nameIdx := mod.Intern("str::len")
	body := bytecode.NewCodeBuilder().
		PushConst(strIdx).
		CallNative(uint16(nameIdx)).
		Return()
	mod.AddFunction("main", 0, 0, body)

	it := newTestInterpreter(t, mod)
	result, err := it.RunMain()
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.AsInt())
}

func TestGetFieldUnimplementedFails(t *testing.T) {
	mod := bytecode.NewModule()
	body := bytecode.NewCodeBuilder().
		PushNull().GetField().
		Return()
	mod.AddFunction("main", 0, 0, body)

	it := newTestInterpreter(t, mod)
	_, err := it.RunMain()
	require.Error(t, err)
}

func TestNoMainFunctionErrors(t *testing.T) {
	mod := bytecode.NewModule()
	body := bytecode.NewCodeBuilder().PushInt(1).Return()
	mod.AddFunction("notmain", 0, 0, body)

	it := newTestInterpreter(t, mod)
	_, err := it.RunMain()
	require.Error(t, err)
}
