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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vega-lang/vega/internal/bytecode"
)

func runNativeProgram(t *testing.T, build func(mod *bytecode.Module, body *bytecode.CodeBuilder)) (result string) {
	t.Helper()
	mod := bytecode.NewModule()
	body := bytecode.NewCodeBuilder()
	build(mod, body)
	body.Return()
	mod.AddFunction("main", 0, 0, body)

	it := newTestInterpreter(t, mod)
	v, err := it.RunMain()
	require.NoError(t, err)
	return v.String()
}

func callNative(mod *bytecode.Module, body *bytecode.CodeBuilder, name string) {
	body.CallNative(uint16(mod.Intern(name)))
}

func TestNativeStrContains(t *testing.T) {
	out := runNativeProgram(t, func(mod *bytecode.Module, body *bytecode.CodeBuilder) {
		body.PushConst(mod.Intern("haystack")).PushConst(mod.Intern("stack"))
		callNative(mod, body, "str::contains")
	})
	assert.Equal(t, "true", out)
}

func TestNativeStrCharAt(t *testing.T) {
	out := runNativeProgram(t, func(mod *bytecode.Module, body *bytecode.CodeBuilder) {
		body.PushConst(mod.Intern("hello")).PushInt(1)
		callNative(mod, body, "str::char_at")
	})
	assert.Equal(t, "e", out)
}

func TestNativeStrCharLower(t *testing.T) {
	out := runNativeProgram(t, func(mod *bytecode.Module, body *bytecode.CodeBuilder) {
		body.PushConst(mod.Intern("HELLO"))
		callNative(mod, body, "str::char_lower")
	})
	assert.Equal(t, "hello", out)
}

func TestNativeStrFromInt(t *testing.T) {
	out := runNativeProgram(t, func(mod *bytecode.Module, body *bytecode.CodeBuilder) {
		body.PushInt(42)
		callNative(mod, body, "str::from_int")
	})
	assert.Equal(t, "42", out)
}

func TestNativeStrSplitLen(t *testing.T) {
	out := runNativeProgram(t, func(mod *bytecode.Module, body *bytecode.CodeBuilder) {
		body.PushConst(mod.Intern("a,b,c")).PushConst(mod.Intern(","))
		callNative(mod, body, "str::split_len")
	})
	assert.Equal(t, "3", out)
}

func TestNativeJSONGetString(t *testing.T) {
	out := runNativeProgram(t, func(mod *bytecode.Module, body *bytecode.CodeBuilder) {
		body.PushConst(mod.Intern(`{"name":"vega","count":3}`)).PushConst(mod.Intern("name"))
		callNative(mod, body, "json::get_string")
	})
	assert.Equal(t, "vega", out)
}

func TestNativeJSONArrayGet(t *testing.T) {
	out := runNativeProgram(t, func(mod *bytecode.Module, body *bytecode.CodeBuilder) {
		body.PushConst(mod.Intern(`[1,2,3]`)).PushInt(1)
		callNative(mod, body, "json::array_get")
	})
	assert.Equal(t, "2", out)
}

func TestNativeFileRoundTrip(t *testing.T) {
	path := t.TempDir() + "/native.txt"
	out := runNativeProgram(t, func(mod *bytecode.Module, body *bytecode.CodeBuilder) {
		body.PushConst(mod.Intern(path)).PushConst(mod.Intern("hello from vega"))
		callNative(mod, body, "file::write")
		body.Pop()
		body.PushConst(mod.Intern(path))
		callNative(mod, body, "file::read")
	})
	assert.Equal(t, "hello from vega", out)
}

func TestNativeUnknownFunctionFails(t *testing.T) {
	mod := bytecode.NewModule()
	body := bytecode.NewCodeBuilder().
		CallNative(uint16(mod.Intern("nope::nope"))).
		Return()
	mod.AddFunction("main", 0, 0, body)

	it := newTestInterpreter(t, mod)
	_, err := it.RunMain()
	require.Error(t, err)
}
