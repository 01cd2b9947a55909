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

package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildArithmeticModule() *Module {
	m := NewModule()
	body := NewCodeBuilder().
		PushInt(2).PushInt(3).PushInt(4).Mul().Add().Print().Return()
	m.AddFunction("main", 0, 0, body)
	return m
}

func TestLoadBadMagic(t *testing.T) {
	data := make([]byte, HeaderSize)
	_, err := Load(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad magic")
}

func TestLoadTruncated(t *testing.T) {
	_, err := Load([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	m := buildArithmeticModule()
	img := m.Build()

	data := img.Serialize()
	reloaded, err := Load(data)
	require.NoError(t, err)

	assert.Equal(t, img.Header.FuncCount, reloaded.Header.FuncCount)
	assert.Equal(t, img.Code, reloaded.Code)
	assert.Equal(t, img.Pool, reloaded.Pool)

	// Property 8: load(B) then serialize yields bytes equal to B.
	assert.Equal(t, data, reloaded.Serialize())
}

func TestConstPoolEntries(t *testing.T) {
	m := NewModule()
	strOff := m.Intern("hello")
	intOff := m.InternInt(42)
	floatOff := m.InternFloat(3.5)
	img := m.Build()

	assert.Equal(t, "hello", img.ConstString(uint16(strOff)))
	i, ok := img.ConstInt(intOff)
	require.True(t, ok)
	assert.EqualValues(t, 42, i)
	f, ok := img.ConstFloat(floatOff)
	require.True(t, ok)
	assert.InDelta(t, 3.5, f, 1e-9)
}

func TestFunctionByName(t *testing.T) {
	m := buildArithmeticModule()
	img := m.Build()
	idx := img.FunctionByName("main")
	assert.Equal(t, 0, idx)
	assert.Equal(t, -1, img.FunctionByName("nonexistent"))
}
