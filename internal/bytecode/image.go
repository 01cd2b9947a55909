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

// Package bytecode implements the Vega bytecode loader and constant pool
// (spec §4.1, §6): a pure, idempotent reader that validates the header and
// exposes read-only views of the function table, agent table, constant
// pool, and code section to the interpreter and agent manager.
package bytecode

// Magic is the fixed four-byte header magic for .vgb images.
const Magic uint32 = 0x56454741

// Version is the only bytecode format version this loader accepts.
const Version uint16 = 1

// ConstTag identifies the payload shape of one constant-pool entry.
type ConstTag uint8

const (
	ConstTagInt ConstTag = iota
	ConstTagString
	ConstTagFloat
)

// Header mirrors the 20-byte file header (spec §6).
type Header struct {
	Magic         uint32
	Version       uint16
	Flags         uint16
	ConstPoolSize uint32
	CodeSize      uint32
	FuncCount     uint16
	AgentCount    uint16
}

// HeaderSize is the fixed byte size of Header in the image.
const HeaderSize = 4 + 2 + 2 + 4 + 4 + 2 + 2

// FunctionDef is one function-table entry (spec §3, §6).
type FunctionDef struct {
	NameIdx    uint16
	Params     uint16
	Locals     uint16
	CodeOffset uint32
	CodeLength uint32
}

// FunctionDefSize is the on-disk byte size of one FunctionDef.
const FunctionDefSize = 2 + 2 + 2 + 4 + 4

// AgentDef is one agent-table entry (spec §3, §6).
type AgentDef struct {
	NameIdx   uint16
	ModelIdx  uint16
	SystemIdx uint16
	ToolCount uint16
	TempX100  uint16
}

// AgentDefSize is the on-disk byte size of one AgentDef.
const AgentDefSize = 2 + 2 + 2 + 2 + 2

// Image is the loaded, read-only view of a .vgb file (spec §4.1).
type Image struct {
	Header    Header
	Functions []FunctionDef
	Agents    []AgentDef
	Pool      []byte // raw constant pool bytes
	Code      []byte // raw code bytes

	constCache map[uint32]cachedConst
}

type cachedConst struct {
	tag ConstTag
	i   int64
	f   float64
	s   string
}

// FunctionByName returns the index of the function named exactly name, or
// -1. Used by the agent manager to resolve "<Agent>$<tool>" bindings.
func (img *Image) FunctionByName(name string) int {
	for i, fn := range img.Functions {
		if img.ConstString(fn.NameIdx) == name {
			return i
		}
	}
	return -1
}

// ConstString resolves the constant-pool entry at byte offset idx as a
// string. Returns "" if the entry is not a string or the offset is out of
// range — native/VM call sites treat that as a loader defect, not a crash.
func (img *Image) ConstString(idx uint16) string {
	v, err := img.ConstAt(uint32(idx))
	if err != nil || v.tag != ConstTagString {
		return ""
	}
	return v.s
}

// ConstInt resolves the constant-pool entry at byte offset idx as an int.
func (img *Image) ConstInt(idx uint32) (int64, bool) {
	v, err := img.ConstAt(idx)
	if err != nil || v.tag != ConstTagInt {
		return 0, false
	}
	return v.i, true
}

// ConstStringAt is ConstString without the uint16 narrowing, for callers
// (the agent manager's tool-schema lookup) that address the pool with a
// full uint32 offset carried in a function-table field repurposed as a
// constant-pool pointer.
func (img *Image) ConstStringAt(offset uint32) string {
	v, err := img.ConstAt(offset)
	if err != nil || v.tag != ConstTagString {
		return ""
	}
	return v.s
}

// ConstFloat resolves the constant-pool entry at byte offset idx as a float.
func (img *Image) ConstFloat(idx uint32) (float64, bool) {
	v, err := img.ConstAt(idx)
	if err != nil || v.tag != ConstTagFloat {
		return 0, false
	}
	return v.f, true
}
