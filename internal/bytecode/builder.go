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

import "encoding/binary"

// CodeBuilder assembles a function's code bytes in-memory. It exists for
// tests (and any embedder wanting to construct images without a full
// front-end); the real compiler referenced by spec §1 is out of scope.
type CodeBuilder struct {
	buf []byte
}

func NewCodeBuilder() *CodeBuilder { return &CodeBuilder{} }

func (b *CodeBuilder) Len() int { return len(b.buf) }

func (b *CodeBuilder) op(o Op) *CodeBuilder {
	b.buf = append(b.buf, byte(o))
	return b
}

func (b *CodeBuilder) u8(v uint8) *CodeBuilder {
	b.buf = append(b.buf, v)
	return b
}

func (b *CodeBuilder) u16(v uint16) *CodeBuilder {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
	return b
}

func (b *CodeBuilder) u32(v uint32) *CodeBuilder {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
	return b
}

func (b *CodeBuilder) i16(v int16) *CodeBuilder { return b.u16(uint16(v)) }
func (b *CodeBuilder) i32(v int32) *CodeBuilder { return b.u32(uint32(v)) }

func (b *CodeBuilder) Nop() *CodeBuilder             { return b.op(OpNop) }
func (b *CodeBuilder) PushConst(idx uint32) *CodeBuilder {
	return b.op(OpPushConst).u16(uint16(idx))
}
func (b *CodeBuilder) PushInt(v int32) *CodeBuilder { return b.op(OpPushInt).i32(v) }
func (b *CodeBuilder) PushTrue() *CodeBuilder        { return b.op(OpPushTrue) }
func (b *CodeBuilder) PushFalse() *CodeBuilder       { return b.op(OpPushFalse) }
func (b *CodeBuilder) PushNull() *CodeBuilder        { return b.op(OpPushNull) }
func (b *CodeBuilder) Pop() *CodeBuilder             { return b.op(OpPop) }
func (b *CodeBuilder) Dup() *CodeBuilder              { return b.op(OpDup) }

func (b *CodeBuilder) LoadLocal(slot uint8) *CodeBuilder  { return b.op(OpLoadLocal).u8(slot) }
func (b *CodeBuilder) StoreLocal(slot uint8) *CodeBuilder { return b.op(OpStoreLocal).u8(slot) }
func (b *CodeBuilder) LoadGlobal(idx uint16) *CodeBuilder  { return b.op(OpLoadGlobal).u16(idx) }
func (b *CodeBuilder) StoreGlobal(idx uint16) *CodeBuilder { return b.op(OpStoreGlobal).u16(idx) }

func (b *CodeBuilder) Add() *CodeBuilder { return b.op(OpAdd) }
func (b *CodeBuilder) Sub() *CodeBuilder { return b.op(OpSub) }
func (b *CodeBuilder) Mul() *CodeBuilder { return b.op(OpMul) }
func (b *CodeBuilder) Div() *CodeBuilder { return b.op(OpDiv) }
func (b *CodeBuilder) Mod() *CodeBuilder { return b.op(OpMod) }
func (b *CodeBuilder) Neg() *CodeBuilder { return b.op(OpNeg) }

func (b *CodeBuilder) Eq() *CodeBuilder { return b.op(OpEq) }
func (b *CodeBuilder) Ne() *CodeBuilder { return b.op(OpNe) }
func (b *CodeBuilder) Lt() *CodeBuilder { return b.op(OpLt) }
func (b *CodeBuilder) Le() *CodeBuilder { return b.op(OpLe) }
func (b *CodeBuilder) Gt() *CodeBuilder { return b.op(OpGt) }
func (b *CodeBuilder) Ge() *CodeBuilder { return b.op(OpGe) }

func (b *CodeBuilder) Not() *CodeBuilder { return b.op(OpNot) }
func (b *CodeBuilder) And() *CodeBuilder { return b.op(OpAnd) }
func (b *CodeBuilder) Or() *CodeBuilder  { return b.op(OpOr) }

// Jump* return the builder for chaining. To backpatch, take Len()+1 before
// the call (the 2-byte operand's offset) and pass it to PatchI16 once the
// target offset is known.
func (b *CodeBuilder) Jump(off int16) *CodeBuilder       { return b.op(OpJump).i16(off) }
func (b *CodeBuilder) JumpIf(off int16) *CodeBuilder     { return b.op(OpJumpIf).i16(off) }
func (b *CodeBuilder) JumpIfNot(off int16) *CodeBuilder  { return b.op(OpJumpIfNot).i16(off) }

func (b *CodeBuilder) PatchI16(operandOffset int, v int16) {
	binary.LittleEndian.PutUint16(b.buf[operandOffset:operandOffset+2], uint16(v))
}

func (b *CodeBuilder) Call(argc uint8) *CodeBuilder     { return b.op(OpCall).u8(argc) }
func (b *CodeBuilder) Return() *CodeBuilder             { return b.op(OpReturn) }
func (b *CodeBuilder) CallNative(nameIdx uint16) *CodeBuilder {
	return b.op(OpCallNative).u16(nameIdx)
}

func (b *CodeBuilder) SpawnAgent(nameIdx uint16) *CodeBuilder { return b.op(OpSpawnAgent).u16(nameIdx) }
func (b *CodeBuilder) SpawnAsync(nameIdx uint16) *CodeBuilder { return b.op(OpSpawnAsync).u16(nameIdx) }
func (b *CodeBuilder) SpawnSupervised(nameIdx uint16, strategy uint8, maxRestarts, windowMs uint32) *CodeBuilder {
	return b.op(OpSpawnSupervised).u16(nameIdx).u8(strategy).u32(maxRestarts).u32(windowMs)
}
func (b *CodeBuilder) SendMsg() *CodeBuilder   { return b.op(OpSendMsg) }
func (b *CodeBuilder) SendAsync() *CodeBuilder { return b.op(OpSendAsync) }
func (b *CodeBuilder) Await() *CodeBuilder     { return b.op(OpAwait) }

func (b *CodeBuilder) GetField() *CodeBuilder { return b.op(OpGetField) }
func (b *CodeBuilder) SetField() *CodeBuilder { return b.op(OpSetField) }
func (b *CodeBuilder) CallMethod(nameIdx uint16, argc uint8) *CodeBuilder {
	return b.op(OpCallMethod).u16(nameIdx).u8(argc)
}

func (b *CodeBuilder) StrConcat() *CodeBuilder { return b.op(OpStrConcat) }
func (b *CodeBuilder) StrHas() *CodeBuilder    { return b.op(OpStrHas) }

func (b *CodeBuilder) Yield() *CodeBuilder                   { return b.op(OpYield) }
func (b *CodeBuilder) ExitProcess(reason ExitReason) *CodeBuilder { return b.op(OpExitProcess).u8(uint8(reason)) }
func (b *CodeBuilder) Link() *CodeBuilder                     { return b.op(OpLink) }
func (b *CodeBuilder) Monitor() *CodeBuilder                  { return b.op(OpMonitor) }

func (b *CodeBuilder) ResultOk() *CodeBuilder     { return b.op(OpResultOk) }
func (b *CodeBuilder) ResultErr() *CodeBuilder    { return b.op(OpResultErr) }
func (b *CodeBuilder) ResultIsOk() *CodeBuilder   { return b.op(OpResultIsOk) }
func (b *CodeBuilder) ResultUnwrap() *CodeBuilder { return b.op(OpResultUnwrap) }

func (b *CodeBuilder) ArrayNew(capacity uint16) *CodeBuilder { return b.op(OpArrayNew).u16(capacity) }
func (b *CodeBuilder) ArrayPush() *CodeBuilder                { return b.op(OpArrayPush) }
func (b *CodeBuilder) ArrayGet() *CodeBuilder                 { return b.op(OpArrayGet) }
func (b *CodeBuilder) ArraySet() *CodeBuilder                 { return b.op(OpArraySet) }
func (b *CodeBuilder) ArrayLen() *CodeBuilder                 { return b.op(OpArrayLen) }

func (b *CodeBuilder) Print() *CodeBuilder { return b.op(OpPrint) }
func (b *CodeBuilder) Halt() *CodeBuilder  { return b.op(OpHalt) }

func (b *CodeBuilder) Bytes() []byte { return b.buf }

// Module assembles a complete Image from named functions, for tests.
type Module struct {
	pool      []byte
	functions []FunctionDef
	agents    []AgentDef
	code      []byte
	names     map[string]uint32 // interned name -> pool offset, dedup
}

func NewModule() *Module {
	return &Module{names: make(map[string]uint32)}
}

// Intern returns the pool offset of s, adding it once.
func (m *Module) Intern(s string) uint32 {
	if off, ok := m.names[s]; ok {
		return off
	}
	var off uint32
	m.pool, off = EncodeStringConst(m.pool, s)
	m.names[s] = off
	return off
}

func (m *Module) InternInt(v int32) uint32 {
	var off uint32
	m.pool, off = EncodeIntConst(m.pool, v)
	return off
}

func (m *Module) InternFloat(v float64) uint32 {
	var off uint32
	m.pool, off = EncodeFloatConst(m.pool, v)
	return off
}

// AddFunction appends fn's code to the code section and registers its
// FunctionDef (codeOffset/codeLength computed from the builder). Returns
// the function's index (its Function-value index).
func (m *Module) AddFunction(name string, params, locals int, body *CodeBuilder) uint32 {
	nameIdx := m.Intern(name)
	offset := uint32(len(m.code))
	m.code = append(m.code, body.Bytes()...)
	m.functions = append(m.functions, FunctionDef{
		NameIdx:    uint16(nameIdx),
		Params:     uint16(params),
		Locals:     uint16(locals),
		CodeOffset: offset,
		CodeLength: uint32(len(body.Bytes())),
	})
	return uint32(len(m.functions) - 1)
}

// AddAgent registers an agent definition.
func (m *Module) AddAgent(name, model, system string, toolCount int, tempX100 uint16) uint32 {
	m.agents = append(m.agents, AgentDef{
		NameIdx:   uint16(m.Intern(name)),
		ModelIdx:  uint16(m.Intern(model)),
		SystemIdx: uint16(m.Intern(system)),
		ToolCount: uint16(toolCount),
		TempX100:  tempX100,
	})
	return uint32(len(m.agents) - 1)
}

// Build finalizes the Module into a loadable Image.
func (m *Module) Build() *Image {
	return &Image{
		Header: Header{
			Magic:         Magic,
			Version:       Version,
			ConstPoolSize: uint32(len(m.pool)),
			CodeSize:      uint32(len(m.code)),
			FuncCount:     uint16(len(m.functions)),
			AgentCount:    uint16(len(m.agents)),
		},
		Functions:  m.functions,
		Agents:     m.agents,
		Pool:       m.pool,
		Code:       m.code,
		constCache: make(map[uint32]cachedConst),
	}
}
