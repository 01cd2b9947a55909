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

// Package interp implements the Interpreter (spec §4.2): opcode dispatch,
// the value/frame stacks, globals, and the scheduler-driven run loop that
// ties the Agent Manager and Process subsystem together.
package interp

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/vega-lang/vega/internal/agentrt"
	"github.com/vega-lang/vega/internal/bytecode"
	"github.com/vega-lang/vega/internal/proc"
	"github.com/vega-lang/vega/internal/trace"
	"github.com/vega-lang/vega/internal/vmerr"
	"github.com/vega-lang/vega/internal/vmvalue"
)

// MaxValueStack bounds a machine's working value stack (spec §3: Process
// private stack, ≤ 256).
const MaxValueStack = proc.MaxValueStack

// MaxFrameStack bounds a machine's working frame stack (spec §3, ≤ 32).
const MaxFrameStack = proc.MaxFrameStack

// machine is one interpreter's worth of live register state: the value
// stack, frame stack, instruction pointer, and the halting-error flag.
// It is never a field of Interpreter -- RunMain's scheduler loop and
// RunFunction's tool-body sub-calls each carry their own machine, so the
// only state genuinely shared between the interpreter thread and a
// concurrently-running RunFunction goroutine is Interpreter.globals
// (mutex-guarded) and the vmvalue.Arena's atomic counters (spec §5, §9).
type machine struct {
	vstack []vmvalue.Value
	fstack []proc.Frame
	ip     int

	hadError bool
	errMsg   string
}

func (m *machine) fail(format string, args ...any) {
	m.hadError = true
	m.errMsg = fmt.Sprintf(format, args...)
}

func (m *machine) push(v vmvalue.Value) {
	m.vstack = append(m.vstack, v)
}

func (m *machine) pop() (vmvalue.Value, bool) {
	n := len(m.vstack)
	if n == 0 {
		return vmvalue.Null, false
	}
	v := m.vstack[n-1]
	m.vstack = m.vstack[:n-1]
	return v, true
}

func (m *machine) peek() (vmvalue.Value, bool) {
	n := len(m.vstack)
	if n == 0 {
		return vmvalue.Null, false
	}
	return m.vstack[n-1], true
}

// Interpreter is the stack-based VM described in spec §4.2: one instance
// holds the image and the ambient services (agent manager, scheduler,
// trace bus, globals, natives), and steps whichever machine it is handed.
type Interpreter struct {
	image      *bytecode.Image
	manager    *agentrt.Manager
	scheduler  *proc.Scheduler
	bus        *trace.Bus
	arena      *vmvalue.Arena
	supervisor *proc.Supervisor

	globalsMu sync.Mutex
	globals   map[string]vmvalue.Value

	natives map[string]nativeFunc

	ctx context.Context
}

// New constructs an Interpreter bound to image and its ambient services.
// The returned Interpreter installs itself on manager as the ToolRunner
// that closes the tool-use sub-loop's callback.
func New(ctx context.Context, image *bytecode.Image, manager *agentrt.Manager, scheduler *proc.Scheduler, bus *trace.Bus, arena *vmvalue.Arena) *Interpreter {
	if arena == nil {
		arena = vmvalue.DefaultArena
	}
	it := &Interpreter{
		image:     image,
		manager:   manager,
		scheduler: scheduler,
		bus:       bus,
		arena:     arena,
		globals:   make(map[string]vmvalue.Value),
		ctx:       ctx,
	}
	it.natives = buildNativeTable()
	it.supervisor = proc.NewSupervisor(scheduler, it.respawn)
	manager.SetToolRunner(it)
	return it
}

// RunMain spawns a bookkeeping process for "main" (spec §9's Process model:
// a process is scheduling bookkeeping, not an independently-run bytecode
// body of its own -- see DESIGN.md) and drives the scheduler until no
// process has work, returning the final top-of-stack result.
func (it *Interpreter) RunMain() (vmvalue.Value, error) {
	fnIdx := it.image.FunctionByName("main")
	if fnIdx < 0 {
		return vmvalue.Null, vmerr.NewImageError("no 'main' function in image")
	}

	p := proc.NewProcess(0, 0, -1)
	it.scheduler.Spawn(p)

	m := &machine{}
	it.enterFrame(m, fnIdx, nil)
	it.swapOut(p, m)

	mainPid := p.Pid
	var result vmvalue.Value
	for it.scheduler.HasWork() {
		cur, ok := it.scheduler.Next()
		if !ok {
			break
		}
		cm := it.swapIn(cur)
		halted, r := it.run(cm, cur)
		it.swapOut(cur, cm)
		if cm.hadError {
			return vmvalue.Null, vmerr.NewVMError("%s", cm.errMsg)
		}
		if halted {
			// Only main carries a real bytecode body; every other
			// registered process is bookkeeping only (spec §9) and
			// trivially "completes" the instant the scheduler visits it
			// with no frames to step -- its halt is not a program result.
			if cur.Pid == mainPid {
				result = r
			}
			cur.State = proc.Exited
			cur.ExitReason = proc.ExitNormal
		}
	}
	return result, nil
}

// swapIn builds a fresh machine from the process's private stack/frames
// (spec §4.5: "swaps the process's private stack/frames into the VM's
// working stack/frames ... bit-identically; no retain/release on transfer").
func (it *Interpreter) swapIn(p *proc.Process) *machine {
	return &machine{vstack: p.ValueStack, fstack: p.FrameStack, ip: p.IP}
}

// swapOut writes m's registers back onto p.
func (it *Interpreter) swapOut(p *proc.Process, m *machine) {
	p.ValueStack = m.vstack
	p.FrameStack = m.fstack
	p.IP = m.ip
}

// enterFrame pushes the initial synthetic frame for fnIdx with args already
// retained onto m's stack (used by RunMain, CALL, and RunFunction alike --
// spec §4.2's frame shape, generalized to every entry point).
func (it *Interpreter) enterFrame(m *machine, fnIdx int, args []vmvalue.Value) {
	fn := it.image.Functions[fnIdx]
	base := len(m.vstack)
	for _, a := range args {
		a.Retain()
		m.vstack = append(m.vstack, a)
	}
	for i := len(args); i < int(fn.Locals); i++ {
		m.vstack = append(m.vstack, vmvalue.Null)
	}
	m.fstack = append(m.fstack, proc.Frame{FunctionID: fnIdx, ReturnIP: m.ip, BasePtr: base})
	m.ip = int(fn.CodeOffset)
}

// run steps m until it yields, blocks, exits, executes HALT, or the frame
// stack empties (a RETURN with no caller halts with the result on the stack,
// per spec §4.2). halted is true only in the last two cases. p is nil when m belongs to an
// isolated RunFunction sub-machine (spec §9's tool-body isolation).
func (it *Interpreter) run(m *machine, p *proc.Process) (halted bool, result vmvalue.Value) {
	for {
		if len(m.fstack) == 0 {
			if len(m.vstack) == 0 {
				return true, vmvalue.Null
			}
			return true, m.vstack[len(m.vstack)-1]
		}
		cont, done, res := it.step(m, p)
		if m.hadError {
			return false, vmvalue.Null
		}
		if done {
			return true, res
		}
		if !cont {
			return false, vmvalue.Null
		}
	}
}

// step executes exactly one opcode against m. cont is false when the
// process suspended (YIELD, a pending SEND_MSG/AWAIT poll) and should be
// returned to the ready/wait queue instead of stepped again this turn. done
// is true on a top-level RETURN (halt).
func (it *Interpreter) step(m *machine, p *proc.Process) (cont bool, done bool, result vmvalue.Value) {
	if m.ip < 0 || m.ip >= len(it.image.Code) {
		m.fail("instruction pointer out of range at %d", m.ip)
		return false, false, vmvalue.Null
	}
	op := bytecode.Op(it.image.Code[m.ip])
	m.ip++

	switch op {
	case bytecode.OpNop:
		// no-op

	case bytecode.OpPushConst:
		idx := it.readU16(m)
		m.push(it.constValue(uint32(idx)))
	case bytecode.OpPushInt:
		v := it.readI32(m)
		m.push(vmvalue.Int(int64(v)))
	case bytecode.OpPushTrue:
		m.push(vmvalue.Bool(true))
	case bytecode.OpPushFalse:
		m.push(vmvalue.Bool(false))
	case bytecode.OpPushNull:
		m.push(vmvalue.Null)
	case bytecode.OpPop:
		v, ok := m.pop()
		if ok {
			v.Release()
		}
	case bytecode.OpDup:
		v, ok := m.peek()
		if !ok {
			m.fail("DUP on empty stack")
			return false, false, vmvalue.Null
		}
		v.Retain()
		m.push(v)

	case bytecode.OpLoadLocal:
		slot := it.readU8(m)
		base := m.fstack[len(m.fstack)-1].BasePtr
		idx := base + int(slot)
		if idx < 0 || idx >= len(m.vstack) {
			m.fail("LOAD_LOCAL slot %d out of range", slot)
			return false, false, vmvalue.Null
		}
		v := m.vstack[idx]
		v.Retain()
		m.push(v)
	case bytecode.OpStoreLocal:
		slot := it.readU8(m)
		v, ok := m.pop()
		if !ok {
			m.fail("STORE_LOCAL on empty stack")
			return false, false, vmvalue.Null
		}
		base := m.fstack[len(m.fstack)-1].BasePtr
		idx := base + int(slot)
		if idx < 0 || idx >= len(m.vstack) {
			m.fail("STORE_LOCAL slot %d out of range", slot)
			return false, false, vmvalue.Null
		}
		m.vstack[idx].Release()
		m.vstack[idx] = v
	case bytecode.OpLoadGlobal:
		idx := it.readU16(m)
		m.push(it.loadGlobal(uint32(idx)))
	case bytecode.OpStoreGlobal:
		idx := it.readU16(m)
		v, ok := m.pop()
		if !ok {
			m.fail("STORE_GLOBAL on empty stack")
			return false, false, vmvalue.Null
		}
		name := it.image.ConstStringAt(uint32(idx))
		it.globalsMu.Lock()
		if old, exists := it.globals[name]; exists {
			old.Release()
		}
		it.globals[name] = v
		it.globalsMu.Unlock()

	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod:
		if !it.binaryArith(m, op) {
			return false, false, vmvalue.Null
		}
	case bytecode.OpNeg:
		v, ok := m.pop()
		if !ok {
			m.fail("NEG on empty stack")
			return false, false, vmvalue.Null
		}
		switch v.Kind() {
		case vmvalue.KindInt:
			m.push(vmvalue.Int(-v.AsInt()))
		case vmvalue.KindFloat:
			m.push(vmvalue.Float(-v.AsFloat()))
		default:
			m.push(vmvalue.Null)
		}
		v.Release()

	case bytecode.OpEq, bytecode.OpNe, bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe:
		if !it.compare(m, op) {
			return false, false, vmvalue.Null
		}

	case bytecode.OpNot:
		v, ok := m.pop()
		if !ok {
			m.fail("NOT on empty stack")
			return false, false, vmvalue.Null
		}
		m.push(vmvalue.Bool(!v.Truthy()))
		v.Release()
	case bytecode.OpAnd:
		b, bok := m.pop()
		a, aok := m.pop()
		if !aok || !bok {
			m.fail("AND on empty stack")
			return false, false, vmvalue.Null
		}
		m.push(vmvalue.Bool(a.Truthy() && b.Truthy()))
		a.Release()
		b.Release()
	case bytecode.OpOr:
		b, bok := m.pop()
		a, aok := m.pop()
		if !aok || !bok {
			m.fail("OR on empty stack")
			return false, false, vmvalue.Null
		}
		m.push(vmvalue.Bool(a.Truthy() || b.Truthy()))
		a.Release()
		b.Release()

	case bytecode.OpJump:
		off := it.readI16(m)
		m.ip += int(off)
	case bytecode.OpJumpIf:
		off := it.readI16(m)
		v, ok := m.pop()
		if !ok {
			m.fail("JUMP_IF on empty stack")
			return false, false, vmvalue.Null
		}
		if v.Truthy() {
			m.ip += int(off)
		}
		v.Release()
	case bytecode.OpJumpIfNot:
		off := it.readI16(m)
		v, ok := m.pop()
		if !ok {
			m.fail("JUMP_IF_NOT on empty stack")
			return false, false, vmvalue.Null
		}
		if !v.Truthy() {
			m.ip += int(off)
		}
		v.Release()

	case bytecode.OpCall:
		argc := it.readU8(m)
		if !it.execCall(m, int(argc)) {
			return false, false, vmvalue.Null
		}
	case bytecode.OpReturn:
		halted, res := it.execReturn(m)
		if m.hadError {
			return false, false, vmvalue.Null
		}
		if halted {
			return true, true, res
		}
	case bytecode.OpCallNative:
		idx := it.readU16(m)
		it.execCallNative(m, uint32(idx))

	case bytecode.OpSpawnAgent:
		idx := it.readU16(m)
		it.execSpawnAgent(m, idx)
	case bytecode.OpSpawnAsync:
		idx := it.readU16(m)
		it.execSpawnAgent(m, idx) // no distinct "pending spawn" state modeled; synchronous resolve (see DESIGN.md)
	case bytecode.OpSpawnSupervised:
		nameIdx := it.readU16(m)
		strategy := it.readU8(m)
		maxRestarts := it.readU32(m)
		windowMs := it.readU32(m)
		if !it.requireProcess(m, p, "SPAWN_SUPERVISED") {
			return false, false, vmvalue.Null
		}
		it.execSpawnSupervised(m, p, nameIdx, strategy, maxRestarts, windowMs)
	case bytecode.OpSendMsg:
		if !it.requireProcess(m, p, "SEND_MSG") {
			return false, false, vmvalue.Null
		}
		if !it.execSendMsg(m, p) {
			return false, false, vmvalue.Null // suspended; caller yields
		}
	case bytecode.OpSendAsync:
		if !it.requireProcess(m, p, "SEND_ASYNC") {
			return false, false, vmvalue.Null
		}
		it.execSendAsync(m)
	case bytecode.OpAwait:
		if !it.requireProcess(m, p, "AWAIT") {
			return false, false, vmvalue.Null
		}
		if !it.execAwait(m) {
			return false, false, vmvalue.Null
		}

	case bytecode.OpGetField, bytecode.OpSetField:
		// No Map heap object is modeled (spec §3 lists Map in the kind tag
		// set but no Map type is otherwise specified); fields are not
		// reachable from any construct this runtime implements.
		m.fail("%s: no object/map type is implemented", op)
		return false, false, vmvalue.Null
	case bytecode.OpCallMethod:
		nameIdx := it.readU16(m)
		argc := it.readU8(m)
		if !it.execCallMethod(m, uint32(nameIdx), int(argc)) {
			return false, false, vmvalue.Null
		}

	case bytecode.OpStrConcat:
		if !it.execStrConcat(m) {
			return false, false, vmvalue.Null
		}
	case bytecode.OpStrHas:
		if !it.execStrHas(m) {
			return false, false, vmvalue.Null
		}

	case bytecode.OpYield:
		if !it.requireProcess(m, p, "YIELD") {
			return false, false, vmvalue.Null
		}
		it.scheduler.Yield()
		return false, false, vmvalue.Null
	case bytecode.OpExitProcess:
		reason := it.readU8(m)
		if !it.requireProcess(m, p, "EXIT_PROCESS") {
			return false, false, vmvalue.Null
		}
		it.execExitProcess(p, bytecode.ExitReason(reason))
		return false, false, vmvalue.Null
	case bytecode.OpLink, bytecode.OpMonitor:
		if !it.requireProcess(m, p, op.String()) {
			return false, false, vmvalue.Null
		}
		it.execLink(m, p)

	case bytecode.OpResultOk:
		v, ok := m.pop()
		if !ok {
			m.fail("RESULT_OK on empty stack")
			return false, false, vmvalue.Null
		}
		r := vmvalue.NewOkResult(it.arena, v)
		v.Release()
		m.push(vmvalue.FromRef(vmvalue.KindResult, r))
	case bytecode.OpResultErr:
		v, ok := m.pop()
		if !ok {
			m.fail("RESULT_ERR on empty stack")
			return false, false, vmvalue.Null
		}
		r := vmvalue.NewErrResult(it.arena, v)
		v.Release()
		m.push(vmvalue.FromRef(vmvalue.KindResult, r))
	case bytecode.OpResultIsOk:
		v, ok := m.pop()
		if !ok {
			m.fail("RESULT_IS_OK on empty stack")
			return false, false, vmvalue.Null
		}
		r := v.AsResult()
		if r == nil {
			m.fail("RESULT_IS_OK on a non-Result value")
			return false, false, vmvalue.Null
		}
		m.push(vmvalue.Bool(r.IsOk()))
		v.Release()
	case bytecode.OpResultUnwrap:
		v, ok := m.pop()
		if !ok {
			m.fail("RESULT_UNWRAP on empty stack")
			return false, false, vmvalue.Null
		}
		r := v.AsResult()
		if r == nil {
			m.fail("RESULT_UNWRAP on a non-Result value")
			return false, false, vmvalue.Null
		}
		payload := r.Unwrap()
		payload.Retain()
		m.push(payload)
		v.Release()

	case bytecode.OpArrayNew:
		cap16 := it.readU16(m)
		arr := vmvalue.NewArray(it.arena, int(cap16))
		m.push(vmvalue.FromRef(vmvalue.KindArray, arr))
	case bytecode.OpArrayPush:
		val, vok := m.pop()
		arrVal, aok := m.pop()
		if !vok || !aok {
			m.fail("ARRAY_PUSH on empty stack")
			return false, false, vmvalue.Null
		}
		arr := arrVal.AsArray()
		if arr == nil {
			m.fail("ARRAY_PUSH on a non-Array value")
			return false, false, vmvalue.Null
		}
		arr.Push(val)
		val.Release()
		m.push(arrVal)
	case bytecode.OpArrayGet:
		idxVal, iok := m.pop()
		arrVal, aok := m.pop()
		if !iok || !aok {
			m.fail("ARRAY_GET on empty stack")
			return false, false, vmvalue.Null
		}
		arr := arrVal.AsArray()
		if arr == nil {
			m.fail("ARRAY_GET on a non-Array value")
			return false, false, vmvalue.Null
		}
		v, found := arr.Get(int(idxVal.AsInt()))
		if found {
			v.Retain()
			m.push(v)
		} else {
			m.push(vmvalue.Null)
		}
		idxVal.Release()
		arrVal.Release()
	case bytecode.OpArraySet:
		val, vok := m.pop()
		idxVal, iok := m.pop()
		arrVal, aok := m.pop()
		if !vok || !iok || !aok {
			m.fail("ARRAY_SET on empty stack")
			return false, false, vmvalue.Null
		}
		arr := arrVal.AsArray()
		if arr == nil {
			m.fail("ARRAY_SET on a non-Array value")
			return false, false, vmvalue.Null
		}
		arr.Set(int(idxVal.AsInt()), val)
		val.Release()
		idxVal.Release()
		m.push(arrVal)
	case bytecode.OpArrayLen:
		arrVal, ok := m.pop()
		if !ok {
			m.fail("ARRAY_LEN on empty stack")
			return false, false, vmvalue.Null
		}
		arr := arrVal.AsArray()
		if arr == nil {
			m.fail("ARRAY_LEN on a non-Array value")
			return false, false, vmvalue.Null
		}
		m.push(vmvalue.Int(int64(arr.Len())))
		arrVal.Release()

	case bytecode.OpPrint:
		v, ok := m.pop()
		if !ok {
			m.fail("PRINT on empty stack")
			return false, false, vmvalue.Null
		}
		it.execPrint(v)
		v.Release()
	case bytecode.OpHalt:
		res, ok := m.peek()
		if !ok {
			res = vmvalue.Null
		}
		return true, true, res

	default:
		m.fail("unknown opcode %d", byte(op))
		return false, false, vmvalue.Null
	}

	return true, false, vmvalue.Null
}

func (it *Interpreter) readU8(m *machine) uint8 {
	v := it.image.Code[m.ip]
	m.ip++
	return v
}

func (it *Interpreter) readU16(m *machine) uint16 {
	v := binary.LittleEndian.Uint16(it.image.Code[m.ip : m.ip+2])
	m.ip += 2
	return v
}

func (it *Interpreter) readI16(m *machine) int16 { return int16(it.readU16(m)) }

func (it *Interpreter) readU32(m *machine) uint32 {
	v := binary.LittleEndian.Uint32(it.image.Code[m.ip : m.ip+4])
	m.ip += 4
	return v
}

func (it *Interpreter) readI32(m *machine) int32 { return int32(it.readU32(m)) }

// constValue resolves a constant-pool entry (addressed by the u16 operand
// cast up to the pool's byte-offset space) into a Value.
func (it *Interpreter) constValue(idx uint32) vmvalue.Value {
	if i, ok := it.image.ConstInt(idx); ok {
		return vmvalue.Int(i)
	}
	if f, ok := it.image.ConstFloat(idx); ok {
		return vmvalue.Float(f)
	}
	s := it.image.ConstStringAt(idx)
	str := vmvalue.NewString(it.arena, s)
	str.Intern() // constant-pool strings are shared for the image lifetime
	return vmvalue.FromRef(vmvalue.KindStr, str)
}

// loadGlobal resolves idx's name first against the globals table, then
// falls back to a function reference (spec §4.2 LOAD_GLOBAL note).
func (it *Interpreter) loadGlobal(idx uint32) vmvalue.Value {
	name := it.image.ConstStringAt(idx)
	it.globalsMu.Lock()
	v, ok := it.globals[name]
	it.globalsMu.Unlock()
	if ok {
		v.Retain()
		return v
	}
	if fnIdx := it.image.FunctionByName(name); fnIdx >= 0 {
		return vmvalue.Function(uint32(fnIdx))
	}
	return vmvalue.Null
}

// requireProcess enforces that process-owning opcodes are never executed
// from an isolated RunFunction sub-machine (p is nil there): spec §5's
// scheduling model has no meaning for a tool-body sub-call.
func (it *Interpreter) requireProcess(m *machine, p *proc.Process, opName string) bool {
	if p == nil {
		m.fail("%s used outside a scheduled process", opName)
		return false
	}
	return true
}

func (it *Interpreter) execPrint(v vmvalue.Value) {
	text := v.String()
	if it.bus != nil && it.bus.HasSubscribers() {
		it.bus.Publish(trace.Event{Kind: trace.PrintEvent, Data: text})
		return
	}
	fmt.Println(text)
}
