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
	"encoding/binary"

	"github.com/vega-lang/vega/internal/vmerr"
)

// Load parses a complete .vgb image from raw bytes. It validates magic and
// version before touching anything else, then reads the function table,
// agent table, constant pool and code section in that fixed order (spec
// §4.1). Load is pure: it allocates only image-owned buffers and performs
// no I/O itself; callers read the file and pass the bytes in.
func Load(data []byte) (*Image, error) {
	if len(data) < HeaderSize {
		return nil, vmerr.NewImageError("truncated header: got %d bytes, need %d", len(data), HeaderSize)
	}

	hdr := Header{
		Magic:         binary.LittleEndian.Uint32(data[0:4]),
		Version:       binary.LittleEndian.Uint16(data[4:6]),
		Flags:         binary.LittleEndian.Uint16(data[6:8]),
		ConstPoolSize: binary.LittleEndian.Uint32(data[8:12]),
		CodeSize:      binary.LittleEndian.Uint32(data[12:16]),
		FuncCount:     binary.LittleEndian.Uint16(data[16:18]),
		AgentCount:    binary.LittleEndian.Uint16(data[18:20]),
	}

	if hdr.Magic != Magic {
		return nil, vmerr.NewImageError("bad magic: got %#x, want %#x", hdr.Magic, Magic)
	}
	if hdr.Version != Version {
		return nil, vmerr.NewImageError("unsupported version: got %d, want %d", hdr.Version, Version)
	}

	off := HeaderSize

	funcTableSize := int(hdr.FuncCount) * FunctionDefSize
	if off+funcTableSize > len(data) {
		return nil, vmerr.NewImageError("truncated function table")
	}
	functions := make([]FunctionDef, hdr.FuncCount)
	for i := range functions {
		b := data[off : off+FunctionDefSize]
		functions[i] = FunctionDef{
			NameIdx:    binary.LittleEndian.Uint16(b[0:2]),
			Params:     binary.LittleEndian.Uint16(b[2:4]),
			Locals:     binary.LittleEndian.Uint16(b[4:6]),
			CodeOffset: binary.LittleEndian.Uint32(b[6:10]),
			CodeLength: binary.LittleEndian.Uint32(b[10:14]),
		}
		off += FunctionDefSize
	}

	agentTableSize := int(hdr.AgentCount) * AgentDefSize
	if off+agentTableSize > len(data) {
		return nil, vmerr.NewImageError("truncated agent table")
	}
	agents := make([]AgentDef, hdr.AgentCount)
	for i := range agents {
		b := data[off : off+AgentDefSize]
		agents[i] = AgentDef{
			NameIdx:   binary.LittleEndian.Uint16(b[0:2]),
			ModelIdx:  binary.LittleEndian.Uint16(b[2:4]),
			SystemIdx: binary.LittleEndian.Uint16(b[4:6]),
			ToolCount: binary.LittleEndian.Uint16(b[6:8]),
			TempX100:  binary.LittleEndian.Uint16(b[8:10]),
		}
		off += AgentDefSize
	}

	if off+int(hdr.ConstPoolSize) > len(data) {
		return nil, vmerr.NewImageError("truncated constant pool: declared %d bytes", hdr.ConstPoolSize)
	}
	pool := data[off : off+int(hdr.ConstPoolSize)]
	off += int(hdr.ConstPoolSize)

	if off+int(hdr.CodeSize) > len(data) {
		return nil, vmerr.NewImageError("truncated code section: declared %d bytes", hdr.CodeSize)
	}
	code := data[off : off+int(hdr.CodeSize)]

	return &Image{
		Header:     hdr,
		Functions:  functions,
		Agents:     agents,
		Pool:       pool,
		Code:       code,
		constCache: make(map[uint32]cachedConst),
	}, nil
}

// Serialize writes img back out as .vgb bytes. load(Serialize(img)) round
// trips bit-exactly for any image produced by Load (spec §8 property 8),
// because Load retains the raw Pool/Code byte slices verbatim rather than
// re-encoding them.
func (img *Image) Serialize() []byte {
	funcTableSize := len(img.Functions) * FunctionDefSize
	agentTableSize := len(img.Agents) * AgentDefSize
	total := HeaderSize + funcTableSize + agentTableSize + len(img.Pool) + len(img.Code)
	out := make([]byte, total)

	binary.LittleEndian.PutUint32(out[0:4], Magic)
	binary.LittleEndian.PutUint16(out[4:6], Version)
	binary.LittleEndian.PutUint16(out[6:8], img.Header.Flags)
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(img.Pool)))
	binary.LittleEndian.PutUint32(out[12:16], uint32(len(img.Code)))
	binary.LittleEndian.PutUint16(out[16:18], uint16(len(img.Functions)))
	binary.LittleEndian.PutUint16(out[18:20], uint16(len(img.Agents)))

	off := HeaderSize
	for _, fn := range img.Functions {
		b := out[off : off+FunctionDefSize]
		binary.LittleEndian.PutUint16(b[0:2], fn.NameIdx)
		binary.LittleEndian.PutUint16(b[2:4], fn.Params)
		binary.LittleEndian.PutUint16(b[4:6], fn.Locals)
		binary.LittleEndian.PutUint32(b[6:10], fn.CodeOffset)
		binary.LittleEndian.PutUint32(b[10:14], fn.CodeLength)
		off += FunctionDefSize
	}
	for _, ag := range img.Agents {
		b := out[off : off+AgentDefSize]
		binary.LittleEndian.PutUint16(b[0:2], ag.NameIdx)
		binary.LittleEndian.PutUint16(b[2:4], ag.ModelIdx)
		binary.LittleEndian.PutUint16(b[4:6], ag.SystemIdx)
		binary.LittleEndian.PutUint16(b[6:8], ag.ToolCount)
		binary.LittleEndian.PutUint16(b[8:10], ag.TempX100)
		off += AgentDefSize
	}
	copy(out[off:], img.Pool)
	off += len(img.Pool)
	copy(out[off:], img.Code)

	return out
}
