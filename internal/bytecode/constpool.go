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
	"math"

	"github.com/vega-lang/vega/internal/vmerr"
)

// ConstAt parses the pool entry whose tag byte sits at byte offset idx
// (spec §6: "Entry addresses are byte offsets into the pool"), caching the
// decoded value so repeated PUSH_CONST hits at the same offset are O(1).
func (img *Image) ConstAt(idx uint32) (cachedConst, error) {
	if c, ok := img.constCache[idx]; ok {
		return c, nil
	}
	if int(idx) >= len(img.Pool) {
		return cachedConst{}, vmerr.NewImageError("constant offset %d out of range (pool size %d)", idx, len(img.Pool))
	}
	tag := ConstTag(img.Pool[idx])
	payload := img.Pool[idx+1:]

	var c cachedConst
	switch tag {
	case ConstTagInt:
		if len(payload) < 4 {
			return cachedConst{}, vmerr.NewImageError("truncated int constant at offset %d", idx)
		}
		c = cachedConst{tag: tag, i: int64(int32(binary.LittleEndian.Uint32(payload[0:4])))}
	case ConstTagFloat:
		if len(payload) < 8 {
			return cachedConst{}, vmerr.NewImageError("truncated float constant at offset %d", idx)
		}
		bits := binary.LittleEndian.Uint64(payload[0:8])
		c = cachedConst{tag: tag, f: math.Float64frombits(bits)}
	case ConstTagString:
		if len(payload) < 2 {
			return cachedConst{}, vmerr.NewImageError("truncated string constant at offset %d", idx)
		}
		strLen := int(binary.LittleEndian.Uint16(payload[0:2]))
		if len(payload) < 2+strLen {
			return cachedConst{}, vmerr.NewImageError("truncated string constant at offset %d", idx)
		}
		c = cachedConst{tag: tag, s: string(payload[2 : 2+strLen])}
	default:
		return cachedConst{}, vmerr.NewImageError("unknown constant tag %d at offset %d", tag, idx)
	}

	img.constCache[idx] = c
	return c, nil
}

// EncodeIntConst appends an int constant entry to buf and returns its
// offset. Used by tests and by the (external) compiler's encoder contract.
func EncodeIntConst(buf []byte, v int32) (newBuf []byte, offset uint32) {
	offset = uint32(len(buf))
	entry := make([]byte, 1+4)
	entry[0] = byte(ConstTagInt)
	binary.LittleEndian.PutUint32(entry[1:5], uint32(v))
	return append(buf, entry...), offset
}

// EncodeFloatConst appends a float constant entry to buf and returns its
// offset.
func EncodeFloatConst(buf []byte, v float64) (newBuf []byte, offset uint32) {
	offset = uint32(len(buf))
	entry := make([]byte, 1+8)
	entry[0] = byte(ConstTagFloat)
	binary.LittleEndian.PutUint64(entry[1:9], math.Float64bits(v))
	return append(buf, entry...), offset
}

// EncodeStringConst appends a string constant entry to buf and returns its
// offset.
func EncodeStringConst(buf []byte, s string) (newBuf []byte, offset uint32) {
	offset = uint32(len(buf))
	entry := make([]byte, 1+2+len(s))
	entry[0] = byte(ConstTagString)
	binary.LittleEndian.PutUint16(entry[1:3], uint16(len(s)))
	copy(entry[3:], s)
	return append(buf, entry...), offset
}
