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
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vega-lang/vega/internal/vmvalue"
)

// nativeFunc is one CALL_NATIVE implementation: a fixed arity plus the
// function itself. Native failures never abort execution (spec §7): they
// return Null or an empty string per the name's documented signature.
type nativeFunc struct {
	arity int
	fn    func(it *Interpreter, args []vmvalue.Value) vmvalue.Value
}

// buildNativeTable constructs the closed native-function set of spec §4.2.
func buildNativeTable() map[string]nativeFunc {
	return map[string]nativeFunc{
		"file::read":   {1, nativeFileRead},
		"file::write":  {2, nativeFileWrite},
		"file::exists": {1, nativeFileExists},

		"str::len":        {1, nativeStrLen},
		"str::contains":   {2, nativeStrContains},
		"str::char_at":    {2, nativeStrCharAt},
		"str::char_code":  {1, nativeStrCharCode},
		"str::char_lower": {1, nativeStrCharLower},
		"str::from_int":   {1, nativeStrFromInt},
		"str::split":      {2, nativeStrSplit},
		"str::split_len":  {2, nativeStrSplitLen},

		"http::get": {1, nativeHTTPGet},

		"json::get_string": {2, nativeJSONGetString},
		"json::get_int":    {2, nativeJSONGetInt},
		"json::get_float":  {2, nativeJSONGetFloat},
		"json::get_array":  {2, nativeJSONGetArray},
		"json::array_len":  {1, nativeJSONArrayLen},
		"json::array_get":  {2, nativeJSONArrayGet},
	}
}

// execCallNative implements CALL_NATIVE name_idx (spec §4.2). Arity is
// fixed per name; arguments are popped in reverse (arg0 deepest, matching
// CALL's convention) and passed in declaration order.
func (it *Interpreter) execCallNative(m *machine, nameIdx uint32) {
	name := it.image.ConstStringAt(nameIdx)
	native, ok := it.natives[name]
	if !ok {
		m.fail("unknown native function '%s'", name)
		return
	}
	if len(m.vstack) < native.arity {
		m.fail("CALL_NATIVE %s on empty stack", name)
		return
	}
	args := make([]vmvalue.Value, native.arity)
	for i := native.arity - 1; i >= 0; i-- {
		v, _ := m.pop()
		args[i] = v
	}
	result := native.fn(it, args)
	for _, a := range args {
		a.Release()
	}
	m.push(result)
}

func nativeFileRead(it *Interpreter, args []vmvalue.Value) vmvalue.Value {
	data, err := os.ReadFile(args[0].String())
	if err != nil {
		return it.strValue("")
	}
	return it.strValue(string(data))
}

func nativeFileWrite(it *Interpreter, args []vmvalue.Value) vmvalue.Value {
	_ = os.WriteFile(args[0].String(), []byte(args[1].String()), 0o644)
	return vmvalue.Null
}

func nativeFileExists(it *Interpreter, args []vmvalue.Value) vmvalue.Value {
	_, err := os.Stat(args[0].String())
	return vmvalue.Bool(err == nil)
}

func nativeStrLen(it *Interpreter, args []vmvalue.Value) vmvalue.Value {
	return vmvalue.Int(int64(len(args[0].String())))
}

func nativeStrContains(it *Interpreter, args []vmvalue.Value) vmvalue.Value {
	return vmvalue.Bool(strings.Contains(args[0].String(), args[1].String()))
}

func nativeStrCharAt(it *Interpreter, args []vmvalue.Value) vmvalue.Value {
	s := args[0].String()
	i := int(args[1].AsInt())
	if i < 0 || i >= len(s) {
		return it.strValue("")
	}
	return it.strValue(string(s[i]))
}

func nativeStrCharCode(it *Interpreter, args []vmvalue.Value) vmvalue.Value {
	s := args[0].String()
	if len(s) == 0 {
		return vmvalue.Int(0)
	}
	return vmvalue.Int(int64(s[0]))
}

func nativeStrCharLower(it *Interpreter, args []vmvalue.Value) vmvalue.Value {
	return it.strValue(strings.ToLower(args[0].String()))
}

func nativeStrFromInt(it *Interpreter, args []vmvalue.Value) vmvalue.Value {
	return it.strValue(strconv.FormatInt(args[0].AsInt(), 10))
}

func nativeStrSplit(it *Interpreter, args []vmvalue.Value) vmvalue.Value {
	parts := strings.Split(args[0].String(), args[1].String())
	arr := vmvalue.NewArray(it.arena, len(parts))
	for _, part := range parts {
		v := it.strValue(part)
		arr.Push(v)
		v.Release()
	}
	return vmvalue.FromRef(vmvalue.KindArray, arr)
}

func nativeStrSplitLen(it *Interpreter, args []vmvalue.Value) vmvalue.Value {
	parts := strings.Split(args[0].String(), args[1].String())
	return vmvalue.Int(int64(len(parts)))
}

// nativeHTTPGet issues a blocking GET (spec §4.2's native seam is not a
// suspension point per spec §5's list; only SEND_MSG/SEND_ASYNC/AWAIT/YIELD
// are).
func nativeHTTPGet(it *Interpreter, args []vmvalue.Value) vmvalue.Value {
	client := http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(args[0].String())
	if err != nil {
		return it.strValue("")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return it.strValue("")
	}
	return it.strValue(string(body))
}

func nativeJSONGetString(it *Interpreter, args []vmvalue.Value) vmvalue.Value {
	raw, ok := jsonField(args[0].String(), args[1].String())
	if !ok {
		return it.strValue("")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return it.strValue("")
	}
	return it.strValue(s)
}

func nativeJSONGetInt(it *Interpreter, args []vmvalue.Value) vmvalue.Value {
	raw, ok := jsonField(args[0].String(), args[1].String())
	if !ok {
		return vmvalue.Null
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return vmvalue.Null
	}
	return vmvalue.Int(n)
}

func nativeJSONGetFloat(it *Interpreter, args []vmvalue.Value) vmvalue.Value {
	raw, ok := jsonField(args[0].String(), args[1].String())
	if !ok {
		return vmvalue.Null
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return vmvalue.Null
	}
	return vmvalue.Float(f)
}

// nativeJSONGetArray returns the raw JSON substring for key, as a Str,
// rather than decoding into a VM Array: real VM arrays already have
// dedicated ARRAY_* opcodes, and json::array_len/array_get operate directly
// on this raw substring (DESIGN.md records this convention).
func nativeJSONGetArray(it *Interpreter, args []vmvalue.Value) vmvalue.Value {
	raw, ok := jsonField(args[0].String(), args[1].String())
	if !ok {
		return it.strValue("")
	}
	return it.strValue(string(raw))
}

func nativeJSONArrayLen(it *Interpreter, args []vmvalue.Value) vmvalue.Value {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(args[0].String()), &items); err != nil {
		return vmvalue.Int(0)
	}
	return vmvalue.Int(int64(len(items)))
}

func nativeJSONArrayGet(it *Interpreter, args []vmvalue.Value) vmvalue.Value {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(args[0].String()), &items); err != nil {
		return vmvalue.Null
	}
	i := int(args[1].AsInt())
	if i < 0 || i >= len(items) {
		return vmvalue.Null
	}
	return decodeJSONCue(it, items[i])
}

func jsonField(obj, key string) (json.RawMessage, bool) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &m); err != nil {
		return nil, false
	}
	raw, ok := m[key]
	return raw, ok
}

// decodeJSONCue applies the same structural-cue rule spec §4.4 step 2 uses
// for tool arguments (quoted -> string, true/false -> bool, null -> null,
// digits with '.' -> float, digits without -> int), duplicated here rather
// than shared with agentrt's unexported decodeCue to keep interp from
// reaching into agentrt internals (DESIGN.md).
func decodeJSONCue(it *Interpreter, raw json.RawMessage) vmvalue.Value {
	s := strings.TrimSpace(string(raw))
	switch {
	case s == "" || s == "null":
		return vmvalue.Null
	case s == "true":
		return vmvalue.Bool(true)
	case s == "false":
		return vmvalue.Bool(false)
	case strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) && len(s) >= 2:
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return vmvalue.Null
		}
		return it.strValue(str)
	case strings.ContainsAny(s, "0123456789"):
		if strings.Contains(s, ".") {
			var f float64
			if err := json.Unmarshal(raw, &f); err != nil {
				return vmvalue.Null
			}
			return vmvalue.Float(f)
		}
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return vmvalue.Null
		}
		return vmvalue.Int(n)
	default:
		return vmvalue.Null
	}
}
