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

package agentrt

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/vega-lang/vega/internal/vmvalue"
)

// decodeCue applies the structural-cue rules of spec §4.4 step 2 to one raw
// JSON value: quoted -> string; true/false -> bool; null -> null; digits
// with '.' -> float; digits without -> int. Anything else falls back to
// Null rather than erroring, matching the native-error policy of spec §7
// ("represented as Null ... per native signature; they do not abort
// execution").
func decodeCue(raw json.RawMessage) vmvalue.Value {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return vmvalue.Null
	}

	switch {
	case s == "true":
		return vmvalue.Bool(true)
	case s == "false":
		return vmvalue.Bool(false)
	case s == "null":
		return vmvalue.Null
	case strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) && len(s) >= 2:
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return vmvalue.Null
		}
		return vmvalue.FromRef(vmvalue.KindStr, vmvalue.NewString(vmvalue.DefaultArena, str))
	case strings.ContainsAny(s, "0123456789"):
		if strings.Contains(s, ".") {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return vmvalue.Null
			}
			return vmvalue.Float(f)
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return vmvalue.Null
		}
		return vmvalue.Int(i)
	default:
		return vmvalue.Null
	}
}

// DecodeToolArgs resolves tool's declared parameters against the raw JSON
// input object from a tool_use block, in parameter-declaration order.
// Missing parameters become Null (spec §4.4 step 2).
func DecodeToolArgs(tool AgentTool, input map[string]json.RawMessage) []vmvalue.Value {
	args := make([]vmvalue.Value, len(tool.ParamNames))
	for i, name := range tool.ParamNames {
		raw, ok := input[name]
		if !ok {
			args[i] = vmvalue.Null
			continue
		}
		args[i] = decodeCue(raw)
	}
	return args
}
