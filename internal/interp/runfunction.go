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
	"github.com/vega-lang/vega/internal/vmerr"
	"github.com/vega-lang/vega/internal/vmvalue"
)

// RunFunction implements agentrt.ToolRunner (spec §4.4 step 3: "invoke the
// matching Vega function body"). It is called from the tool-use sub-loop's
// goroutine, concurrently with whatever process the main scheduler loop is
// stepping, so it builds a private machine rather than touching any
// interpreter-held register state (see the machine doc comment in
// interp.go and DESIGN.md's concurrency note). p is left nil: a tool body
// runs with no owning process, so any SEND_MSG/AWAIT/SPAWN_* opcode inside
// it fails fast via requireProcess rather than racing the scheduler.
func (it *Interpreter) RunFunction(functionID int, args []vmvalue.Value) (vmvalue.Value, error) {
	if functionID < 0 || functionID >= len(it.image.Functions) {
		return vmvalue.Null, vmerr.NewVMError("RunFunction: invalid function id %d", functionID)
	}

	m := &machine{}
	it.enterFrame(m, functionID, args)

	halted, result := it.run(m, nil)
	for _, v := range m.vstack {
		v.Release()
	}
	if m.hadError {
		return vmvalue.Null, vmerr.NewVMError("%s", m.errMsg)
	}
	if !halted {
		return vmvalue.Null, vmerr.NewVMError("RunFunction: function %d suspended on a process-only opcode", functionID)
	}
	return result, nil
}
