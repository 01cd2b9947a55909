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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vega-lang/vega/internal/budget"
	"github.com/vega-lang/vega/internal/bytecode"
	"github.com/vega-lang/vega/internal/httpseam"
	"github.com/vega-lang/vega/internal/proc"
	"github.com/vega-lang/vega/internal/trace"
	"github.com/vega-lang/vega/internal/vmvalue"
)

type stubRunner struct {
	result vmvalue.Value
	err    error
	calls  int
}

func (s *stubRunner) RunFunction(functionID int, args []vmvalue.Value) (vmvalue.Value, error) {
	s.calls++
	return s.result, s.err
}

func buildEchoAgentImage(t *testing.T) *bytecode.Image {
	t.Helper()
	mod := bytecode.NewModule()
	nameIdx := mod.Intern("Echo")
	modelIdx := mod.Intern("claude-sonnet-4")
	sysIdx := mod.Intern("you are an echo agent")
	mod.AddAgent("Echo", "claude-sonnet-4", "you are an echo agent", 1, 100)
	_ = nameIdx
	_ = modelIdx
	_ = sysIdx

	toolBody := bytecode.NewCodeBuilder()
	toolBody.PushInt(1)
	toolBody.Return()
	mod.AddFunction("Echo$lookup", 1, 1, toolBody)

	main := bytecode.NewCodeBuilder()
	main.Halt()
	mod.AddFunction("main", 0, 0, main)

	return mod.Build()
}

func TestSpawnResolvesTools(t *testing.T) {
	img := buildEchoAgentImage(t)
	client := httpseam.NewClient("test-key", "http://unused.invalid")
	bus := trace.NewBus()
	acct := budget.New(budget.Limits{})
	sched := proc.NewScheduler()

	mgr := NewManager(img, client, bus, acct, sched)
	agent, err := mgr.Spawn(0)
	require.NoError(t, err)
	assert.Equal(t, "Echo", agent.Name)
	require.Len(t, agent.Tools, 1)
	assert.Equal(t, "lookup", agent.Tools[0].Name)
	assert.Equal(t, []string{"arg0"}, agent.Tools[0].ParamNames)
}

func TestSendTerminalResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[{"type":"text","text":"hi there"}],"usage":{"input_tokens":3,"output_tokens":4}}`))
	}))
	defer srv.Close()

	img := buildEchoAgentImage(t)
	client := httpseam.NewClient("test-key", srv.URL)
	bus := trace.NewBus()
	acct := budget.New(budget.Limits{})
	sched := proc.NewScheduler()

	mgr := NewManager(img, client, bus, acct, sched)
	agent, err := mgr.Spawn(0)
	require.NoError(t, err)

	result := mgr.sendSync(context.Background(), agent, "ping")
	assert.Equal(t, "hi there", result)
	assert.Len(t, agent.History, 2, "history alternates user/assistant")
}

func TestSendRunsToolLoopThenTerminal(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte(`{"content":[{"type":"tool_use","id":"tu_1","name":"lookup","input":{"arg0":"42"}}],"usage":{"input_tokens":1,"output_tokens":1}}`))
			return
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"done"}],"usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer srv.Close()

	img := buildEchoAgentImage(t)
	client := httpseam.NewClient("test-key", srv.URL)
	bus := trace.NewBus()
	acct := budget.New(budget.Limits{})
	sched := proc.NewScheduler()

	mgr := NewManager(img, client, bus, acct, sched)
	runner := &stubRunner{result: vmvalue.Int(42)}
	mgr.SetToolRunner(runner)

	agent, err := mgr.Spawn(0)
	require.NoError(t, err)

	result := mgr.sendSync(context.Background(), agent, "lookup 42")
	assert.Equal(t, "done", result)
	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, 2, calls, "one tool-use round then one terminal response")
}

func TestSendBudgetVeto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}],"usage":{"input_tokens":100,"output_tokens":100}}`))
	}))
	defer srv.Close()

	img := buildEchoAgentImage(t)
	client := httpseam.NewClient("test-key", srv.URL)
	bus := trace.NewBus()
	// One response costs 100/1e6*3 + 100/1e6*15 = 0.0018 at default
	// pricing; the ceiling sits between one and two responses' worth, so
	// the first succeeds and the second is the one that tips it over and
	// becomes the error itself (spec §4.9).
	acct := budget.New(budget.Limits{MaxCostUSD: 0.003})
	sched := proc.NewScheduler()

	mgr := NewManager(img, client, bus, acct, sched)
	agent, err := mgr.Spawn(0)
	require.NoError(t, err)

	first := mgr.sendSync(context.Background(), agent, "hi")
	assert.Equal(t, "ok", first)

	second := mgr.sendSync(context.Background(), agent, "again")
	assert.Contains(t, second, "Budget exceeded")
}

func TestDecodeToolArgsStructuralCues(t *testing.T) {
	tool := AgentTool{
		ParamNames: []string{"s", "b", "n", "f", "missing"},
		ParamTypes: []string{"str", "bool", "int", "float", "str"},
	}
	input := map[string]json.RawMessage{
		"s": json.RawMessage(`"hello"`),
		"b": json.RawMessage(`true`),
		"n": json.RawMessage(`7`),
		"f": json.RawMessage(`3.5`),
	}
	args := DecodeToolArgs(tool, input)
	require.Len(t, args, 5)
	assert.Equal(t, vmvalue.KindStr, args[0].Kind())
	assert.Equal(t, "hello", args[0].AsString())
	assert.True(t, args[1].AsBool())
	assert.Equal(t, int64(7), args[2].AsInt())
	assert.Equal(t, 3.5, args[2+1].AsFloat())
	assert.True(t, args[4].IsNull())
}
