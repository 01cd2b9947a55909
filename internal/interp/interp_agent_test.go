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
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vega-lang/vega/internal/agentrt"
	"github.com/vega-lang/vega/internal/budget"
	"github.com/vega-lang/vega/internal/bytecode"
	"github.com/vega-lang/vega/internal/httpseam"
	"github.com/vega-lang/vega/internal/proc"
	"github.com/vega-lang/vega/internal/trace"
	"github.com/vega-lang/vega/internal/vmvalue"
)

// buildSingleAgentModule builds one agent like agentrt's buildEchoAgentImage
// but without its Echo$lookup tool, and a main that spawns it, sends one
// message, and returns the text result.
func buildSingleAgentModule() *bytecode.Module {
	mod := bytecode.NewModule()
	mod.AddAgent("Echo", "claude-sonnet-4", "you are an echo agent", 0, 100)

	agentName := mod.Intern("Echo")
	greeting := mod.Intern("hi")

	main := bytecode.NewCodeBuilder().
		SpawnAgent(uint16(agentName)).
		PushConst(greeting).
		SendMsg().
		Return()
	mod.AddFunction("main", 0, 0, main)
	return mod
}

func TestSendMsgEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[{"type":"text","text":"hi there"}],"usage":{"input_tokens":3,"output_tokens":4}}`))
	}))
	defer srv.Close()

	mod := buildSingleAgentModule()
	img := mod.Build()
	client := httpseam.NewClient("test-key", srv.URL)
	bus := trace.NewBus()
	acct := budget.New(budget.Limits{})
	sched := proc.NewScheduler()
	mgr := agentrt.NewManager(img, client, bus, acct, sched)

	it := New(context.Background(), img, mgr, sched, bus, &vmvalue.Arena{})
	result, err := it.RunMain()
	require.NoError(t, err)
	assert.Equal(t, "hi there", result.AsString())
}

// TestSendMsgBudgetVeto drives the budget veto scenario (spec §4.9) through
// the full interpreter rather than agentrt.Manager directly: a ceiling that
// only the second response tips over becomes that response's own error
// text, exactly as agentrt's TestSendBudgetVeto establishes at the manager
// layer.
func TestSendMsgBudgetVeto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}],"usage":{"input_tokens":100,"output_tokens":100}}`))
	}))
	defer srv.Close()

	mod := bytecode.NewModule()
	mod.AddAgent("Echo", "claude-sonnet-4", "you are an echo agent", 0, 100)
	agentName := mod.Intern("Echo")
	first := mod.Intern("hi")
	second := mod.Intern("again")

	main := bytecode.NewCodeBuilder().
		SpawnAgent(uint16(agentName)).
		Dup().
		PushConst(first).
		SendMsg().
		Pop(). // discard the first response text, only care about the second
		PushConst(second).
		SendMsg().
		Return()
	mod.AddFunction("main", 0, 0, main)

	img := mod.Build()
	client := httpseam.NewClient("test-key", srv.URL)
	bus := trace.NewBus()
	// One response costs 100/1e6*3 + 100/1e6*15 = 0.0018 at default
	// pricing; the ceiling sits between one and two responses' worth.
	acct := budget.New(budget.Limits{MaxCostUSD: 0.003})
	sched := proc.NewScheduler()
	mgr := agentrt.NewManager(img, client, bus, acct, sched)

	it := New(context.Background(), img, mgr, sched, bus, &vmvalue.Arena{})
	result, err := it.RunMain()
	require.NoError(t, err)
	assert.Contains(t, result.AsString(), "Budget exceeded")
}

// TestSpawnSupervisedRegistersChild exercises SPAWN_SUPERVISED's opcode
// effect (spec §4.2, §4.3): the new process becomes a child of the
// currently running one, ready for CascadeKill/Escalate. The restart-count
// and circuit-breaker mechanics themselves are proc package concerns
// (proc.Supervisor, fabric.CircuitBreaker) exercised at that layer.
func TestSpawnSupervisedRegistersChild(t *testing.T) {
	mod := bytecode.NewModule()
	mod.AddAgent("Worker", "claude-sonnet-4", "you are a worker", 0, 100)
	agentName := mod.Intern("Worker")

	main := bytecode.NewCodeBuilder().
		SpawnSupervised(uint16(agentName), 0, 3, 60000).
		Return()
	mod.AddFunction("main", 0, 0, main)

	img := mod.Build()
	client := httpseam.NewClient("test-key", "http://unused.invalid")
	bus := trace.NewBus()
	acct := budget.New(budget.Limits{})
	sched := proc.NewScheduler()
	mgr := agentrt.NewManager(img, client, bus, acct, sched)

	it := New(context.Background(), img, mgr, sched, bus, &vmvalue.Arena{})
	result, err := it.RunMain()
	require.NoError(t, err)
	assert.Equal(t, vmvalue.KindAgent, result.Kind())

	pids := sched.AllPids()
	require.Len(t, pids, 2, "main's bookkeeping process plus the spawned supervised child")
}
