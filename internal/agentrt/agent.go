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

// Package agentrt implements the Agent Manager (spec §4.3, §4.4): agent
// instances, their tool catalogs, the tool-use sub-loop, and the retry/
// circuit-breaker/budget integration around each send.
package agentrt

import (
	"github.com/vega-lang/vega/internal/httpseam"
	"github.com/vega-lang/vega/internal/proc"
	"github.com/vega-lang/vega/internal/vmvalue"
)

// AgentTool is one tool exposed by an agent, resolved at spawn time from
// functions named "<AgentName>$<tool>" (spec §3, §4.3).
type AgentTool struct {
	Name        string
	Description string
	ParamNames  []string
	ParamTypes  []string // each one of "int", "float", "bool", "str"
	FunctionID  int
}

// Phase is the agent's two-state async machine (spec §9 design notes).
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaiting
)

// ToolContext is the "optional tool context" carried while Awaiting,
// threading state through the tool-use sub-loop (spec §4.4, §9).
type ToolContext struct {
	RawAssistantContent string
	ToolUseID           string
	Iteration           int
}

// Agent is one running agent instance (spec §3: "Agent instance"). It
// satisfies vmvalue.Ref (heap-managed, refcounted) and proc.AgentHandle
// (so a Process can hold it without agentrt depending on proc's internals
// beyond that narrow interface).
type Agent struct {
	vmvalue.Header

	// ID correlates this instance across trace events; it is not a handle
	// (the VM references agents by heap pointer via Value.AsRef()).
	ID           uint64
	DefinitionID int
	Name         string
	Model        string
	System       string
	Temperature  float64
	Tools        []AgentTool

	// History alternates user/assistant strings, starting with user (spec §3).
	History []string

	Valid bool

	// process is a non-owning back-pointer; nulled before either side frees
	// (spec §3 invariant, spec §9 design notes).
	process *proc.Process

	Phase   Phase
	Handle  *httpseam.Handle
	ToolCtx *ToolContext
}

// NewAgent allocates an Agent with refcount 1 on vmvalue.DefaultArena.
func NewAgent(definitionID int, name, model, system string, temperature float64, tools []AgentTool) *Agent {
	return &Agent{
		Header:       vmvalue.NewHeader(vmvalue.DefaultArena, "Agent"),
		DefinitionID: definitionID,
		Name:         name,
		Model:        model,
		System:       system,
		Temperature:  temperature,
		Tools:        tools,
		Valid:        true,
		Phase:        PhaseIdle,
	}
}

// Release drops the refcount, freeing the owning-process back-pointer (if
// still set) and the pending HTTP handle on the final release.
func (a *Agent) Release() {
	a.Header.Release(func() {
		a.Valid = false
		a.process = nil
		a.Handle = nil
	})
}

// AgentDefinitionID satisfies proc.AgentHandle.
func (a *Agent) AgentDefinitionID() int { return a.DefinitionID }

// SetOwningProcess satisfies proc.AgentHandle: stores a non-owning pointer.
func (a *Agent) SetOwningProcess(p *proc.Process) { a.process = p }

// Process returns the agent's owning process, or nil if unsupervised.
func (a *Agent) Process() *proc.Process { return a.process }

// ToolByName finds a tool by exact name match, or ok=false.
func (a *Agent) ToolByName(name string) (AgentTool, bool) {
	for _, t := range a.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return AgentTool{}, false
}

// AppendHistory appends one message. History alternates user/assistant
// starting with user (spec §3 invariant); callers are responsible for the
// alternation, this just appends.
func (a *Agent) AppendHistory(message string) {
	a.History = append(a.History, message)
}

var _ vmvalue.Ref = (*Agent)(nil)
var _ proc.AgentHandle = (*Agent)(nil)
