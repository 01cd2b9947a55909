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

// Package proc implements the actor-model-inspired Process/Supervisor
// subsystem (spec §3, §4.5, §4.6) and the cooperative scheduler (spec §4.5).
package proc

import (
	"time"

	"github.com/vega-lang/vega/internal/fabric"
	"github.com/vega-lang/vega/internal/vmvalue"
)

// State is the process lifecycle state (spec §3).
type State int

const (
	Ready State = iota
	Running
	Waiting
	Exited
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Waiting:
		return "waiting"
	case Exited:
		return "exited"
	default:
		return "unknown"
	}
}

// ExitReason is why a process entered the Exited state (spec §3).
type ExitReason int

const (
	ExitNone ExitReason = iota
	ExitNormal
	ExitError
	ExitKilled
)

func (r ExitReason) String() string {
	switch r {
	case ExitNormal:
		return "Normal"
	case ExitError:
		return "Error"
	case ExitKilled:
		return "Killed"
	default:
		return "None"
	}
}

const (
	// MaxValueStack bounds a process's private value stack (spec §3).
	MaxValueStack = 256
	// MaxFrameStack bounds a process's private call-frame stack (spec §3).
	MaxFrameStack = 32
	// MaxChildren bounds a process's child-pid list (spec §3).
	MaxChildren = 64
)

// Frame is one call-frame saved on a process's private frame stack; it
// mirrors the interpreter's live frame shape (spec §4.2) for swap-in/out.
type Frame struct {
	FunctionID int
	ReturnIP   int
	BasePtr    int
}

// AgentHandle is the minimal surface Process needs from an Agent, satisfied
// structurally by agentrt.Agent. This breaks the proc<->agentrt import
// cycle the same way vmvalue.Ref breaks the vmvalue<->agentrt cycle (spec
// §9 design notes: "give Agent only a non-owning back-pointer to Process").
type AgentHandle interface {
	AgentDefinitionID() int
	SetOwningProcess(p *Process)
}

// Process is one scheduled unit of execution (spec §3). It owns its Agent;
// the Agent holds only a non-owning back-pointer, nulled by Free.
type Process struct {
	Pid   uint64
	State State

	IP          int
	ValueStack  []vmvalue.Value
	FrameStack  []Frame
	ParentPid   uint64
	ChildPids   []uint64
	Supervision *SupervisionConfig
	IsSupervisor bool

	ExitReason  ExitReason
	ExitMessage string

	AgentDefID int
	Agent      AgentHandle

	WaitData interface{}
}

// NewProcess constructs a process in the Ready state with empty stacks.
func NewProcess(pid uint64, parentPid uint64, agentDefID int) *Process {
	return &Process{
		Pid:        pid,
		State:      Ready,
		ParentPid:  parentPid,
		AgentDefID: agentDefID,
		ValueStack: make([]vmvalue.Value, 0, 16),
		FrameStack: make([]Frame, 0, 4),
	}
}

// AttachAgent links agent <-> process (spec §4.3 supervised spawn, spec §3
// invariant: "Process.agent.process == Process while both are alive").
func (p *Process) AttachAgent(agent AgentHandle) {
	p.Agent = agent
	agent.SetOwningProcess(p)
}

// Free nulls the back-pointer before releasing, so the ownership cycle
// never holds a live reference on both sides simultaneously (spec §9).
func (p *Process) Free() {
	if p.Agent != nil {
		p.Agent.SetOwningProcess(nil)
		p.Agent = nil
	}
}

// CanAddChild reports whether another child pid fits under MaxChildren.
func (p *Process) CanAddChild() bool {
	return len(p.ChildPids) < MaxChildren
}

// AddChild appends a child pid if room remains.
func (p *Process) AddChild(pid uint64) bool {
	if !p.CanAddChild() {
		return false
	}
	p.ChildPids = append(p.ChildPids, pid)
	return true
}

// SupervisionConfig mirrors spec §3's field list and carries its own
// circuit breaker, reusing the fabric package's gate rather than
// re-implementing it (spec §4.8).
type SupervisionConfig struct {
	Strategy    Strategy
	MaxRestarts int
	WindowMs    int64
	RestartCount int
	WindowStart time.Time

	Backoff     fabric.Backoff
	BaseDelayMs int64
	MaxDelayMs  int64
	NextRetryAt time.Time

	Breaker *fabric.CircuitBreaker
}

// Strategy is the supervision response to a child's abnormal exit (spec §4.6).
type Strategy int

const (
	StrategyRestart Strategy = iota
	StrategyStop
	StrategyEscalate
	StrategyRestartAll
)

func (s Strategy) String() string {
	switch s {
	case StrategyRestart:
		return "restart"
	case StrategyStop:
		return "stop"
	case StrategyEscalate:
		return "escalate"
	case StrategyRestartAll:
		return "restart_all"
	default:
		return "unknown"
	}
}

// DefaultSupervisionConfig matches spec §3's documented defaults.
func DefaultSupervisionConfig() *SupervisionConfig {
	return &SupervisionConfig{
		Strategy:    StrategyRestart,
		MaxRestarts: 3,
		WindowMs:    60_000,
		WindowStart: time.Now(),
		Backoff:     fabric.BackoffExponential,
		BaseDelayMs: 1_000,
		MaxDelayMs:  30_000,
		Breaker: fabric.NewCircuitBreaker(fabric.CircuitBreakerConfig{
			FailureThreshold: 5,
			CooldownMs:       60_000,
		}),
	}
}

// CanRestart reports whether process_can_restart(child) holds: restart_count
// is within bounds for the current window, rolling the window forward first
// if it has expired (spec §4.6: "Window accounting").
func (c *SupervisionConfig) CanRestart(now time.Time) bool {
	if now.Sub(c.WindowStart) > time.Duration(c.WindowMs)*time.Millisecond {
		c.RestartCount = 0
		c.WindowStart = now
	}
	return c.RestartCount < c.MaxRestarts
}

// RecordRestart increments restart_count (called after CanRestart allows one).
func (c *SupervisionConfig) RecordRestart() {
	c.RestartCount++
}
