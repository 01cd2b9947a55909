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

package proc

import (
	"time"

	"go.uber.org/zap"

	"github.com/vega-lang/vega/internal/vegalog"
)

// RespawnFunc builds a fresh Process bound to the same agent definition and
// config, mirroring the original's setup (spec §4.6: "spawn a replacement
// process with the same agent definition and config"). The agentrt package
// supplies this so proc never imports agentrt directly.
type RespawnFunc func(agentDefID int, parentPid uint64, config *SupervisionConfig) *Process

// Supervisor reacts to child exits per spec §4.6. One Supervisor instance
// watches the children of one supervising process; the scheduler owns the
// process table it operates against.
type Supervisor struct {
	scheduler *Scheduler
	respawn   RespawnFunc
}

// NewSupervisor binds a Supervisor to scheduler, using respawn to create
// replacement processes on Restart/RestartAll.
func NewSupervisor(scheduler *Scheduler, respawn RespawnFunc) *Supervisor {
	return &Supervisor{scheduler: scheduler, respawn: respawn}
}

// HandleExit reacts to child's transition into Exited, per its supervising
// parent's SupervisionConfig and strategy (spec §4.6).
func (sv *Supervisor) HandleExit(parent *Process, child *Process) {
	if child.ExitReason == ExitNormal {
		return // supervisor simply forgets the child
	}

	cfg := child.Supervision
	if cfg == nil {
		return
	}

	switch cfg.Strategy {
	case StrategyRestart:
		sv.restartOne(parent, child)
	case StrategyStop:
		// forget the child
	case StrategyEscalate:
		sv.scheduler.Exit(ExitError, "escalated: "+child.ExitMessage)
		vegalog.Warn("supervisor_escalate", zap.Uint64("child_pid", child.Pid))
	case StrategyRestartAll:
		sv.restartAllSiblings(parent)
	}
}

func (sv *Supervisor) restartOne(parent *Process, child *Process) {
	now := time.Now()
	if !child.Supervision.CanRestart(now) {
		vegalog.Warn("supervisor_restart_exhausted",
			zap.Uint64("pid", child.Pid), zap.Int("max_restarts", child.Supervision.MaxRestarts))
		return
	}
	child.Supervision.RecordRestart()

	replacement := sv.respawn(child.AgentDefID, parent.Pid, child.Supervision)
	pid := sv.scheduler.Spawn(replacement)
	if parent != nil {
		parent.AddChild(pid)
	}
	vegalog.Info("supervisor_restarted",
		zap.Uint64("old_pid", child.Pid), zap.Uint64("new_pid", pid),
		zap.Int("restart_count", child.Supervision.RestartCount))
}

// restartAllSiblings restarts every non-exited child of parent (spec §4.6
// RestartAll).
func (sv *Supervisor) restartAllSiblings(parent *Process) {
	for _, pid := range append([]uint64(nil), parent.ChildPids...) {
		sibling, ok := sv.scheduler.Get(pid)
		if !ok || sibling.State == Exited {
			continue
		}
		sv.KillChild(sibling, "restart_all sweep")
		sv.restartOne(parent, sibling)
	}
}

// KillChild forces child into Exited(Killed) without consulting its own
// supervision config — used for cascading kills of siblings/descendants
// (spec §4.6: "exiting a process triggers Killed exits for every
// non-exited child before the supervisor notification").
func (sv *Supervisor) KillChild(child *Process, reason string) {
	if child.State == Exited {
		return
	}
	child.State = Exited
	child.ExitReason = ExitKilled
	child.ExitMessage = reason
}

// CascadeKill walks pid's descendants (via the scheduler's process table)
// and kills every non-exited one before the parent's own exit is reported
// to its supervisor, per spec §4.6.
func (sv *Supervisor) CascadeKill(pid uint64) {
	p, ok := sv.scheduler.Get(pid)
	if !ok {
		return
	}
	for _, childPid := range p.ChildPids {
		child, ok := sv.scheduler.Get(childPid)
		if !ok {
			continue
		}
		sv.CascadeKill(childPid)
		sv.KillChild(child, "parent exited")
	}
}
