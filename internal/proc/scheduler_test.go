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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunUntilExited(t *testing.T) {
	s := NewScheduler()
	pid1 := s.Spawn(NewProcess(0, 0, 1))
	pid2 := s.Spawn(NewProcess(0, 0, 2))

	p, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, pid1, p.Pid)
	assert.Equal(t, Running, p.State)

	s.Yield()
	p2, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, pid2, p2.Pid)

	s.Exit(ExitNormal, "")
	assert.True(t, s.HasWork(), "pid1 still Ready")

	p1Again, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, pid1, p1Again.Pid)
	s.Exit(ExitNormal, "")
	assert.False(t, s.HasWork())
}

func TestSchedulerBlockUnblock(t *testing.T) {
	s := NewScheduler()
	pid := s.Spawn(NewProcess(0, 0, 1))
	p, _ := s.Next()
	assert.Equal(t, pid, p.Pid)

	s.Block()
	assert.Equal(t, Waiting, p.State)
	_, ok := s.Next()
	assert.False(t, ok, "no Ready process while waiting")

	s.Unblock(pid)
	p2, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, pid, p2.Pid)
}

func TestSupervisionConfigWindowRollover(t *testing.T) {
	cfg := DefaultSupervisionConfig()
	cfg.MaxRestarts = 2
	cfg.WindowMs = 10
	now := time.Now()
	cfg.WindowStart = now

	assert.True(t, cfg.CanRestart(now))
	cfg.RecordRestart()
	assert.True(t, cfg.CanRestart(now))
	cfg.RecordRestart()
	assert.False(t, cfg.CanRestart(now), "exceeded max_restarts within window")

	later := now.Add(20 * time.Millisecond)
	assert.True(t, cfg.CanRestart(later), "fresh window resets count")
	assert.Equal(t, 0, cfg.RestartCount)
}

func TestSupervisorRestartStrategy(t *testing.T) {
	s := NewScheduler()
	parentPid := s.Spawn(NewProcess(0, 0, 0))
	parent, _ := s.Get(parentPid)

	child := NewProcess(0, parentPid, 7)
	child.Supervision = DefaultSupervisionConfig()
	child.Supervision.MaxRestarts = 3
	childPid := s.Spawn(child)
	parent.AddChild(childPid)

	respawnCalls := 0
	sv := NewSupervisor(s, func(agentDefID int, parentPid uint64, cfg *SupervisionConfig) *Process {
		respawnCalls++
		p := NewProcess(0, parentPid, agentDefID)
		p.Supervision = cfg
		return p
	})

	child.State = Exited
	child.ExitReason = ExitError
	child.ExitMessage = "boom"
	sv.HandleExit(parent, child)

	assert.Equal(t, 1, respawnCalls)
	assert.Equal(t, 1, child.Supervision.RestartCount)
	assert.Len(t, parent.ChildPids, 2, "replacement process pid appended")
}

func TestSupervisorExhaustsRestarts(t *testing.T) {
	s := NewScheduler()
	parentPid := s.Spawn(NewProcess(0, 0, 0))
	parent, _ := s.Get(parentPid)

	child := NewProcess(0, parentPid, 7)
	child.Supervision = DefaultSupervisionConfig()
	child.Supervision.MaxRestarts = 1
	s.Spawn(child)

	calls := 0
	sv := NewSupervisor(s, func(agentDefID int, parentPid uint64, cfg *SupervisionConfig) *Process {
		calls++
		return NewProcess(0, parentPid, agentDefID)
	})

	for i := 0; i < 4; i++ {
		child.State = Exited
		child.ExitReason = ExitError
		sv.HandleExit(parent, child)
	}
	assert.Equal(t, 1, calls, "exactly one restart before exhausting max_restarts=1")
}

func TestSupervisorEscalate(t *testing.T) {
	s := NewScheduler()
	parentPid := s.Spawn(NewProcess(0, 0, 0))
	s.Next() // promote parent to running so Exit() has a current to act on
	parent, _ := s.Get(parentPid)

	child := NewProcess(0, parentPid, 7)
	child.Supervision = DefaultSupervisionConfig()
	child.Supervision.Strategy = StrategyEscalate

	sv := NewSupervisor(s, nil)
	child.State = Exited
	child.ExitReason = ExitError
	child.ExitMessage = "fatal"
	sv.HandleExit(parent, child)

	assert.Equal(t, Exited, parent.State)
	assert.Equal(t, ExitError, parent.ExitReason)
}

func TestCascadeKill(t *testing.T) {
	s := NewScheduler()
	rootPid := s.Spawn(NewProcess(0, 0, 0))
	root, _ := s.Get(rootPid)
	childPid := s.Spawn(NewProcess(0, rootPid, 1))
	grandchildPid := s.Spawn(NewProcess(0, childPid, 2))

	child, _ := s.Get(childPid)
	root.AddChild(childPid)
	child.AddChild(grandchildPid)

	sv := NewSupervisor(s, nil)
	sv.CascadeKill(rootPid)

	grandchild, _ := s.Get(grandchildPid)
	assert.Equal(t, Exited, child.State)
	assert.Equal(t, ExitKilled, child.ExitReason)
	assert.Equal(t, Exited, grandchild.State)
	assert.Equal(t, ExitKilled, grandchild.ExitReason)
}
