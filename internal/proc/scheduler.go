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

// Scheduler is the cooperative, single-threaded FIFO ready-queue driver
// described in spec §4.5. It holds no knowledge of bytecode; the
// interpreter is the one thing that actually steps a process.
type Scheduler struct {
	processes map[uint64]*Process
	readyQ    []uint64
	current   uint64 // 0 means none running
	nextPid   uint64
}

// NewScheduler constructs an empty scheduler. Pids start at 1 (spec §3: "0
// reserved for no parent").
func NewScheduler() *Scheduler {
	return &Scheduler{
		processes: make(map[uint64]*Process),
		nextPid:   1,
	}
}

// Spawn allocates a new pid, registers p under it, and enqueues it Ready.
func (s *Scheduler) Spawn(p *Process) uint64 {
	pid := s.nextPid
	s.nextPid++
	p.Pid = pid
	p.State = Ready
	s.processes[pid] = p
	s.readyQ = append(s.readyQ, pid)
	return pid
}

// Get looks up a process by pid.
func (s *Scheduler) Get(pid uint64) (*Process, bool) {
	p, ok := s.processes[pid]
	return p, ok
}

// Current returns the currently Running process, if any.
func (s *Scheduler) Current() (*Process, bool) {
	if s.current == 0 {
		return nil, false
	}
	return s.Get(s.current)
}

// Next dequeues the first pid still Ready and promotes it to Running (spec
// §4.5: "next() dequeues the first pid whose state is still Ready").
func (s *Scheduler) Next() (*Process, bool) {
	for len(s.readyQ) > 0 {
		pid := s.readyQ[0]
		s.readyQ = s.readyQ[1:]
		p, ok := s.processes[pid]
		if !ok || p.State != Ready {
			continue
		}
		p.State = Running
		s.current = pid
		return p, true
	}
	s.current = 0
	return nil, false
}

// Yield requeues the current process as Ready.
func (s *Scheduler) Yield() {
	if s.current == 0 {
		return
	}
	p := s.processes[s.current]
	p.State = Ready
	s.readyQ = append(s.readyQ, s.current)
	s.current = 0
}

// Block marks the current process Waiting (no requeue; Unblock does that).
func (s *Scheduler) Block() {
	if s.current == 0 {
		return
	}
	s.processes[s.current].State = Waiting
	s.current = 0
}

// Unblock moves a Waiting process back to Ready and enqueues it.
func (s *Scheduler) Unblock(pid uint64) {
	p, ok := s.processes[pid]
	if !ok || p.State != Waiting {
		return
	}
	p.State = Ready
	s.readyQ = append(s.readyQ, pid)
}

// Exit marks the current process Exited with the given reason.
func (s *Scheduler) Exit(reason ExitReason, message string) {
	if s.current == 0 {
		return
	}
	p := s.processes[s.current]
	p.State = Exited
	p.ExitReason = reason
	p.ExitMessage = message
	s.current = 0
}

// HasWork reports whether any process is Ready, Running, or Waiting (spec
// §4.5: run() exits "when only Exited processes remain").
func (s *Scheduler) HasWork() bool {
	for _, p := range s.processes {
		if p.State != Exited {
			return true
		}
	}
	return false
}

// AllPids returns every registered pid, for supervisor sweeps.
func (s *Scheduler) AllPids() []uint64 {
	out := make([]uint64, 0, len(s.processes))
	for pid := range s.processes {
		out = append(out, pid)
	}
	return out
}
