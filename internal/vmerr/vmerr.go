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

// Package vmerr defines the runtime's error taxonomy (spec §7): image
// errors, VM errors, native errors, agent errors and process errors. Image
// and VM errors are fatal; native and agent errors are returned as values to
// the running program; process errors are absorbed by supervision.
package vmerr

import (
	"errors"
	"fmt"
)

// Sentinel classes. Use errors.Is against these to classify an error
// without string matching.
var (
	// ErrBadImage is returned by the loader on a bad magic or version.
	ErrBadImage = errors.New("bad image")
	// ErrVM marks a fatal interpreter error (stack/call overflow, unknown
	// opcode, type error at an opcode site, ...).
	ErrVM = errors.New("vm error")
	// ErrAgent marks a recoverable agent-level error (budget exceeded, HTTP
	// failure, max tool iterations, circuit breaker open). Surfaced to the
	// program as a Str beginning with "Error:".
	ErrAgent = errors.New("agent error")
	// ErrProcess marks a process-level error exit, absorbed by supervision.
	ErrProcess = errors.New("process error")
)

// ImageError wraps a bytecode-loading failure.
type ImageError struct {
	Reason string
}

func (e *ImageError) Error() string { return fmt.Sprintf("bad image: %s", e.Reason) }
func (e *ImageError) Unwrap() error { return ErrBadImage }

// NewImageError constructs an ImageError.
func NewImageError(format string, args ...any) error {
	return &ImageError{Reason: fmt.Sprintf(format, args...)}
}

// VMError wraps a fatal interpreter failure. Halting the VM is the caller's
// responsibility; VMError only carries the message.
type VMError struct {
	Reason string
}

func (e *VMError) Error() string { return fmt.Sprintf("%s", e.Reason) }
func (e *VMError) Unwrap() error { return ErrVM }

// NewVMError constructs a VMError.
func NewVMError(format string, args ...any) error {
	return &VMError{Reason: fmt.Sprintf(format, args...)}
}

// AgentError wraps a recoverable agent-level failure. String() of the
// returned error already carries the "Error:" prefix the spec requires on
// the Str value pushed back onto the stack.
type AgentError struct {
	Reason string
}

func (e *AgentError) Error() string { return "Error: " + e.Reason }
func (e *AgentError) Unwrap() error { return ErrAgent }

// NewAgentError constructs an AgentError.
func NewAgentError(format string, args ...any) error {
	return &AgentError{Reason: fmt.Sprintf(format, args...)}
}

// ProcessError wraps a process abnormal-exit condition.
type ProcessError struct {
	Reason string
}

func (e *ProcessError) Error() string { return e.Reason }
func (e *ProcessError) Unwrap() error { return ErrProcess }

// NewProcessError constructs a ProcessError.
func NewProcessError(format string, args ...any) error {
	return &ProcessError{Reason: fmt.Sprintf(format, args...)}
}
