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
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vega-lang/vega/internal/budget"
	"github.com/vega-lang/vega/internal/bytecode"
	"github.com/vega-lang/vega/internal/fabric"
	"github.com/vega-lang/vega/internal/httpseam"
	"github.com/vega-lang/vega/internal/proc"
	"github.com/vega-lang/vega/internal/trace"
	"github.com/vega-lang/vega/internal/vmvalue"
)

// MaxToolIterations bounds the tool-use sub-loop (spec §4.4 step 5).
const MaxToolIterations = 10

// ToolRunner is the narrow callback the interpreter supplies so the tool-use
// sub-loop can execute a tool's bytecode function without agentrt importing
// the interpreter package (spec §2's leaf-to-top dependency order puts the
// interpreter above agentrt). Implemented by *interp.Interpreter.
type ToolRunner interface {
	RunFunction(functionID int, args []vmvalue.Value) (vmvalue.Value, error)
}

// Manager is the Agent Manager (spec §4.3): it owns spawn, send, await, and
// the tool-use sub-loop, wiring in budget accounting, the HTTP seam, and
// per-process retry/circuit-breaker controls.
type Manager struct {
	image  *bytecode.Image
	client *httpseam.Client
	bus    *trace.Bus
	acct   *budget.Accountant
	runner ToolRunner

	scheduler *proc.Scheduler

	nextAgentID uint64
}

// NewManager wires a Manager against a loaded image and its ambient
// services. runner is supplied after the interpreter is constructed, via
// SetToolRunner, to break the construction-order cycle.
func NewManager(image *bytecode.Image, client *httpseam.Client, bus *trace.Bus, acct *budget.Accountant, scheduler *proc.Scheduler) *Manager {
	return &Manager{
		image:     image,
		client:    client,
		bus:       bus,
		acct:      acct,
		scheduler: scheduler,
	}
}

// SetToolRunner installs the interpreter callback used by the tool-use loop.
func (m *Manager) SetToolRunner(r ToolRunner) { m.runner = r }

// Spawn builds an unsupervised Agent from the image's agent definition at
// defIndex (spec §4.3).
func (m *Manager) Spawn(defIndex int) (*Agent, error) {
	if defIndex < 0 || defIndex >= len(m.image.Agents) {
		return nil, fmt.Errorf("agentrt: unknown agent definition %d", defIndex)
	}
	def := m.image.Agents[defIndex]

	name := m.image.ConstString(def.NameIdx)
	model := m.image.ConstString(def.ModelIdx)
	system := m.image.ConstString(def.SystemIdx)
	temperature := float64(def.TempX100) / 100.0

	tools := m.resolveTools(name)

	agent := NewAgent(defIndex, name, model, system, temperature, tools)
	m.nextAgentID++
	agent.ID = m.nextAgentID

	m.bus.Publish(trace.Event{
		Kind:      trace.AgentSpawn,
		AgentID:   agent.ID,
		AgentName: name,
	})
	return agent, nil
}

// SpawnSupervised additionally allocates a Process, links it to the agent,
// installs config, and registers it with the scheduler (spec §4.3). The
// scheduler's process table has no capacity bound, so the process is always
// registered; there is no unsupervised fallback path.
func (m *Manager) SpawnSupervised(defIndex int, strategy proc.Strategy, maxRestarts int, windowMs int64) (*Agent, *proc.Process, error) {
	agent, err := m.Spawn(defIndex)
	if err != nil {
		return nil, nil, err
	}

	cfg := proc.DefaultSupervisionConfig()
	cfg.Strategy = strategy
	if maxRestarts > 0 {
		cfg.MaxRestarts = maxRestarts
	}
	if windowMs > 0 {
		cfg.WindowMs = windowMs
	}

	p := proc.NewProcess(0, 0, defIndex)
	p.Supervision = cfg
	p.AttachAgent(agent)
	m.scheduler.Spawn(p)
	return agent, p, nil
}

// resolveTools walks the function table for entries whose name has prefix
// "<agentName>$" (spec §4.3). A params schema is carried by a zero-body
// marker function named "<agentName>$<tool>$params"; since the bytecode
// format (spec §6) has no separate named-constant table, the compiler emits
// that marker's CodeOffset field as a pointer into the constant pool for
// the schema string itself, rather than treating CodeOffset as real code
// (DESIGN.md records this convention). Absent a marker, parameters fall
// back to arg0, arg1, ... typed str.
func (m *Manager) resolveTools(agentName string) []AgentTool {
	prefix := agentName + "$"
	var tools []AgentTool

	schemaMarkers := make(map[string]uint32) // tool name -> constant-pool offset
	toolFuncs := make(map[string]int)

	for i, fn := range m.image.Functions {
		name := m.image.ConstString(fn.NameIdx)
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := name[len(prefix):]
		if strings.HasSuffix(rest, "$params") {
			toolName := strings.TrimSuffix(rest, "$params")
			schemaMarkers[toolName] = fn.CodeOffset
			continue
		}
		if strings.Contains(rest, "$") {
			continue // some other derived name, not a direct tool
		}
		toolFuncs[rest] = i
	}

	for toolName, fnIdx := range toolFuncs {
		tool := AgentTool{Name: toolName, FunctionID: fnIdx}
		if offset, hasParams := schemaMarkers[toolName]; hasParams {
			names, types := parseParamSchema(m.image.ConstStringAt(offset))
			tool.ParamNames = names
			tool.ParamTypes = types
		}
		if tool.ParamNames == nil {
			fn := m.image.Functions[fnIdx]
			for i := 0; i < int(fn.Params); i++ {
				tool.ParamNames = append(tool.ParamNames, fmt.Sprintf("arg%d", i))
				tool.ParamTypes = append(tool.ParamTypes, "str")
			}
		}
		tools = append(tools, tool)
	}
	return tools
}

func parseParamSchema(schema string) ([]string, []string) {
	if schema == "" {
		return nil, nil
	}
	var names, types []string
	for _, pair := range strings.Split(schema, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			continue
		}
		names = append(names, strings.TrimSpace(parts[0]))
		types = append(types, strings.TrimSpace(parts[1]))
	}
	return names, types
}

// sendSync performs one blocking send/converse/history-append round (spec
// §4.3's SEND_MSG semantics). SendAsync runs it on a goroutine; the
// interpreter never calls it directly (the scheduler cannot afford to park
// on a blocking call), but it is the single code path both SendAsync and
// this package's tests exercise.
func (m *Manager) sendSync(ctx context.Context, agent *Agent, message string) string {
	agentID := agent.ID
	agent.AppendHistory(message)
	m.bus.Publish(trace.Event{Kind: trace.MessageSent, AgentID: agentID, AgentName: agent.Name, Data: message})

	result := m.converse(ctx, agent)
	agent.AppendHistory(result)
	m.bus.Publish(trace.Event{Kind: trace.MessageReceived, AgentID: agentID, AgentName: agent.Name, Data: result})
	return result
}

// SendAsync launches the request and returns a pending Future immediately
// (spec §4.3 SEND_ASYNC). The caller is expected to poll/await the Future;
// a goroutine here stands in for "a fresh Future is produced ... the caller
// continues executing" without blocking the interpreter. SEND_MSG (spec
// §4.3) is implemented on top of this too: `internal/interp` yields and
// polls the Future rather than blocking the single dispatch goroutine.
func (m *Manager) SendAsync(ctx context.Context, agent *Agent, message string) *Future {
	future := NewFuture(agent, uuid.NewString())
	go func() {
		result := m.sendSync(ctx, agent, message)
		if strings.HasPrefix(result, "Error:") {
			future.Fail(result)
		} else {
			future.Resolve(result)
		}
	}()
	return future
}

// converse drives one request through the retry/circuit-breaker envelope
// and, on a tool-use response, the sub-loop, until a terminal text (or
// error string) is ready.
func (m *Manager) converse(ctx context.Context, agent *Agent) string {
	var process *proc.Process
	if agent.Process() != nil {
		process = agent.Process()
	}

	attempt := 0
	for {
		if m.acct != nil && m.acct.Exceeded() {
			return "Error: " + m.acct.ExceededError()
		}

		resp, status, err := m.performRequest(ctx, agent)
		if err == nil {
			result, handled := m.handleResponse(ctx, agent, resp)
			if handled {
				return result
			}
			// Not reached: handleResponse reports every outcome, the
			// tool-iteration cap included, with handled == true.
			return "Error: Max tool iterations exceeded"
		}

		class := fabric.ClassifyHTTP(status, err.Error())
		if class != fabric.ClassRetriable || process == nil || process.Supervision == nil {
			m.bus.Publish(trace.Event{Kind: trace.ErrorEvent, AgentID: agent.ID, AgentName: agent.Name, Data: err.Error()})
			return "Error: " + err.Error()
		}

		cfg := process.Supervision
		if !cfg.Breaker.Allow() {
			return "Error: Circuit breaker open"
		}
		delay := fabric.Delay(cfg.Backoff, attempt, cfg.BaseDelayMs, cfg.MaxDelayMs)
		if delay > 0 {
			select {
			case <-ctx.Done():
				return "Error: " + ctx.Err().Error()
			case <-time.After(delay):
			}
		}
		cfg.RecordRestart()
		attempt++
		cfg.Breaker.RecordFailure()
	}
}

// performRequest issues one Messages API call for the agent's current
// history and returns the parsed response, publishing HttpStart/HttpDone.
func (m *Manager) performRequest(ctx context.Context, agent *Agent) (*httpseam.MessagesResponse, int, error) {
	// A send already over budget is vetoed outright without even reaching
	// the network (spec §4.9: "subsequent sends on any agent fail the same
	// way until the budget is reset").
	if m.acct != nil && m.acct.Exceeded() {
		return nil, 0, fmt.Errorf("%s", m.acct.ExceededError())
	}

	m.bus.Publish(trace.Event{Kind: trace.HTTPStart, AgentID: agent.ID, AgentName: agent.Name})

	req := &httpseam.MessagesRequest{
		Model:       agent.Model,
		System:      agent.System,
		Temperature: agent.Temperature,
		MaxTokens:   httpseam.DefaultMaxTokens,
		Messages:    m.buildMessages(agent),
		Tools:       m.buildToolDefs(agent),
	}

	handle := httpseam.Launch(m.client, ctx, req)
	resp, status, err := handle.GetResponse()

	m.bus.Publish(trace.Event{Kind: trace.HTTPDone, AgentID: agent.ID, AgentName: agent.Name})

	if err == nil && m.acct != nil {
		m.acct.RecordResponse(agent.Model, int64(resp.Usage.InputTokens), int64(resp.Usage.OutputTokens))
		// Before returning a success, budget_exceeded() is checked (spec
		// §4.9): the response that tips the accountant over becomes the
		// error itself, not just the ones after it.
		if m.acct.Exceeded() {
			return nil, status, fmt.Errorf("%s", m.acct.ExceededError())
		}
	}
	return resp, status, err
}

func (m *Manager) buildMessages(agent *Agent) []httpseam.Message {
	msgs := make([]httpseam.Message, 0, len(agent.History))
	role := "user"
	for _, text := range agent.History {
		msgs = append(msgs, httpseam.Message{
			Role:    role,
			Content: []httpseam.ContentBlock{{Type: "text", Text: text}},
		})
		if role == "user" {
			role = "assistant"
		} else {
			role = "user"
		}
	}
	return msgs
}

func (m *Manager) buildToolDefs(agent *Agent) []httpseam.Tool {
	if len(agent.Tools) == 0 {
		return nil
	}
	defs := make([]httpseam.Tool, 0, len(agent.Tools))
	for _, t := range agent.Tools {
		props := make(map[string]map[string]interface{}, len(t.ParamNames))
		for i, name := range t.ParamNames {
			props[name] = map[string]interface{}{"type": jsonSchemaType(t.ParamTypes[i])}
		}
		defs = append(defs, httpseam.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: httpseam.InputSchema{
				Type:       "object",
				Properties: props,
				Required:   t.ParamNames,
			},
		})
	}
	return defs
}

func jsonSchemaType(vegaType string) string {
	switch vegaType {
	case "int", "float":
		return "number"
	case "bool":
		return "boolean"
	default:
		return "string"
	}
}

