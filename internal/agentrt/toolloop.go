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

	"github.com/vega-lang/vega/internal/httpseam"
	"github.com/vega-lang/vega/internal/trace"
)

// handleResponse inspects resp for a tool-use block (spec §4.4). If none is
// present, it is the terminal response: the assistant text is returned and
// handled is true. If a tool-use block is present, it runs the sub-loop,
// relaunching requests until a terminal response arrives or the iteration
// cap is hit. handled is always true: hitting MaxToolIterations returns
// "Error: Max tool iterations exceeded" and a failed tool-result request
// returns its error text, both as the result string.
func (m *Manager) handleResponse(ctx context.Context, agent *Agent, resp *httpseam.MessagesResponse) (string, bool) {
	current := resp
	for iteration := 0; ; iteration++ {
		toolUse, ok := current.ToolUse()
		if !ok {
			return current.TextContent(), true
		}
		if iteration >= MaxToolIterations {
			return "Error: Max tool iterations exceeded", true
		}

		m.bus.Publish(trace.Event{Kind: trace.ToolCall, AgentID: agent.ID, AgentName: agent.Name, Data: toolUse.Name})

		resultText := m.runTool(agent, toolUse)

		m.bus.Publish(trace.Event{Kind: trace.ToolResult, AgentID: agent.ID, AgentName: agent.Name, Data: resultText})

		next, _, err := m.performToolResultRequest(ctx, agent, current, toolUse, resultText)
		if err != nil {
			return "Error: " + err.Error(), true
		}
		current = next
	}
}

// runTool looks the tool up, decodes its arguments from the tool_use input
// by structural cue, and invokes it through the interpreter's ToolRunner,
// stringifying the result (spec §4.4 steps 1-3). Missing tool / runner
// errors surface as native-error strings rather than aborting the agent.
func (m *Manager) runTool(agent *Agent, toolUse httpseam.ContentBlock) string {
	tool, ok := agent.ToolByName(toolUse.Name)
	if !ok {
		return "Unknown tool '" + toolUse.Name + "'"
	}
	if m.runner == nil {
		return "Error: no tool runner installed"
	}

	args := DecodeToolArgs(tool, toolUse.Input)
	result, err := m.runner.RunFunction(tool.FunctionID, args)
	if err != nil {
		return "Error: " + err.Error()
	}
	return result.String()
}

// performToolResultRequest launches the next API call carrying the prior
// assistant content block, the tool-use id, and the tool result text (spec
// §4.4 step 4; the "newer" two-variant endpoint per spec §9's open
// question, since it is "the one invoked from the async path").
func (m *Manager) performToolResultRequest(ctx context.Context, agent *Agent, prior *httpseam.MessagesResponse, toolUse httpseam.ContentBlock, resultText string) (*httpseam.MessagesResponse, int, error) {
	m.bus.Publish(trace.Event{Kind: trace.HTTPStart, AgentID: agent.ID, AgentName: agent.Name})

	messages := m.buildMessages(agent)
	messages = append(messages,
		httpseam.Message{Role: "assistant", Content: prior.Content},
		httpseam.Message{Role: "user", Content: []httpseam.ContentBlock{{
			Type:      "tool_result",
			ToolUseID: toolUse.ID,
			Content:   resultText,
		}}},
	)

	req := &httpseam.MessagesRequest{
		Model:       agent.Model,
		System:      agent.System,
		Temperature: agent.Temperature,
		MaxTokens:   httpseam.DefaultMaxTokens,
		Messages:    messages,
		Tools:       m.buildToolDefs(agent),
	}

	handle := httpseam.Launch(m.client, ctx, req)
	resp, status, err := handle.GetResponse()

	m.bus.Publish(trace.Event{Kind: trace.HTTPDone, AgentID: agent.ID, AgentName: agent.Name})

	if err == nil && m.acct != nil {
		m.acct.RecordResponse(agent.Model, int64(resp.Usage.InputTokens), int64(resp.Usage.OutputTokens))
		if m.acct.Exceeded() {
			return nil, status, toolBudgetExceededErr(m.acct.ExceededError())
		}
	}
	return resp, status, err
}

type budgetExceededError string

func (e budgetExceededError) Error() string { return string(e) }

func toolBudgetExceededErr(msg string) error { return budgetExceededError(msg) }
