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

// Package httpseam is the runtime's HTTP seam (spec §4.10, §5, §6): it wraps
// the Anthropic Messages wire protocol and exposes a non-blocking, pollable
// request handle so the interpreter thread never blocks on network I/O.
package httpseam

import "encoding/json"

// Message is one turn of conversation, Anthropic wire shape (spec §6).
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is a single content block within a Message (spec §6: text,
// tool_use, tool_result blocks all share this shape on the wire).
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	// Input is kept as raw JSON per field rather than unmarshaled into
	// interface{}, because the latter collapses the int/float distinction
	// (both decode to float64) that the tool-argument decoder needs to
	// preserve (spec §4.4 step 2: structural cues on the literal text).
	Input     map[string]json.RawMessage `json:"input,omitempty"`
	ToolUseID string                     `json:"tool_use_id,omitempty"`
	Content   string                     `json:"content,omitempty"`
}

// Tool is a tool definition sent to the model (spec §4.3 AgentTool).
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// InputSchema is the flat `name:type` tool parameter schema (spec §4.3:
// gojsonschema's nested JSON Schema is not wired in — see SPEC_FULL.md §3).
type InputSchema struct {
	Type       string                            `json:"type"`
	Properties map[string]map[string]interface{} `json:"properties,omitempty"`
	Required   []string                          `json:"required,omitempty"`
}

// MessagesRequest is the outbound request body (spec §6).
type MessagesRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	System      string    `json:"system,omitempty"`
	Tools       []Tool    `json:"tools,omitempty"`
}

// Usage is the token accounting block on a response (spec §6).
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

// MessagesResponse is the parsed response body (spec §6).
type MessagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// TextContent concatenates every text block in the response (the assistant
// reply, when there is no tool_use block).
func (r *MessagesResponse) TextContent() string {
	var out string
	for _, b := range r.Content {
		if b.Type == "text" {
			out += b.Text
		}
	}
	return out
}

// ToolUse returns the first tool_use block, if any.
func (r *MessagesResponse) ToolUse() (ContentBlock, bool) {
	for _, b := range r.Content {
		if b.Type == "tool_use" {
			return b, true
		}
	}
	return ContentBlock{}, false
}
