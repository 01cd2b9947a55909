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

package httpseam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultEndpoint is the Anthropic Messages API endpoint (spec §6).
	DefaultEndpoint = "https://api.anthropic.com/v1/messages"
	// DefaultMaxTokens matches spec §6's fixed request shape.
	DefaultMaxTokens = 4096
	// DefaultTimeout is the per-request timeout (spec §5: "default 60s").
	DefaultTimeout = 60 * time.Second
	anthropicVersion = "2023-06-01"
)

// Client performs one blocking Messages API call. It holds no per-agent
// state; callers construct one Request per send and drive it through a
// Handle (handle.go) to get the non-blocking polling behavior spec §5
// requires of the interpreter thread.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewClient constructs a Client. endpoint defaults to DefaultEndpoint when
// empty.
func NewClient(apiKey, endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// Do sends req and blocks until the response is fully read, or ctx is
// cancelled. Callers that need non-blocking semantics use Handle, which runs
// Do on a private helper goroutine (spec §5's "private OS thread").
func (c *Client) Do(ctx context.Context, req *MessagesRequest) (*MessagesResponse, int, error) {
	if req.MaxTokens == 0 {
		req.MaxTokens = DefaultMaxTokens
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, 0, fmt.Errorf("httpseam: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("httpseam: build request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("httpseam: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, httpResp.StatusCode, fmt.Errorf("httpseam: read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, httpResp.StatusCode, fmt.Errorf("httpseam: api error (status %d): %s", httpResp.StatusCode, string(respBody))
	}

	var parsed MessagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, httpResp.StatusCode, fmt.Errorf("httpseam: unmarshal response: %w", err)
	}
	return &parsed, httpResp.StatusCode, nil
}
