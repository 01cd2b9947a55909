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
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientDoSuccess(t *testing.T) {
	srv := newTestServer(t, 200, `{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":"hello"}],"model":"claude-sonnet-4","stop_reason":"end_turn","usage":{"input_tokens":5,"output_tokens":2}}`)

	c := NewClient("test-key", srv.URL)
	resp, code, err := c.Do(context.Background(), &MessagesRequest{Model: "claude-sonnet-4", Messages: []Message{{Role: "user", Content: []ContentBlock{{Type: "text", Text: "hi"}}}}})
	require.NoError(t, err)
	assert.Equal(t, 200, code)
	assert.Equal(t, "hello", resp.TextContent())
	assert.Equal(t, 5, resp.Usage.InputTokens)
}

func TestClientDoHTTPError(t *testing.T) {
	srv := newTestServer(t, 529, `{"error":"overloaded"}`)
	c := NewClient("test-key", srv.URL)
	_, code, err := c.Do(context.Background(), &MessagesRequest{Model: "m"})
	assert.Error(t, err)
	assert.Equal(t, 529, code)
}

func TestHandleLaunchPollGetResponse(t *testing.T) {
	srv := newTestServer(t, 200, `{"id":"msg_2","content":[{"type":"tool_use","id":"tu_1","name":"search","input":{"q":"x"}}],"usage":{"input_tokens":1,"output_tokens":1}}`)
	c := NewClient("test-key", srv.URL)

	h := Launch(c, context.Background(), &MessagesRequest{Model: "m"})
	resp, _, err := h.GetResponse()
	require.NoError(t, err)
	tu, ok := resp.ToolUse()
	require.True(t, ok)
	assert.Equal(t, "search", tu.Name)
}

func TestHandleCancelJoins(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		close(blocked)
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL)
	h := Launch(c, context.Background(), &MessagesRequest{Model: "m"})
	time.Sleep(20 * time.Millisecond)
	h.Cancel()

	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("server handler was not cancelled")
	}
}
