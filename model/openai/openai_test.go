package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flowstream/core"
	"github.com/hupe1980/flowstream/model"
)

const toolStream = `data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[{"index":0,"delta":{"role":"assistant","content":"Let me "},"finish_reason":null}]}

data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[{"index":0,"delta":{"content":"check."},"finish_reason":null}]}

data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"calc","arguments":"{\"expr\":"}}]},"finish_reason":null}]}

data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"1+1\"}"}}]},"finish_reason":null}]}

data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}

data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[],"usage":{"prompt_tokens":8,"completion_tokens":6,"total_tokens":14}}

data: [DONE]

`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(func(o *Options) {
		o.APIKey = "test-key"
		o.BaseURL = srv.URL
		o.Model = "gpt-test"
		o.RequestOptions = []option.RequestOption{option.WithMaxRetries(0)}
	})
}

func TestClient_StreamAggregatesToolCalls(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, toolStream)
	})

	s, err := c.Stream(context.Background(), model.Request{Messages: []core.Message{core.NewUserMessage("1+1?")}})
	require.NoError(t, err)
	defer s.Close()

	var text string
	var stop model.StopReason
	for s.Next() {
		d := s.Current()
		text += d.Text
		if d.StopReason != "" {
			stop = d.StopReason
		}
	}
	require.NoError(t, s.Err())
	assert.Equal(t, "Let me check.", text)
	assert.Equal(t, model.StopToolUse, stop)

	final, ok := s.(model.FinalMessager).FinalMessage()
	require.True(t, ok)
	assert.Equal(t, "Let me check.", final.Text())
	uses := final.ToolUses()
	require.Len(t, uses, 1)
	assert.Equal(t, "call_1", uses[0].ID)
	assert.Equal(t, "1+1", uses[0].Input["expr"])
	assert.Equal(t, core.TokenUsage{InputTokens: 8, OutputTokens: 6}, final.Usage)
}

func TestClient_StreamTransportError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"error":{"message":"bad gateway"}}`)
	})

	s, err := c.Stream(context.Background(), model.Request{Messages: []core.Message{core.NewUserMessage("x")}})
	require.NoError(t, err)
	assert.False(t, s.Next())
	assert.ErrorIs(t, s.Err(), model.ErrStreamFailed)
}

func TestClient_Complete(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id":"c2","object":"chat.completion","created":1,"model":"gpt-test",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"2"}}],
			"usage":{"prompt_tokens":4,"completion_tokens":1,"total_tokens":5}
		}`)
	})

	resp, err := c.Complete(context.Background(), model.Request{
		System:   "math",
		Messages: []core.Message{core.NewUserMessage("1+1?")},
	})
	require.NoError(t, err)
	assert.Equal(t, "2", resp.Text())
	assert.Equal(t, model.StopEndTurn, resp.StopReason)
	assert.Equal(t, 5, resp.Usage.Total())

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestBuildMessages_ToolRoundTrip(t *testing.T) {
	msgs, err := buildMessages(model.Request{Messages: []core.Message{
		core.NewUserMessage("compute"),
		core.NewAssistantMessage(core.ToolUseBlock{ID: "call_1", Name: "calc", Input: map[string]any{"expr": "1+1"}}),
		core.NewToolResultMessage("call_1", "2", false),
	}})
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	require.NotNil(t, msgs[1].OfAssistant)
	assert.Equal(t, "call_1", msgs[1].OfAssistant.ToolCalls[0].ID)
	assert.JSONEq(t, `{"expr":"1+1"}`, msgs[1].OfAssistant.ToolCalls[0].Function.Arguments)
	require.NotNil(t, msgs[2].OfTool)
	assert.Equal(t, "call_1", msgs[2].OfTool.ToolCallID)
}

func TestStopReason(t *testing.T) {
	assert.Equal(t, model.StopEndTurn, stopReason("stop"))
	assert.Equal(t, model.StopToolUse, stopReason("tool_calls"))
	assert.Equal(t, model.StopMaxTokens, stopReason("length"))
	assert.Equal(t, model.StopReason("content_filter"), stopReason("content_filter"))
}
