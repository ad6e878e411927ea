package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flowstream/core"
	"github.com/hupe1980/flowstream/model"
)

const textStream = `event: message_start
data: {"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":10,"output_tokens":1}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" world"}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":5}}

event: message_stop
data: {"type":"message_stop"}

`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(func(o *Options) {
		o.APIKey = "test-key"
		o.BaseURL = srv.URL
		o.Model = "claude-test"
		o.RequestOptions = []option.RequestOption{option.WithMaxRetries(0)}
	})
}

func TestClient_Stream(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, textStream)
	})

	s, err := c.Stream(context.Background(), model.Request{
		System:   "be brief",
		Messages: []core.Message{core.NewUserMessage("hi")},
		Stream:   true,
	})
	require.NoError(t, err)
	defer s.Close()

	var tokens []string
	var stop model.StopReason
	for s.Next() {
		d := s.Current()
		if d.Text != "" {
			tokens = append(tokens, d.Text)
		}
		if d.StopReason != "" {
			stop = d.StopReason
		}
	}
	require.NoError(t, s.Err())

	assert.Equal(t, []string{"Hello", " world"}, tokens)
	assert.Equal(t, model.StopEndTurn, stop)

	final, ok := s.(model.FinalMessager).FinalMessage()
	require.True(t, ok)
	assert.Equal(t, "Hello world", final.Text())
	assert.Equal(t, 10, final.Usage.InputTokens)
	assert.Equal(t, 5, final.Usage.OutputTokens)

	assert.Equal(t, true, body["stream"])
	assert.Equal(t, "claude-test", body["model"])
}

func TestClient_StreamTransportError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"overloaded"}}`)
	})

	s, err := c.Stream(context.Background(), model.Request{Messages: []core.Message{core.NewUserMessage("hi")}})
	require.NoError(t, err)

	assert.False(t, s.Next())
	assert.ErrorIs(t, s.Err(), model.ErrStreamFailed)

	_, ok := s.(model.FinalMessager).FinalMessage()
	assert.False(t, ok)
}

func TestClient_Complete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id":"msg_2","type":"message","role":"assistant","model":"claude-test",
			"content":[
				{"type":"text","text":"Checking."},
				{"type":"tool_use","id":"tu_1","name":"calc","input":{"expr":"1+1"}}
			],
			"stop_reason":"tool_use","stop_sequence":null,
			"usage":{"input_tokens":3,"output_tokens":4}
		}`)
	})

	resp, err := c.Complete(context.Background(), model.Request{Messages: []core.Message{core.NewUserMessage("hi")}})
	require.NoError(t, err)

	assert.Equal(t, model.StopToolUse, resp.StopReason)
	assert.Equal(t, "Checking.", resp.Text())
	uses := resp.ToolUses()
	require.Len(t, uses, 1)
	assert.Equal(t, "calc", uses[0].Name)
	assert.Equal(t, "1+1", uses[0].Input["expr"])
	assert.Equal(t, 7, resp.Usage.Total())
}

func TestBuildMessages_MergesToolResults(t *testing.T) {
	history := []core.Message{
		core.NewUserMessage("compute"),
		core.NewAssistantMessage(
			core.ToolUseBlock{ID: "a", Name: "calc"},
			core.ToolUseBlock{ID: "b", Name: "calc"},
		),
		core.NewToolResultMessage("a", "1", false),
		core.NewToolResultMessage("b", "Unknown tool: nope", true),
	}

	msgs, err := buildMessages(history)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Len(t, msgs[2].Content, 2)

	raw, err := json.Marshal(msgs[2])
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `"is_error":true`))
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{
		Name:        "calc",
		Description: "evaluates",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"expr": map[string]any{"type": "string"}},
			"required":   []any{"expr"},
		},
	}})

	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "calc", tools[0].OfTool.Name)
	assert.Equal(t, []string{"expr"}, tools[0].OfTool.InputSchema.Required)
}

func TestInfo(t *testing.T) {
	info := NewClient(func(o *Options) { o.APIKey = "k" }).Info()
	assert.Equal(t, "anthropic", info.Provider)
	assert.True(t, info.SupportsStreaming)
}
