package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flowstream/core"
	"github.com/hupe1980/flowstream/model"
)

func TestEventBuilder(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	ev := NewEventBuilder(core.EventTokenReceived).With(core.KeyToken, "hi").ID("ev-1").At(ts).Build()

	assert.Equal(t, core.EventTokenReceived, ev.Type)
	assert.Equal(t, "hi", ev.GetString(core.KeyToken))
	assert.Equal(t, "ev-1", ev.ID)
	assert.Equal(t, ts, ev.Timestamp)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Listen(core.NewTokenEvent("a", 1)))
	require.NoError(t, r.Listen(core.NewInfoEvent("x", nil)))
	require.NoError(t, r.Listen(core.NewTokenEvent("b", 1)))

	assert.Equal(t, []core.EventType{core.EventTokenReceived, core.EventInfo, core.EventTokenReceived}, r.Types())
	assert.Len(t, r.OfType(core.EventTokenReceived), 2)
	assert.Equal(t, "ab", r.Tokens())

	r.Reset()
	assert.Empty(t, r.Events())
}

func TestRunBuilder(t *testing.T) {
	rc := NewRunBuilder().FlowID("f1").User("hello").MaxIterations(4).System("sys").State(map[string]any{"k": 1}).Build()

	assert.Equal(t, "f1", rc.FlowID)
	assert.Equal(t, 4, rc.Limiter.Max())
	assert.Equal(t, "sys", rc.Params.System)
	require.Len(t, rc.Messages(), 1)
	assert.Equal(t, "hello", rc.Messages()[0].Text())

	v, ok := rc.GetState("k")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestTurns(t *testing.T) {
	text := TextTurn("a", "b")
	assert.Equal(t, "ab", text.Response().Text())

	call := ToolTurn("t1", "calc", map[string]any{"x": 1})
	resp := call.Response()
	assert.Equal(t, model.StopToolUse, resp.StopReason)
	require.Len(t, resp.ToolUses(), 1)
	assert.Equal(t, "calc", resp.ToolUses()[0].Name)
}
