package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flowstream/core"
	"github.com/hupe1980/flowstream/internal/testutil"
	"github.com/hupe1980/flowstream/model"
	"github.com/hupe1980/flowstream/tool"
)

func TestParamsProcessor(t *testing.T) {
	temp := 0.3
	rc := core.NewRunContext(context.Background(), func(o *core.RunContextOptions) {
		o.Params = core.ModelParams{Model: "m-1", MaxTokens: 256, Temperature: &temp}
	})

	var req model.Request
	require.NoError(t, NewParamsProcessor().ProcessRequest(rc, &req))

	assert.Equal(t, "m-1", req.Model)
	assert.Equal(t, 256, req.MaxTokens)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.3, *req.Temperature, 1e-9)
}

func TestInstructionsProcessor(t *testing.T) {
	t.Run("fallback rendered against state", func(t *testing.T) {
		rc := testutil.NewRunBuilder().State(map[string]any{"user": "Ada"}).Build()

		var req model.Request
		require.NoError(t, NewInstructionsProcessor("Help {{.user}}.").ProcessRequest(rc, &req))
		assert.Equal(t, "Help Ada.", req.System)
	})

	t.Run("run system wins", func(t *testing.T) {
		rc := testutil.NewRunBuilder().System("own").Build()

		var req model.Request
		require.NoError(t, NewInstructionsProcessor("default").ProcessRequest(rc, &req))
		assert.Equal(t, "own", req.System)
	})

	t.Run("empty leaves request untouched", func(t *testing.T) {
		rc := testutil.NewRunBuilder().Build()

		var req model.Request
		require.NoError(t, NewInstructionsProcessor("").ProcessRequest(rc, &req))
		assert.Empty(t, req.System)
	})

	t.Run("bad template", func(t *testing.T) {
		rc := testutil.NewRunBuilder().Build()

		var req model.Request
		err := NewInstructionsProcessor("{{ .x ").ProcessRequest(rc, &req)
		assert.ErrorContains(t, err, "failed to render template")
	})
}

func TestContentsAndToolsProcessors(t *testing.T) {
	rc := testutil.NewRunBuilder().User("hi").Tools(tool.NewRegistry(calculator())).Build()

	var req model.Request
	for _, p := range DefaultProcessors("") {
		require.NoError(t, p.ProcessRequest(rc, &req), p.Name())
	}

	require.Len(t, req.Messages, 1)
	assert.Equal(t, core.RoleUser, req.Messages[0].Role)

	require.Len(t, req.Tools, 1)
	assert.Equal(t, "add", req.Tools[0].Name)
	assert.Equal(t, "object", req.Tools[0].InputSchema["type"])
	assert.False(t, req.Stream)
}

func TestToolExecutor_UnknownTool(t *testing.T) {
	rc := testutil.NewRunBuilder().Build()

	res := NewToolExecutor(ToolExecutorConfig{}).Execute(rc, core.ToolUseBlock{ID: "1", Name: "nope"})

	assert.Equal(t, UnknownToolResult("nope"), res)
	assert.True(t, res.IsError)
	assert.Equal(t, "Unknown tool: nope", res.Content)
}

func TestToolExecutor_NilInputBecomesEmptyMap(t *testing.T) {
	var got map[string]any
	echo := tool.NewFunctionTool("echo", "Echoes", nil, func(_ context.Context, in map[string]any) (any, error) {
		got = in
		return "ok", nil
	})

	rc := testutil.NewRunBuilder().Tools(tool.NewRegistry(echo)).Build()

	res := NewToolExecutor(ToolExecutorConfig{}).Execute(rc, core.ToolUseBlock{ID: "1", Name: "echo"})

	assert.False(t, res.IsError)
	assert.NotNil(t, got)
}
