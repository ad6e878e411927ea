package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		state map[string]any
		want  string
	}{
		{"plain text", "You are helpful.", nil, "You are helpful."},
		{"variable", "Hello {{.user}}", map[string]any{"user": "Ada"}, "Hello Ada"},
		{"default", "Hi {{default \"there\" .user}}", map[string]any{}, "Hi there"},
		{"upper", "{{upper .x}}", map[string]any{"x": "abc"}, "ABC"},
		{"title", "{{title .x}}", map[string]any{"x": "hELLO"}, "Hello"},
		{"join", "{{join \", \" .items}}", map[string]any{"items": []any{"a", 1}}, "a, 1"},
		{"no escaping", "{{.q}}", map[string]any{"q": "<a & b>"}, "<a & b>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderTemplate(tt.text, tt.state)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderTemplate_ParseError(t *testing.T) {
	_, err := RenderTemplate("{{ .x ", nil)
	assert.Error(t, err)
}
