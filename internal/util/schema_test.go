package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleArgs struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
	D []int  `json:"d,omitempty"`
	e string
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(sampleArgs{})

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	assert.NotContains(t, props, "e")

	assert.Equal(t, "integer", props["b"].(map[string]any)["type"])
	assert.Equal(t, "array", props["d"].(map[string]any)["type"])
	assert.Equal(t, "Field A", props["a"].(map[string]any)["description"])

	assert.ElementsMatch(t, []string{"a"}, schema["required"])
}

func TestCreateSchema_NonStruct(t *testing.T) {
	schema := CreateSchema(42)
	assert.Equal(t, "object", schema["type"])
	assert.Empty(t, schema["properties"])
}

func TestValidateParameters(t *testing.T) {
	schema, err := CompileSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		"required": []any{"x"},
	})
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateParameters(map[string]any{"x": 5}, schema))
	})

	t.Run("missing required", func(t *testing.T) {
		err := ValidateParameters(map[string]any{}, schema)

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "x", vErr.Field)
		assert.Len(t, vErr.Details, 1)
	})

	t.Run("wrong type", func(t *testing.T) {
		err := ValidateParameters(map[string]any{"x": "not-int"}, schema)

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "x", vErr.Field)
		assert.Contains(t, vErr.Error(), "'x'")
	})

	t.Run("nil schema", func(t *testing.T) {
		assert.NoError(t, ValidateParameters(map[string]any{"anything": true}, nil))
	})
}

func TestCompileSchema_Invalid(t *testing.T) {
	_, err := CompileSchema(map[string]any{"type": 12})
	assert.Error(t, err)
}
