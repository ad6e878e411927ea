package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flowstream/core"
)

func TestBuffer_OpenBlockVisible(t *testing.T) {
	b := NewBuffer()
	for _, s := range []string{"Hel", "lo", ", ", "world"} {
		b.AddText(s)
	}

	blocks := b.Blocks()
	require.Len(t, blocks, 1)
	assert.Equal(t, core.TextBlock{Text: "Hello, world"}, blocks[0])
	assert.Equal(t, "Hello, world", b.CurrentBlock())
	assert.Equal(t, 1, b.BlockCount())
}

func TestBuffer_FinishThenAdd(t *testing.T) {
	b := NewBuffer()
	b.AddText("first")
	b.FinishBlock()
	b.AddText("x")

	blocks := b.Blocks()
	require.Len(t, blocks, 2)
	assert.Equal(t, core.TextBlock{Text: "first"}, blocks[0])
	assert.Equal(t, core.TextBlock{Text: "x"}, blocks[1])
	assert.Equal(t, "firstx", b.Text())
}

func TestBuffer_FinishEmptyIsNoop(t *testing.T) {
	b := NewBuffer()
	b.FinishBlock()
	b.FinishBlock()
	assert.True(t, b.IsEmpty())
	assert.Empty(t, b.Blocks())
}

func TestBuffer_AddBlockFinishesText(t *testing.T) {
	b := NewBuffer()
	b.AddText("Let me check")
	tu := core.ToolUseBlock{ID: "tu_1", Name: "search", Input: map[string]any{"q": "go"}}
	b.AddBlock(tu)
	b.AddText("done")

	blocks := b.Blocks()
	require.Len(t, blocks, 3)
	assert.Equal(t, core.TextBlock{Text: "Let me check"}, blocks[0])
	assert.Equal(t, tu, blocks[1])
	assert.Equal(t, core.TextBlock{Text: "done"}, blocks[2])
}

func TestBuffer_BlocksIsCopy(t *testing.T) {
	b := NewBuffer()
	b.AddText("a")
	b.FinishBlock()

	blocks := b.Blocks()
	blocks[0] = core.TextBlock{Text: "mutated"}
	assert.Equal(t, core.TextBlock{Text: "a"}, b.Blocks()[0])
}

func TestBuffer_Statistics(t *testing.T) {
	b := NewBuffer()
	assert.Equal(t, Statistics{}, b.Statistics())

	base := time.Unix(1000, 0)
	ticks := []time.Time{base, base.Add(time.Second), base.Add(2 * time.Second)}
	i := 0
	b.now = func() time.Time {
		t := ticks[i]
		i++
		return t
	}

	b.AddText("aaaa")
	b.AddText("bb")
	b.AddText("cccccc")

	stats := b.Statistics()
	assert.Equal(t, 3, stats.TotalChunks)
	assert.Equal(t, 12, stats.TotalBytes)
	assert.InDelta(t, 2.0, stats.DurationSeconds, 1e-9)
	assert.InDelta(t, 6.0, stats.BytesPerSecond, 1e-9)
	assert.InDelta(t, 1.5, stats.ChunksPerSecond, 1e-9)
	assert.InDelta(t, 4.0, stats.AverageChunkSize, 1e-9)
}

func TestBuffer_SingleChunkHasNoRate(t *testing.T) {
	b := NewBuffer()
	b.AddText("abc")

	stats := b.Statistics()
	assert.Equal(t, 1, stats.TotalChunks)
	assert.Zero(t, stats.DurationSeconds)
	assert.Zero(t, stats.BytesPerSecond)
}

func TestBuffer_Clear(t *testing.T) {
	b := NewBuffer()
	b.AddText("a")
	b.AddBlock(core.ToolUseBlock{ID: "1", Name: "t"})
	b.Clear()

	assert.True(t, b.IsEmpty())
	assert.Empty(t, b.Text())
	assert.Equal(t, Statistics{}, b.Statistics())
}
