// Package content accumulates streamed model output into ordered content
// blocks and reports throughput statistics for the stream.
package content

import (
	"strings"
	"time"

	"github.com/hupe1980/flowstream/core"
)

// Statistics summarizes the text that flowed through a Buffer.
type Statistics struct {
	TotalChunks      int     `json:"total_chunks"`
	TotalBytes       int     `json:"total_bytes"`
	DurationSeconds  float64 `json:"duration_seconds"`
	BytesPerSecond   float64 `json:"bytes_per_second"`
	ChunksPerSecond  float64 `json:"chunks_per_second"`
	AverageChunkSize float64 `json:"average_chunk_size"`
}

// Buffer collects streamed text fragments and structured blocks.
//
// Blocks() always includes the in-progress text block, so a reader sees every
// fragment received so far at any point of the stream. A Buffer is owned by a
// single iteration and is not safe for concurrent use.
type Buffer struct {
	text      strings.Builder
	current   strings.Builder
	blocks    []core.Block
	chunks    int
	bytes     int
	startedAt time.Time
	lastAt    time.Time

	now func() time.Time
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{now: time.Now}
}

// AddText appends a fragment to the cumulative text and to the current block.
func (b *Buffer) AddText(text string) {
	if text == "" {
		return
	}

	now := b.clock()
	if b.chunks == 0 {
		b.startedAt = now
	}
	b.lastAt = now

	b.text.WriteString(text)
	b.current.WriteString(text)
	b.chunks++
	b.bytes += len(text)
}

// FinishBlock closes the current text block, if any.
func (b *Buffer) FinishBlock() {
	if b.current.Len() == 0 {
		return
	}

	b.blocks = append(b.blocks, core.TextBlock{Text: b.current.String()})
	b.current.Reset()
}

// AddBlock finishes pending text and appends block verbatim.
func (b *Buffer) AddBlock(block core.Block) {
	if block == nil {
		return
	}

	b.FinishBlock()
	b.blocks = append(b.blocks, block)
}

// Blocks returns finalized blocks followed by the open text block when it is
// non-empty. The returned slice is a copy.
func (b *Buffer) Blocks() []core.Block {
	out := make([]core.Block, len(b.blocks), len(b.blocks)+1)
	copy(out, b.blocks)

	if b.current.Len() > 0 {
		out = append(out, core.TextBlock{Text: b.current.String()})
	}

	return out
}

// Text returns every text fragment seen since the last Clear.
func (b *Buffer) Text() string { return b.text.String() }

// CurrentBlock returns the text of the open block.
func (b *Buffer) CurrentBlock() string { return b.current.String() }

// BlockCount returns len(Blocks()).
func (b *Buffer) BlockCount() int {
	n := len(b.blocks)
	if b.current.Len() > 0 {
		n++
	}
	return n
}

// IsEmpty reports whether no text and no blocks were added.
func (b *Buffer) IsEmpty() bool { return b.BlockCount() == 0 }

// Statistics derives throughput figures from the counters. Before any text
// arrives every field is zero.
func (b *Buffer) Statistics() Statistics {
	if b.chunks == 0 {
		return Statistics{}
	}

	stats := Statistics{
		TotalChunks:      b.chunks,
		TotalBytes:       b.bytes,
		DurationSeconds:  b.lastAt.Sub(b.startedAt).Seconds(),
		AverageChunkSize: float64(b.bytes) / float64(b.chunks),
	}

	if stats.DurationSeconds > 0 {
		stats.BytesPerSecond = float64(b.bytes) / stats.DurationSeconds
		stats.ChunksPerSecond = float64(b.chunks) / stats.DurationSeconds
	}

	return stats
}

// Clear resets the buffer to its initial state.
func (b *Buffer) Clear() {
	b.text.Reset()
	b.current.Reset()
	b.blocks = nil
	b.chunks = 0
	b.bytes = 0
	b.startedAt = time.Time{}
	b.lastAt = time.Time{}
}

func (b *Buffer) clock() time.Time {
	if b.now == nil {
		return time.Now()
	}
	return b.now()
}
