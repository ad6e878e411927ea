package sse

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/hupe1980/flowstream/core"
)

// Writer writes SSE frames and flushes after each one when the destination
// supports it. It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	frames  int
}

// NewWriter wraps w. If w implements http.Flusher every frame is flushed.
func NewWriter(w io.Writer) *Writer {
	f, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: f}
}

// WriteEvent writes ev as one frame.
func (w *Writer) WriteEvent(ev core.Event) error {
	frame, err := ev.SSE()
	if err != nil {
		return err
	}

	return w.write(frame)
}

// WriteComment writes a comment frame, used as keep-alive. Newlines in text
// are folded into separate comment lines.
func (w *Writer) WriteComment(text string) error {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(&b, ": %s\n", line)
	}
	b.WriteString("\n")

	return w.write([]byte(b.String()))
}

func (w *Writer) write(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.w.Write(frame); err != nil {
		return fmt.Errorf("sse write: %w", err)
	}

	w.frames++

	if w.flusher != nil {
		w.flusher.Flush()
	}

	return nil
}

// Frames returns how many frames were written.
func (w *Writer) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.frames
}
