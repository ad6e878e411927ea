package sse

import (
	"context"
	"time"

	"github.com/hupe1980/flowstream/core"
	"github.com/hupe1980/flowstream/logging"
)

// Default stream timings.
const (
	DefaultPollInterval = 25 * time.Millisecond
	DefaultKeepAlive    = 15 * time.Second
)

// StreamOptions configures Stream.
type StreamOptions struct {
	// PollInterval is the wait between queue drains when the queue is empty.
	PollInterval time.Duration

	// KeepAlive sends a comment frame after this much idle time. 0 disables it.
	KeepAlive time.Duration

	// UntilTerminal stops the stream after flow.completed or flow.failed.
	UntilTerminal bool

	Logger logging.Logger
}

// Stream drains q into w until a terminal event was written (when
// UntilTerminal is set), ctx is done or a write fails. Growth of the queue's
// dropped counter is reported as a warning frame carrying the number of
// events lost since the last report.
//
// Stream is the queue's single consumer; running two streams over one queue
// splits the events between them.
func Stream(ctx context.Context, w *Writer, q *core.EventQueue, optFns ...func(o *StreamOptions)) error {
	opts := StreamOptions{
		PollInterval:  DefaultPollInterval,
		KeepAlive:     DefaultKeepAlive,
		UntilTerminal: true,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	// drops that happened before the stream attached were never seen either
	dropped := 0
	lastWrite := time.Now()

	for {
		if n := q.DroppedEvents(); n > dropped {
			warning := core.NewWarningEvent("events dropped: queue full", map[string]any{
				"dropped":       n - dropped,
				"total_dropped": n,
			})
			if err := w.WriteEvent(warning); err != nil {
				return err
			}

			opts.Logger.Warn("sse.stream.dropped", "dropped", n-dropped, "total_dropped", n)

			dropped = n
			lastWrite = time.Now()
		}

		for _, ev := range q.DrainTo(0) {
			if err := w.WriteEvent(ev); err != nil {
				opts.Logger.Warn("sse.stream.write_failed", "event", ev.Type.String(), "error", err.Error())
				return err
			}

			lastWrite = time.Now()

			if opts.UntilTerminal && ev.Type.IsTerminal() {
				opts.Logger.Debug("sse.stream.completed", "event", ev.Type.String(), "frames", w.Frames())
				return nil
			}
		}

		if opts.KeepAlive > 0 && time.Since(lastWrite) >= opts.KeepAlive {
			if err := w.WriteComment("keep-alive"); err != nil {
				return err
			}
			lastWrite = time.Now()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
