package sse

import (
	"errors"
	"net/http"

	"github.com/hupe1980/flowstream/core"
)

// StartFunc begins the work behind a request and returns the queue its
// events arrive on. Work keeps running in the background; the handler only
// reads the queue.
type StartFunc func(r *http.Request) (*core.EventQueue, error)

// HTTPError lets a StartFunc pick the response status.
type HTTPError struct {
	Status int
	Err    error
}

func (e *HTTPError) Error() string { return e.Err.Error() }

func (e *HTTPError) Unwrap() error { return e.Err }

// BadRequest wraps err as a 400 HTTPError.
func BadRequest(err error) error { return &HTTPError{Status: http.StatusBadRequest, Err: err} }

// SetHeaders sets the response headers of an event stream.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// Handler serves one event stream per request. The stream ends when the
// flow terminates or the client goes away.
func Handler(start StartFunc, optFns ...func(o *StreamOptions)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q, err := start(r)
		if err != nil {
			status := http.StatusInternalServerError

			var httpErr *HTTPError
			if errors.As(err, &httpErr) && httpErr.Status != 0 {
				status = httpErr.Status
			}

			http.Error(w, err.Error(), status)

			return
		}

		SetHeaders(w.Header())
		w.WriteHeader(http.StatusOK)

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		// client disconnects surface as ctx errors; nothing left to report
		_ = Stream(r.Context(), NewWriter(w), q, optFns...)
	})
}
