package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// SSE renders the event as a Server-Sent-Events frame:
//
//	event: <type>
//	data: <json>
//	<blank line>
//
// The JSON body is the MarshalJSON form and never contains raw newlines.
func (e Event) SSE() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", e.Type, err)
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(e.Type) + 16)
	buf.WriteString("event: ")
	buf.WriteString(string(e.Type))
	buf.WriteString("\ndata: ")
	buf.Write(body)
	buf.WriteString("\n\n")

	return buf.Bytes(), nil
}

// WriteSSE writes the SSE frame of ev to w.
func WriteSSE(w io.Writer, ev Event) error {
	frame, err := ev.SSE()
	if err != nil {
		return err
	}

	_, err = w.Write(frame)

	return err
}
