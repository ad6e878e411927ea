package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/flowstream/core"
)

// ErrScriptExhausted is returned when a ScriptedClient has no turns left.
var ErrScriptExhausted = errors.New("scripted client: no turns left")

// Turn scripts one model response.
type Turn struct {
	// Tokens are streamed as text deltas in order.
	Tokens []string

	// Blocks are streamed after Tokens, one delta each (tool uses).
	Blocks []core.Block

	StopReason StopReason
	Usage      core.TokenUsage

	// OpenErr makes Stream fail before any delta.
	OpenErr error

	// StreamErr breaks the stream after FailAfter deltas. The turn stays
	// pending so the next Complete call answers it.
	StreamErr error
	FailAfter int

	// CompleteErr makes Complete fail for this turn.
	CompleteErr error

	// Final exposes the assembled response through FinalMessager.
	Final bool
}

// Response assembles the complete response of the turn.
func (t Turn) Response() *Response {
	var content []core.Block

	text := ""
	for _, tok := range t.Tokens {
		text += tok
	}

	if text != "" {
		content = append(content, core.TextBlock{Text: text})
	}

	content = append(content, t.Blocks...)

	stop := t.StopReason
	if stop == "" {
		stop = StopEndTurn
	}

	return &Response{Content: content, StopReason: stop, Usage: t.Usage}
}

// ScriptedClient is a deterministic in-memory Client useful for tests &
// examples. Each Stream call consumes the next Turn; Complete answers a turn
// left pending by a failed stream, or else consumes the next one. Every
// request is recorded.
type ScriptedClient struct {
	mu       sync.Mutex
	info     Info
	turns    []Turn
	pending  *Turn
	requests []Request
}

// NewScriptedClient constructs a ScriptedClient replaying turns in order.
func NewScriptedClient(turns ...Turn) *ScriptedClient {
	return &ScriptedClient{
		info: Info{
			Name:              "scripted",
			Provider:          "scripted",
			SupportsTools:     true,
			SupportsStreaming: true,
		},
		turns: turns,
	}
}

// AddTurn appends turns to the script.
func (c *ScriptedClient) AddTurn(turns ...Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns, turns...)
}

// Requests returns every request received so far.
func (c *ScriptedClient) Requests() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Request, len(c.requests))
	copy(out, c.requests)

	return out
}

// Remaining returns the number of unconsumed turns.
func (c *ScriptedClient) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.turns)
}

func (c *ScriptedClient) next(req Request) (Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)

	if len(c.turns) == 0 {
		return Turn{}, ErrScriptExhausted
	}

	t := c.turns[0]
	c.turns = c.turns[1:]

	return t, nil
}

// Stream implements Client.
func (c *ScriptedClient) Stream(ctx context.Context, req Request) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t, err := c.next(req)
	if err != nil {
		return nil, err
	}

	if t.OpenErr != nil {
		c.setPending(&t)
		return nil, t.OpenErr
	}

	deltas := make([]Delta, 0, len(t.Tokens)+len(t.Blocks)+1)
	for _, tok := range t.Tokens {
		deltas = append(deltas, Delta{Text: tok})
	}
	for _, b := range t.Blocks {
		deltas = append(deltas, Delta{Block: b})
	}

	usage := t.Usage
	deltas = append(deltas, Delta{StopReason: t.Response().StopReason, Usage: &usage})

	return &scriptedStream{ctx: ctx, client: c, turn: t, deltas: deltas, pos: -1}, nil
}

func (c *ScriptedClient) setPending(t *Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = t
}

// Complete implements Client.
func (c *ScriptedClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	var t Turn
	if pending != nil {
		c.mu.Lock()
		c.requests = append(c.requests, req)
		c.mu.Unlock()
		t = *pending
	} else {
		var err error
		if t, err = c.next(req); err != nil {
			return nil, err
		}
	}

	if t.CompleteErr != nil {
		return nil, t.CompleteErr
	}

	return t.Response(), nil
}

// Info implements Client.
func (c *ScriptedClient) Info() Info { return c.info }

type scriptedStream struct {
	ctx    context.Context
	client *ScriptedClient
	turn   Turn
	deltas []Delta
	pos    int
	err    error
	done   bool
}

func (s *scriptedStream) Next() bool {
	if s.done {
		return false
	}

	if err := s.ctx.Err(); err != nil {
		s.fail(err)
		return false
	}

	if s.turn.StreamErr != nil && s.pos+1 >= s.turn.FailAfter {
		s.client.setPending(&s.turn)
		s.fail(fmt.Errorf("%w: %w", ErrStreamFailed, s.turn.StreamErr))
		return false
	}

	s.pos++
	if s.pos >= len(s.deltas) {
		s.done = true
		return false
	}

	return true
}

func (s *scriptedStream) fail(err error) {
	s.err = err
	s.done = true
}

func (s *scriptedStream) Current() Delta {
	if s.pos < 0 || s.pos >= len(s.deltas) {
		return Delta{}
	}
	return s.deltas[s.pos]
}

func (s *scriptedStream) Err() error { return s.err }

func (s *scriptedStream) Close() error {
	s.done = true
	return nil
}

// FinalMessage implements FinalMessager for turns scripted with Final.
func (s *scriptedStream) FinalMessage() (*Response, bool) {
	if !s.turn.Final || !s.done || s.err != nil || s.pos < len(s.deltas) {
		return nil, false
	}
	return s.turn.Response(), true
}
