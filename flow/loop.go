package flow

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/flowstream/content"
	"github.com/hupe1980/flowstream/core"
	"github.com/hupe1980/flowstream/engine"
	"github.com/hupe1980/flowstream/logging"
	"github.com/hupe1980/flowstream/model"
)

// DefaultMaxIterations is the iteration limit applied when neither the loop
// options nor the RunContext configure one.
const DefaultMaxIterations = 10

// Options configures a StreamingLoop.
type Options struct {
	// MaxIterations bounds model turns per run. A RunContext whose limiter
	// already carries a limit keeps its own.
	MaxIterations int

	// ToolTimeout bounds each tool call. Negative disables the bound.
	ToolTimeout time.Duration

	// System is the default system prompt template, rendered against the run
	// state. RunContext.Params.System takes precedence.
	System string

	// Processors run after the default request processors.
	Processors []RequestProcessor

	// ToolExecutor replaces the default sequential executor.
	ToolExecutor ToolExecutor

	IterationCallback IterationCallback
	ToolCallback      ToolCallback

	// Logger is handed to the manager New creates when none is given. Run
	// logs through the RunContext logger.
	Logger logging.Logger
}

// StreamingLoop streams model turns, dispatches requested tools and reports
// every step through an engine.Manager.
type StreamingLoop struct {
	client     model.Client
	manager    *engine.Manager
	processors []RequestProcessor
	executor   ToolExecutor
	opts       Options
}

var _ Flow = (*StreamingLoop)(nil)

// New creates a loop calling client and emitting through manager. A nil
// manager gets a fresh one with default settings.
func New(client model.Client, manager *engine.Manager, optFns ...func(o *Options)) *StreamingLoop {
	opts := Options{
		MaxIterations: DefaultMaxIterations,
		ToolTimeout:   DefaultToolTimeout,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if manager == nil {
		manager = engine.NewManager(func(o *engine.Options) { o.Logger = opts.Logger })
	}

	executor := opts.ToolExecutor
	if executor == nil {
		timeout := opts.ToolTimeout
		if timeout < 0 {
			timeout = 0
		}
		executor = NewToolExecutor(ToolExecutorConfig{Timeout: timeout})
	}

	processors := append(DefaultProcessors(opts.System), opts.Processors...)

	return &StreamingLoop{
		client:     client,
		manager:    manager,
		processors: processors,
		executor:   executor,
		opts:       opts,
	}
}

// Manager returns the event manager the loop emits through.
func (l *StreamingLoop) Manager() *engine.Manager { return l.manager }

// Run drives rc to a terminal state. It emits flow.started first and exactly
// one of flow.completed or flow.failed last; a failure is preceded by an
// error event.
func (l *StreamingLoop) Run(rc *core.RunContext) error {
	if rc.Limiter.Max() == 0 {
		rc.Limiter.SetMax(l.opts.MaxIterations)
	}

	if rc.IsTerminal() {
		return l.outcome(rc)
	}

	start := time.Now()
	maxIter := rc.Limiter.Max()

	rc.Start()
	rc.LogInfo("flow.execution.start", "max_iterations", maxIter, "model", l.client.Info().Name)
	l.emit(core.NewFlowStartedEvent(rc.FlowID, map[string]any{core.KeyMaxIterations: maxIter}))

	var runErr error

	for runErr == nil && !rc.IsTerminal() {
		if err := rc.Err(); err != nil {
			runErr = fmt.Errorf("%w: %w", core.ErrCancelled, err)
			break
		}

		if rc.Limiter.Exhausted() {
			runErr = &core.MaxIterationsError{Limit: maxIter}
			break
		}

		runErr = l.iterate(rc)
	}

	iterations := rc.Limiter.Count()
	dur := time.Since(start)

	if runErr != nil {
		rc.Fail(runErr.Error())
	}

	if rc.IsFailed() {
		msg := rc.ErrorMessage()
		failure := errors.New(msg)

		rc.LogFlowExecution(iterations, dur, failure)

		l.emit(core.NewErrorEvent(msg, map[string]any{
			core.KeyFlowID:    rc.FlowID,
			core.KeyIteration: iterations,
		}))
		l.emit(core.NewFlowFailedEvent(rc.FlowID, failure))

		if runErr == nil {
			runErr = failure
		}

		return runErr
	}

	rc.LogFlowExecution(iterations, dur, nil)

	l.emit(core.NewFlowCompletedEvent(rc.FlowID, rc.Answer(), map[string]any{
		core.KeyIterations: iterations,
		core.KeyUsage:      rc.Usage().Map(),
		"duration_ms":      dur.Milliseconds(),
	}))

	return nil
}

// outcome reports the recorded result of an already terminal context.
func (l *StreamingLoop) outcome(rc *core.RunContext) error {
	if rc.IsFailed() {
		return errors.New(rc.ErrorMessage())
	}
	return nil
}

// iterate runs one model turn. Any panic inside it fails the run.
func (l *StreamingLoop) iterate(rc *core.RunContext) (err error) {
	iteration := rc.Limiter.Increment()

	defer func() {
		if r := recover(); r != nil {
			rc.LogError("flow.iteration.panic", "iteration", iteration, "recover", r)
			err = fmt.Errorf("iteration %d panicked: %v", iteration, r)
		}

		if err != nil {
			l.emit(core.NewIterationFailedEvent(iteration, err))
		}
	}()

	rc.SetPhase(core.PhaseRunning)
	l.emit(core.NewIterationStartedEvent(iteration))

	req, err := l.buildRequest(rc)
	if err != nil {
		return err
	}

	rc.SetPhase(core.PhaseAwaitingModel)

	resp, err := l.stream(rc, req, iteration)
	if err != nil {
		return err
	}

	rc.AddUsage(resp.Usage)

	if len(resp.Content) > 0 {
		rc.AddMessage(core.NewAssistantMessage(resp.Content...))
	}

	l.emit(core.NewIterationCompletedEvent(iteration, resp.Usage))

	if l.opts.IterationCallback != nil {
		l.opts.IterationCallback(iteration, resp, rc)
	}

	l.emitProgress(iteration, rc.Limiter.Max())

	switch stopReason(resp) {
	case model.StopEndTurn:
		rc.Complete(resp.Text())
	case model.StopToolUse:
		rc.SetPhase(core.PhaseToolDispatch)
		l.dispatch(rc, iteration, resp.ToolUses())
	default:
		rc.LogWarn("flow.iteration.unhandled_stop_reason", "iteration", iteration, "stop_reason", string(resp.StopReason))
	}

	return nil
}

func (l *StreamingLoop) buildRequest(rc *core.RunContext) (model.Request, error) {
	var req model.Request

	for _, p := range l.processors {
		if err := p.ProcessRequest(rc, &req); err != nil {
			return model.Request{}, fmt.Errorf("request processor %s failed: %w", p.Name(), err)
		}
	}

	req.Stream = true

	return req, nil
}

// stream reads one streamed response into a fresh buffer, emitting every
// text delta. A stream that cannot be opened or breaks falls back to a
// single non-streaming request.
func (l *StreamingLoop) stream(rc *core.RunContext, req model.Request, iteration int) (*model.Response, error) {
	s, err := l.client.Stream(rc.Context, req)
	if err != nil {
		return l.fallback(rc, req, iteration, err, 0)
	}
	defer s.Close()

	rc.SetPhase(core.PhaseStreaming)

	buf := content.NewBuffer()
	emitted := 0

	var (
		stop  model.StopReason
		usage core.TokenUsage
	)

	for s.Next() {
		d := s.Current()

		if d.Text != "" {
			buf.AddText(d.Text)
			emitted++
			l.emit(core.NewTokenEvent(d.Text, iteration))
		}

		if d.Block != nil {
			buf.AddBlock(d.Block)
		}

		if d.StopReason != "" {
			stop = d.StopReason
		}

		if d.Usage != nil {
			usage = *d.Usage
		}
	}

	if err := s.Err(); err != nil {
		return l.fallback(rc, req, iteration, err, emitted)
	}

	buf.FinishBlock()

	if fm, ok := s.(model.FinalMessager); ok {
		if final, ok := fm.FinalMessage(); ok && final != nil {
			return final, nil
		}
	}

	stats := buf.Statistics()
	rc.LogDebug("flow.stream.completed", "iteration", iteration, "chunks", stats.TotalChunks, "bytes", stats.TotalBytes)

	return &model.Response{Content: buf.Blocks(), StopReason: stop, Usage: usage}, nil
}

func (l *StreamingLoop) fallback(rc *core.RunContext, req model.Request, iteration int, cause error, emitted int) (*model.Response, error) {
	if ctxErr := rc.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrCancelled, ctxErr)
	}

	rc.LogWarn("flow.stream.fallback", "iteration", iteration, "discarded_tokens", emitted, "error", cause.Error())

	l.emit(core.NewWarningEvent("streaming failed, falling back to non-streaming request", map[string]any{
		"fallback":         true,
		"discarded_tokens": emitted,
		core.KeyError:      cause.Error(),
		core.KeyIteration:  iteration,
	}))

	rc.SetPhase(core.PhaseAwaitingModel)

	req.Stream = false

	resp, err := l.client.Complete(rc.Context, req)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w (stream error: %v)", err, cause)
	}

	if resp == nil {
		return nil, fmt.Errorf("model request returned no response (stream error: %v)", cause)
	}

	if text := resp.Text(); text != "" {
		ev := core.NewTokenEvent(text, iteration)
		ev.Data[core.KeyReplay] = true
		l.emit(ev)
	}

	return resp, nil
}

// dispatch runs every requested tool in order and appends one tool result
// message per invocation.
func (l *StreamingLoop) dispatch(rc *core.RunContext, iteration int, uses []core.ToolUseBlock) {
	for _, use := range uses {
		l.emit(core.NewToolStartedEvent(use.Name, use.ID, use.Input))

		result := l.executor.Execute(rc, use)

		rc.RecordToolCall(core.ToolCallRecord{
			Iteration: iteration,
			ToolUseID: use.ID,
			Name:      use.Name,
			Input:     use.Input,
			Result:    result.Content,
			IsError:   result.IsError,
		})

		l.emit(core.NewToolCompletedEvent(use.Name, use.ID, use.Input, result.Content, result.IsError))

		if l.opts.ToolCallback != nil {
			l.opts.ToolCallback(use.Name, use.Input, result)
		}

		rc.AddMessage(core.NewToolResultMessage(use.ID, result.Content, result.IsError))
	}
}

func (l *StreamingLoop) emitProgress(iteration, maxIter int) {
	ev := core.NewProgressEvent(iteration, maxIter, fmt.Sprintf("iteration %d of %d", iteration, maxIter))
	ev.Data[core.KeyIteration] = iteration
	ev.Data[core.KeyMaxIterations] = maxIter
	l.emit(ev)
}

func (l *StreamingLoop) emit(ev core.Event) {
	l.manager.EmitEvent(ev)
}

// stopReason resolves a missing stop reason from the response content.
func stopReason(resp *model.Response) model.StopReason {
	if resp.StopReason != "" {
		return resp.StopReason
	}

	if len(resp.ToolUses()) > 0 {
		return model.StopToolUse
	}

	return model.StopEndTurn
}
