// Package flowstream provides a high-level façade over the event engine and
// the streaming execution loop enabling rapid construction of streaming,
// tool using model flows. Most applications interact with this package by:
//  1. Creating a Flowstream via New() (optionally from a config.Config)
//  2. Registering one or more tools
//  3. Running prompts synchronously (Run), in the background (Start) or
//     behind an HTTP endpoint streaming Server-Sent-Events (SSEHandler)
//
// Every run gets its own engine.Manager and event queue, so concurrent runs
// never interleave their events. All defaults are safe for local development
// and testing.
package flowstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/flowstream/config"
	"github.com/hupe1980/flowstream/core"
	"github.com/hupe1980/flowstream/engine"
	"github.com/hupe1980/flowstream/flow"
	"github.com/hupe1980/flowstream/logging"
	"github.com/hupe1980/flowstream/metrics"
	"github.com/hupe1980/flowstream/model"
	anthropicmodel "github.com/hupe1980/flowstream/model/anthropic"
	openaimodel "github.com/hupe1980/flowstream/model/openai"
	"github.com/hupe1980/flowstream/sse"
	"github.com/hupe1980/flowstream/tool"
)

// ErrNoClient is returned when no model client is given and the configured
// provider cannot build one.
var ErrNoClient = errors.New("flowstream: no model client")

// Options configures the Flowstream instance.
type Options struct {
	// Config supplies loop, event, logging and server settings. Defaults to
	// config.Default().
	Config config.Config

	// Client overrides the client built from Config.Model.
	Client model.Client

	// Tools are registered at construction.
	Tools []core.Tool

	// Metrics, when set, is attached to every run's manager.
	Metrics *metrics.Collector

	// Observers receive flow lifecycle notifications of every run.
	Observers []engine.LifecycleObserver

	// Listeners are subscribed to every run's manager.
	Listeners []engine.Handler

	IterationCallback flow.IterationCallback
	ToolCallback      flow.ToolCallback

	// Logger (defaults to a logger built from Config.Logging if nil)
	Logger logging.Logger
}

// Flowstream is the high-level façade aggregating model client, tools and
// per-run event plumbing.
type Flowstream struct {
	opts   Options
	client model.Client
	tools  *tool.Registry
	logger logging.Logger
}

// New creates a Flowstream. Without an explicit Client the client is built
// from Config.Model.
func New(optFns ...func(o *Options)) (*Flowstream, error) {
	opts := Options{
		Config: config.Default(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = NewLogger(opts.Config.Logging)
	}

	client := opts.Client
	if client == nil {
		var err error
		if client, err = NewClient(opts.Config.Model); err != nil {
			return nil, err
		}
	}

	return &Flowstream{
		opts:   opts,
		client: client,
		tools:  tool.NewRegistry(opts.Tools...),
		logger: opts.Logger,
	}, nil
}

// NewClient builds the model client selected by cfg.Provider.
func NewClient(cfg config.ModelConfig) (model.Client, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return anthropicmodel.NewClient(func(o *anthropicmodel.Options) {
			if cfg.Name != "" {
				o.Model = sdkanthropic.Model(cfg.Name)
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.MaxTokens)
			}
			o.Temperature = cfg.Temperature
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case config.ProviderOpenAI:
		return openaimodel.NewClient(func(o *openaimodel.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(cfg.MaxTokens)
			}
			o.Temperature = cfg.Temperature
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case config.ProviderScripted:
		return nil, fmt.Errorf("%w: the scripted provider must be passed as Options.Client", ErrNoClient)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNoClient, cfg.Provider)
	}
}

// NewLogger builds the structured logger described by cfg.
func NewLogger(cfg config.LoggingConfig) logging.Logger {
	lvl, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		lvl = logging.LogLevelInfo
	}

	return logging.NewSlogLogger(lvl, cfg.Format, cfg.AddSource).WithComponent("flowstream")
}

// Client returns the model client.
func (f *Flowstream) Client() model.Client { return f.client }

// Tools returns the tool registry shared by all runs.
func (f *Flowstream) Tools() *tool.Registry { return f.tools }

// RegisterTool adds t to the registry.
func (f *Flowstream) RegisterTool(t core.Tool) error { return f.tools.Register(t) }

// Logger returns the façade logger.
func (f *Flowstream) Logger() logging.Logger { return f.logger }

// NewManager creates the event manager of one run, with queue size, default
// registrations, observers and metrics applied.
func (f *Flowstream) NewManager() *engine.Manager {
	cfg := f.opts.Config.Events

	observers := append([]engine.LifecycleObserver{engine.NewLoggingObserver(f.logger)}, f.opts.Observers...)

	m := engine.NewManager(func(o *engine.Options) {
		o.QueueSize = cfg.QueueSize
		o.RegisterDefaults = cfg.RegisterDefaults
		o.Observers = observers
		o.Logger = f.logger
	})

	for _, l := range f.opts.Listeners {
		m.Subscribe(l)
	}

	if f.opts.Metrics != nil {
		f.opts.Metrics.Attach(m)
	}

	return m
}

// RunOptions configures one run.
type RunOptions struct {
	FlowID        string
	System        string
	History       []core.Message
	State         map[string]any
	MaxIterations int
}

// Run is a flow executing in the background.
type Run struct {
	Context *core.RunContext
	Manager *engine.Manager

	done chan struct{}
	err  error
}

// Done is closed when the run reached a terminal state.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run ends and returns its failure, if any.
func (r *Run) Wait() error {
	<-r.done
	return r.err
}

// Queue returns the queue the run's events arrive on.
func (r *Run) Queue() *core.EventQueue { return r.Manager.Queue() }

// Start launches prompt in the background and returns immediately.
func (f *Flowstream) Start(ctx context.Context, prompt string, optFns ...func(o *RunOptions)) *Run {
	ro := RunOptions{}
	for _, fn := range optFns {
		fn(&ro)
	}

	msgs := append([]core.Message(nil), ro.History...)
	msgs = append(msgs, core.NewUserMessage(prompt))

	mcfg := f.opts.Config.Model

	rc := core.NewRunContext(ctx, func(o *core.RunContextOptions) {
		o.FlowID = ro.FlowID
		o.Tools = f.tools
		o.Messages = msgs
		o.State = ro.State
		o.MaxIterations = ro.MaxIterations
		o.Logger = f.logger
		o.Params = core.ModelParams{
			Model:       mcfg.Name,
			System:      ro.System,
			MaxTokens:   mcfg.MaxTokens,
			Temperature: mcfg.Temperature,
		}
	})

	m := f.NewManager()

	loop := flow.New(f.client, m, func(o *flow.Options) {
		o.MaxIterations = f.opts.Config.Loop.MaxIterations
		o.ToolTimeout = f.opts.Config.Loop.ToolTimeout
		o.System = mcfg.System
		o.IterationCallback = f.opts.IterationCallback
		o.ToolCallback = f.opts.ToolCallback
		o.Logger = f.logger
	})

	run := &Run{Context: rc, Manager: m, done: make(chan struct{})}

	go func() {
		defer close(run.done)

		run.err = loop.Run(rc)

		if f.opts.Metrics != nil {
			f.opts.Metrics.ObserveManager(m)
		}
	}()

	return run
}

// Result is the outcome of a synchronous run.
type Result struct {
	Answer   string
	Snapshot core.RunSnapshot
	Events   []core.Event
}

// Run executes prompt synchronously and returns the answer together with
// every event the run's queue retained.
func (f *Flowstream) Run(ctx context.Context, prompt string, optFns ...func(o *RunOptions)) (*Result, error) {
	run := f.Start(ctx, prompt, optFns...)
	err := run.Wait()

	return &Result{
		Answer:   run.Context.Answer(),
		Snapshot: run.Context.Snapshot(),
		Events:   run.Queue().DrainTo(0),
	}, err
}

type streamRequest struct {
	Prompt string         `json:"prompt"`
	System string         `json:"system,omitempty"`
	State  map[string]any `json:"state,omitempty"`
}

// SSEHandler serves one run per request as an event stream. The prompt is
// read from the "q" query parameter or, for POST, from a JSON body
// {"prompt": "...", "system": "...", "state": {...}}. A client disconnect
// cancels the run.
func (f *Flowstream) SSEHandler() http.Handler {
	scfg := f.opts.Config.Server

	return sse.Handler(func(r *http.Request) (*core.EventQueue, error) {
		req := streamRequest{Prompt: r.URL.Query().Get("q")}

		if r.Method == http.MethodPost {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return nil, sse.BadRequest(fmt.Errorf("decode request: %w", err))
			}
		}

		if strings.TrimSpace(req.Prompt) == "" {
			return nil, sse.BadRequest(errors.New("prompt is required"))
		}

		run := f.Start(r.Context(), req.Prompt, func(o *RunOptions) {
			o.System = req.System
			o.State = req.State
		})

		return run.Queue(), nil
	}, func(o *sse.StreamOptions) {
		o.PollInterval = scfg.PollInterval
		o.KeepAlive = scfg.KeepAlive
		o.Logger = f.logger
	})
}

// MetricsHandler returns the Prometheus endpoint, or nil without metrics.
func (f *Flowstream) MetricsHandler() http.Handler {
	if f.opts.Metrics == nil {
		return nil
	}
	return f.opts.Metrics.Handler()
}

// Mux returns a ServeMux with the stream endpoint and, when metrics are
// configured, the metrics endpoint mounted at the configured paths.
func (f *Flowstream) Mux() *http.ServeMux {
	scfg := f.opts.Config.Server

	mux := http.NewServeMux()
	mux.Handle(scfg.StreamPath, f.SSEHandler())

	if h := f.MetricsHandler(); h != nil {
		mux.Handle(scfg.MetricsPath, h)
	}

	return mux
}
