// Package metrics exposes flow execution as Prometheus metrics. A Collector
// subscribes to any number of engine.Managers and derives counters from their
// event streams; queue and consumer health of a finished run is added with
// ObserveManager.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/flowstream/core"
	"github.com/hupe1980/flowstream/engine"
)

// Collector holds all Prometheus metrics of the event pipeline.
type Collector struct {
	registry *prometheus.Registry

	// Event metrics
	EventsTotal *prometheus.CounterVec

	// Flow metrics
	FlowsTotal        *prometheus.CounterVec
	IterationDuration prometheus.Histogram
	TokensTotal       *prometheus.CounterVec
	FallbacksTotal    prometheus.Counter

	// Tool metrics
	ToolCallsTotal *prometheus.CounterVec

	// Queue and consumer metrics
	QueueDepth       prometheus.Gauge
	QueueUtilization prometheus.Gauge
	EventsDropped    prometheus.Counter
	ConsumerFailures *prometheus.CounterVec

	// direct times iterations fed through Observe.
	direct *iterationTracker
}

// iterationTracker pairs iteration.started with iteration.completed of one
// event source. Iteration numbers restart with every flow, so each manager
// attachment owns its tracker.
type iterationTracker struct {
	mu     sync.Mutex
	starts map[int]time.Time
}

func newIterationTracker() *iterationTracker {
	return &iterationTracker{starts: map[int]time.Time{}}
}

func (t *iterationTracker) start(n int, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.starts[n] = at
}

func (t *iterationTracker) finish(n int) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	at, ok := t.starts[n]
	delete(t.starts, n)

	return at, ok
}

// New creates a Collector and registers all metrics on its own registry.
func New() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		direct:   newIterationTracker(),

		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowstream_events_total",
				Help: "Total number of events observed, by type",
			},
			[]string{"type"},
		),

		FlowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowstream_flows_total",
				Help: "Total number of finished flows, by status",
			},
			[]string{"status"},
		),
		IterationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "flowstream_iteration_duration_seconds",
				Help:    "Duration of loop iterations from start to completion in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		TokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowstream_tokens_total",
				Help: "Total number of model tokens reported, by direction",
			},
			[]string{"direction"},
		),
		FallbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "flowstream_stream_fallbacks_total",
				Help: "Total number of streaming failures answered by a non-streaming request",
			},
		),

		ToolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowstream_tool_calls_total",
				Help: "Total number of tool calls, by tool and status",
			},
			[]string{"tool_name", "status"},
		),

		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "flowstream_queue_depth",
				Help: "Number of events currently buffered in the event queue",
			},
		),
		QueueUtilization: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "flowstream_queue_utilization_ratio",
				Help: "Event queue size divided by its capacity",
			},
		),
		EventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "flowstream_queue_dropped_events_total",
				Help: "Total number of events rejected by full event queues",
			},
		),
		ConsumerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowstream_consumer_failures_total",
				Help: "Total number of isolated consumer failures reported by event managers, by consumer kind",
			},
			[]string{"kind"},
		),
	}

	c.registerMetrics()

	return c
}

// registerMetrics registers all metrics with the registry
func (c *Collector) registerMetrics() {
	c.registry.MustRegister(
		c.EventsTotal,
		c.FlowsTotal,
		c.IterationDuration,
		c.TokensTotal,
		c.FallbacksTotal,
		c.ToolCallsTotal,
		c.QueueDepth,
		c.QueueUtilization,
		c.EventsDropped,
		c.ConsumerFailures,
	)
}

// Registry returns the Prometheus registry
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler returns an HTTP handler for the metrics endpoint
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Listener returns an engine listener that feeds the collector. Every call
// returns a listener with its own iteration timing, so one Collector can be
// subscribed to the managers of concurrent runs.
func (c *Collector) Listener() engine.Handler {
	tracker := newIterationTracker()

	return func(ev core.Event) error {
		c.observe(tracker, ev)
		return nil
	}
}

// Attach subscribes the collector to m and returns the subscription id.
func (c *Collector) Attach(m *engine.Manager) string {
	return m.Subscribe(c.Listener())
}

// Observe records one event. Events passed here are treated as one stream;
// use Listener or Attach per manager when runs overlap.
func (c *Collector) Observe(ev core.Event) {
	c.observe(c.direct, ev)
}

func (c *Collector) observe(tracker *iterationTracker, ev core.Event) {
	c.EventsTotal.WithLabelValues(ev.Type.String()).Inc()

	switch ev.Type {
	case core.EventFlowCompleted:
		c.FlowsTotal.WithLabelValues("completed").Inc()
	case core.EventFlowFailed:
		c.FlowsTotal.WithLabelValues("failed").Inc()
	case core.EventIterationStarted:
		if n, ok := intValue(ev.Data[core.KeyIteration]); ok {
			tracker.start(n, ev.Timestamp)
		}
	case core.EventIterationCompleted:
		c.observeIteration(tracker, ev)
	case core.EventToolCompleted:
		status := "success"
		if isErr, _ := ev.Data[core.KeyIsError].(bool); isErr {
			status = "error"
		}
		c.ToolCallsTotal.WithLabelValues(ev.GetString(core.KeyTool), status).Inc()
	case core.EventToolFailed:
		c.ToolCallsTotal.WithLabelValues(ev.GetString(core.KeyTool), "failed").Inc()
	case core.EventWarning:
		if details, ok := ev.Data[core.KeyDetails].(map[string]any); ok {
			if fb, _ := details["fallback"].(bool); fb {
				c.FallbacksTotal.Inc()
			}
		}
	}
}

func (c *Collector) observeIteration(tracker *iterationTracker, ev core.Event) {
	if n, ok := intValue(ev.Data[core.KeyIteration]); ok {
		if start, found := tracker.finish(n); found {
			c.IterationDuration.Observe(ev.Timestamp.Sub(start).Seconds())
		}
	}

	usage, ok := ev.Data[core.KeyUsage].(map[string]any)
	if !ok {
		return
	}

	if in, ok := intValue(usage["input_tokens"]); ok && in > 0 {
		c.TokensTotal.WithLabelValues("input").Add(float64(in))
	}

	if out, ok := intValue(usage["output_tokens"]); ok && out > 0 {
		c.TokensTotal.WithLabelValues("output").Add(float64(out))
	}
}

// ObserveQueue samples the depth and utilization gauges from q.
func (c *Collector) ObserveQueue(q *core.EventQueue) {
	c.observeQueueStats(q.Stats())
}

func (c *Collector) observeQueueStats(s core.QueueStats) {
	c.QueueDepth.Set(float64(s.Size))
	c.QueueUtilization.Set(s.Utilization / 100)
}

// ObserveManager adds the dropped events and consumer failures of m to the
// totals and samples its queue gauges. Call it once per manager, after its
// run has ended; a second call adds the same figures again.
func (c *Collector) ObserveManager(m *engine.Manager) {
	s := m.Stats()

	c.observeQueueStats(s.Queue)
	c.EventsDropped.Add(float64(s.Queue.DroppedEvents))
	c.ConsumerFailures.WithLabelValues("callback").Add(float64(s.CallbackFailures))
	c.ConsumerFailures.WithLabelValues("listener").Add(float64(s.ListenerFailures))
	c.ConsumerFailures.WithLabelValues("observer").Add(float64(s.ObserverFailures))
}

// intValue reads an integer payload value, accepting the float64 form that
// decoded JSON produces.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
