package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Agent run and resume throughput with outcome status
//   - LLM request performance and token consumption
//   - Tool execution patterns and latencies
//   - Human approval interrupts and decision verdicts
//   - Tool discovery health and graph recompilation
//   - Change notification publishing and buffering
//
// All record helpers are nil-safe: components hold a *Metrics and call the
// helpers unconditionally; a nil receiver records nothing.
//
// Usage:
//
//	m := metrics.New(prometheus.DefaultRegisterer)
//	m.RecordRun("run", "completed", time.Since(start).Seconds())
type Metrics struct {
	// RunCounter counts agent runs, resumes and resyncs by outcome.
	// Labels: kind (run|resume|resync), status (ok|error)
	RunCounter *prometheus.CounterVec

	// RunDuration measures end-to-end run latency in seconds.
	// Labels: kind (run|resume|resync)
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s, 120s
	RunDuration *prometheus.HistogramVec

	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider, model
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by provider and model.
	// Labels: provider, model, status (ok|error)
	LLMRequestCounter *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (ok|error|unknown)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s
	ToolExecutionDuration *prometheus.HistogramVec

	// InterruptCounter counts approval interrupts by tool name.
	// Labels: tool_name
	InterruptCounter *prometheus.CounterVec

	// DecisionCounter counts human decisions on pending tool batches.
	// Labels: verdict (approved|rejected)
	DecisionCounter *prometheus.CounterVec

	// DiscoveryCounter counts tool discovery passes.
	// Labels: status (success|degraded)
	DiscoveryCounter *prometheus.CounterVec

	// ToolsDiscovered is a gauge tracking the current tool count by source.
	// Labels: source (built-in or MCP server name)
	ToolsDiscovered *prometheus.GaugeVec

	// GraphCompileCounter counts graph cache outcomes.
	// Labels: outcome (hit|compile|fallback)
	GraphCompileCounter *prometheus.CounterVec

	// PublishCounter counts change notification publish attempts.
	// Labels: status (ok|buffered|dropped)
	PublishCounter *prometheus.CounterVec

	// PublishDuration measures successful publish latency in seconds.
	// Buckets: 1ms, 5ms, 10ms, 50ms, 100ms, 500ms, 1s, 5s
	PublishDuration prometheus.Histogram

	// PublishBufferSize is a gauge tracking retry-buffered notifications.
	PublishBufferSize prometheus.Gauge

	// ConnectionTransitions counts queue connection state changes.
	// Labels: state (connected|disconnected)
	ConnectionTransitions *prometheus.CounterVec

	// ErrorCounter tracks errors by component and error type.
	// Labels: component (runner|graph|discovery|publisher|api), error_type
	ErrorCounter *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics with the given registerer.
// Pass prometheus.DefaultRegisterer to expose them via the default /metrics
// handler; tests inject a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgate_runs_total",
				Help: "Total number of agent runs and resumes by kind and outcome",
			},
			[]string{"kind", "status"},
		),

		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentgate_run_duration_seconds",
				Help:    "Duration of agent runs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"kind"},
		),

		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentgate_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgate_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		ToolExecutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgate_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentgate_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		InterruptCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgate_interrupts_total",
				Help: "Total number of approval interrupts by tool name",
			},
			[]string{"tool_name"},
		),

		DecisionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgate_decisions_total",
				Help: "Total number of human decisions by verdict",
			},
			[]string{"verdict"},
		),

		DiscoveryCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgate_discovery_total",
				Help: "Total number of tool discovery passes by status",
			},
			[]string{"status"},
		),

		ToolsDiscovered: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agentgate_tools_discovered",
				Help: "Current number of discovered tools by source",
			},
			[]string{"source"},
		),

		GraphCompileCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgate_graph_compile_total",
				Help: "Total number of graph cache outcomes",
			},
			[]string{"outcome"},
		),

		PublishCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgate_publish_total",
				Help: "Total number of change notification publish attempts by status",
			},
			[]string{"status"},
		),

		PublishDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentgate_publish_duration_seconds",
				Help:    "Duration of successful change notification publishes in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),

		PublishBufferSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentgate_publish_buffer_size",
				Help: "Current number of change notifications held for retry",
			},
		),

		ConnectionTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgate_queue_connection_transitions_total",
				Help: "Total number of queue connection state changes",
			},
			[]string{"state"},
		),

		ErrorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgate_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),
	}
}

// RecordRun records an agent run or resume outcome.
func (m *Metrics) RecordRun(kind, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RunCounter.WithLabelValues(kind, status).Inc()
	m.RunDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordLLMRequest records metrics for an LLM API request.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
}

// RecordToolExecution records metrics for a tool execution.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordInterrupt records an approval interrupt for a tool.
func (m *Metrics) RecordInterrupt(toolName string) {
	if m == nil {
		return
	}
	m.InterruptCounter.WithLabelValues(toolName).Inc()
}

// RecordDecision records a human decision verdict.
func (m *Metrics) RecordDecision(approved bool) {
	if m == nil {
		return
	}
	verdict := "rejected"
	if approved {
		verdict = "approved"
	}
	m.DecisionCounter.WithLabelValues(verdict).Inc()
}

// RecordDiscovery records a discovery pass and the resulting per-source tool
// counts.
func (m *Metrics) RecordDiscovery(status string, countsBySource map[string]int) {
	if m == nil {
		return
	}
	m.DiscoveryCounter.WithLabelValues(status).Inc()
	for source, count := range countsBySource {
		m.ToolsDiscovered.WithLabelValues(source).Set(float64(count))
	}
}

// RecordGraphCompile records a graph cache outcome.
func (m *Metrics) RecordGraphCompile(outcome string) {
	if m == nil {
		return
	}
	m.GraphCompileCounter.WithLabelValues(outcome).Inc()
}

// RecordPublish records a change notification publish attempt.
func (m *Metrics) RecordPublish(status string) {
	if m == nil {
		return
	}
	m.PublishCounter.WithLabelValues(status).Inc()
}

// RecordPublishLatency records the duration of a successful publish.
func (m *Metrics) RecordPublishLatency(durationSeconds float64) {
	if m == nil {
		return
	}
	m.PublishDuration.Observe(durationSeconds)
}

// SetPublishBufferSize updates the retry buffer gauge.
func (m *Metrics) SetPublishBufferSize(n int) {
	if m == nil {
		return
	}
	m.PublishBufferSize.Set(float64(n))
}

// RecordConnectionTransition records a queue connection state change.
func (m *Metrics) RecordConnectionTransition(connected bool) {
	if m == nil {
		return
	}
	state := "disconnected"
	if connected {
		state = "connected"
	}
	m.ConnectionTransitions.WithLabelValues(state).Inc()
}

// RecordError increments the error counter for a given component and error type.
func (m *Metrics) RecordError(component, errorType string) {
	if m == nil {
		return
	}
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}
