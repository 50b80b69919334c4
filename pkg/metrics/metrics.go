package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultRegistry holds every collector exposed on /metrics.
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		GuardrailVerdicts, ToolCalls, ToolDuration, LoopIterations,
		RetrievalFailures, LLMTokensTotal, TurnsTotal, HTTPRequests,
	)
}

// GuardrailVerdicts counts verdicts per stage (input | output).
var GuardrailVerdicts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "medbuddy_guardrail_verdicts_total",
		Help: "Guardrail verdicts by stage, status and category.",
	},
	[]string{"stage", "status", "category"},
)

var ToolCalls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "medbuddy_tool_calls_total",
		Help: "Tool router invocations by tool and outcome.",
	},
	[]string{"tool", "outcome"}, // ok | invalid_arguments | unknown_tool
)

var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "medbuddy_tool_duration_seconds",
		Help:    "Tool execution time in seconds.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// LoopIterations observes how many model calls a tool-calling turn needed.
var LoopIterations = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "medbuddy_agent_loop_iterations",
		Help:    "Model calls per tool-calling turn.",
		Buckets: []float64{1, 2, 3, 4, 5, 8},
	},
	[]string{"outcome"}, // final | exhausted
)

var RetrievalFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "medbuddy_retrieval_failures_total",
		Help: "Knowledge base searches that degraded to an empty result.",
	},
	[]string{"database"},
)

var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "medbuddy_llm_tokens_total",
		Help: "Tokens consumed by reasoning-model calls.",
	},
	[]string{"model", "direction"}, // input | output
)

var TurnsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "medbuddy_turns_total",
		Help: "Completed assistant turns by mode and status.",
	},
	[]string{"mode", "status"},
)

var HTTPRequests = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "medbuddy_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status code.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"route", "code"},
)

// Handler serves DefaultRegistry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{})
}
