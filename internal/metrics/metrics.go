// Package metrics exposes request and tool-call counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcphub/mcphub/internal/mcp"
)

const namespace = "mcphub"

// Metrics implements mcp.Observer on a private Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
}

var _ mcp.Observer = (*Metrics)(nil)

func New(service string) *Metrics {
	labels := prometheus.Labels{"service": service}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "requests_total",
			Help:        "JSON-RPC requests by method and response code (0 for success).",
			ConstLabels: labels,
		}, []string{"method", "code"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "tool_calls_total",
			Help:        "tools/call invocations by tool and outcome.",
			ConstLabels: labels,
		}, []string{"tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "tool_call_duration_seconds",
			Help:        "Time spent in tools/call, including argument checks.",
			ConstLabels: labels,
			Buckets:     []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60, 120},
		}, []string{"tool"}),
	}

	m.registry.MustRegister(
		m.requests,
		m.toolCalls,
		m.toolDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest records a dispatched request. Unrecognised method names are
// folded into "other" to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method string, code int) {
	switch method {
	case mcp.MethodInitialize, mcp.MethodToolsList, mcp.MethodToolsCall:
	default:
		method = "other"
	}
	m.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// ObserveToolCall records a tools/call outcome. Calls to unregistered tools
// are recorded under an empty tool name.
func (m *Metrics) ObserveToolCall(tool, outcome string, elapsed time.Duration) {
	if outcome == mcp.OutcomeUnknownTool {
		tool = ""
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

