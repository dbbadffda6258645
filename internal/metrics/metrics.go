// Package metrics provides Prometheus metrics for persona-studio
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for persona-studio
type Metrics struct {
	registry *prometheus.Registry

	// Agent lifecycle
	AgentsTotal          prometheus.Gauge
	AgentOperationsTotal *prometheus.CounterVec

	// Conversation metrics
	MessagesTotal        *prometheus.CounterVec
	ConversationsCleared prometheus.Counter
	DuplicateSubmissions prometheus.Counter

	// Reply pipeline
	RepliesTotal          *prometheus.CounterVec
	ReplyFailuresTotal    prometheus.Counter
	RepliesCancelledTotal prometheus.Counter
	RepliesPending        prometheus.Gauge
	ReplyLatency          prometheus.Histogram
}

// New creates all metrics on a fresh registry, so several instances can
// coexist in one process (tests, embedded use).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}

	m.AgentsTotal = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "persona_studio_agents",
			Help: "Number of agents currently held",
		},
	)

	m.AgentOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persona_studio_agent_operations_total",
			Help: "Agent lifecycle operations by kind",
		},
		[]string{"operation"},
	)

	m.MessagesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persona_studio_messages_total",
			Help: "Messages appended to conversations by sender",
		},
		[]string{"sender"},
	)

	m.ConversationsCleared = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "persona_studio_conversations_cleared_total",
			Help: "Conversations reset to their greeting",
		},
	)

	m.DuplicateSubmissions = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "persona_studio_duplicate_submissions_total",
			Help: "Sends answered from the dedupe cache instead of being appended",
		},
	)

	m.RepliesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persona_studio_replies_total",
			Help: "Agent replies appended, by persona",
		},
		[]string{"persona"},
	)

	m.ReplyFailuresTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "persona_studio_reply_failures_total",
			Help: "Replies that failed to generate",
		},
	)

	m.RepliesCancelledTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "persona_studio_replies_cancelled_total",
			Help: "Replies discarded because their conversation was cleared or deleted",
		},
	)

	m.RepliesPending = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "persona_studio_replies_pending",
			Help: "Reply tasks currently in flight",
		},
	)

	m.ReplyLatency = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "persona_studio_reply_latency_seconds",
			Help:    "Time from user message to appended agent reply",
			Buckets: []float64{0.25, 0.5, 1, 1.5, 2, 3, 4, 6, 10},
		},
	)

	return m
}

// ObserveReply records a successful reply for persona sent after latency.
func (m *Metrics) ObserveReply(persona string, latency time.Duration) {
	if persona == "" {
		persona = "none"
	}
	m.RepliesTotal.WithLabelValues(persona).Inc()
	m.ReplyLatency.Observe(latency.Seconds())
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
