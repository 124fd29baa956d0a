package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service counters. A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	transitions      *prometheus.CounterVec
	definitionMisses *prometheus.CounterVec
	conflicts        prometheus.Counter
	requests         *prometheus.CounterVec
}

// New registers the counters on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pagewright_version_transitions_total",
			Help: "Version status transitions by event and outcome.",
		}, []string{"event", "outcome"}),
		definitionMisses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pagewright_definition_misses_total",
			Help: "Stored pages whose type has no registered definition.",
		}, []string{"type"}),
		conflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "pagewright_write_conflicts_total",
			Help: "Writes rejected because the page changed concurrently.",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pagewright_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}
}

func (m *Metrics) Transition(event, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) DefinitionMiss(pageType string) {
	if m == nil {
		return
	}
	m.definitionMisses.WithLabelValues(pageType).Inc()
}

func (m *Metrics) Conflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *Metrics) Request(method, code string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, code).Inc()
}
