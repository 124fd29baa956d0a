package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Transition("approve", "ok")
	m.Transition("approve", "ok")
	m.DefinitionMiss("Ghost")
	m.Conflict()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("approve", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.definitionMisses.WithLabelValues("Ghost")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Transition("approve", "ok")
	m.DefinitionMiss("x")
	m.Conflict()
	m.Request("GET", "200")
}
