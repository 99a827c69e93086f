// Package metrics counts what happens on the streaming pipeline.
// Counters live on a private registry; the CLI prints them with --verbose.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Exchange outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeAbandoned = "abandoned"
	OutcomeRejected  = "rejected"
)

// Metrics holds the client counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	deltas             prometheus.Counter
	deltaBytes         prometheus.Counter
	malformedEvents    prometheus.Counter
	exchanges          *prometheus.CounterVec
	directoryFallbacks *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		deltas: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatai",
			Name:      "stream_deltas_total",
			Help:      "Message deltas folded into the transcript.",
		}),
		deltaBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatai",
			Name:      "stream_delta_bytes_total",
			Help:      "Bytes of assistant text received.",
		}),
		malformedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatai",
			Name:      "stream_malformed_events_total",
			Help:      "Data lines skipped because their payload could not be parsed.",
		}),
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatai",
			Name:      "exchanges_total",
			Help:      "Chat exchanges by outcome.",
		}, []string{"outcome"}),
		directoryFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatai",
			Name:      "directory_cache_fallbacks_total",
			Help:      "Directory reads served from cache after a failed fetch.",
		}, []string{"op"}),
	}
	m.registry.MustRegister(m.deltas, m.deltaBytes, m.malformedEvents, m.exchanges, m.directoryFallbacks)
	return m
}

// Registry returns the registry holding the counters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Delta records one folded delta of n bytes.
func (m *Metrics) Delta(n int) {
	if m == nil {
		return
	}
	m.deltas.Inc()
	m.deltaBytes.Add(float64(n))
}

// MalformedEvent records one skipped data line.
func (m *Metrics) MalformedEvent() {
	if m == nil {
		return
	}
	m.malformedEvents.Inc()
}

// Exchange records the outcome of one exchange.
func (m *Metrics) Exchange(outcome string) {
	if m == nil {
		return
	}
	m.exchanges.WithLabelValues(outcome).Inc()
}

// DirectoryFallback records a directory read served from cache.
func (m *Metrics) DirectoryFallback(op string) {
	if m == nil {
		return
	}
	m.directoryFallbacks.WithLabelValues(op).Inc()
}

// WriteSummary writes every non-zero counter as "name{labels} value".
func (m *Metrics) WriteSummary(w io.Writer) error {
	if m == nil {
		return nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			value := metric.GetCounter().GetValue()
			if value == 0 {
				continue
			}
			var labels []string
			for _, lp := range metric.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			lines = append(lines, fmt.Sprintf("%s %g", name, value))
		}
	}
	sort.Strings(lines)

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
