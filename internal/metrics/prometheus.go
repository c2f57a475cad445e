package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	eventsTotal      *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	reuseTotal       *prometheus.CounterVec
	passing          prometheus.Gauge
	items            prometheus.Gauge
}

// NewPrometheusRecorder creates a recorder and registers its collectors with reg.
// A nil reg registers with the default registry.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &PrometheusRecorder{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actionstatus_update_events_total",
				Help: "Total number of update lifecycle events by event and outcome",
			},
			[]string{"event", "outcome"},
		),
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actionstatus_update_transitions_total",
				Help: "Total number of update controller state transitions",
			},
			[]string{"from", "to"},
		),
		reuseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actionstatus_continuation_reuse_total",
				Help: "Total number of continuations invoked after being consumed or retired",
			},
			[]string{"kind"},
		),
		passing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "actionstatus_items_passing",
			Help: "1 when no monitored item is failing, 0 otherwise",
		}),
		items: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "actionstatus_items",
			Help: "Number of monitored items in the last snapshot",
		}),
	}

	for _, c := range []prometheus.Collector{p.eventsTotal, p.transitionsTotal, p.reuseTotal, p.passing, p.items} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// ObserveEvent increments the event counter.
func (p *PrometheusRecorder) ObserveEvent(event, outcome string) {
	p.eventsTotal.WithLabelValues(event, outcome).Inc()
}

// ObserveTransition increments the transition counter.
func (p *PrometheusRecorder) ObserveTransition(from, to string) {
	p.transitionsTotal.WithLabelValues(from, to).Inc()
}

// IncContinuationReuse increments the reuse counter.
func (p *PrometheusRecorder) IncContinuationReuse(kind string) {
	p.reuseTotal.WithLabelValues(kind).Inc()
}

// SetPassing updates the passing and item gauges.
func (p *PrometheusRecorder) SetPassing(passing bool, items int) {
	if passing {
		p.passing.Set(1)
	} else {
		p.passing.Set(0)
	}
	p.items.Set(float64(items))
}
