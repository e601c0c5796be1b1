package bus

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds prometheus collectors for the event bus and the proactive
// pipeline it carries.
type Metrics struct {
	eventsPublished *prometheus.CounterVec
	eventsDropped   prometheus.Counter
	subscribers     prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		eventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pulse",
				Name:      "bus_events_published_total",
				Help:      "Total number of events published, by event type",
			},
			[]string{"type"},
		),
		eventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "pulse",
				Name:      "bus_events_dropped_total",
				Help:      "Total number of events dropped because the queue was full",
			},
		),
		subscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "pulse",
				Name:      "bus_subscribers",
				Help:      "Current number of event subscribers",
			},
		),
	}
}

// Register registers all collectors with the given registerer.
// Passing nil registers with the default prometheus registerer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	collectors := []prometheus.Collector{
		m.eventsPublished,
		m.eventsDropped,
		m.subscribers,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
