// Package metrics exposes Prometheus collectors for the digest pipeline and
// the small HTTP server that serves them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "digestbot"

// Metrics groups the pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	fetches    *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	relays     *prometheus.CounterVec
	cycles     *prometheus.CounterVec
	cycleTime  prometheus.Histogram
	reg        prometheus.Registerer
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_fetches_total",
			Help:      "Mirror fetch attempts by mirror and result.",
		}, []string{"mirror", "result"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Chat deliveries during fan-out by result.",
		}, []string{"result"}),
		relays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relays_total",
			Help:      "Relay attempts to the secondary sinks by result.",
		}, []string{"result"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Daily delivery cycles by result.",
		}, []string{"result"}),
		cycleTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a delivery cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		reg: reg,
	}
	reg.MustRegister(m.fetches, m.deliveries, m.relays, m.cycles, m.cycleTime)
	return m
}

// WatchSubscribers exports the current subscriber count read from n.
func (m *Metrics) WatchSubscribers(n func() int) {
	if m == nil {
		return
	}
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "subscribers",
		Help:      "Chats currently subscribed to the daily digest.",
	}, func() float64 { return float64(n()) }))
}

func (m *Metrics) ObserveFetch(mirror string, err error) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(mirror, result(err)).Inc()
}

func (m *Metrics) ObserveDelivery(err error) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) ObserveRelay(err error) {
	if m == nil {
		return
	}
	m.relays.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) ObserveCycle(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result(err)).Inc()
	m.cycleTime.Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
