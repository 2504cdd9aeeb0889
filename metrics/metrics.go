// Package metrics exposes Prometheus collectors for the poll cycle.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector updated by a cycle
type Metrics struct {
	cycles        *prometheus.CounterVec
	payloadBytes  prometheus.Histogram
	decodeSeconds prometheus.Histogram
	matches       prometheus.Gauge
	dropped       *prometheus.CounterVec
	feedTimestamp prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is what tests usually want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gtfsrt_arrivals_cycles_total",
			Help: "Poll cycles by outcome (ok, connection, framing, timeout, allocation, decode, sink).",
		}, []string{"outcome"}),
		payloadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gtfsrt_arrivals_payload_bytes",
			Help:    "Size of downloaded feed payloads.",
			Buckets: prometheus.ExponentialBuckets(4096, 2, 8),
		}),
		decodeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gtfsrt_arrivals_decode_seconds",
			Help:    "Time spent in the streaming decoder.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		matches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gtfsrt_arrivals_matches",
			Help: "Arrivals retained by the last successful decode.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gtfsrt_arrivals_dropped_total",
			Help: "Matching stop times dropped by a capacity bound (scratch or accumulator).",
		}, []string{"stage"}),
		feedTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gtfsrt_arrivals_feed_timestamp_seconds",
			Help: "Header timestamp of the last decoded feed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.cycles, m.payloadBytes, m.decodeSeconds, m.matches, m.dropped, m.feedTimestamp)
	}
	return m
}

// ObserveCycle counts one finished cycle
func (m *Metrics) ObserveCycle(outcome string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome).Inc()
}

// ObservePayload records the size of one payload
func (m *Metrics) ObservePayload(n int) {
	if m == nil {
		return
	}
	m.payloadBytes.Observe(float64(n))
}

// ObserveDecode records one decode pass
func (m *Metrics) ObserveDecode(d time.Duration, matches, scratchDropped, accDropped int, feedTimestamp int64) {
	if m == nil {
		return
	}
	m.decodeSeconds.Observe(d.Seconds())
	m.matches.Set(float64(matches))
	if scratchDropped > 0 {
		m.dropped.WithLabelValues("scratch").Add(float64(scratchDropped))
	}
	if accDropped > 0 {
		m.dropped.WithLabelValues("accumulator").Add(float64(accDropped))
	}
	if feedTimestamp > 0 {
		m.feedTimestamp.Set(float64(feedTimestamp))
	}
}
