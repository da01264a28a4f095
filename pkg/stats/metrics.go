package stats

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MaxLabelKeys bounds the distinct key labels of one keyed counter.
// Generator names are free-form, so later keys share the OtherKey series.
// The aggregator keeps the exact histograms for reports.
const MaxLabelKeys = 64

// OtherKey labels the keys beyond MaxLabelKeys
const OtherKey = "other"

// Metrics mirrors the aggregator's counters into Prometheus collectors.
type Metrics struct {
	Registry   *prometheus.Registry
	Events     *prometheus.CounterVec
	Histograms *prometheus.CounterVec
	Bytes      *prometheus.CounterVec
	InFlight   prometheus.Gauge

	mu   sync.Mutex
	keys map[string]map[string]struct{}
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_events_total",
			Help: "Named crawl counters (processed, success, error).",
		},
		[]string{"counter"},
	)
	histograms := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_histogram_total",
			Help: "Keyed crawl counters (code, error-reason, wp, generator).",
		},
		[]string{"counter", "key"},
	)
	bytesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_bytes_total",
			Help: "Response body bytes, expected and downloaded.",
		},
		[]string{"kind"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crawl_in_flight",
			Help: "Fetches currently in flight.",
		},
	)

	registry.MustRegister(events, histograms, bytesTotal, inFlight)

	return &Metrics{
		Registry:   registry,
		Events:     events,
		Histograms: histograms,
		Bytes:      bytesTotal,
		InFlight:   inFlight,
		keys:       make(map[string]map[string]struct{}),
	}
}

// IncEvent increments a named counter.
func (m *Metrics) IncEvent(name string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(name).Inc()
}

// IncKey increments a keyed counter.
func (m *Metrics) IncKey(name, key string) {
	if m == nil {
		return
	}
	m.Histograms.WithLabelValues(name, m.label(name, key)).Inc()
}

// label returns key while the counter has room for another series
func (m *Metrics) label(name, key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen, ok := m.keys[name]
	if !ok {
		seen = make(map[string]struct{})
		m.keys[name] = seen
	}
	if _, ok := seen[key]; ok {
		return key
	}
	if len(seen) >= MaxLabelKeys {
		return OtherKey
	}
	seen[key] = struct{}{}
	return key
}

// AddBytes records expected and downloaded byte counts.
func (m *Metrics) AddBytes(total, downloaded int64) {
	if m == nil {
		return
	}
	m.Bytes.WithLabelValues("total").Add(float64(total))
	m.Bytes.WithLabelValues("downloaded").Add(float64(downloaded))
}

// SetInFlight records the current in-flight count.
func (m *Metrics) SetInFlight(n int64) {
	if m == nil {
		return
	}
	m.InFlight.Set(float64(n))
}
