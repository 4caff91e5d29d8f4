// Package observability exports stat-pulse loop and transport counters to
// Prometheus.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gitlab.com/tinyland/lab/stat-pulse/collectors"
	"gitlab.com/tinyland/lab/stat-pulse/sampler"
)

const namespace = "statpulse"

// Compile-time check: Metrics satisfies the sampler's Observer.
var _ sampler.Observer = (*Metrics)(nil)

// Metrics holds the exported collectors.
type Metrics struct {
	ticks       prometheus.Counter
	skipped     *prometheus.CounterVec
	samples     prometheus.Counter
	dropped     *prometheus.CounterVec
	tickLatency prometheus.Histogram

	cpu     prometheus.Gauge
	ram     prometheus.Gauge
	storage prometheus.Gauge
	temp    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Sampler timer firings.",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_skipped_total",
			Help:      "Ticks that produced no sample, by reason.",
		}, []string{"reason"}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_published_total",
			Help:      "Samples handed to the transport.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Messages lost on a full subscriber queue, by channel.",
		}, []string{"channel"}),
		tickLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time from tick start to a completed sample.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		cpu: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cpu_usage_ratio",
			Help:      "Latest CPU busy fraction.",
		}),
		ram: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ram_usage_ratio",
			Help:      "Latest memory used fraction.",
		}),
		storage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "storage_usage_ratio",
			Help:      "Latest root filesystem used fraction.",
		}),
		temp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cpu_temperature_celsius",
			Help:      "Latest CPU temperature, 0 when unavailable.",
		}),
	}

	reg.MustRegister(m.ticks, m.skipped, m.samples, m.dropped, m.tickLatency,
		m.cpu, m.ram, m.storage, m.temp)
	return m
}

// TickStarted counts a timer firing.
func (m *Metrics) TickStarted() {
	m.ticks.Inc()
}

// TickSkipped counts a tick that produced no sample.
func (m *Metrics) TickSkipped(reason string) {
	m.skipped.WithLabelValues(reason).Inc()
}

// SampleProduced records a published sample and its latency.
func (m *Metrics) SampleProduced(s collectors.Sample, latency time.Duration) {
	m.samples.Inc()
	m.tickLatency.Observe(latency.Seconds())
	m.cpu.Set(s.CPUUsage)
	m.ram.Set(s.RAMUsage)
	m.storage.Set(s.StorageUsage)
	m.temp.Set(s.CPUTemp)
}

// MessageDropped counts a message lost on channel. It matches the
// transport hub's drop hook.
func (m *Metrics) MessageDropped(channel string) {
	m.dropped.WithLabelValues(channel).Inc()
}

// Handler serves the gathered metrics in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
