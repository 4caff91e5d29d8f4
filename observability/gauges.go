package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"gitlab.com/tinyland/lab/stat-pulse/collectors/retry"
)

// RegisterPeers exposes the number of connected websocket clients, read at
// scrape time.
func RegisterPeers(reg prometheus.Registerer, peers func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_peers",
		Help:      "Connected websocket clients.",
	}, func() float64 { return float64(peers()) }))
}

// RegisterSubscribers exposes the hub subscriber count of each channel.
func RegisterSubscribers(reg prometheus.Registerer, channels []string, count func(channel string) int) {
	for _, ch := range channels {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "subscribers",
			Help:        "Active subscriptions on a transport channel.",
			ConstLabels: prometheus.Labels{"channel": ch},
		}, func() float64 { return float64(count(ch)) }))
	}
}

// RegisterBreaker exposes the temperature circuit breaker: its state
// (0 closed, 1 open, 2 half-open) and its lifetime failure count.
func RegisterBreaker(reg prometheus.Registerer, stats func() retry.Stats) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_breaker_state",
			Help:      "Temperature sensor circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}, func() float64 { return float64(stats().State) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "temperature_failures_total",
			Help:      "Failed temperature sensor reads.",
		}, func() float64 { return float64(stats().TotalFailures) }),
	)
}
