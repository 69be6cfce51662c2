package collectors

import (
	"github.com/prometheus/client_golang/prometheus"
)

type ProxyMetricCollectors struct {
	collectors      []prometheus.Collector
	directionLabels []string

	ReceivedBytesTotal     *prometheus.CounterVec
	SentBytesTotal         *prometheus.CounterVec
	ChunksForwardedTotal   *prometheus.CounterVec
	ChunksDroppedTotal     *prometheus.CounterVec
	LatencyInjectedSeconds *prometheus.CounterVec
	ThrottleDelaySeconds   *prometheus.CounterVec

	ConnectionsAcceptedTotal prometheus.Counter
	ConnectionsActive        prometheus.Gauge
}

func (c *ProxyMetricCollectors) Collectors() []prometheus.Collector {
	return c.collectors
}

func NewProxyMetricCollectors() *ProxyMetricCollectors {
	var m ProxyMetricCollectors
	m.directionLabels = []string{
		"direction",
		"proxy",
		"listener",
		"upstream",
	}
	m.ReceivedBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "received_bytes_total",
		},
		m.directionLabels)
	m.collectors = append(m.collectors, m.ReceivedBytesTotal)

	m.SentBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "sent_bytes_total",
		},
		m.directionLabels)
	m.collectors = append(m.collectors, m.SentBytesTotal)

	m.ChunksForwardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "chunks_forwarded_total",
		},
		m.directionLabels)
	m.collectors = append(m.collectors, m.ChunksForwardedTotal)

	m.ChunksDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "chunks_dropped_total",
		},
		append(m.directionLabels, "kind"))
	m.collectors = append(m.collectors, m.ChunksDroppedTotal)

	m.LatencyInjectedSeconds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "latency_injected_seconds_total",
		},
		m.directionLabels)
	m.collectors = append(m.collectors, m.LatencyInjectedSeconds)

	m.ThrottleDelaySeconds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "throttle_delay_seconds_total",
		},
		m.directionLabels)
	m.collectors = append(m.collectors, m.ThrottleDelaySeconds)

	m.ConnectionsAcceptedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "connections_accepted_total",
		})
	m.collectors = append(m.collectors, m.ConnectionsAcceptedTotal)

	m.ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "connections_active",
		})
	m.collectors = append(m.collectors, m.ConnectionsActive)

	return &m
}
