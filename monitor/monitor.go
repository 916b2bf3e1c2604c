// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	ConnectedPlayers prometheus.Gauge
	ActiveRooms      prometheus.Gauge
	ActionsApplied   prometheus.Counter
	MessagesDropped  prometheus.Counter
	PersistFailures  prometheus.Counter
	BroadcastLatency prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		ConnectedPlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_players",
			Help:      "Number of connected players",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of active rooms",
		}),
		ActionsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_applied_total",
			Help:      "Total number of actions applied by room reducers",
		}),
		MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Total number of inbound messages dropped as malformed",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Total number of failed state persistence attempts",
		}),
		BroadcastLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broadcast_latency_seconds",
			Help:      "State broadcast fan-out latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}

	prometheus.MustRegister(
		m.ConnectedPlayers,
		m.ActiveRooms,
		m.ActionsApplied,
		m.MessagesDropped,
		m.PersistFailures,
		m.BroadcastLatency,
	)

	return m
}

type Monitor struct {
	metrics   *Metrics
	startTime time.Time
}

func NewMonitor(namespace string) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace),
		startTime: time.Now(),
	}
}

func (m *Monitor) StartServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())

	// 添加expvar指标
	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))

	go http.ListenAndServe(addr, nil)
}

func (m *Monitor) IncConnectedPlayers() {
	m.metrics.ConnectedPlayers.Inc()
}

func (m *Monitor) DecConnectedPlayers() {
	m.metrics.ConnectedPlayers.Dec()
}

func (m *Monitor) SetActiveRooms(count int) {
	m.metrics.ActiveRooms.Set(float64(count))
}

func (m *Monitor) IncActionsApplied() {
	m.metrics.ActionsApplied.Inc()
}

func (m *Monitor) IncMessagesDropped() {
	m.metrics.MessagesDropped.Inc()
}

func (m *Monitor) IncPersistFailures() {
	m.metrics.PersistFailures.Inc()
}

func (m *Monitor) ObserveBroadcastLatency(duration time.Duration) {
	m.metrics.BroadcastLatency.Observe(duration.Seconds())
}
