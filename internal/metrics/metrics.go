// Package metrics holds the server's Prometheus collectors. A nil *Metrics is
// valid and records nothing, so components can take it as an optional dependency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "connect4"

type Metrics struct {
	registry *prometheus.Registry

	gamesStarted   *prometheus.CounterVec
	gamesFinished  *prometheus.CounterVec
	movesAccepted  prometheus.Counter
	movesRejected  *prometheus.CounterVec
	reconnects     prometheus.Counter
	activeSessions prometheus.Gauge
	queueLength    prometheus.Gauge
	connections    prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		gamesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_started_total",
			Help:      "Games paired, by opponent kind.",
		}, []string{"opponent"}),
		gamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Games finished, by outcome.",
		}, []string{"outcome"}),
		movesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_accepted_total",
			Help:      "Moves applied to a board.",
		}),
		movesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_rejected_total",
			Help:      "Moves rejected, by reason.",
		}, []string{"reason"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Participants that resumed a game.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Sessions held in the registry.",
		}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Participants waiting for an opponent.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open websocket connections.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.gamesStarted,
		m.gamesFinished,
		m.movesAccepted,
		m.movesRejected,
		m.reconnects,
		m.activeSessions,
		m.queueLength,
		m.connections,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) GameStarted(vsBot bool) {
	if m == nil {
		return
	}
	opponent := "human"
	if vsBot {
		opponent = "bot"
	}
	m.gamesStarted.WithLabelValues(opponent).Inc()
}

func (m *Metrics) GameFinished(outcome string) {
	if m == nil {
		return
	}
	m.gamesFinished.WithLabelValues(outcome).Inc()
}

func (m *Metrics) MoveAccepted() {
	if m == nil {
		return
	}
	m.movesAccepted.Inc()
}

func (m *Metrics) MoveRejected(reason string) {
	if m == nil {
		return
	}
	m.movesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) Reconnected() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) SetQueueLength(n int) {
	if m == nil {
		return
	}
	m.queueLength.Set(float64(n))
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}
