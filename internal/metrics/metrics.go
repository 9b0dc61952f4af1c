// Package metrics provides Prometheus metrics for the room server.
package metrics

import (
	"net/http"

	"github.com/jason-s-yu/tokenrivals/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rivals"

// knownTypes bounds the message label set; anything else counts as "unknown".
var knownTypes = map[models.MessageType]bool{
	models.MsgCreateRoom:      true,
	models.MsgGetRoomInfo:     true,
	models.MsgJoinRoom:        true,
	models.MsgHandshakeAccept: true,
	models.MsgHandshakeReject: true,
	models.MsgPlayerReady:     true,
}

// Manager owns a private registry and the room server's collectors.
// It satisfies room.Observer.
type Manager struct {
	registry *prometheus.Registry

	activeRooms        prometheus.Gauge
	activeConnections  prometheus.Gauge
	messages           *prometheus.CounterVec
	failures           *prometheus.CounterVec
	tournamentsStarted prometheus.Counter
	roomsSwept         prometheus.Counter
}

// NewManager builds a Manager on a fresh registry, including Go runtime collectors.
func NewManager() *Manager {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Manager{
		registry: reg,
		activeRooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "rooms", Name: "active",
			Help: "Rooms currently open.",
		}),
		activeConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "connections", Name: "active",
			Help: "Websocket connections currently registered.",
		}),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "protocol", Name: "messages_total",
			Help: "Inbound protocol messages by type.",
		}, []string{"type"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "protocol", Name: "failures_total",
			Help: "Rejected protocol requests by reason.",
		}, []string{"reason"}),
		tournamentsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "tournaments", Name: "started_total",
			Help: "Tournaments started after both players readied.",
		}),
		roomsSwept: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "rooms", Name: "expired_total",
			Help: "Idle rooms reaped by the TTL sweep.",
		}),
	}
}

func (m *Manager) MessageHandled(t models.MessageType) {
	label := string(t)
	if !knownTypes[t] {
		label = "unknown"
	}
	m.messages.WithLabelValues(label).Inc()
}

func (m *Manager) Failure(reason string) { m.failures.WithLabelValues(reason).Inc() }

func (m *Manager) TournamentStarted() { m.tournamentsStarted.Inc() }

func (m *Manager) RoomsSwept(n int) { m.roomsSwept.Add(float64(n)) }

func (m *Manager) SetActive(rooms, conns int) {
	m.activeRooms.Set(float64(rooms))
	m.activeConnections.Set(float64(conns))
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the exposition format for this manager's registry.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
