// Package metrics exposes prometheus instrumentation for the bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Transport label values.
const (
	TransportMQTT  = "mqtt"
	TransportZenoh = "zenoh"
)

// Metrics holds all prometheus collectors for the bridge
type Metrics struct {
	messagesReceived *prometheus.CounterVec
	messagesRelayed  *prometheus.CounterVec
	messagesDropped  *prometheus.CounterVec
	reconnects       *prometheus.CounterVec
	stateTransitions *prometheus.CounterVec

	connectionStatus *prometheus.GaugeVec
	queueDepth       *prometheus.GaugeVec
	uptime           prometheus.Gauge
	relayRate        prometheus.Gauge
}

// NewMetrics creates and registers all bridge metrics. A nil registry
// creates unregistered collectors, which is useful in tests.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		messagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_messages_received_total",
				Help: "Messages received from a source transport by relay direction.",
			},
			[]string{"direction"},
		),
		messagesRelayed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_messages_relayed_total",
				Help: "Messages published to the destination transport by relay direction.",
			},
			[]string{"direction"},
		),
		messagesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_messages_dropped_total",
				Help: "Messages dropped by relay direction and reason.",
			},
			[]string{"direction", "reason"},
		),
		reconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_reconnects_total",
				Help: "Reconnection attempts by transport.",
			},
			[]string{"transport"},
		),
		stateTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_connection_state_transitions_total",
				Help: "Connection state transitions by transport and new state.",
			},
			[]string{"transport", "state"},
		),
		connectionStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bridge_connection_status",
				Help: "Connection status by transport (1 connected, 0 disconnected).",
			},
			[]string{"transport"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bridge_queue_depth",
				Help: "Buffered messages in a pipeline queue by relay direction.",
			},
			[]string{"direction"},
		),
		uptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_uptime_seconds",
				Help: "Seconds since the bridge started.",
			},
		),
		relayRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_relay_rate",
				Help: "Overall relay rate in messages per second.",
			},
		),
	}

	if reg != nil {
		collectors := []prometheus.Collector{
			m.messagesReceived,
			m.messagesRelayed,
			m.messagesDropped,
			m.reconnects,
			m.stateTransitions,
			m.connectionStatus,
			m.queueDepth,
			m.uptime,
			m.relayRate,
		}
		for _, c := range collectors {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

// IncMessagesReceived increments the received counter for a direction
func (m *Metrics) IncMessagesReceived(direction string) {
	m.messagesReceived.WithLabelValues(direction).Inc()
}

// IncMessagesRelayed increments the relayed counter for a direction
func (m *Metrics) IncMessagesRelayed(direction string) {
	m.messagesRelayed.WithLabelValues(direction).Inc()
}

// IncMessagesDropped increments the dropped counter for a direction and reason
func (m *Metrics) IncMessagesDropped(direction, reason string) {
	m.messagesDropped.WithLabelValues(direction, reason).Inc()
}

// IncReconnects increments the reconnect counter for a transport
func (m *Metrics) IncReconnects(transport string) {
	m.reconnects.WithLabelValues(transport).Inc()
}

// IncStateTransitions records a connection state transition
func (m *Metrics) IncStateTransitions(transport, state string) {
	m.stateTransitions.WithLabelValues(transport, state).Inc()
}

// SetConnectionStatus sets the connection gauge for a transport
func (m *Metrics) SetConnectionStatus(transport string, connected bool) {
	v := 0.0
	if connected {
		v = 1.0
	}
	m.connectionStatus.WithLabelValues(transport).Set(v)
}

// SetQueueDepth sets the queue depth gauge for a direction
func (m *Metrics) SetQueueDepth(direction string, depth float64) {
	m.queueDepth.WithLabelValues(direction).Set(depth)
}

// SetUptime sets the uptime gauge
func (m *Metrics) SetUptime(seconds float64) {
	m.uptime.Set(seconds)
}

// SetRelayRate sets the relay rate gauge
func (m *Metrics) SetRelayRate(rate float64) {
	m.relayRate.Set(rate)
}
