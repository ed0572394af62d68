package session

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	OnlineUsers     prometheus.Gauge
	Connections     prometheus.Gauge
	Invitations     *prometheus.CounterVec
	CanvasUpdates   prometheus.Counter
	ProtocolErrors  *prometheus.CounterVec
	DroppedDelivery prometheus.Counter
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// NewMetrics 进程内单例，避免重复注册到默认 registry
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			OnlineUsers: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "canvas_online_users",
				Help: "Users currently announced online",
			}),
			Connections: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "canvas_connections",
				Help: "Live transport connections",
			}),
			Invitations: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "canvas_invitations_total",
				Help: "Invitation handshake steps by outcome",
			}, []string{"outcome"}),
			CanvasUpdates: promauto.NewCounter(prometheus.CounterOpts{
				Name: "canvas_updates_total",
				Help: "Canvas content updates relayed to groups",
			}),
			ProtocolErrors: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "canvas_protocol_errors_total",
				Help: "Scoped error events sent to clients by code",
			}, []string{"code"}),
			DroppedDelivery: promauto.NewCounter(prometheus.CounterOpts{
				Name: "canvas_dropped_deliveries_total",
				Help: "Outbound messages that could not be handed to a connection",
			}),
		}
	})
	return metricsInstance
}

func (m *Metrics) SetOnlineUsers(n int) {
	if m == nil || m.OnlineUsers == nil {
		return
	}
	m.OnlineUsers.Set(float64(n))
}

func (m *Metrics) SetConnections(n int) {
	if m == nil || m.Connections == nil {
		return
	}
	m.Connections.Set(float64(n))
}

func (m *Metrics) RecordInvitation(outcome string) {
	if m == nil || m.Invitations == nil {
		return
	}
	m.Invitations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordUpdate() {
	if m == nil || m.CanvasUpdates == nil {
		return
	}
	m.CanvasUpdates.Inc()
}

func (m *Metrics) RecordError(code string) {
	if m == nil || m.ProtocolErrors == nil {
		return
	}
	m.ProtocolErrors.WithLabelValues(code).Inc()
}

func (m *Metrics) RecordDropped() {
	if m == nil || m.DroppedDelivery == nil {
		return
	}
	m.DroppedDelivery.Inc()
}
