package relay

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the relay's Prometheus collectors
type Metrics struct {
	Sent        *prometheus.CounterVec
	Demurrals   *prometheus.CounterVec
	Errors      *prometheus.CounterVec
	Republished prometheus.Counter
	Suppressed  prometheus.Counter
	QueueDepth  prometheus.Gauge
	Routes      prometheus.Gauge
	Listeners   prometheus.Gauge
}

// NewMetrics creates the relay collectors and registers them with reg when
// reg is not nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pshare",
			Name:      "messages_sent_total",
			Help:      "Datagrams sent, by destination endpoint.",
		}, []string{"endpoint"}),
		Demurrals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pshare",
			Name:      "route_demurrals_total",
			Help:      "Send opportunities declined by a route, by reason.",
		}, []string{"reason"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pshare",
			Name:      "errors_total",
			Help:      "Relay errors, by kind.",
		}, []string{"kind"}),
		Republished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pshare",
			Name:      "messages_republished_total",
			Help:      "Inbound messages published on the local bus.",
		}),
		Suppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pshare",
			Name:      "messages_suppressed_total",
			Help:      "Inbound messages dropped because the name is owned locally.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pshare",
			Name:      "inbound_queue_depth",
			Help:      "Messages drained from the inbound queue on the last pass.",
		}),
		Routes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pshare",
			Name:      "output_routes",
			Help:      "Exact output routes in the routing table.",
		}),
		Listeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pshare",
			Name:      "listeners",
			Help:      "Running input listeners.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Sent, m.Demurrals, m.Errors, m.Republished,
			m.Suppressed, m.QueueDepth, m.Routes, m.Listeners)
	}
	return m
}
