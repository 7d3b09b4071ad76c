package peerlink

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the transport counters, labelled by local endpoint
type Metrics struct {
	Received  *prometheus.CounterVec
	Queued    *prometheus.CounterVec
	Discarded *prometheus.CounterVec
	Malformed *prometheus.CounterVec
}

// NewMetrics creates the transport counters and registers them with reg
// when reg is not nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	newVec := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pshare",
			Subsystem: "listener",
			Name:      name,
			Help:      help,
		}, []string{"endpoint"})
	}

	m := &Metrics{
		Received:  newVec("datagrams_received_total", "Datagrams read from the socket."),
		Queued:    newVec("messages_queued_total", "Messages pushed onto the inbound queue."),
		Discarded: newVec("messages_discarded_total", "Messages rejected by the whitelist or a full queue."),
		Malformed: newVec("datagrams_malformed_total", "Datagrams that could not be decoded."),
	}
	if reg != nil {
		reg.MustRegister(m.Received, m.Queued, m.Discarded, m.Malformed)
	}
	return m
}
