package node

import (
	"github.com/mosaicnetworks/paychan/src/peers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gossip message results
const (
	resultSent     = "sent"
	resultDropped  = "dropped"
	resultApplied  = "applied"
	resultIgnored  = "ignored"
	resultRejected = "rejected"
)

// metrics are registered on a per-node registry so several nodes can live in
// the same process.
type metrics struct {
	registry          *prometheus.Registry
	payments          *prometheus.CounterVec
	gossipMessages    *prometheus.CounterVec
	sequenceConflicts prometheus.Counter
}

func newMetrics(table *peers.PeerTable) *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &metrics{
		registry: reg,
		payments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paychan",
			Name:      "payments_total",
			Help:      "Payments applied to the ledger, by direction.",
		}, []string{"direction"}),
		gossipMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paychan",
			Name:      "gossip_messages_total",
			Help:      "Gossip messages by type and result.",
		}, []string{"type", "result"}),
		sequenceConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "paychan",
			Name:      "sequence_conflicts_total",
			Help:      "Remote payments rejected because they did not extend the current sequence.",
		}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "paychan",
		Name:      "connected_peers",
		Help:      "Current overlay members.",
	}, func() float64 {
		return float64(table.Len())
	})

	return m
}

func (m *metrics) gossip(msgType, result string) {
	m.gossipMessages.WithLabelValues(msgType, result).Inc()
}
