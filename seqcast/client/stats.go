package seqcastclient

import (
	"github.com/companyzero/seqcast/seqcast/internal/seqtracker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// stats holds client statistics.
type stats struct {
	promEnabled bool

	reg *prometheus.Registry

	bytesRead    prometheus.Counter
	bytesWritten prometheus.Counter
	packets      *prometheus.CounterVec
	outOfOrder   prometheus.Counter
}

func newStats(promEnabled bool) *stats {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &stats{
		promEnabled: promEnabled,
		reg:         reg,

		bytesRead: f.NewCounter(prometheus.CounterOpts{
			Name: "seqcast_client_bytes_read",
			Help: "Total bytes read",
		}),
		bytesWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "seqcast_client_bytes_written",
			Help: "Total bytes written",
		}),
		packets: f.NewCounterVec(prometheus.CounterOpts{
			Name: "seqcast_client_packets",
			Help: "Number of received datagrams by outcome",
		}, []string{"outcome"}),
		outOfOrder: f.NewCounter(prometheus.CounterOpts{
			Name: "seqcast_client_out_of_order",
			Help: "Number of packets received after a higher sequence number",
		}),
	}
}

func (st *stats) datagramRead(n int) {
	if st.promEnabled {
		st.bytesRead.Add(float64(n))
	}
}

func (st *stats) datagramWritten(n int) {
	if st.promEnabled {
		st.bytesWritten.Add(float64(n))
	}
}

func (st *stats) discarded() {
	st.packets.WithLabelValues(seqtracker.Discarded.String()).Inc()
}

func (st *stats) packetObserved(obs seqtracker.Observation, outOfOrder bool) {
	st.packets.WithLabelValues(obs.String()).Inc()
	if outOfOrder {
		st.outOfOrder.Inc()
	}
}
