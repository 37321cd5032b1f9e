package seqcastserver

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// stats holds server statistics.
type stats struct {
	// promEnabled is true if prometheus has been enabled.
	promEnabled bool

	reg *prometheus.Registry

	bytesRead         prometheus.Counter
	bytesWritten      prometheus.Counter
	pktsRead          prometheus.Counter
	pktsWritten       prometheus.Counter
	packetsBroadcast  prometheus.Counter
	sendFailures      prometheus.Counter
	admissionRequests prometheus.Counter
	malformedMsgs     prometheus.Counter
	clients           prometheus.Gauge
	broadcastFanout   prometheus.Histogram

	bytesReadAtomic    atomic.Uint64
	bytesWrittenAtomic atomic.Uint64
	pktsReadAtomic     atomic.Uint64
	pktsWrittenAtomic  atomic.Uint64
	clientsAtomic      atomic.Int64
	sentSeqAtomic      atomic.Uint64
}

func newStats(promEnabled bool) *stats {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())
	return &stats{
		promEnabled: promEnabled,
		reg:         reg,

		bytesRead: f.NewCounter(prometheus.CounterOpts{
			Name: "seqcast_bytes_read",
			Help: "Total bytes read",
		}),
		bytesWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "seqcast_bytes_written",
			Help: "Total bytes written",
		}),
		pktsRead: f.NewCounter(prometheus.CounterOpts{
			Name: "seqcast_datagrams_read",
			Help: "Total number of datagrams read",
		}),
		pktsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "seqcast_datagrams_written",
			Help: "Total number of datagrams written",
		}),
		packetsBroadcast: f.NewCounter(prometheus.CounterOpts{
			Name: "seqcast_packets_broadcast",
			Help: "Number of stream packets broadcast to the registered clients",
		}),
		sendFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "seqcast_send_failures",
			Help: "Number of datagrams that failed to be written to a client",
		}),
		admissionRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "seqcast_admission_requests",
			Help: "Number of valid admission requests received (including repeated ones)",
		}),
		malformedMsgs: f.NewCounter(prometheus.CounterOpts{
			Name: "seqcast_malformed_datagrams",
			Help: "Number of datagrams ignored during admission",
		}),
		clients: f.NewGauge(prometheus.GaugeOpts{
			Name: "seqcast_clients",
			Help: "Number of admitted clients",
		}),
		broadcastFanout: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "seqcast_broadcast_fanout",
			Help:    "Histogram of the number of clients each packet was sent to",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

func (st *stats) datagramRead(n int) {
	if st.promEnabled {
		st.bytesRead.Add(float64(n))
		st.pktsRead.Inc()
	}
	st.bytesReadAtomic.Add(uint64(n))
	st.pktsReadAtomic.Add(1)
}

func (st *stats) datagramWritten(n int) {
	if st.promEnabled {
		st.bytesWritten.Add(float64(n))
		st.pktsWritten.Inc()
	}
	st.bytesWrittenAtomic.Add(uint64(n))
	st.pktsWrittenAtomic.Add(1)
}

func (st *stats) packetBroadcast(fanout int) {
	if st.promEnabled {
		st.packetsBroadcast.Inc()
		st.broadcastFanout.Observe(float64(fanout))
	}
	st.sentSeqAtomic.Add(1)
}

func (st *stats) sendFailed() {
	st.sendFailures.Inc()
}

func (st *stats) admissionRequest() {
	st.admissionRequests.Inc()
}

func (st *stats) malformedMsg() {
	st.malformedMsgs.Inc()
}

func (st *stats) clientAdmitted() {
	st.clients.Inc()
	st.clientsAtomic.Add(1)
}

// runReportStatsLoop runs a loop to report basic stats.
func (s *Server) runReportStatsLoop(ctx context.Context, reportInterval time.Duration) error {
	if reportInterval <= 0 {
		s.log.Debugf("Logging of stats is disabled")
		return nil
	}

	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()
	var tickTime, lastTick time.Time
	tickTime = time.Now()

	s.log.Debugf("Running report stats loop with interval %s", reportInterval)

	var bytesRead, pktsRead, bytesWritten, pktsWritten uint64
	for {
		lastTick = tickTime

		select {
		case <-ctx.Done():
			return ctx.Err()
		case tickTime = <-ticker.C:
		}

		bytesRead = s.stats.bytesReadAtomic.Swap(0)
		bytesWritten = s.stats.bytesWrittenAtomic.Swap(0)
		pktsRead = s.stats.pktsReadAtomic.Swap(0)
		pktsWritten = s.stats.pktsWrittenAtomic.Swap(0)

		if bytesRead|bytesWritten|pktsRead|pktsWritten == 0 {
			// Skip if there are no stats.
			continue
		}

		dt := tickTime.Sub(lastTick)
		if dt == 0 {
			continue // Should not happen.
		}

		dts := float64(dt.Milliseconds()) / 1000

		wbr := float64(bytesWritten) / dts
		wpr := float64(pktsWritten) / dts

		s.log.Infof("Stats for the last %s - "+
			"IN: %8s %8s Pkt ; OUT: %8s (%7sB/sec) %8s Pkt (%7s/sec) ; "+
			"clients %d, packets sent %d/%d",
			dt.Round(time.Millisecond),
			hbytes(bytesRead), hcount(pktsRead),
			hbytes(bytesWritten), hrate(wbr), hcount(pktsWritten), hrate(wpr),
			s.stats.clientsAtomic.Load(), s.stats.sentSeqAtomic.Load(),
			s.sess.Count,
		)
	}
}
