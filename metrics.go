package qtcore

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes every live connection's loss-recovery/congestion-
// control state (transport.Stats) as Prometheus gauges, snapshotted on
// each scrape. Grounded on runZeroInc-sockstats's TCPInfoCollector: a
// custom prometheus.Collector that walks a set of tracked connections in
// Collect rather than pushing updates through a channel of its own.
type Collector struct {
	mu    sync.Mutex
	conns map[*remoteConn]struct{}

	congestionWindow *prometheus.Desc
	ssthresh         *prometheus.Desc
	bytesInFlight    *prometheus.Desc
	lostPackets      *prometheus.Desc
	minRTT           *prometheus.Desc
	smoothedRTT      *prometheus.Desc
	rttVar           *prometheus.Desc
	ptoCount         *prometheus.Desc
}

func newCollector() *Collector {
	labels := []string{"cid", "remote_addr"}
	return &Collector{
		conns: make(map[*remoteConn]struct{}),
		congestionWindow: prometheus.NewDesc(
			"qtcore_congestion_window_bytes", "Current congestion window.", labels, nil),
		ssthresh: prometheus.NewDesc(
			"qtcore_ssthresh_bytes", "Current slow-start threshold.", labels, nil),
		bytesInFlight: prometheus.NewDesc(
			"qtcore_bytes_in_flight", "Bytes sent and not yet acked or declared lost.", labels, nil),
		lostPackets: prometheus.NewDesc(
			"qtcore_lost_packets_total", "Packets declared lost across all packet-number spaces.", labels, nil),
		minRTT: prometheus.NewDesc(
			"qtcore_min_rtt_seconds", "Minimum observed RTT.", labels, nil),
		smoothedRTT: prometheus.NewDesc(
			"qtcore_smoothed_rtt_seconds", "Smoothed RTT estimate.", labels, nil),
		rttVar: prometheus.NewDesc(
			"qtcore_rtt_variance_seconds", "RTT variance estimate.", labels, nil),
		ptoCount: prometheus.NewDesc(
			"qtcore_pto_count", "Consecutive probe-timeout expirations since the last ack.", labels, nil),
	}
}

func (c *Collector) add(rc *remoteConn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[rc] = struct{}{}
}

func (c *Collector) remove(rc *remoteConn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.conns, rc)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.congestionWindow
	ch <- c.ssthresh
	ch <- c.bytesInFlight
	ch <- c.lostPackets
	ch <- c.minRTT
	ch <- c.smoothedRTT
	ch <- c.rttVar
	ch <- c.ptoCount
}

// Collect implements prometheus.Collector, snapshotting every tracked
// connection's transport.Stats at scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	conns := make([]*remoteConn, 0, len(c.conns))
	for rc := range c.conns {
		conns = append(conns, rc)
	}
	c.mu.Unlock()

	for _, rc := range conns {
		rc.mu.Lock()
		stats := rc.conn.Stats()
		cid := formatCID(rc.scid)
		addr := ""
		if rc.addr != nil {
			addr = rc.addr.String()
		}
		rc.mu.Unlock()

		labels := []string{cid, addr}
		ch <- prometheus.MustNewConstMetric(c.congestionWindow, prometheus.GaugeValue, float64(stats.CongestionWindow), labels...)
		ch <- prometheus.MustNewConstMetric(c.ssthresh, prometheus.GaugeValue, float64(stats.Ssthresh), labels...)
		ch <- prometheus.MustNewConstMetric(c.bytesInFlight, prometheus.GaugeValue, float64(stats.BytesInFlight), labels...)
		ch <- prometheus.MustNewConstMetric(c.lostPackets, prometheus.GaugeValue, float64(stats.LostPackets), labels...)
		ch <- prometheus.MustNewConstMetric(c.minRTT, prometheus.GaugeValue, stats.MinRTT.Seconds(), labels...)
		ch <- prometheus.MustNewConstMetric(c.smoothedRTT, prometheus.GaugeValue, stats.SmoothedRTT.Seconds(), labels...)
		ch <- prometheus.MustNewConstMetric(c.rttVar, prometheus.GaugeValue, stats.RTTVar.Seconds(), labels...)
		ch <- prometheus.MustNewConstMetric(c.ptoCount, prometheus.GaugeValue, float64(stats.PTOCount), labels...)
	}
}
