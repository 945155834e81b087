package qtcore

import (
	"crypto/tls"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/birkeland/qtcore/transport"
)

func newTestRemoteConn(t *testing.T, scid []byte) *remoteConn {
	t.Helper()
	config := transport.NewConfig(&tls.Config{InsecureSkipVerify: true, NextProtos: []string{"test"}})
	tc, err := transport.Connect(scid, config)
	require.NoError(t, err)
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4433}
	return newRemoteConn(tc, scid, addr, nil, true)
}

func TestCollectorDescribeCount(t *testing.T) {
	c := newCollector()
	ch := make(chan *prometheus.Desc, 16)
	c.Describe(ch)
	close(ch)
	n := 0
	for range ch {
		n++
	}
	require.Equal(t, 8, n, "Describe should emit one descriptor per tracked gauge")
}

func TestCollectorCollectTracksAddedConns(t *testing.T) {
	c := newCollector()
	rc := newTestRemoteConn(t, []byte{1, 2, 3, 4})

	ch := make(chan prometheus.Metric, 64)
	c.Collect(ch)
	close(ch)
	require.Empty(t, ch, "Collect should emit nothing before any connection is added")

	c.add(rc)
	ch = make(chan prometheus.Metric, 64)
	c.Collect(ch)
	close(ch)
	n := 0
	for range ch {
		n++
	}
	require.Equal(t, 8, n, "Collect should emit one metric per gauge for one tracked connection")
}

func TestCollectorRemoveStopsTracking(t *testing.T) {
	c := newCollector()
	rc := newTestRemoteConn(t, []byte{5, 6, 7, 8})
	c.add(rc)
	c.remove(rc)

	ch := make(chan prometheus.Metric, 64)
	c.Collect(ch)
	close(ch)
	require.Empty(t, ch, "Collect should emit nothing for a removed connection")
}
