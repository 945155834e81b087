//go:build linux

package qtcore

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetZeroChecksumLinux(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, setZeroChecksum(conn))
}
