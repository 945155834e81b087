//go:build !linux

package qtcore

import (
	"errors"
	"net"
)

// setZeroChecksum leaves the socket unchanged and always returns an error
// on platforms without SO_NO_CHECK.
func setZeroChecksum(conn *net.UDPConn) error {
	return errors.New("qtcore: zero-checksum UDP is only supported on linux")
}
