//go:build linux

package qtcore

import (
	"net"

	"golang.org/x/sys/unix"
)

// setZeroChecksum sets SO_NO_CHECK on conn's underlying file descriptor,
// asking the kernel to skip UDP checksum computation on datagrams this
// socket sends. QUIC's AEAD already authenticates every packet, so the
// UDP checksum is redundant integrity checking paid for twice.
func setZeroChecksum(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_NO_CHECK, 1)
	}); err != nil {
		return err
	}
	return sockErr
}
