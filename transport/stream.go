package transport

import "fmt"

// Stream is one QUIC stream's local state: independent send and receive
// byte-stream buffers, each with its own flow-control window (§3, §4.2).
type Stream struct {
	id   uint64
	recv recvBuffer
	send sendBuffer

	flow          flowControl
	connFlow      *flowControl // Connection-level window, shared by all streams.
	updateMaxData bool

	sendAbandoned bool // Send side stopped early by a queued RESET_STREAM.
}

// pushRecv records incoming stream data for reassembly.
func (s *Stream) pushRecv(data []byte, offset uint64, fin bool) error {
	if err := s.recv.push(data, offset, fin); err != nil {
		return err
	}
	if s.flow.shouldUpdateMaxRecv() {
		s.updateMaxData = true
	}
	return nil
}

// popSend returns up to max bytes of outgoing data ready to frame.
func (s *Stream) popSend(max int) (data []byte, offset uint64, fin bool) {
	return s.send.popSend(max)
}

// ackMaxData marks a sent MAX_STREAM_DATA update as delivered.
func (s *Stream) ackMaxData() {
	s.flow.commitMaxRecv()
	s.updateMaxData = false
}

// Read copies received, in-order data into p. It reports io.EOF-like
// completion via the fin return instead of an error, since a QUIC stream
// half can reach a clean end without the connection itself closing.
func (s *Stream) Read(p []byte) (n int, fin bool) {
	n, fin = s.recv.read(p)
	if s.connFlow != nil {
		s.connFlow.addRecv(n)
	}
	s.flow.addRecv(n)
	return n, fin
}

// Write queues data for sending on this stream.
func (s *Stream) Write(p []byte, fin bool) error {
	offset := s.send.base + uint64(len(s.send.buf))
	return s.send.push(p, offset, fin)
}

// Close marks the send side finished: any buffered writes are flushed and
// no further Write calls are accepted. Equivalent to Write(nil, true).
func (s *Stream) Close() error {
	return s.Write(nil, true)
}

// abandonSend stops this stream's send side immediately, discarding any
// unsent bytes, and returns the RESET_STREAM frame to queue for the peer.
// Used when a STOP_SENDING frame arrives asking the peer to give up (§9
// Open Question #1): unlike a locally-requested reset, the final size is
// whatever has already been written, since nothing more will ever be sent.
func (s *Stream) abandonSend(errorCode uint64) *resetStreamFrame {
	if s.sendAbandoned {
		return nil
	}
	s.sendAbandoned = true
	finalSize := s.send.base + uint64(len(s.send.buf))
	s.send.pending = rangeSet{}
	s.send.finPending = false
	return newResetStreamFrame(s.id, errorCode, finalSize)
}

func (s *Stream) String() string {
	return fmt.Sprintf("id=%d recv=%s send=%s", s.id, &s.recv, &s.send)
}

// cryptoStream carries TLS handshake record bytes in CRYPTO frames. It
// reuses the same reassembly/send-queue machinery as application streams,
// but has no flow control (RFC 9000 §7.5: CRYPTO frames are not subject to
// flow control).
type cryptoStream struct {
	send sendBuffer
	recv recvBuffer
}

func (c *cryptoStream) pushRecv(data []byte, offset uint64, fin bool) error {
	return c.recv.push(data, offset, fin)
}

func (c *cryptoStream) popSend(max int) (data []byte, offset uint64, fin bool) {
	return c.send.popSend(max)
}

func (c *cryptoStream) Write(p []byte) error {
	offset := c.send.base + uint64(len(c.send.buf))
	return c.send.push(p, offset, false)
}

func (c *cryptoStream) Read(p []byte) (n int, fin bool) {
	return c.recv.read(p)
}
