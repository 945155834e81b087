package transport

// paddingFrame is a run of coalesced PADDING bytes, collapsed into a single
// record by the decoder (§4.1).
type paddingFrame struct {
	length int
}

func newPaddingFrame(length int) *paddingFrame {
	return &paddingFrame{length: length}
}

func (f *paddingFrame) decode(b []byte) (int, error) {
	n := 0
	for n < len(b) && b[n] == frameTypePadding {
		n++
	}
	f.length = n
	if n == 0 {
		return 0, newError(FrameEncodingError, "padding").withFrameType(frameTypePadding)
	}
	return n, nil
}

func (f *paddingFrame) encodedLen() int {
	return f.length
}

func (f *paddingFrame) encode(b []byte) (int, error) {
	if len(b) < f.length {
		return 0, errShortBuffer
	}
	for i := 0; i < f.length; i++ {
		b[i] = frameTypePadding
	}
	return f.length, nil
}

// pingFrame carries no data; its receipt is ack-eliciting only.
type pingFrame struct{}

func (f *pingFrame) decode(b []byte) (int, error) {
	if len(b) == 0 || b[0] != frameTypePing {
		return 0, newError(FrameEncodingError, "ping").withFrameType(frameTypePing)
	}
	return 1, nil
}

func (f *pingFrame) encodedLen() int { return 1 }

func (f *pingFrame) encode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, errShortBuffer
	}
	b[0] = frameTypePing
	return 1, nil
}

// handshakeDoneFrame signals, server to client only, that the handshake is
// confirmed.
type handshakeDoneFrame struct{}

func (f *handshakeDoneFrame) decode(b []byte) (int, error) {
	if len(b) == 0 || b[0] != frameTypeHanshakeDone {
		return 0, newError(FrameEncodingError, "handshake_done").withFrameType(frameTypeHanshakeDone)
	}
	return 1, nil
}

func (f *handshakeDoneFrame) encodedLen() int { return 1 }

func (f *handshakeDoneFrame) encode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, errShortBuffer
	}
	b[0] = frameTypeHanshakeDone
	return 1, nil
}
