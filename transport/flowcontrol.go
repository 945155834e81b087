package transport

// flowControl tracks one direction-pair of a flow-control window, shared by
// the connection (MAX_DATA) and by each stream (MAX_STREAM_DATA).
type flowControl struct {
	// Receive side: bytes we have told the peer it may send (maxRecv),
	// bytes actually received (usedRecv), and the next limit we intend to
	// advertise once credited (maxRecvNext).
	maxRecv     uint64
	usedRecv    uint64
	maxRecvNext uint64

	// Send side: the limit the peer has granted us.
	maxSend  uint64
	usedSend uint64
}

func (f *flowControl) init(maxRecv, maxSend uint64) {
	f.maxRecv = maxRecv
	f.maxRecvNext = maxRecv
	f.maxSend = maxSend
}

// canRecv returns how many more bytes the peer is still allowed to send.
func (f *flowControl) canRecv() uint64 {
	if f.usedRecv >= f.maxRecv {
		return 0
	}
	return f.maxRecv - f.usedRecv
}

// addRecv records newly received bytes against the window.
func (f *flowControl) addRecv(n int) {
	f.usedRecv += uint64(n)
	// Auto-tune the next limit: once half the window has been consumed,
	// double it for the next MAX_DATA/MAX_STREAM_DATA update.
	if f.maxRecv > 0 && f.usedRecv >= f.maxRecv/2 {
		next := f.maxRecv * 2
		if next > f.maxRecvNext {
			f.maxRecvNext = next
		}
	}
}

// shouldUpdateMaxRecv reports whether a new limit is due to be sent.
func (f *flowControl) shouldUpdateMaxRecv() bool {
	return f.maxRecvNext > f.maxRecv
}

// commitMaxRecv marks the advertised limit as sent.
func (f *flowControl) commitMaxRecv() {
	f.maxRecv = f.maxRecvNext
}

// canSend returns how many more bytes this endpoint may send.
func (f *flowControl) canSend() uint64 {
	if f.usedSend >= f.maxSend {
		return 0
	}
	return f.maxSend - f.usedSend
}

// addSend records newly sent bytes against the window.
func (f *flowControl) addSend(n int) {
	f.usedSend += uint64(n)
}

// setMaxSend raises the send-side limit in response to a peer's MAX_DATA
// or MAX_STREAM_DATA frame. Per RFC 9000 §4.1, limits only ever increase.
func (f *flowControl) setMaxSend(max uint64) {
	if max > f.maxSend {
		f.maxSend = max
	}
}
