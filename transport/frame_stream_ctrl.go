package transport

// resetStreamFrame abruptly terminates the sending part of a stream.
type resetStreamFrame struct {
	streamID  uint64
	errorCode uint64
	finalSize uint64
}

func newResetStreamFrame(id, errorCode, finalSize uint64) *resetStreamFrame {
	return &resetStreamFrame{streamID: id, errorCode: errorCode, finalSize: finalSize}
}

func (f *resetStreamFrame) decode(b []byte) (int, error) {
	return decodeThreeVarintFrame(b, frameTypeResetStream, &f.streamID, &f.errorCode, &f.finalSize)
}

func (f *resetStreamFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.errorCode) + varintLen(f.finalSize)
}

func (f *resetStreamFrame) encode(b []byte) (int, error) {
	return encodeThreeVarintFrame(b, frameTypeResetStream, f.streamID, f.errorCode, f.finalSize)
}

// stopSendingFrame asks the peer to stop sending on the given stream.
type stopSendingFrame struct {
	streamID  uint64
	errorCode uint64
}

func newStopSendingFrame(id, errorCode uint64) *stopSendingFrame {
	return &stopSendingFrame{streamID: id, errorCode: errorCode}
}

func (f *stopSendingFrame) decode(b []byte) (int, error) {
	return decodeTwoVarintFrame(b, frameTypeStopSending, &f.streamID, &f.errorCode)
}

func (f *stopSendingFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.errorCode)
}

func (f *stopSendingFrame) encode(b []byte) (int, error) {
	return encodeTwoVarintFrame(b, frameTypeStopSending, f.streamID, f.errorCode)
}

// Shared helpers for the many frame shapes that are just "type + N varints".

func decodeTwoVarintFrame(b []byte, wantType uint64, a, c *uint64) (int, error) {
	pos := 0
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 || typ != wantType {
		return 0, newError(FrameEncodingError, "frame type").withFrameType(wantType)
	}
	pos += n
	for _, v := range []*uint64{a, c} {
		n = getVarint(b[pos:], v)
		if n == 0 {
			return 0, newError(FrameEncodingError, "frame field").withFrameType(wantType)
		}
		pos += n
	}
	return pos, nil
}

func encodeTwoVarintFrame(b []byte, typ, a, c uint64) (int, error) {
	need := 1 + varintLen(a) + varintLen(c)
	if len(b) < need {
		return 0, errShortBuffer
	}
	pos := putVarint(b, typ)
	pos += putVarint(b[pos:], a)
	pos += putVarint(b[pos:], c)
	return pos, nil
}

func decodeThreeVarintFrame(b []byte, wantType uint64, a, c, d *uint64) (int, error) {
	pos := 0
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 || typ != wantType {
		return 0, newError(FrameEncodingError, "frame type").withFrameType(wantType)
	}
	pos += n
	for _, v := range []*uint64{a, c, d} {
		n = getVarint(b[pos:], v)
		if n == 0 {
			return 0, newError(FrameEncodingError, "frame field").withFrameType(wantType)
		}
		pos += n
	}
	return pos, nil
}

func encodeThreeVarintFrame(b []byte, typ, a, c, d uint64) (int, error) {
	need := 1 + varintLen(a) + varintLen(c) + varintLen(d)
	if len(b) < need {
		return 0, errShortBuffer
	}
	pos := putVarint(b, typ)
	pos += putVarint(b[pos:], a)
	pos += putVarint(b[pos:], c)
	pos += putVarint(b[pos:], d)
	return pos, nil
}

func decodeOneVarintFrame(b []byte, wantType uint64, a *uint64) (int, error) {
	pos := 0
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 || typ != wantType {
		return 0, newError(FrameEncodingError, "frame type").withFrameType(wantType)
	}
	pos += n
	n = getVarint(b[pos:], a)
	if n == 0 {
		return 0, newError(FrameEncodingError, "frame field").withFrameType(wantType)
	}
	pos += n
	return pos, nil
}

func encodeOneVarintFrame(b []byte, typ, a uint64) (int, error) {
	need := 1 + varintLen(a)
	if len(b) < need {
		return 0, errShortBuffer
	}
	pos := putVarint(b, typ)
	pos += putVarint(b[pos:], a)
	return pos, nil
}
