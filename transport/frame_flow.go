package transport

// maxDataFrame raises the connection-level flow-control limit.
type maxDataFrame struct {
	maximumData uint64
}

func newMaxDataFrame(max uint64) *maxDataFrame { return &maxDataFrame{maximumData: max} }

func (f *maxDataFrame) decode(b []byte) (int, error) {
	return decodeOneVarintFrame(b, frameTypeMaxData, &f.maximumData)
}
func (f *maxDataFrame) encodedLen() int { return 1 + varintLen(f.maximumData) }
func (f *maxDataFrame) encode(b []byte) (int, error) {
	return encodeOneVarintFrame(b, frameTypeMaxData, f.maximumData)
}

// maxStreamDataFrame raises a single stream's flow-control limit.
type maxStreamDataFrame struct {
	streamID    uint64
	maximumData uint64
}

func newMaxStreamDataFrame(id, max uint64) *maxStreamDataFrame {
	return &maxStreamDataFrame{streamID: id, maximumData: max}
}

func (f *maxStreamDataFrame) decode(b []byte) (int, error) {
	return decodeTwoVarintFrame(b, frameTypeMaxStreamData, &f.streamID, &f.maximumData)
}
func (f *maxStreamDataFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.maximumData)
}
func (f *maxStreamDataFrame) encode(b []byte) (int, error) {
	return encodeTwoVarintFrame(b, frameTypeMaxStreamData, f.streamID, f.maximumData)
}

// maxStreamsFrame raises the bidi/uni stream-count limit.
type maxStreamsFrame struct {
	bidi           bool
	maximumStreams uint64
}

func newMaxStreamsFrame(bidi bool, max uint64) *maxStreamsFrame {
	return &maxStreamsFrame{bidi: bidi, maximumStreams: max}
}

func (f *maxStreamsFrame) decode(b []byte) (int, error) {
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 {
		return 0, newError(FrameEncodingError, "max_streams").withFrameType(frameTypeMaxStreamsBidi)
	}
	bidi, ok := isStreamsBlockedOrMaxStreams(typ)
	if !ok || (typ != frameTypeMaxStreamsBidi && typ != frameTypeMaxStreamsUni) {
		return 0, newError(FrameEncodingError, "max_streams type").withFrameType(typ)
	}
	f.bidi = bidi
	pos := n
	n = getVarint(b[pos:], &f.maximumStreams)
	if n == 0 {
		return 0, newError(FrameEncodingError, "max_streams limit").withFrameType(typ)
	}
	return pos + n, nil
}

func (f *maxStreamsFrame) encodedLen() int { return 1 + varintLen(f.maximumStreams) }

func (f *maxStreamsFrame) encode(b []byte) (int, error) {
	typ := uint64(frameTypeMaxStreamsUni)
	if f.bidi {
		typ = frameTypeMaxStreamsBidi
	}
	return encodeOneVarintFrame(b, typ, f.maximumStreams)
}

// dataBlockedFrame signals the sender is connection-flow-control blocked.
type dataBlockedFrame struct {
	dataLimit uint64
}

func newDataBlockedFrame(limit uint64) *dataBlockedFrame { return &dataBlockedFrame{dataLimit: limit} }

func (f *dataBlockedFrame) decode(b []byte) (int, error) {
	return decodeOneVarintFrame(b, frameTypeDataBlocked, &f.dataLimit)
}
func (f *dataBlockedFrame) encodedLen() int { return 1 + varintLen(f.dataLimit) }
func (f *dataBlockedFrame) encode(b []byte) (int, error) {
	return encodeOneVarintFrame(b, frameTypeDataBlocked, f.dataLimit)
}

// streamDataBlockedFrame signals the sender is stream-flow-control blocked.
type streamDataBlockedFrame struct {
	streamID  uint64
	dataLimit uint64
}

func newStreamDataBlockedFrame(id, limit uint64) *streamDataBlockedFrame {
	return &streamDataBlockedFrame{streamID: id, dataLimit: limit}
}

func (f *streamDataBlockedFrame) decode(b []byte) (int, error) {
	return decodeTwoVarintFrame(b, frameTypeStreamDataBlocked, &f.streamID, &f.dataLimit)
}
func (f *streamDataBlockedFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.dataLimit)
}
func (f *streamDataBlockedFrame) encode(b []byte) (int, error) {
	return encodeTwoVarintFrame(b, frameTypeStreamDataBlocked, f.streamID, f.dataLimit)
}

// streamsBlockedFrame signals the sender wanted to open more streams than
// the peer's MAX_STREAMS permits.
type streamsBlockedFrame struct {
	bidi        bool
	streamLimit uint64
}

func newStreamsBlockedFrame(bidi bool, limit uint64) *streamsBlockedFrame {
	return &streamsBlockedFrame{bidi: bidi, streamLimit: limit}
}

func (f *streamsBlockedFrame) decode(b []byte) (int, error) {
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 {
		return 0, newError(FrameEncodingError, "streams_blocked").withFrameType(frameTypeStreamsBlockedBidi)
	}
	bidi, ok := isStreamsBlockedOrMaxStreams(typ)
	if !ok || (typ != frameTypeStreamsBlockedBidi && typ != frameTypeStreamsBlockedUni) {
		return 0, newError(FrameEncodingError, "streams_blocked type").withFrameType(typ)
	}
	f.bidi = bidi
	pos := n
	n = getVarint(b[pos:], &f.streamLimit)
	if n == 0 {
		return 0, newError(FrameEncodingError, "streams_blocked limit").withFrameType(typ)
	}
	return pos + n, nil
}

func (f *streamsBlockedFrame) encodedLen() int { return 1 + varintLen(f.streamLimit) }

func (f *streamsBlockedFrame) encode(b []byte) (int, error) {
	typ := uint64(frameTypeStreamsBlockedUni)
	if f.bidi {
		typ = frameTypeStreamsBlockedBidi
	}
	return encodeOneVarintFrame(b, typ, f.streamLimit)
}
