package transport

import "fmt"

// cryptoFrame carries a contiguous range of the TLS handshake byte stream.
type cryptoFrame struct {
	offset uint64
	data   []byte
}

func newCryptoFrame(data []byte, offset uint64) *cryptoFrame {
	return &cryptoFrame{data: data, offset: offset}
}

func (f *cryptoFrame) decode(b []byte) (int, error) {
	pos := 0
	var typ uint64
	n := getVarint(b[pos:], &typ)
	if n == 0 || typ != frameTypeCrypto {
		return 0, newError(FrameEncodingError, "crypto").withFrameType(frameTypeCrypto)
	}
	pos += n
	n = getVarint(b[pos:], &f.offset)
	if n == 0 {
		return 0, newError(FrameEncodingError, "crypto offset").withFrameType(frameTypeCrypto)
	}
	pos += n
	var length uint64
	n = getVarint(b[pos:], &length)
	if n == 0 {
		return 0, newError(FrameEncodingError, "crypto length").withFrameType(frameTypeCrypto)
	}
	pos += n
	if uint64(len(b)-pos) < length {
		return 0, newError(FrameEncodingError, "crypto truncated").withFrameType(frameTypeCrypto)
	}
	f.data = b[pos : pos+int(length)]
	pos += int(length)
	return pos, nil
}

const maxCryptoFrameOverhead = 1 + 8 + 8 // type + offset + length, worst case

func (f *cryptoFrame) encodedLen() int {
	return 1 + varintLen(f.offset) + varintLen(uint64(len(f.data))) + len(f.data)
}

func (f *cryptoFrame) encode(b []byte) (int, error) {
	need := f.encodedLen()
	if len(b) < need {
		return 0, errShortBuffer
	}
	pos := 0
	pos += putVarint(b[pos:], frameTypeCrypto)
	pos += putVarint(b[pos:], f.offset)
	pos += putVarint(b[pos:], uint64(len(f.data)))
	pos += copy(b[pos:], f.data)
	return pos, nil
}

// streamFrame carries a contiguous range of one stream's byte stream.
type streamFrame struct {
	streamID uint64
	offset   uint64
	data     []byte
	fin      bool
	hasLen   bool // Whether to encode an explicit LEN field (false => "rest of packet").
}

func newStreamFrame(id uint64, data []byte, offset uint64, fin bool) *streamFrame {
	return &streamFrame{streamID: id, offset: offset, data: data, fin: fin, hasLen: true}
}

func (f *streamFrame) decode(b []byte) (int, error) {
	pos := 0
	var typ uint64
	n := getVarint(b[pos:], &typ)
	if n == 0 || !isStreamFrameType(typ) {
		return 0, newError(FrameEncodingError, "stream").withFrameType(frameTypeStream)
	}
	pos += n
	off := typ&streamFlagOff != 0
	hasLen := typ&streamFlagLen != 0
	f.fin = typ&streamFlagFin != 0
	n = getVarint(b[pos:], &f.streamID)
	if n == 0 {
		return 0, newError(FrameEncodingError, "stream id").withFrameType(typ)
	}
	pos += n
	if off {
		n = getVarint(b[pos:], &f.offset)
		if n == 0 {
			return 0, newError(FrameEncodingError, "stream offset").withFrameType(typ)
		}
		pos += n
	} else {
		f.offset = 0
	}
	f.hasLen = hasLen
	if hasLen {
		var length uint64
		n = getVarint(b[pos:], &length)
		if n == 0 {
			return 0, newError(FrameEncodingError, "stream length").withFrameType(typ)
		}
		pos += n
		if uint64(len(b)-pos) < length {
			return 0, newError(FrameEncodingError, "stream truncated").withFrameType(typ)
		}
		f.data = b[pos : pos+int(length)]
		pos += int(length)
	} else {
		f.data = b[pos:]
		pos = len(b)
	}
	return pos, nil
}

const maxStreamFrameOverhead = 1 + 8 + 8 + 8 // type + id + offset + length, worst case

func (f *streamFrame) typeByte() uint64 {
	typ := uint64(frameTypeStream)
	if f.offset > 0 {
		typ |= streamFlagOff
	}
	if f.hasLen {
		typ |= streamFlagLen
	}
	if f.fin {
		typ |= streamFlagFin
	}
	return typ
}

func (f *streamFrame) encodedLen() int {
	n := 1 + varintLen(f.streamID)
	if f.offset > 0 {
		n += varintLen(f.offset)
	}
	if f.hasLen {
		n += varintLen(uint64(len(f.data)))
	}
	return n + len(f.data)
}

func (f *streamFrame) encode(b []byte) (int, error) {
	need := f.encodedLen()
	if len(b) < need {
		return 0, errShortBuffer
	}
	pos := 0
	pos += putVarint(b[pos:], f.typeByte())
	pos += putVarint(b[pos:], f.streamID)
	if f.offset > 0 {
		pos += putVarint(b[pos:], f.offset)
	}
	if f.hasLen {
		pos += putVarint(b[pos:], uint64(len(f.data)))
	}
	pos += copy(b[pos:], f.data)
	return pos, nil
}

func (f *streamFrame) String() string {
	return fmt.Sprintf("STREAM id=%d off=%d len=%d fin=%v", f.streamID, f.offset, len(f.data), f.fin)
}
