package transport

import "fmt"

// newTokenFrame carries an address-validation token for future connections.
type newTokenFrame struct {
	token []byte
}

func newNewTokenFrame(token []byte) *newTokenFrame { return &newTokenFrame{token: token} }

func (f *newTokenFrame) decode(b []byte) (int, error) {
	pos := 0
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 || typ != frameTypeNewToken {
		return 0, newError(FrameEncodingError, "new_token").withFrameType(frameTypeNewToken)
	}
	pos += n
	var length uint64
	n = getVarint(b[pos:], &length)
	if n == 0 {
		return 0, newError(FrameEncodingError, "new_token length").withFrameType(frameTypeNewToken)
	}
	pos += n
	if length == 0 || uint64(len(b)-pos) < length {
		return 0, newError(FrameEncodingError, "new_token truncated").withFrameType(frameTypeNewToken)
	}
	f.token = b[pos : pos+int(length)]
	pos += int(length)
	return pos, nil
}

func (f *newTokenFrame) encodedLen() int {
	return 1 + varintLen(uint64(len(f.token))) + len(f.token)
}

func (f *newTokenFrame) encode(b []byte) (int, error) {
	need := f.encodedLen()
	if len(b) < need {
		return 0, errShortBuffer
	}
	pos := putVarint(b, frameTypeNewToken)
	pos += putVarint(b[pos:], uint64(len(f.token)))
	pos += copy(b[pos:], f.token)
	return pos, nil
}

// newConnectionIDFrame issues a new source CID the peer may start using.
type newConnectionIDFrame struct {
	sequenceNumber uint64
	retirePriorTo  uint64
	connectionID   []byte
	resetToken     [16]byte
}

func newNewConnectionIDFrame(seq, retirePriorTo uint64, cid []byte, token [16]byte) *newConnectionIDFrame {
	return &newConnectionIDFrame{sequenceNumber: seq, retirePriorTo: retirePriorTo, connectionID: cid, resetToken: token}
}

func (f *newConnectionIDFrame) decode(b []byte) (int, error) {
	pos := 0
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 || typ != frameTypeNewConnectionID {
		return 0, newError(FrameEncodingError, "new_connection_id").withFrameType(frameTypeNewConnectionID)
	}
	pos += n
	n = getVarint(b[pos:], &f.sequenceNumber)
	if n == 0 {
		return 0, newError(FrameEncodingError, "ncid seq").withFrameType(frameTypeNewConnectionID)
	}
	pos += n
	n = getVarint(b[pos:], &f.retirePriorTo)
	if n == 0 {
		return 0, newError(FrameEncodingError, "ncid retire").withFrameType(frameTypeNewConnectionID)
	}
	pos += n
	if f.retirePriorTo > f.sequenceNumber {
		return 0, newError(FrameEncodingError, "ncid retire > seq").withFrameType(frameTypeNewConnectionID)
	}
	if pos >= len(b) {
		return 0, newError(FrameEncodingError, "ncid length").withFrameType(frameTypeNewConnectionID)
	}
	cidLen := int(b[pos])
	pos++
	if cidLen == 0 || cidLen > MaxCIDLength || len(b)-pos < cidLen+16 {
		return 0, newError(FrameEncodingError, "ncid cid").withFrameType(frameTypeNewConnectionID)
	}
	f.connectionID = append([]byte{}, b[pos:pos+cidLen]...)
	pos += cidLen
	copy(f.resetToken[:], b[pos:pos+16])
	pos += 16
	return pos, nil
}

func (f *newConnectionIDFrame) encodedLen() int {
	return 1 + varintLen(f.sequenceNumber) + varintLen(f.retirePriorTo) + 1 + len(f.connectionID) + 16
}

func (f *newConnectionIDFrame) encode(b []byte) (int, error) {
	need := f.encodedLen()
	if len(b) < need {
		return 0, errShortBuffer
	}
	pos := putVarint(b, frameTypeNewConnectionID)
	pos += putVarint(b[pos:], f.sequenceNumber)
	pos += putVarint(b[pos:], f.retirePriorTo)
	b[pos] = byte(len(f.connectionID))
	pos++
	pos += copy(b[pos:], f.connectionID)
	pos += copy(b[pos:], f.resetToken[:])
	return pos, nil
}

// retireConnectionIDFrame asks the peer to stop using and retire a CID.
type retireConnectionIDFrame struct {
	sequenceNumber uint64
}

func newRetireConnectionIDFrame(seq uint64) *retireConnectionIDFrame {
	return &retireConnectionIDFrame{sequenceNumber: seq}
}

func (f *retireConnectionIDFrame) decode(b []byte) (int, error) {
	return decodeOneVarintFrame(b, frameTypeRetireConnectionID, &f.sequenceNumber)
}
func (f *retireConnectionIDFrame) encodedLen() int { return 1 + varintLen(f.sequenceNumber) }
func (f *retireConnectionIDFrame) encode(b []byte) (int, error) {
	return encodeOneVarintFrame(b, frameTypeRetireConnectionID, f.sequenceNumber)
}

// pathChallengeFrame / pathResponseFrame each carry an 8-byte opaque value
// used for path validation (§4.5).
type pathChallengeFrame struct {
	data [8]byte
}

func newPathChallengeFrame(data [8]byte) *pathChallengeFrame { return &pathChallengeFrame{data: data} }

func (f *pathChallengeFrame) decode(b []byte) (int, error) {
	return decodePathFrame(b, frameTypePathChallenge, &f.data)
}
func (f *pathChallengeFrame) encodedLen() int { return 9 }
func (f *pathChallengeFrame) encode(b []byte) (int, error) {
	return encodePathFrame(b, frameTypePathChallenge, f.data)
}

type pathResponseFrame struct {
	data [8]byte
}

func newPathResponseFrame(data [8]byte) *pathResponseFrame { return &pathResponseFrame{data: data} }

func (f *pathResponseFrame) decode(b []byte) (int, error) {
	return decodePathFrame(b, frameTypePathResponse, &f.data)
}
func (f *pathResponseFrame) encodedLen() int { return 9 }
func (f *pathResponseFrame) encode(b []byte) (int, error) {
	return encodePathFrame(b, frameTypePathResponse, f.data)
}

func decodePathFrame(b []byte, wantType uint64, data *[8]byte) (int, error) {
	pos := 0
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 || typ != wantType {
		return 0, newError(FrameEncodingError, "path frame").withFrameType(wantType)
	}
	pos += n
	if len(b)-pos < 8 {
		return 0, newError(FrameEncodingError, "path frame truncated").withFrameType(wantType)
	}
	copy(data[:], b[pos:pos+8])
	return pos + 8, nil
}

func encodePathFrame(b []byte, typ uint64, data [8]byte) (int, error) {
	if len(b) < 9 {
		return 0, errShortBuffer
	}
	pos := putVarint(b, typ)
	pos += copy(b[pos:], data[:])
	return pos, nil
}

// connectionCloseFrame ends the connection, carrying either a transport
// (quic) or application error space.
type connectionCloseFrame struct {
	application  bool
	errorCode    uint64
	frameType    uint64 // Only meaningful when !application; 0 if not applicable.
	reasonPhrase []byte
}

func newConnectionCloseFrame(application bool, errorCode uint64, reason string) *connectionCloseFrame {
	return &connectionCloseFrame{application: application, errorCode: errorCode, reasonPhrase: []byte(reason)}
}

func (f *connectionCloseFrame) decode(b []byte) (int, error) {
	pos := 0
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 || (typ != frameTypeConnectionClose && typ != frameTypeApplicationClose) {
		return 0, newError(FrameEncodingError, "connection_close").withFrameType(frameTypeConnectionClose)
	}
	pos += n
	f.application = typ == frameTypeApplicationClose
	n = getVarint(b[pos:], &f.errorCode)
	if n == 0 {
		return 0, newError(FrameEncodingError, "close error_code").withFrameType(typ)
	}
	pos += n
	if !f.application {
		n = getVarint(b[pos:], &f.frameType)
		if n == 0 {
			return 0, newError(FrameEncodingError, "close frame_type").withFrameType(typ)
		}
		pos += n
	} else {
		f.frameType = 0
	}
	var length uint64
	n = getVarint(b[pos:], &length)
	if n == 0 {
		return 0, newError(FrameEncodingError, "close reason length").withFrameType(typ)
	}
	pos += n
	if uint64(len(b)-pos) < length {
		return 0, newError(FrameEncodingError, "close reason truncated").withFrameType(typ)
	}
	f.reasonPhrase = append([]byte{}, b[pos:pos+int(length)]...)
	pos += int(length)
	return pos, nil
}

func (f *connectionCloseFrame) encodedLen() int {
	n := 1 + varintLen(f.errorCode)
	if !f.application {
		n += varintLen(f.frameType)
	}
	n += varintLen(uint64(len(f.reasonPhrase))) + len(f.reasonPhrase)
	return n
}

func (f *connectionCloseFrame) encode(b []byte) (int, error) {
	need := f.encodedLen()
	if len(b) < need {
		return 0, errShortBuffer
	}
	typ := uint64(frameTypeConnectionClose)
	if f.application {
		typ = frameTypeApplicationClose
	}
	pos := putVarint(b, typ)
	pos += putVarint(b[pos:], f.errorCode)
	if !f.application {
		pos += putVarint(b[pos:], f.frameType)
	}
	pos += putVarint(b[pos:], uint64(len(f.reasonPhrase)))
	pos += copy(b[pos:], f.reasonPhrase)
	return pos, nil
}

func (f *connectionCloseFrame) String() string {
	space := "transport"
	if f.application {
		space = "application"
	}
	return fmt.Sprintf("CONNECTION_CLOSE(%s) code=%s reason=%q", space, errorCodeString(f.errorCode), f.reasonPhrase)
}
