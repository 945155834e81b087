package transport

// Frame type codes. https://www.rfc-editor.org/rfc/rfc9000#section-19
const (
	frameTypePadding             = 0x00
	frameTypePing                = 0x01
	frameTypeAck                 = 0x02
	frameTypeAckECN              = 0x03
	frameTypeResetStream         = 0x04
	frameTypeStopSending         = 0x05
	frameTypeCrypto              = 0x06
	frameTypeNewToken            = 0x07
	frameTypeStream              = 0x08 // 0x08..0x0f, low bits OFF|LEN|FIN
	frameTypeStreamEnd           = 0x0f
	frameTypeMaxData             = 0x10
	frameTypeMaxStreamData       = 0x11
	frameTypeMaxStreamsBidi      = 0x12
	frameTypeMaxStreamsUni       = 0x13
	frameTypeDataBlocked         = 0x14
	frameTypeStreamDataBlocked   = 0x15
	frameTypeStreamsBlockedBidi  = 0x16
	frameTypeStreamsBlockedUni   = 0x17
	frameTypeNewConnectionID     = 0x18
	frameTypeRetireConnectionID  = 0x19
	frameTypePathChallenge       = 0x1a
	frameTypePathResponse        = 0x1b
	frameTypeConnectionClose     = 0x1c
	frameTypeApplicationClose    = 0x1d
	frameTypeHanshakeDone        = 0x1e
)

// STREAM frame low bits.
const (
	streamFlagFin = 0x01
	streamFlagLen = 0x02
	streamFlagOff = 0x04
)

// frame is implemented by every frame record. Decoding is done through a
// per-type decode(b []byte) (int, error) method (not part of the interface,
// since each concrete type needs its own signature-free constructor), but
// every frame that can be queued for transmission implements this.
type frame interface {
	encodedLen() int
	encode(b []byte) (int, error)
}

// isFrameAckEliciting reports whether receipt of a frame of this type
// requires the receiver to eventually send an ACK (§4.3).
func isFrameAckEliciting(typ uint64) bool {
	switch typ {
	case frameTypePadding, frameTypeAck, frameTypeAckECN, frameTypeConnectionClose, frameTypeApplicationClose:
		return false
	default:
		return true
	}
}

// packetSpace identifies one of the three packet-number spaces (epochs).
type packetSpace int

const (
	packetSpaceInitial packetSpace = iota
	packetSpaceHandshake
	packetSpaceApplication
	packetSpaceCount
)

func (s packetSpace) String() string {
	switch s {
	case packetSpaceInitial:
		return "initial"
	case packetSpaceHandshake:
		return "handshake"
	case packetSpaceApplication:
		return "application"
	default:
		return "unknown"
	}
}

// epochAllowsFrame enforces the per-epoch frame legality table (§4.1).
// 0-RTT is folded into packetSpaceApplication at the space level but is
// distinguished here by the isZeroRTT flag, since 0-RTT and 1-RTT share a
// packet-number space in this implementation's simplified model but not
// the same legal frame set.
func epochAllowsFrame(space packetSpace, isZeroRTT bool, typ uint64) bool {
	switch space {
	case packetSpaceInitial, packetSpaceHandshake:
		switch typ {
		case frameTypePadding, frameTypePing, frameTypeAck, frameTypeAckECN,
			frameTypeCrypto, frameTypeConnectionClose:
			return true
		default:
			return false
		}
	case packetSpaceApplication:
		if isZeroRTT {
			switch typ {
			case frameTypeCrypto, frameTypeAck, frameTypeAckECN,
				frameTypeNewToken, frameTypeHanshakeDone:
				return false
			}
		}
		return true
	default:
		return false
	}
}

func isStreamFrameType(typ uint64) bool {
	return typ >= frameTypeStream && typ <= frameTypeStreamEnd
}

func isStreamsBlockedOrMaxStreams(typ uint64) (bidi bool, ok bool) {
	switch typ {
	case frameTypeMaxStreamsBidi, frameTypeStreamsBlockedBidi:
		return true, true
	case frameTypeMaxStreamsUni, frameTypeStreamsBlockedUni:
		return false, true
	default:
		return false, false
	}
}
