package transport

import "time"

// Packet size constants (RFC 9000 §14).
const (
	// MinInitialPacketSize is the minimum UDP datagram size carrying a
	// client Initial packet, padded up to this size (§14.1).
	MinInitialPacketSize = 1200
	// MaxPacketSize is the largest datagram this implementation will send.
	MaxPacketSize = 1452
	// minPayloadLength is the smallest payload (post-header) this
	// implementation will ever send, enough to carry a 4-byte packet
	// number sample for header protection.
	minPayloadLength = 4
)

// outgoingPacket collects the frames queued for one packet as it is being
// built, before it is encoded and sealed.
type outgoingPacket struct {
	pn           uint64
	timeSent     time.Time
	size         uint64
	ackEliciting bool
	frames       []frame
}

func newOutgoingPacket(pn uint64, now time.Time) *outgoingPacket {
	return &outgoingPacket{pn: pn, timeSent: now}
}

func (op *outgoingPacket) addFrame(f frame) {
	op.frames = append(op.frames, f)
	if isAckElicitingFrame(f) {
		op.ackEliciting = true
	}
}

func (op *outgoingPacket) String() string {
	return sprint("pn=", op.pn, " frames=", len(op.frames))
}

// isAckElicitingFrame mirrors isFrameAckEliciting but works from a decoded
// frame value instead of a wire type byte.
func isAckElicitingFrame(f frame) bool {
	switch f.(type) {
	case *paddingFrame, *ackFrame, *connectionCloseFrame:
		return false
	default:
		return true
	}
}

// encodeFrames writes frames sequentially into b, returning the total
// number of bytes written.
func encodeFrames(b []byte, frames []frame) (int, error) {
	pos := 0
	for _, f := range frames {
		n, err := f.encode(b[pos:])
		if err != nil {
			return 0, err
		}
		pos += n
	}
	return pos, nil
}

// SupportedVersion is the QUIC version this implementation speaks.
const SupportedVersion uint32 = 0x00000001

func versionSupported(v uint32) bool {
	return v == SupportedVersion
}
