package transport

import (
	"encoding/binary"
	"fmt"
)

// packetType identifies the QUIC packet form (§6).
type packetType uint8

const (
	packetTypeInitial packetType = iota
	packetTypeZeroRTT
	packetTypeHandshake
	packetTypeRetry
	packetTypeVersionNegotiation
	packetTypeShort
)

func (t packetType) String() string {
	switch t {
	case packetTypeInitial:
		return "initial"
	case packetTypeZeroRTT:
		return "0-rtt"
	case packetTypeHandshake:
		return "handshake"
	case packetTypeRetry:
		return "retry"
	case packetTypeVersionNegotiation:
		return "version_negotiation"
	case packetTypeShort:
		return "short"
	default:
		return "unknown"
	}
}

func packetTypeFromSpace(space packetSpace) packetType {
	switch space {
	case packetSpaceInitial:
		return packetTypeInitial
	case packetSpaceHandshake:
		return packetTypeHandshake
	default:
		return packetTypeShort
	}
}

func (t packetType) space() packetSpace {
	switch t {
	case packetTypeInitial:
		return packetSpaceInitial
	case packetTypeHandshake:
		return packetSpaceHandshake
	case packetTypeShort, packetTypeZeroRTT:
		return packetSpaceApplication
	default:
		return packetSpaceCount
	}
}

const (
	longHeaderForm  = 0x80
	fixedBit        = 0x40
	longTypeInitial = 0x00
	longTypeZeroRTT = 0x10
	longTypeHandshk = 0x20
	longTypeRetry   = 0x30
)

// MaxCIDLength is the largest connection ID this implementation issues or
// accepts (RFC 9000 §17.2: 20 bytes).
const MaxCIDLength = 20

// packetHeader holds the decoded header fields common to all packet forms.
type packetHeader struct {
	version uint32
	dcid    []byte
	scid    []byte
	dcil    uint8 // Expected DCID length, for short-header parsing.
}

// packet is a single decoded (or to-be-encoded) QUIC packet.
type packet struct {
	typ          packetType
	header       packetHeader
	token        []byte
	packetNumber uint64
	payloadLen   int // Length of the payload, including PN and AEAD overhead where relevant.
	headerLen    int
	pnLen        int

	supportedVersions []uint32 // Version Negotiation only.
}

func (p *packet) String() string {
	return fmt.Sprintf("%s dcid=%x scid=%x pn=%d len=%d", p.typ, p.header.dcid, p.header.scid, p.packetNumber, p.payloadLen)
}

// decodeHeader parses the packet's invariant header: form bit, version (long
// header) or nothing (short header), and connection IDs. It determines
// p.typ and p.headerLen for the invariant portion only; decodeBody parses
// the type-specific remainder.
func (p *packet) decodeHeader(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, newError(FrameEncodingError, "empty packet")
	}
	first := b[0]
	pos := 1
	if first&longHeaderForm == 0 {
		// Short header: 1-RTT.
		p.typ = packetTypeShort
		if len(b)-pos < int(p.header.dcil) {
			return 0, newError(FrameEncodingError, "short header truncated")
		}
		p.header.dcid = b[pos : pos+int(p.header.dcil)]
		pos += int(p.header.dcil)
		p.pnLen = int(first&0x03) + 1
		p.headerLen = pos
		return pos, nil
	}
	if len(b)-pos < 4 {
		return 0, newError(FrameEncodingError, "long header truncated")
	}
	p.header.version = binary.BigEndian.Uint32(b[pos:])
	pos += 4
	if p.header.version == 0 {
		p.typ = packetTypeVersionNegotiation
	} else {
		switch first & 0x30 {
		case longTypeInitial:
			p.typ = packetTypeInitial
		case longTypeZeroRTT:
			p.typ = packetTypeZeroRTT
		case longTypeHandshk:
			p.typ = packetTypeHandshake
		case longTypeRetry:
			p.typ = packetTypeRetry
		}
		p.pnLen = int(first&0x03) + 1
	}
	if pos >= len(b) {
		return 0, newError(FrameEncodingError, "dcid length missing")
	}
	dcidLen := int(b[pos])
	pos++
	if dcidLen > MaxCIDLength || len(b)-pos < dcidLen {
		return 0, newError(FrameEncodingError, "dcid truncated")
	}
	p.header.dcid = b[pos : pos+dcidLen]
	pos += dcidLen
	if pos >= len(b) {
		return 0, newError(FrameEncodingError, "scid length missing")
	}
	scidLen := int(b[pos])
	pos++
	if scidLen > MaxCIDLength || len(b)-pos < scidLen {
		return 0, newError(FrameEncodingError, "scid truncated")
	}
	p.header.scid = b[pos : pos+scidLen]
	pos += scidLen
	p.headerLen = pos
	return pos, nil
}

// decodeBody parses the type-specific remainder of the header (after
// decodeHeader) for packet types that need extra information before the
// AEAD-protected payload: Version Negotiation's version list, Retry's
// token, Initial's token + length, and Handshake/Short's length.
func (p *packet) decodeBody(b []byte) (int, error) {
	pos := p.headerLen
	switch p.typ {
	case packetTypeVersionNegotiation:
		if (len(b)-pos)%4 != 0 {
			return 0, newError(FrameEncodingError, "version list")
		}
		for pos < len(b) {
			p.supportedVersions = append(p.supportedVersions, binary.BigEndian.Uint32(b[pos:]))
			pos += 4
		}
		return pos - p.headerLen, nil
	case packetTypeRetry:
		if len(b)-pos < 16 {
			return 0, newError(FrameEncodingError, "retry truncated")
		}
		p.token = b[pos : len(b)-16]
		pos = len(b)
		return pos - p.headerLen, nil
	case packetTypeInitial:
		var tokenLen uint64
		n := getVarint(b[pos:], &tokenLen)
		if n == 0 {
			return 0, newError(FrameEncodingError, "token length")
		}
		pos += n
		if uint64(len(b)-pos) < tokenLen {
			return 0, newError(FrameEncodingError, "token truncated")
		}
		p.token = b[pos : pos+int(tokenLen)]
		pos += int(tokenLen)
		return p.decodeLengthAndPN(b, pos)
	default:
		return p.decodeLengthAndPN(b, pos)
	}
}

func (p *packet) decodeLengthAndPN(b []byte, pos int) (int, error) {
	var length uint64
	n := getVarint(b[pos:], &length)
	if n == 0 {
		return 0, newError(FrameEncodingError, "length")
	}
	pos += n
	p.payloadLen = int(length)
	if len(b)-pos < p.pnLen {
		return 0, newError(FrameEncodingError, "packet number truncated")
	}
	p.packetNumber = decodePacketNumber(b[pos:pos+p.pnLen], p.pnLen)
	pos += p.pnLen
	p.headerLen = pos
	return pos - p.headerLen + p.pnLen, nil
}

// pnLenFor picks the number of bytes to encode pn in, based on magnitude.
// The real RFC 9000 rule bases this on the distance to the largest acked
// packet number so a peer can always recover the full value; AEAD and
// header protection (which that recovery depends on) are external
// collaborators here, so this implementation uses the simpler
// magnitude-based rule.
func pnLenFor(pn uint64) int {
	switch {
	case pn < 1<<8:
		return 1
	case pn < 1<<16:
		return 2
	case pn < 1<<24:
		return 3
	default:
		return 4
	}
}

func encodePacketNumber(b []byte, pn uint64, length int) {
	for i := length - 1; i >= 0; i-- {
		b[i] = byte(pn)
		pn >>= 8
	}
}

func decodePacketNumber(b []byte, length int) uint64 {
	var pn uint64
	for i := 0; i < length; i++ {
		pn = pn<<8 | uint64(b[i])
	}
	return pn
}

// encodedLen returns the length of the packet's header, excluding payload.
func (p *packet) encodedLen() int {
	switch p.typ {
	case packetTypeShort:
		return 1 + len(p.header.dcid) + p.pnLen
	default:
		n := 1 + 4 + 1 + len(p.header.dcid) + 1 + len(p.header.scid)
		if p.typ == packetTypeInitial {
			n += varintLen(uint64(len(p.token))) + len(p.token)
		}
		n += varintLen(uint64(p.payloadLen)) + p.pnLen
		return n
	}
}

// encode writes the packet header (not the payload) into b and returns the
// offset the payload (frames, then AEAD tag) should be written at.
func (p *packet) encode(b []byte) (int, error) {
	if p.pnLen == 0 {
		p.pnLen = pnLenFor(p.packetNumber)
	}
	need := p.encodedLen()
	if len(b) < need {
		return 0, errShortBuffer
	}
	pos := 0
	switch p.typ {
	case packetTypeShort:
		b[0] = byte(0x00 | fixedBit | (p.pnLen - 1))
		pos = 1
		pos += copy(b[pos:], p.header.dcid)
	default:
		first := byte(longHeaderForm | fixedBit | (p.pnLen - 1))
		switch p.typ {
		case packetTypeInitial:
			first |= longTypeInitial
		case packetTypeZeroRTT:
			first |= longTypeZeroRTT
		case packetTypeHandshake:
			first |= longTypeHandshk
		}
		b[0] = first
		pos = 1
		binary.BigEndian.PutUint32(b[pos:], p.header.version)
		pos += 4
		b[pos] = byte(len(p.header.dcid))
		pos++
		pos += copy(b[pos:], p.header.dcid)
		b[pos] = byte(len(p.header.scid))
		pos++
		pos += copy(b[pos:], p.header.scid)
		if p.typ == packetTypeInitial {
			pos += putVarint(b[pos:], uint64(len(p.token)))
			pos += copy(b[pos:], p.token)
		}
		pos += putVarint(b[pos:], uint64(p.payloadLen))
	}
	encodePacketNumber(b[pos:], p.packetNumber, p.pnLen)
	pos += p.pnLen
	p.headerLen = pos
	return pos, nil
}

// PeekConnectionID extracts the destination connection ID from a raw,
// still-encrypted datagram without fully decoding or decrypting it, so an
// engine can route an incoming packet to the right Conn before calling its
// Write method. dcidLen is the length this endpoint uses for its own
// issued CIDs, needed to bound short-header parsing (short headers don't
// carry a length prefix).
func PeekConnectionID(b []byte, dcidLen int) ([]byte, error) {
	p := packet{header: packetHeader{dcil: uint8(dcidLen)}}
	if _, err := p.decodeHeader(b); err != nil {
		return nil, err
	}
	dcid := make([]byte, len(p.header.dcid))
	copy(dcid, p.header.dcid)
	return dcid, nil
}

// PeekInitial extracts the destination/source connection IDs and, for an
// Initial packet, the address-validation token from a raw, still-encrypted
// datagram, without needing a Conn. A host uses this to decide whether an
// unrecognized Initial already carries a token worth validating before it
// commits any per-connection state to the attempt.
func PeekInitial(b []byte, dcidLen int) (dcid, scid, token []byte, isInitial bool, err error) {
	p := packet{header: packetHeader{dcil: uint8(dcidLen)}}
	if _, err = p.decodeHeader(b); err != nil {
		return nil, nil, nil, false, err
	}
	dcid = append([]byte{}, p.header.dcid...)
	scid = append([]byte{}, p.header.scid...)
	if p.typ != packetTypeInitial {
		return dcid, scid, nil, false, nil
	}
	if _, err = p.decodeBody(b); err != nil {
		return nil, nil, nil, false, err
	}
	return dcid, scid, append([]byte{}, p.token...), true, nil
}

// EncodeRetry builds a Retry packet (RFC 9000 §17.2.5): dcid echoes the
// client's own source connection ID, newSCID becomes the source connection
// ID the client must use as its destination for the next Initial, and
// odcid is the original destination CID the rejected Initial targeted, fed
// into the Retry Integrity Tag per RFC 9001 §5.8. There is no packet
// number or length field to size ahead of time, so this builds the buffer
// directly rather than going through encodedLen/encode.
func EncodeRetry(version uint32, dcid, newSCID, odcid, token []byte) []byte {
	body := make([]byte, 0, 1+4+1+len(dcid)+1+len(newSCID)+len(token))
	body = append(body, byte(longHeaderForm|fixedBit|longTypeRetry))
	var ver [4]byte
	binary.BigEndian.PutUint32(ver[:], version)
	body = append(body, ver[:]...)
	body = append(body, byte(len(dcid)))
	body = append(body, dcid...)
	body = append(body, byte(len(newSCID)))
	body = append(body, newSCID...)
	body = append(body, token...)
	pseudo := make([]byte, 0, 1+len(odcid)+len(body))
	pseudo = append(pseudo, byte(len(odcid)))
	pseudo = append(pseudo, odcid...)
	pseudo = append(pseudo, body...)
	return append(body, computeRetryIntegrityTag(pseudo)...)
}

// IsLongHeader reports whether the first byte of a datagram indicates a
// long-header packet (Initial, 0-RTT, Handshake, Retry, or Version
// Negotiation), which an engine uses to decide whether a never-seen CID
// might still be a legitimate new connection attempt rather than a
// stateless-reset candidate.
func IsLongHeader(b []byte) bool {
	return len(b) > 0 && b[0]&longHeaderForm != 0
}
