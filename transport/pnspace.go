package transport

import "time"

// packetNumberSpace holds the per-epoch state needed to encrypt, decrypt,
// and acknowledge packets in one of the three packet-number spaces
// (Initial, Handshake, Application; RFC 9000 §12.3).
type packetNumberSpace struct {
	opener *aeadKeys // Decrypts packets from the peer.
	sealer *aeadKeys // Encrypts packets to the peer.

	nextPacketNumber  uint64
	recvPackets       rangeSet // Packet numbers seen, for duplicate detection.
	recvPacketNeedAck rangeSet

	largestRecvPacketNumber uint64
	largestRecvPacketTime   time.Time

	ackElicited      bool
	firstPacketAcked bool

	// ECT(0)/ECT(1)/CE counts of packets received in this space, carrying
	// the IP-layer ECN codepoint the socket layer observed on the datagram
	// (§4.4; marking and reading the codepoint itself is the external
	// collaborator's job, per §1 — the core only counts and reports it).
	ect0Count uint64
	ect1Count uint64
	ceCount   uint64

	cryptoStream cryptoStream
}

func (p *packetNumberSpace) init() {
	p.nextPacketNumber = 0
}

func (p *packetNumberSpace) canEncrypt() bool {
	return p.sealer != nil
}

func (p *packetNumberSpace) canDecrypt() bool {
	return p.opener != nil
}

func (p *packetNumberSpace) isPacketReceived(pn uint64) bool {
	return p.recvPackets.contains(pn)
}

func (p *packetNumberSpace) onPacketReceived(pn uint64, ecn ECNCodepoint, now time.Time) {
	p.recvPackets.add(pn)
	p.recvPacketNeedAck.add(pn)
	switch ecn {
	case ECNECT0:
		p.ect0Count++
	case ECNECT1:
		p.ect1Count++
	case ECNCE:
		p.ceCount++
	}
	if pn >= p.largestRecvPacketNumber || p.largestRecvPacketTime.IsZero() {
		p.largestRecvPacketNumber = pn
		p.largestRecvPacketTime = now
	}
}

// ready reports whether this space has data the connection wants to send:
// pending ACK, pending crypto data, or a pending crypto-stream FIN.
func (p *packetNumberSpace) ready() bool {
	return p.ackElicited || len(p.cryptoStream.send.pending.ranges) > 0 || p.cryptoStream.send.finPending
}

func (p *packetNumberSpace) drop() {
	p.opener = nil
	p.sealer = nil
	p.recvPackets.reset()
	p.recvPacketNeedAck.reset()
}

func (p *packetNumberSpace) reset() {
	*p = packetNumberSpace{}
}

// decryptPacket opens the AEAD-protected payload of a received packet,
// using the header as associated data, and returns the (still-framed)
// payload and the packet's end offset. Header protection is not removed
// here (encryptPacket does not apply it either).
func (p *packetNumberSpace) decryptPacket(b []byte, pkt *packet) ([]byte, int, error) {
	if pkt.headerLen+pkt.payloadLen > len(b) {
		return nil, 0, newError(FrameEncodingError, "packet truncated")
	}
	end := pkt.headerLen + pkt.payloadLen
	hdr := b[:pkt.headerLen]
	ciphertext := b[pkt.headerLen:end]
	payload, err := p.opener.open(nil, ciphertext, hdr, pkt.packetNumber)
	if err != nil {
		return nil, 0, err
	}
	return payload, end, nil
}

// encryptPacket seals the payload already written at b[headerLen:] (length
// payloadLen, including the AEAD overhead reserved by the caller) in place.
func (p *packetNumberSpace) encryptPacket(b []byte, pkt *packet) {
	hdrLen := pkt.headerLen
	plainLen := pkt.payloadLen - p.sealer.Overhead()
	hdr := b[:hdrLen]
	plaintext := b[hdrLen : hdrLen+plainLen]
	// dst shares b's backing array (capped at len(b), which is exactly
	// hdrLen+plainLen+overhead) so Seal overwrites plaintext with
	// ciphertext||tag in place instead of allocating.
	dst := b[:hdrLen:len(b)]
	p.sealer.seal(dst, plaintext, hdr, pkt.packetNumber)
}
