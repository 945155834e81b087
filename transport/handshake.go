package transport

import (
	"context"
	"crypto/tls"
)

// tlsHandshake drives the TLS 1.3 handshake via crypto/tls's native QUIC
// support (tls.QUICConn, Go 1.21+). The TLS record layer, key schedule,
// and cipher negotiation are entirely owned by that library; this type
// only shuttles CRYPTO frame bytes and transport parameters across the
// tls.QUICConn event loop and installs the keys it derives into the
// matching packetNumberSpace.
//
// Only the TLS_AES_128_GCM_SHA256 cipher suite is wired to a packet
// protector (aead.go); a peer negotiating a different suite will fail to
// derive application keys. Documented as a scope simplification.
type tlsHandshake struct {
	conn      *Conn
	tlsConfig *tls.Config
	quic      *tls.QUICConn
	started   bool

	complete   bool
	peerParams *Parameters
}

func (h *tlsHandshake) init(conn *Conn, tlsConfig *tls.Config) {
	h.conn = conn
	h.tlsConfig = tlsConfig
	cfg := &tls.QUICConfig{TLSConfig: tlsConfig}
	if conn.isClient {
		h.quic = tls.QUICClient(cfg)
	} else {
		h.quic = tls.QUICServer(cfg)
	}
}

func (h *tlsHandshake) setTransportParams(p *Parameters) {
	if h.quic != nil {
		h.quic.SetTransportParameters(p.Marshal())
	}
}

func (h *tlsHandshake) reset() {
	tlsConfig, conn := h.tlsConfig, h.conn
	*h = tlsHandshake{}
	h.init(conn, tlsConfig)
}

func (h *tlsHandshake) HandshakeComplete() bool {
	return h.complete
}

func (h *tlsHandshake) peerTransportParams() *Parameters {
	return h.peerParams
}

// doHandshake feeds newly received CRYPTO bytes into tls.QUICConn and
// drains its event queue: data to send, derived secrets, the peer's
// transport parameters, and handshake completion.
func (h *tlsHandshake) doHandshake() error {
	if h.quic == nil {
		return newError(InternalError, "tls not initialized")
	}
	if !h.started {
		if err := h.quic.Start(context.Background()); err != nil {
			return newError(InternalError, "tls start: "+err.Error())
		}
		h.started = true
	}
	for space := packetSpaceInitial; space < packetSpaceCount; space++ {
		level := quicLevelForSpace(space)
		cs := &h.conn.packetNumberSpaces[space].cryptoStream
		var buf [4096]byte
		for {
			n, _ := cs.Read(buf[:])
			if n == 0 {
				break
			}
			if err := h.quic.HandleData(level, buf[:n]); err != nil {
				return newError(CryptoBufferExceeded, "tls: "+err.Error())
			}
		}
	}
	for {
		e := h.quic.NextEvent()
		if e == nil {
			return nil
		}
		switch e.Kind {
		case tls.QUICNoEvent:
			return nil
		case tls.QUICSetReadSecret:
			keys := newAEADKeys(e.Data)
			h.conn.packetNumberSpaces[quicSpaceForLevel(e.Level)].opener = keys
		case tls.QUICSetWriteSecret:
			keys := newAEADKeys(e.Data)
			h.conn.packetNumberSpaces[quicSpaceForLevel(e.Level)].sealer = keys
		case tls.QUICWriteData:
			space := quicSpaceForLevel(e.Level)
			if err := h.conn.packetNumberSpaces[space].cryptoStream.Write(e.Data); err != nil {
				return err
			}
		case tls.QUICTransportParameters:
			p := &Parameters{}
			if err := p.Unmarshal(e.Data); err != nil {
				return err
			}
			h.peerParams = p
		case tls.QUICHandshakeDone:
			h.complete = true
		}
	}
}

func (h *tlsHandshake) writeSpace() packetSpace {
	if !h.complete {
		return packetSpaceHandshake
	}
	return packetSpaceApplication
}

func quicLevelForSpace(space packetSpace) tls.QUICEncryptionLevel {
	switch space {
	case packetSpaceInitial:
		return tls.QUICEncryptionLevelInitial
	case packetSpaceHandshake:
		return tls.QUICEncryptionLevelHandshake
	default:
		return tls.QUICEncryptionLevelApplication
	}
}

func quicSpaceForLevel(level tls.QUICEncryptionLevel) packetSpace {
	switch level {
	case tls.QUICEncryptionLevelInitial:
		return packetSpaceInitial
	case tls.QUICEncryptionLevelHandshake:
		return packetSpaceHandshake
	default:
		return packetSpaceApplication
	}
}
