package transport

import "time"

// Transport parameter identifiers (RFC 9000 §18.2).
const (
	paramOriginalDestinationCID         uint64 = 0x00
	paramMaxIdleTimeout                 uint64 = 0x01
	paramStatelessResetToken            uint64 = 0x02
	paramMaxUDPPayloadSize              uint64 = 0x03
	paramInitialMaxData                 uint64 = 0x04
	paramInitialMaxStreamDataBidiLocal  uint64 = 0x05
	paramInitialMaxStreamDataBidiRemote uint64 = 0x06
	paramInitialMaxStreamDataUni        uint64 = 0x07
	paramInitialMaxStreamsBidi          uint64 = 0x08
	paramInitialMaxStreamsUni           uint64 = 0x09
	paramAckDelayExponent                uint64 = 0x0a
	paramMaxAckDelay                    uint64 = 0x0b
	paramDisableActiveMigration         uint64 = 0x0c
	paramActiveConnectionIDLimit        uint64 = 0x0e
	paramInitialSourceCID               uint64 = 0x0f
	paramRetrySourceCID                 uint64 = 0x10
)

// Parameters holds a QUIC transport parameter set, exchanged as the
// quic_transport_parameters TLS extension (RFC 9000 §7.4, §18).
type Parameters struct {
	OriginalDestinationCID []byte
	MaxIdleTimeout         time.Duration
	StatelessResetToken    []byte
	MaxUDPPayloadSize      uint64

	InitialMaxData                 uint64
	InitialMaxStreamDataBidiLocal  uint64
	InitialMaxStreamDataBidiRemote uint64
	InitialMaxStreamDataUni        uint64
	InitialMaxStreamsBidi          uint64
	InitialMaxStreamsUni           uint64

	AckDelayExponent uint64
	MaxAckDelay      time.Duration

	DisableActiveMigration  bool
	ActiveConnectionIDLimit uint64

	InitialSourceCID []byte
	RetrySourceCID   []byte
}

// defaultParameters returns the baseline values this implementation offers
// a peer absent explicit configuration.
func defaultParameters() Parameters {
	return Parameters{
		MaxUDPPayloadSize:       MaxPacketSize,
		AckDelayExponent:        3,
		MaxAckDelay:             25 * time.Millisecond,
		ActiveConnectionIDLimit: 2,
	}
}

// Marshal encodes the parameter set for the TLS transport_parameters
// extension, as a sequence of (id, length, value) varint-delimited entries.
func (p *Parameters) Marshal() []byte {
	b := make([]byte, 0, 256)
	if len(p.OriginalDestinationCID) > 0 {
		b = appendParamBytes(b, paramOriginalDestinationCID, p.OriginalDestinationCID)
	}
	if p.MaxIdleTimeout > 0 {
		b = appendParamVarint(b, paramMaxIdleTimeout, uint64(p.MaxIdleTimeout/time.Millisecond))
	}
	if len(p.StatelessResetToken) > 0 {
		b = appendParamBytes(b, paramStatelessResetToken, p.StatelessResetToken)
	}
	if p.MaxUDPPayloadSize > 0 {
		b = appendParamVarint(b, paramMaxUDPPayloadSize, p.MaxUDPPayloadSize)
	}
	b = appendParamVarint(b, paramInitialMaxData, p.InitialMaxData)
	b = appendParamVarint(b, paramInitialMaxStreamDataBidiLocal, p.InitialMaxStreamDataBidiLocal)
	b = appendParamVarint(b, paramInitialMaxStreamDataBidiRemote, p.InitialMaxStreamDataBidiRemote)
	b = appendParamVarint(b, paramInitialMaxStreamDataUni, p.InitialMaxStreamDataUni)
	b = appendParamVarint(b, paramInitialMaxStreamsBidi, p.InitialMaxStreamsBidi)
	b = appendParamVarint(b, paramInitialMaxStreamsUni, p.InitialMaxStreamsUni)
	b = appendParamVarint(b, paramAckDelayExponent, p.AckDelayExponent)
	if p.MaxAckDelay > 0 {
		b = appendParamVarint(b, paramMaxAckDelay, uint64(p.MaxAckDelay/time.Millisecond))
	}
	if p.DisableActiveMigration {
		b = appendParamVarint(b, paramDisableActiveMigration, 0)
	}
	if p.ActiveConnectionIDLimit > 0 {
		b = appendParamVarint(b, paramActiveConnectionIDLimit, p.ActiveConnectionIDLimit)
	}
	b = appendParamBytes(b, paramInitialSourceCID, p.InitialSourceCID)
	if len(p.RetrySourceCID) > 0 {
		b = appendParamBytes(b, paramRetrySourceCID, p.RetrySourceCID)
	}
	return b
}

// Unmarshal decodes a peer's transport_parameters extension value.
func (p *Parameters) Unmarshal(b []byte) error {
	pos := 0
	for pos < len(b) {
		var id, length uint64
		n := getVarint(b[pos:], &id)
		if n == 0 {
			return newError(TransportParameterError, "param id")
		}
		pos += n
		n = getVarint(b[pos:], &length)
		if n == 0 {
			return newError(TransportParameterError, "param length")
		}
		pos += n
		if uint64(len(b)-pos) < length {
			return newError(TransportParameterError, "param value truncated")
		}
		val := b[pos : pos+int(length)]
		pos += int(length)
		if err := p.setParam(id, val); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parameters) setParam(id uint64, val []byte) error {
	switch id {
	case paramOriginalDestinationCID:
		p.OriginalDestinationCID = append([]byte{}, val...)
	case paramMaxIdleTimeout:
		v, err := decodeParamVarint(val)
		if err != nil {
			return err
		}
		p.MaxIdleTimeout = time.Duration(v) * time.Millisecond
	case paramStatelessResetToken:
		if len(val) != 16 {
			return newError(TransportParameterError, "stateless_reset_token")
		}
		p.StatelessResetToken = append([]byte{}, val...)
	case paramMaxUDPPayloadSize:
		v, err := decodeParamVarint(val)
		if err != nil {
			return err
		}
		p.MaxUDPPayloadSize = v
	case paramInitialMaxData:
		v, err := decodeParamVarint(val)
		if err != nil {
			return err
		}
		p.InitialMaxData = v
	case paramInitialMaxStreamDataBidiLocal:
		v, err := decodeParamVarint(val)
		if err != nil {
			return err
		}
		p.InitialMaxStreamDataBidiLocal = v
	case paramInitialMaxStreamDataBidiRemote:
		v, err := decodeParamVarint(val)
		if err != nil {
			return err
		}
		p.InitialMaxStreamDataBidiRemote = v
	case paramInitialMaxStreamDataUni:
		v, err := decodeParamVarint(val)
		if err != nil {
			return err
		}
		p.InitialMaxStreamDataUni = v
	case paramInitialMaxStreamsBidi:
		v, err := decodeParamVarint(val)
		if err != nil {
			return err
		}
		p.InitialMaxStreamsBidi = v
	case paramInitialMaxStreamsUni:
		v, err := decodeParamVarint(val)
		if err != nil {
			return err
		}
		p.InitialMaxStreamsUni = v
	case paramAckDelayExponent:
		v, err := decodeParamVarint(val)
		if err != nil {
			return err
		}
		p.AckDelayExponent = v
	case paramMaxAckDelay:
		v, err := decodeParamVarint(val)
		if err != nil {
			return err
		}
		p.MaxAckDelay = time.Duration(v) * time.Millisecond
	case paramDisableActiveMigration:
		p.DisableActiveMigration = true
	case paramActiveConnectionIDLimit:
		v, err := decodeParamVarint(val)
		if err != nil {
			return err
		}
		p.ActiveConnectionIDLimit = v
	case paramInitialSourceCID:
		p.InitialSourceCID = append([]byte{}, val...)
	case paramRetrySourceCID:
		p.RetrySourceCID = append([]byte{}, val...)
	default:
		// Unknown parameters are ignored (RFC 9000 §7.4.2).
	}
	return nil
}

func appendParamVarint(b []byte, id, v uint64) []byte {
	b = appendVarint(b, id)
	b = appendVarint(b, uint64(varintLen(v)))
	return appendVarint(b, v)
}

func appendParamBytes(b []byte, id uint64, v []byte) []byte {
	b = appendVarint(b, id)
	b = appendVarint(b, uint64(len(v)))
	return append(b, v...)
}

func decodeParamVarint(b []byte) (uint64, error) {
	var v uint64
	n := getVarint(b, &v)
	if n != len(b) {
		return 0, newError(TransportParameterError, "malformed varint param")
	}
	return v, nil
}
