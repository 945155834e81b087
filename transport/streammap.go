package transport

// streamMap owns every Stream on a connection and enforces the peer- and
// locally-advertised stream count limits (RFC 9000 §4.6).
type streamMap struct {
	streams map[uint64]*Stream

	isClient bool

	localMaxStreamsBidi uint64
	localMaxStreamsUni  uint64
	peerMaxStreamsBidi  uint64
	peerMaxStreamsUni   uint64

	// Opened-stream counts, kept separately for locally- and
	// remotely-initiated streams: RFC 9000 §4.6 tracks each of the four
	// (initiator, directionality) stream-id spaces independently.
	localOpenedBidi  uint64
	localOpenedUni   uint64
	remoteOpenedBidi uint64
	remoteOpenedUni  uint64
}

func (m *streamMap) init(maxStreamsBidi, maxStreamsUni uint64) {
	m.streams = make(map[uint64]*Stream)
	m.localMaxStreamsBidi = maxStreamsBidi
	m.localMaxStreamsUni = maxStreamsUni
}

func (m *streamMap) get(id uint64) *Stream {
	return m.streams[id]
}

func (m *streamMap) create(id uint64, local, bidi bool) (*Stream, error) {
	if local {
		if bidi && m.localOpenedBidi >= m.peerMaxStreamsBidi {
			return nil, newError(StreamLimitError, "bidi stream limit")
		}
		if !bidi && m.localOpenedUni >= m.peerMaxStreamsUni {
			return nil, newError(StreamLimitError, "uni stream limit")
		}
	} else {
		if bidi && m.remoteOpenedBidi >= m.localMaxStreamsBidi {
			return nil, newError(StreamLimitError, "bidi stream limit")
		}
		if !bidi && m.remoteOpenedUni >= m.localMaxStreamsUni {
			return nil, newError(StreamLimitError, "uni stream limit")
		}
	}
	st := &Stream{id: id}
	m.streams[id] = st
	if local {
		if bidi {
			m.localOpenedBidi++
		} else {
			m.localOpenedUni++
		}
	} else {
		if bidi {
			m.remoteOpenedBidi++
		} else {
			m.remoteOpenedUni++
		}
	}
	return st, nil
}

func (m *streamMap) setPeerMaxStreamsBidi(max uint64) {
	if max > m.peerMaxStreamsBidi {
		m.peerMaxStreamsBidi = max
	}
}

func (m *streamMap) setPeerMaxStreamsUni(max uint64) {
	if max > m.peerMaxStreamsUni {
		m.peerMaxStreamsUni = max
	}
}

// hasFlushable reports whether any stream has pending data or a pending
// flow-control update to send.
func (m *streamMap) hasFlushable() bool {
	for _, st := range m.streams {
		if len(st.send.pending.ranges) > 0 || st.updateMaxData {
			return true
		}
	}
	return false
}
