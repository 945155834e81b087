package transport

import (
	"bytes"
	"crypto/rand"
)

// connIDEntry is one connection ID issued to (or by) the peer, tracked
// until it is retired (RFC 9000 §5.1.1, §5.1.2).
type connIDEntry struct {
	seq        uint64
	cid        []byte
	resetToken [16]byte
	retired    bool
}

// connIDManager tracks the pool of connection IDs this endpoint has issued
// to its peer (local) and the pool the peer has issued to it (remote),
// enforcing active_connection_id_limit on both sides.
type connIDManager struct {
	local  []connIDEntry
	remote []connIDEntry

	nextLocalSeq  uint64
	localLimit    uint64 // Our own active_connection_id_limit, advertised to the peer.
	remoteLimit   uint64 // Peer's active_connection_id_limit, learned from its transport params.
	retirePriorTo uint64 // Lowest remote seq we still accept as non-retired.

	source func(b []byte) error // Overridable for tests; defaults to crypto/rand.
}

func (m *connIDManager) init(localLimit uint64) {
	m.localLimit = localLimit
	m.remoteLimit = 2 // RFC 9000 §18.2 default until the peer's transport params arrive.
	if m.source == nil {
		m.source = func(b []byte) error {
			_, err := rand.Read(b)
			return err
		}
	}
}

// issueInitial registers the connection ID chosen at connection setup as
// local sequence 0, with no reset token required to be distinct from later
// issued ones.
func (m *connIDManager) issueInitial(cid []byte, resetToken [16]byte) {
	m.local = append(m.local, connIDEntry{seq: 0, cid: cid, resetToken: resetToken})
	m.nextLocalSeq = 1
}

// issueNew mints a fresh local CID for the peer to use, returning the
// frame to send, or ok=false if doing so would exceed remoteLimit active
// (non-retired) CIDs outstanding.
func (m *connIDManager) issueNew(cidLen int) (f *newConnectionIDFrame, ok bool, err error) {
	if uint64(m.activeLocalCount()) >= m.remoteLimit {
		return nil, false, nil
	}
	cid := make([]byte, cidLen)
	if err := m.source(cid); err != nil {
		return nil, false, err
	}
	var token [16]byte
	if err := m.source(token[:]); err != nil {
		return nil, false, err
	}
	seq := m.nextLocalSeq
	m.nextLocalSeq++
	m.local = append(m.local, connIDEntry{seq: seq, cid: cid, resetToken: token})
	return newNewConnectionIDFrame(seq, 0, cid, token), true, nil
}

func (m *connIDManager) activeLocalCount() int {
	n := 0
	for _, e := range m.local {
		if !e.retired {
			n++
		}
	}
	return n
}

// retireLocal marks our own sequence seq as retired after the peer sends
// RETIRE_CONNECTION_ID for it.
func (m *connIDManager) retireLocal(seq uint64) {
	for i := range m.local {
		if m.local[i].seq == seq {
			m.local[i].retired = true
		}
	}
}

// receiveNew records a connection ID the peer issued to us via
// NEW_CONNECTION_ID, returning the sequence numbers that must now be
// retired (because the frame's retire_prior_to advanced) per RFC 9000
// §5.1.2, or an error if the peer exceeded our active_connection_id_limit.
func (m *connIDManager) receiveNew(f *newConnectionIDFrame) ([]uint64, error) {
	if f.retirePriorTo > m.retirePriorTo {
		m.retirePriorTo = f.retirePriorTo
	}
	found := false
	for _, e := range m.remote {
		if e.seq == f.sequenceNumber {
			found = true
			break
		}
	}
	if !found {
		m.remote = append(m.remote, connIDEntry{
			seq: f.sequenceNumber, cid: f.connectionID, resetToken: f.resetToken,
		})
	}
	var toRetire []uint64
	var kept []connIDEntry
	for _, e := range m.remote {
		if e.seq < m.retirePriorTo && !e.retired {
			toRetire = append(toRetire, e.seq)
			e.retired = true
		}
		kept = append(kept, e)
	}
	m.remote = kept
	active := 0
	for _, e := range m.remote {
		if !e.retired {
			active++
		}
	}
	if uint64(active) > m.localLimit {
		return nil, newError(ConnectionIDLimitError, "peer exceeded active_connection_id_limit")
	}
	return toRetire, nil
}

// currentRemote returns the lowest-sequence, non-retired remote CID, the
// one this endpoint should be using as its destination CID.
func (m *connIDManager) currentRemote() (connIDEntry, bool) {
	var best connIDEntry
	found := false
	for _, e := range m.remote {
		if e.retired {
			continue
		}
		if !found || e.seq < best.seq {
			best, found = e, true
		}
	}
	return best, found
}

// rotate picks the lowest-sequence unused remote CID other than current,
// retires current's entry, and returns the replacement plus current's
// sequence number (for a RETIRE_CONNECTION_ID naming it to the peer). ok is
// false if the peer hasn't issued a spare CID to rotate to yet.
func (m *connIDManager) rotate(current []byte) (newCID []byte, retiredSeq uint64, ok bool) {
	var best *connIDEntry
	for i := range m.remote {
		e := &m.remote[i]
		if e.retired || bytes.Equal(e.cid, current) {
			continue
		}
		if best == nil || e.seq < best.seq {
			best = e
		}
	}
	if best == nil {
		return nil, 0, false
	}
	for i := range m.remote {
		if bytes.Equal(m.remote[i].cid, current) {
			retiredSeq = m.remote[i].seq
			m.remote[i].retired = true
		}
	}
	return best.cid, retiredSeq, true
}

// statelessResetToken derives the stateless reset token for a connection
// ID, used when this endpoint cannot otherwise recognize a connection it
// has lost (RFC 9000 §10.3). Derived deterministically from the CID and a
// per-endpoint secret via HKDF-Expand so an endpoint can recompute it
// without storing a token for every CID it ever issues.
func statelessResetToken(secret, cid []byte) [16]byte {
	var token [16]byte
	copy(token[:], hkdfExpandLabel(secret, "stateless reset", cid, 16))
	return token
}
