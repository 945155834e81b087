package transport

import (
	"crypto/rand"
	"net"
	"time"
)

// pathState tracks validation of one network path (RFC 9000 §9, §8.2),
// identified by its peer address. A path is validated once this endpoint
// has seen a PATH_RESPONSE echoing a PATH_CHALLENGE it sent on that path.
type pathState struct {
	addr net.Addr

	validated        bool
	challengeSent    [8]byte
	challengePending bool
	challengeSentAt  time.Time

	// Anti-amplification: until validated, bytes sent on this path must not
	// exceed amplificationLimit times bytes received from it (§8.1).
	bytesReceived uint64
	bytesSent     uint64
}

const amplificationLimit = 3

// canSend reports whether n more bytes may be sent on an unvalidated path
// without exceeding the anti-amplification limit.
func (p *pathState) canSend(n int) bool {
	if p.validated {
		return true
	}
	return p.bytesSent+uint64(n) <= p.bytesReceived*amplificationLimit
}

func (p *pathState) onSent(n int)     { p.bytesSent += uint64(n) }
func (p *pathState) onReceived(n int) { p.bytesReceived += uint64(n) }

// startValidation generates a new PATH_CHALLENGE for this path and returns
// the frame to send.
func (p *pathState) startValidation(now time.Time) (*pathChallengeFrame, error) {
	if _, err := rand.Read(p.challengeSent[:]); err != nil {
		return nil, err
	}
	p.challengePending = true
	p.challengeSentAt = now
	return newPathChallengeFrame(p.challengeSent), nil
}

// onPathResponse reports whether f echoes this path's outstanding
// challenge, completing validation.
func (p *pathState) onPathResponse(f *pathResponseFrame) bool {
	if !p.challengePending || f.data != p.challengeSent {
		return false
	}
	p.challengePending = false
	p.validated = true
	return true
}

// pathManager tracks the active path plus any path under validation during
// a connection migration (peer address change, or a deliberate probe of an
// alternate local address).
type pathManager struct {
	active    *pathState
	migrating *pathState

	// pendingMigration is set once a migrating path completes validation,
	// for the host to notice via Conn.MigratedPeerAddr and repoint its
	// socket-level routing (byAddr table) at the now-active address.
	pendingMigration bool
}

func (m *pathManager) init(addr net.Addr) {
	m.active = &pathState{addr: addr, validated: true}
}

// onPeerAddressChange starts validating a new path when a non-probing
// packet arrives from an address other than the active one (RFC 9000
// §9.3). The old path stays active until the new one validates.
func (m *pathManager) onPeerAddressChange(addr net.Addr, now time.Time) (*pathChallengeFrame, error) {
	if m.active != nil && sameAddr(m.active.addr, addr) {
		return nil, nil
	}
	if m.migrating != nil && sameAddr(m.migrating.addr, addr) {
		return nil, nil
	}
	m.migrating = &pathState{addr: addr}
	return m.migrating.startValidation(now)
}

// onPathResponse delivers a PATH_RESPONSE to whichever path (active or
// migrating) is waiting on it, promoting a validated migrating path to
// active.
func (m *pathManager) onPathResponse(f *pathResponseFrame) {
	if m.migrating != nil && m.migrating.onPathResponse(f) {
		m.active = m.migrating
		m.migrating = nil
		m.pendingMigration = true
		return
	}
	if m.active != nil {
		m.active.onPathResponse(f)
	}
}

func sameAddr(a, b net.Addr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}
