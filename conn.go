package qtcore

import (
	"fmt"
	"net"
	"sync"

	"github.com/birkeland/qtcore/transport"
)

// Conn is the application-facing handle for one QUIC connection: the
// subset of spec.md §6's abstract operations that act on an established or
// in-progress connection (rsv_stream, write/read via the returned Stream,
// close_stream, close).
type Conn interface {
	// Stream returns the stream with the given ID, creating it if this is
	// the first reference to it (an implicit local reservation, or the
	// first frame naming a peer-initiated ID).
	Stream(id uint64) (*transport.Stream, error)
	// OpenStream reserves the next local stream ID of the requested
	// directionality (rsv_stream).
	OpenStream(bidi bool) (*transport.Stream, error)
	// RemoteAddr is the peer's current address, updated across migration.
	RemoteAddr() net.Addr
	// LocalAddr is this engine's bound socket address.
	LocalAddr() net.Addr
	// Close starts the local close sequence (§4.5 established -> closing).
	Close(app bool, code uint64, reason string)
	IsEstablished() bool
	IsClosed() bool
	// Stats snapshots loss-recovery/congestion-control state.
	Stats() transport.Stats
	// SourceCID is this endpoint's current source connection ID.
	SourceCID() []byte
}

// remoteConn is the engine's concrete Conn: a transport.Conn plus the
// socket-routing state (4-tuple, source CID) the core doesn't own.
type remoteConn struct {
	conn   *transport.Conn
	scid   []byte
	addr   *net.UDPAddr
	engine *engine

	mu sync.Mutex

	isClient bool
	nextBidi uint64
	nextUni  uint64

	pending  []transport.Event
	eventBuf []transport.Event

	closed    chan struct{}
	closeOnce sync.Once
}

func newRemoteConn(tc *transport.Conn, scid []byte, addr *net.UDPAddr, e *engine, isClient bool) *remoteConn {
	rc := &remoteConn{
		conn:     tc,
		scid:     scid,
		addr:     addr,
		engine:   e,
		isClient: isClient,
		closed:   make(chan struct{}),
	}
	// RFC 9000 §2.1: client-initiated bidi streams start at 0, server at
	// 1; uni streams start at 2 (client) / 3 (server); both step by 4.
	if isClient {
		rc.nextBidi, rc.nextUni = 0, 2
	} else {
		rc.nextBidi, rc.nextUni = 1, 3
	}
	return rc
}

func (c *remoteConn) addEvent(t transport.EventType) {
	c.pending = append(c.pending, transport.Event{Type: t})
}

func (c *remoteConn) signalClosed() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// Done returns a channel closed once the connection reaches the closed
// state, for a caller that wants to block without a Handler (e.g. a CLI
// command driving a single connection to completion).
func (c *remoteConn) Done() <-chan struct{} {
	return c.closed
}

func (c *remoteConn) Stream(id uint64) (*transport.Stream, error) {
	return c.conn.Stream(id)
}

func (c *remoteConn) OpenStream(bidi bool) (*transport.Stream, error) {
	c.mu.Lock()
	var id uint64
	if bidi {
		id = c.nextBidi
		c.nextBidi += 4
	} else {
		id = c.nextUni
		c.nextUni += 4
	}
	c.mu.Unlock()
	return c.conn.Stream(id)
}

func (c *remoteConn) RemoteAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

func (c *remoteConn) LocalAddr() net.Addr {
	if c.engine.socket == nil {
		return nil
	}
	return c.engine.socket.LocalAddr()
}

func (c *remoteConn) Close(app bool, code uint64, reason string) {
	c.conn.Close(app, code, reason)
}

func (c *remoteConn) IsEstablished() bool { return c.conn.IsEstablished() }
func (c *remoteConn) IsClosed() bool      { return c.conn.IsClosed() }
func (c *remoteConn) Stats() transport.Stats {
	return c.conn.Stats()
}
func (c *remoteConn) SourceCID() []byte { return c.scid }

func (c *remoteConn) String() string {
	return fmt.Sprintf("addr=%s cid=%x", c.addr, c.scid)
}
