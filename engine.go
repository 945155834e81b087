package qtcore

import (
	"crypto/rand"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/birkeland/qtcore/transport"
)

// defaultSCIDLength is the length of source CIDs this engine issues for
// both client-initiated and server-accepted connections.
const defaultSCIDLength = 16

var (
	errEngineClosed  = errors.New("qtcore: engine closed")
	errAcceptTimeout = errors.New("qtcore: accept timed out")
)

// engine is the UDP-socket-and-connection-table core shared by Client and
// Server (§9: "global/process-wide state... gathered into a single engine
// object with explicit lifecycle (init/cleanup). No hidden singletons.").
// All per-connection protocol state lives in transport.Conn; engine only
// does what the spec calls an external collaborator's job: socket I/O,
// routing datagrams to the right connection by CID, and timer dispatch.
type engine struct {
	config   *Config
	isClient bool

	socket *net.UDPConn

	mu     sync.Mutex
	byCID  map[string]*remoteConn
	byAddr map[string]*remoteConn

	accept  chan *remoteConn
	logger  *logger
	metrics *Collector
	timers  *transport.TimerWheel

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newEngine(config *Config, isClient bool) *engine {
	if config.NumBufs <= 0 {
		config.NumBufs = 64
	}
	e := &engine{
		config:   config,
		isClient: isClient,
		byCID:    make(map[string]*remoteConn),
		byAddr:   make(map[string]*remoteConn),
		accept:   make(chan *remoteConn, config.NumBufs),
		logger:   newLogger(),
		metrics:  newCollector(),
		timers:   transport.NewTimerWheel(),
		closing:  make(chan struct{}),
	}
	return e
}

// listenAndServe binds the UDP socket and starts the read and timer loops.
func (e *engine) listenAndServe(addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	e.socket = conn
	if e.config.EnableUDPZeroChecksums {
		if err := setZeroChecksum(conn); err != nil {
			e.logger.log.WithError(err).Warn("qtcore: zero-checksum UDP unsupported on this platform")
		}
	}
	e.wg.Add(2)
	go e.readLoop()
	go e.timerLoop()
	return nil
}

func (e *engine) readLoop() {
	defer e.wg.Done()
	buf := make([]byte, transport.MaxPacketSize)
	for {
		select {
		case <-e.closing:
			return
		default:
		}
		e.socket.SetReadDeadline(time.Now().Add(250 * time.Millisecond))
		n, addr, err := e.socket.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-e.closing:
				return
			default:
				continue
			}
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		e.handleDatagram(pkt, addr)
	}
}

func (e *engine) timerLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-e.closing:
			return
		case now := <-ticker.C:
			e.timers.Fire(now)
		}
	}
}

func (e *engine) handleDatagram(b []byte, addr *net.UDPAddr) {
	dcid, err := transport.PeekConnectionID(b, defaultSCIDLength)
	if err != nil {
		return
	}
	e.mu.Lock()
	rc, ok := e.byCID[string(dcid)]
	e.mu.Unlock()
	if !ok {
		if e.isClient || !transport.IsLongHeader(b) {
			return // Unsolicited short-header packet: not our business, drop.
		}
		if e.config.RetryEnabled && len(e.config.TokenSecret) > 0 {
			rc, err = e.acceptWithRetry(b, addr)
		} else {
			rc, err = e.acceptNew(dcid, addr)
		}
		if err != nil || rc == nil {
			return
		}
	}
	e.deliver(rc, b, addr)
}

// acceptWithRetry enforces the address-validation round trip (§4.5; RFC
// 9000 §8.1.2) before any per-connection state exists for this attempt: an
// Initial without a token gets a Retry packet back instead of a Conn. One
// with a valid token is accepted using the exact connection ID the Retry
// already promised the client as retry_source_connection_id, recovered
// from the token itself rather than remembered between the two Initial
// packets — this host keeps no per-client state across the round trip.
func (e *engine) acceptWithRetry(b []byte, addr *net.UDPAddr) (*remoteConn, error) {
	dcid, scid, token, isInitial, err := transport.PeekInitial(b, defaultSCIDLength)
	if err != nil || !isInitial {
		return nil, err
	}
	if len(token) == 0 {
		retrySCID := make([]byte, defaultSCIDLength)
		if _, err := rand.Read(retrySCID); err != nil {
			return nil, err
		}
		tok := transport.MintRetryToken(e.config.TokenSecret, dcid, retrySCID, time.Now())
		if tok == nil {
			return nil, nil
		}
		retry := transport.EncodeRetry(transport.SupportedVersion, scid, retrySCID, dcid, tok)
		e.socket.WriteToUDP(retry, addr)
		return nil, nil
	}
	odcid, retrySCID, ok := transport.ValidateToken(e.config.TokenSecret, token, time.Now())
	if !ok || len(retrySCID) == 0 {
		return nil, nil // Stale, forged, or a post-handshake NEW_TOKEN presented too early: drop.
	}
	return e.finishAccept(retrySCID, odcid, addr)
}

func (e *engine) acceptNew(odcid []byte, addr *net.UDPAddr) (*remoteConn, error) {
	scid := make([]byte, defaultSCIDLength)
	if _, err := rand.Read(scid); err != nil {
		return nil, err
	}
	return e.finishAccept(scid, odcid, addr)
}

// finishAccept creates the transport.Conn and registers it, common to the
// plain and Retry-gated accept paths.
func (e *engine) finishAccept(scid, odcid []byte, addr *net.UDPAddr) (*remoteConn, error) {
	tc, err := transport.Accept(scid, odcid, e.config.Config)
	if err != nil {
		return nil, err
	}
	tc.BindInitialAddr(addr)
	rc := newRemoteConn(tc, scid, addr, e, false)
	e.mu.Lock()
	e.byCID[string(scid)] = rc
	e.byAddr[addr.String()] = rc
	e.mu.Unlock()
	e.logger.attach(rc)
	e.metrics.add(rc)
	select {
	case e.accept <- rc:
	default:
		tc.Close(false, uint64(transport.InternalError), "accept queue full")
	}
	rc.addEvent(EventConnAccept)
	return rc, nil
}

// deliver feeds a received datagram to rc and flushes any resulting
// outbound packets, mirroring the spec's receive data flow (§2): frame
// codec dispatch happens inside transport.Conn.Write, then the scheduler
// (here, deliver+flush) polls for pending outbound work.
func (e *engine) deliver(rc *remoteConn, b []byte, addr *net.UDPAddr) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if !sameUDPAddr(rc.addr, addr) {
		// A new 4-tuple for a known CID: possible NAT rebinding or active
		// migration. transport.Conn's internal pathManager (§4.5) queues a
		// PATH_CHALLENGE for the new path; we keep routing replies there
		// right away (the common NAT-rebind case) while validation runs in
		// the background, and re-point our table again if/when the path
		// that actually validates differs from this one.
		if err := rc.conn.OnPeerAddressChange(addr, time.Now()); err != nil {
			rc.conn.Close(false, uint64(transport.InternalError), err.Error())
		}
		e.mu.Lock()
		delete(e.byAddr, rc.addr.String())
		rc.addr = addr
		e.byAddr[addr.String()] = rc
		e.mu.Unlock()
	}
	wasEstablished := rc.conn.IsEstablished()
	if _, err := rc.conn.Write(b); err != nil {
		rc.conn.Close(false, uint64(transport.InternalError), err.Error())
	}
	if !wasEstablished && rc.conn.IsEstablished() {
		rc.addEvent(EventConnHandshakeDone)
	}
	if validated, ok := rc.conn.MigratedPeerAddr(); ok {
		if udpAddr, ok := validated.(*net.UDPAddr); ok && !sameUDPAddr(rc.addr, udpAddr) {
			e.mu.Lock()
			delete(e.byAddr, rc.addr.String())
			rc.addr = udpAddr
			e.byAddr[udpAddr.String()] = rc
			e.mu.Unlock()
		}
	}
	e.flushLocked(rc)
	e.rearmLocked(rc)
}

// flushLocked drains every packet transport.Conn.Read is ready to produce
// and writes them to the socket, then dispatches accumulated events to the
// configured Handler. Caller holds rc.mu.
func (e *engine) flushLocked(rc *remoteConn) {
	buf := make([]byte, transport.MaxPacketSize)
	for {
		n, err := rc.conn.Read(buf)
		if err != nil || n == 0 {
			break
		}
		e.socket.WriteToUDP(buf[:n], rc.addr)
	}
	events := append(rc.eventBuf[:0], rc.pending...)
	rc.pending = rc.pending[:0]
	events = rc.conn.Events(events)
	rc.eventBuf = events
	if rc.conn.IsClosed() {
		events = append(events, transport.Event{Type: EventConnClose})
	}
	if len(events) > 0 && e.config.Handler != nil {
		e.config.Handler.Serve(rc, events)
	}
	if rc.conn.IsClosed() {
		rc.signalClosed()
		e.removeLocked(rc)
	}
}

func (e *engine) removeLocked(rc *remoteConn) {
	e.timers.Cancel(string(rc.scid))
	e.mu.Lock()
	delete(e.byCID, string(rc.scid))
	delete(e.byAddr, rc.addr.String())
	e.mu.Unlock()
	e.logger.detach(rc)
	e.metrics.remove(rc)
}

func (e *engine) rearmLocked(rc *remoteConn) {
	timeout := rc.conn.Timeout()
	if timeout < 0 {
		e.timers.Cancel(string(rc.scid))
		return
	}
	e.timers.Schedule(string(rc.scid), time.Now().Add(timeout), func(now time.Time) {
		rc.mu.Lock()
		defer rc.mu.Unlock()
		rc.conn.Write(nil) // Drives checkTimeout: idle/draining/loss-detection.
		e.flushLocked(rc)
		if !rc.conn.IsClosed() {
			e.rearmLocked(rc)
		}
	})
}

func (e *engine) connect(addr, serverName string) (*remoteConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	scid := make([]byte, defaultSCIDLength)
	if _, err := rand.Read(scid); err != nil {
		return nil, err
	}
	cfg := e.config.Config
	if serverName != "" && cfg.TLS != nil {
		clone := *cfg
		tlsClone := cfg.TLS.Clone()
		tlsClone.ServerName = serverName
		clone.TLS = tlsClone
		cfg = &clone
	}
	tc, err := transport.Connect(scid, cfg)
	if err != nil {
		return nil, err
	}
	tc.BindInitialAddr(udpAddr)
	rc := newRemoteConn(tc, scid, udpAddr, e, true)
	e.mu.Lock()
	e.byCID[string(scid)] = rc
	e.byAddr[udpAddr.String()] = rc
	e.mu.Unlock()
	e.logger.attach(rc)
	e.metrics.add(rc)
	rc.mu.Lock()
	e.flushLocked(rc)
	e.rearmLocked(rc)
	rc.mu.Unlock()
	return rc, nil
}

func (e *engine) acceptConn(timeout time.Duration) (*remoteConn, error) {
	if timeout <= 0 {
		select {
		case rc := <-e.accept:
			return rc, nil
		case <-e.closing:
			return nil, errEngineClosed
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case rc := <-e.accept:
		return rc, nil
	case <-t.C:
		return nil, errAcceptTimeout
	case <-e.closing:
		return nil, errEngineClosed
	}
}

func (e *engine) cleanup() error {
	e.closeOnce.Do(func() { close(e.closing) })
	if e.socket != nil {
		e.socket.Close()
	}
	e.wg.Wait()
	return nil
}

func sameUDPAddr(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.IP.Equal(b.IP) && a.Port == b.Port && a.Zone == b.Zone
}
