package qtcore

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Server accepts inbound QUIC connections over one bound UDP socket,
// mirroring Client's NewClient/SetHandler/ListenAndServe triplet (§6:
// init/bind/accept).
type Server struct {
	e *engine
}

// NewServer returns a Server that has not yet bound a socket.
func NewServer(config *Config) *Server {
	return &Server{e: newEngine(config, false)}
}

// SetHandler installs the callback invoked with each connection's new
// events.
func (s *Server) SetHandler(h Handler) {
	s.e.config.Handler = h
}

// SetLogger sets the logrus level used for this server's connections'
// transport-event traces.
func (s *Server) SetLogger(level logrus.Level) {
	s.e.logger.setLevel(level)
}

// ListenAndServe binds addr and starts accepting connections from
// Initial packets addressed to it.
func (s *Server) ListenAndServe(addr string) error {
	return s.e.listenAndServe(addr)
}

// Accept blocks until the engine has created a new connection for a
// client's Initial packet, or timeout elapses (timeout<=0 blocks
// indefinitely). The connection is returned as soon as it is created,
// before that first packet has been processed.
func (s *Server) Accept(timeout time.Duration) (Conn, error) {
	rc, err := s.e.acceptConn(timeout)
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// Close shuts down the socket and background loops, waiting for them to
// exit. In-flight connections are abandoned, not gracefully closed.
func (s *Server) Close() error {
	return s.e.cleanup()
}

// Metrics returns the prometheus collector exposing every live
// connection's recovery/congestion-control stats.
func (s *Server) Metrics() *Collector {
	return s.e.metrics
}
