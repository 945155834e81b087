package qtcore

import (
	"github.com/sirupsen/logrus"
)

// Client drives outbound QUIC connections over one bound UDP socket,
// mirroring the teacher's quic.Client / cmd/quince client command
// (NewClient -> SetHandler -> ListenAndServe -> Connect).
type Client struct {
	e *engine
}

// NewClient returns a Client that has not yet bound a socket.
func NewClient(config *Config) *Client {
	return &Client{e: newEngine(config, true)}
}

// SetHandler installs the callback invoked with each connection's new
// events.
func (c *Client) SetHandler(h Handler) {
	c.e.config.Handler = h
}

// SetLogger sets the logrus level used for this client's connections'
// transport-event traces (see log.go's attach).
func (c *Client) SetLogger(level logrus.Level) {
	c.e.logger.setLevel(level)
}

// ListenAndServe binds the local UDP socket new connections will be
// connected from. addr may be "0.0.0.0:0" to pick an ephemeral port.
func (c *Client) ListenAndServe(addr string) error {
	return c.e.listenAndServe(addr)
}

// Connect opens a new client connection to addr, deriving serverName for
// the TLS SNI/ServerName field from addr's host portion if serverName is
// empty.
func (c *Client) Connect(addr string) (Conn, error) {
	return c.ConnectServerName(addr, "")
}

// ConnectServerName is Connect with an explicit TLS server name, for when
// addr is a bare IP:port that shouldn't be used as the SNI value.
func (c *Client) ConnectServerName(addr, serverName string) (Conn, error) {
	rc, err := c.e.connect(addr, serverName)
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// Close shuts down the socket and both background loops, waiting for them
// to exit. In-flight connections are abandoned, not gracefully closed;
// callers that need a clean shutdown should Close each Conn first and wait
// for its Done channel.
func (c *Client) Close() error {
	return c.e.cleanup()
}

// Metrics returns the prometheus collector exposing every live
// connection's recovery/congestion-control stats.
func (c *Client) Metrics() *Collector {
	return c.e.metrics
}
