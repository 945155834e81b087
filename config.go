package qtcore

import (
	"crypto/tls"
	"time"

	"github.com/birkeland/qtcore/transport"
)

// Config bundles the transport core's Config with the engine-level knobs
// the host exposes at the application boundary (§6 Configuration options):
// things a UDP socket, a listener's buffer pool, or the CLI care about but
// the transport core itself has no business knowing.
type Config struct {
	*transport.Config

	// Handler receives Serve callbacks for every connection this engine
	// drives, client or server side.
	Handler Handler

	// NumBufs sizes the engine's packet-buffer pool (one UDP datagram per
	// buffer). Defaults to 64 if zero.
	NumBufs int

	// QLogPath is not read by the engine, which writes no qlog trace
	// files; the core only emits transport.LogEvent values.
	QLogPath string

	// EnableUDPZeroChecksums asks the engine to disable UDP checksum
	// computation on its socket (Linux SO_NO_CHECK), trading integrity
	// checking at the UDP layer for throughput since QUIC's own AEAD
	// already authenticates every packet.
	EnableUDPZeroChecksums bool

	// IdleTimeout is set by NewConfig but not read by the engine: the
	// engine removes no connection for inactivity on its own, apart from
	// the transport-level idle timer exchanged in transport parameters.
	IdleTimeout time.Duration
}

// NewConfig returns a Config with the transport defaults (see
// transport.NewConfig) and a 64-buffer pool.
func NewConfig(tlsConfig *tls.Config) *Config {
	return &Config{
		Config:      transport.NewConfig(tlsConfig),
		NumBufs:     64,
		IdleTimeout: 30 * time.Second,
	}
}
