package transport

import "crypto/tls"

// Config bundles the settings needed to create a client or server
// connection: the QUIC version to speak, the local transport parameters
// to advertise, and the TLS configuration handed to crypto/tls's QUIC
// support.
type Config struct {
	// Version is the QUIC version this connection will speak. Zero
	// defaults to SupportedVersion.
	Version uint32
	// Params are the local transport parameters advertised to the peer.
	Params Parameters
	// TLS configures the underlying TLS 1.3 handshake. NextProtos should
	// list the ALPN identifiers this connection is willing to negotiate;
	// MinVersion is forced to TLS 1.3 regardless of what is set here,
	// since QUIC requires it.
	TLS *tls.Config

	// RetryEnabled, on the server, gates two related address-validation
	// extensions: requiring a Retry round trip before Initial processing
	// (handled by the engine, which holds the socket) and emitting a
	// NEW_TOKEN frame once the handshake completes so a future connection
	// from the same client can skip that round trip. An empty TokenSecret
	// disables both halves: the engine sends no Retry and the connection
	// emits no NEW_TOKEN.
	RetryEnabled bool
	// TokenSecret keys Retry and NEW_TOKEN minting/validation (16, 24, or 32 bytes
	// for AES-128/192/256-GCM). Shared across every connection a server
	// accepts, since a token must outlive the connection that issued it.
	TokenSecret []byte
}

// NewConfig returns a Config with default transport parameters and the
// supported QUIC version, ready for the caller to fill in TLS.
func NewConfig(tlsConfig *tls.Config) *Config {
	cfg := &Config{
		Version: SupportedVersion,
		Params:  defaultParameters(),
	}
	if tlsConfig != nil {
		c := tlsConfig.Clone()
		c.MinVersion = tls.VersionTLS13
		cfg.TLS = c
	}
	return cfg
}
