package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/birkeland/qtcore"
	"github.com/birkeland/qtcore/transport"
)

var (
	serverListenAddr string
	serverCertFile   string
	serverKeyFile    string
	serverLogLevel   string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Accept QUIC connections and echo back whatever each stream sends",
	RunE:  runServer,
}

func init() {
	serverCmd.Flags().StringVar(&serverListenAddr, "listen", "0.0.0.0:4433", "local UDP address to bind")
	serverCmd.Flags().StringVar(&serverCertFile, "cert", "", "TLS certificate file (PEM); generates an ephemeral self-signed one if empty")
	serverCmd.Flags().StringVar(&serverKeyFile, "key", "", "TLS private key file (PEM), required alongside --cert")
	serverCmd.Flags().StringVar(&serverLogLevel, "log-level", "info", "panic|fatal|error|warn|info|debug|trace")
}

func runServer(cmd *cobra.Command, args []string) error {
	level, err := logrus.ParseLevel(serverLogLevel)
	if err != nil {
		return err
	}

	var cert tls.Certificate
	if serverCertFile != "" {
		cert, err = tls.LoadX509KeyPair(serverCertFile, serverKeyFile)
	} else {
		cert, err = selfSignedCert()
	}
	if err != nil {
		return fmt.Errorf("load certificate: %w", err)
	}

	config := qtcore.NewConfig(&tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"qtcli"},
	})
	config.RetryEnabled = true
	config.TokenSecret = make([]byte, 32)
	if _, err := rand.Read(config.TokenSecret); err != nil {
		return err
	}

	server := qtcore.NewServer(config)
	server.SetHandler(qtcore.HandlerFunc(echoServe))
	server.SetLogger(level)
	if err := server.ListenAndServe(serverListenAddr); err != nil {
		return err
	}
	defer server.Close()

	fmt.Printf("listening on %s\n", serverListenAddr)

	// The accept loop and the signal watcher are the only two goroutines
	// this command runs outside the single-threaded transport core (§5);
	// either returning ends the command, so they share one errgroup.
	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		for {
			conn, err := server.Accept(0)
			if err != nil {
				return err
			}
			// A random session id is printed next to the connection
			// ID for each accept; it is not recorded anywhere else.
			fmt.Printf("accepted session=%s cid=%x\n", uuid.New(), conn.SourceCID())
		}
	})
	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
			return server.Close()
		case <-ctx.Done():
			return nil
		}
	})
	return g.Wait()
}

// echoServe writes back, on the same stream, whatever a stream received,
// closing that stream's send side once the peer's FIN arrives.
func echoServe(c qtcore.Conn, events []transport.Event) {
	for _, e := range events {
		if e.Type != transport.EventStreamReadable {
			continue
		}
		st, err := c.Stream(e.StreamID)
		if err != nil {
			continue
		}
		buf := make([]byte, 4096)
		n, fin := st.Read(buf)
		if n > 0 {
			st.Write(buf[:n], false)
		}
		if fin {
			st.Close()
		}
	}
}

// selfSignedCert mints an ephemeral ECDSA certificate for local testing,
// the way a CLI tool without an operator-supplied cert commonly does.
func selfSignedCert() (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, err
	}
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "qtcli"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, nil
}
