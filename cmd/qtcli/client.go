package main

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/birkeland/qtcore"
	"github.com/birkeland/qtcore/transport"
)

var (
	clientListenAddr string
	clientInsecure   bool
	clientData       string
	clientLogLevel   string
)

var clientCmd = &cobra.Command{
	Use:   "client <address>",
	Short: "Connect to a QUIC server, send data on stream 4, print what comes back",
	Args:  cobra.ExactArgs(1),
	RunE:  runClient,
}

func init() {
	clientCmd.Flags().StringVar(&clientListenAddr, "listen", "0.0.0.0:0", "local UDP address to bind")
	clientCmd.Flags().BoolVar(&clientInsecure, "insecure", false, "skip verifying the server certificate")
	clientCmd.Flags().StringVar(&clientData, "data", "GET /\r\n", "data to send on stream 4")
	clientCmd.Flags().StringVar(&clientLogLevel, "log-level", "info", "panic|fatal|error|warn|info|debug|trace")
}

func runClient(cmd *cobra.Command, args []string) error {
	addr := args[0]
	level, err := logrus.ParseLevel(clientLogLevel)
	if err != nil {
		return err
	}

	config := qtcore.NewConfig(&tls.Config{
		InsecureSkipVerify: clientInsecure,
		NextProtos:         []string{"qtcli"},
	})

	handler := &echoClientHandler{data: clientData}
	handler.wg.Add(1)

	client := qtcore.NewClient(config)
	client.SetHandler(handler)
	client.SetLogger(level)
	if err := client.ListenAndServe(clientListenAddr); err != nil {
		return err
	}
	defer client.Close()

	if _, err := client.ConnectServerName(addr, hostOf(addr)); err != nil {
		return err
	}
	handler.wg.Wait()
	return nil
}

// echoClientHandler sends data once the handshake completes, prints
// whatever the peer streams back, and releases wg once the connection
// closes — the same event-driven shape as the teacher's clientHandler,
// widened to react to qtcore's split accept/handshake-done events.
type echoClientHandler struct {
	wg       sync.WaitGroup
	data     string
	sentOnce sync.Once
}

func (h *echoClientHandler) Serve(c qtcore.Conn, events []transport.Event) {
	for _, e := range events {
		switch e.Type {
		case qtcore.EventConnHandshakeDone:
			h.sentOnce.Do(func() {
				st, err := c.Stream(4)
				if err != nil {
					return
				}
				st.Write([]byte(h.data), true)
			})
		case transport.EventStreamReadable:
			st, err := c.Stream(e.StreamID)
			if err != nil {
				continue
			}
			buf := make([]byte, 4096)
			n, fin := st.Read(buf)
			if n > 0 {
				fmt.Printf("stream %d: %s\n", e.StreamID, buf[:n])
			}
			if fin {
				c.Close(false, uint64(transport.NoError), "done")
			}
		case qtcore.EventConnClose:
			h.wg.Done()
		}
	}
}

// hostOf strips the port from addr for use as the TLS SNI/ServerName,
// leaving a bare IP or hostname untouched.
func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
