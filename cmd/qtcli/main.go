// Command qtcli drives qtcore connections from the command line: a client
// that opens a connection and sends data on stream 4, and a server that
// accepts connections and echoes back anything it receives. Adapted from
// the teacher's cmd/quince, swapping its flag.FlagSet-per-subcommand
// dispatch for cobra (the layout distribution-distribution's registry
// binary uses).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "qtcli",
	Short: "qtcli drives qtcore QUIC connections for manual testing",
}

func main() {
	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(serverCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
