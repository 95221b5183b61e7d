// Command wsmanager serves the chat sample hub and invokes hub methods from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/go-kit/log"
	"github.com/spf13/cobra"

	"github.com/philippseith/wsmanager"
)

var (
	protocol string
	debug    bool
)

var rootCmd = &cobra.Command{
	Use:           "wsmanager",
	Short:         "Per connection hub server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&protocol, "protocol", "json", "codec used on the wire: json or messagepack")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debug events")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func codecByName(name string) (wsmanager.Codec, error) {
	switch name {
	case "json":
		return &wsmanager.JSONCodec{}, nil
	case "messagepack":
		return &wsmanager.MessagePackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown protocol %q", name)
	}
}

func newLogger() log.Logger {
	return log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
}
