//go:build linux

// File: cmd/evwatch/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// evwatch attaches one kind of event source to the default queue and prints
// every event it dispatches. SIGINT and SIGTERM end the loop through the
// queue itself.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath  string
	logLevel    string
	metricsAddr string
	duration    string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "evwatch",
		Short:         "Watch timers, signals, files and sockets through an event queue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML queue configuration")
	pf.StringVar(&flags.logLevel, "log-level", "", "override the configured log level")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	pf.StringVar(&flags.duration, "duration", "", "stop after this long (e.g. 30s)")

	root.AddCommand(
		newTimerCmd(flags),
		newSignalCmd(flags),
		newWatchCmd(flags),
		newListenCmd(flags),
	)
	return root
}
