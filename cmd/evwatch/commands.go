//go:build linux

// File: cmd/evwatch/commands.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-events/core/event"
	"github.com/momentics/hioload-events/core/queue"
	"github.com/momentics/hioload-events/sources"
)

var defaultStop = []syscall.Signal{unix.SIGINT, unix.SIGTERM}

func newTimerCmd(flags *rootFlags) *cobra.Command {
	var (
		id       int
		interval time.Duration
		repeats  int
	)
	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Print the ticks of a periodic timer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := newRunner(cmd, flags)
			if err != nil {
				return err
			}
			if err := r.stopOn(nil, defaultStop...); err != nil {
				return err
			}
			queue.Handle(r.q, func(t *sources.Tick) error {
				if t.TimerID != id {
					return nil
				}
				r.printf("tick timer=%d expirations=%d last=%t\n", t.TimerID, t.Expirations, t.LastTick)
				if t.LastTick {
					r.stop = true
				}
				return nil
			})
			if _, err := sources.AddTimerSource(r.q, sources.Timer{ID: id, Interval: interval, Repeats: repeats}); err != nil {
				return err
			}
			return r.loop()
		},
	}
	cmd.Flags().IntVar(&id, "id", 1, "timer id reported in ticks")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "tick interval")
	cmd.Flags().IntVar(&repeats, "repeats", -1, "ticks after the first one, negative for unlimited")
	return cmd
}

func newSignalCmd(flags *rootFlags) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "signal SIGNAL...",
		Short: "Print received signals (names like HUP or SIGUSR1, or numbers)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sigs, err := parseSignals(args)
			if err != nil {
				return err
			}
			r, err := newRunner(cmd, flags)
			if err != nil {
				return err
			}
			watched := make(map[int]bool, len(sigs))
			claim := make([]os.Signal, 0, len(sigs))
			for _, s := range sigs {
				watched[int(s)] = true
				claim = append(claim, s)
			}
			if err := r.stopOn(watched, defaultStop...); err != nil {
				return err
			}
			seen := 0
			queue.Handle(r.q, func(s *sources.Signal) error {
				if !watched[s.Number] {
					return nil
				}
				seen++
				r.printf("signal %s (%d)\n", s.Name, s.Number)
				if count > 0 && seen >= count {
					r.stop = true
				}
				return nil
			})
			if _, err := sources.AddSignalSource(r.q, claim...); err != nil {
				return err
			}
			r.printf("pid %d\n", os.Getpid())
			return r.loop()
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many signals, 0 for unlimited")
	return cmd
}

func parseSignals(args []string) ([]syscall.Signal, error) {
	out := make([]syscall.Signal, 0, len(args))
	for _, a := range args {
		if n, err := strconv.Atoi(a); err == nil {
			out = append(out, syscall.Signal(n))
			continue
		}
		name := strings.ToUpper(a)
		if !strings.HasPrefix(name, "SIG") {
			name = "SIG" + name
		}
		s := unix.SignalNum(name)
		if s == 0 {
			return nil, fmt.Errorf("unknown signal %q", a)
		}
		out = append(out, s)
	}
	return out, nil
}

func newWatchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch PATH...",
		Short: "Print filesystem changes below the given paths",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRunner(cmd, flags)
			if err != nil {
				return err
			}
			if err := r.stopOn(nil, defaultStop...); err != nil {
				return err
			}
			queue.Handle(r.q, func(c *sources.FileChange) error {
				r.printf("%s %s\n", strings.ToLower(c.Op.String()), c.Path)
				return nil
			})
			queue.Handle(r.q, func(e *sources.WatchError) error {
				return e.Err
			})
			if _, err := sources.AddWatchSource(r.q, args...); err != nil {
				return err
			}
			return r.loop()
		},
	}
}

func newListenCmd(flags *rootFlags) *cobra.Command {
	var (
		addr string
		echo bool
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Accept TCP connections and print what peers send",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := newRunner(cmd, flags)
			if err != nil {
				return err
			}
			if err := r.stopOn(nil, defaultStop...); err != nil {
				return err
			}
			l, err := listenTCP(addr)
			if err != nil {
				return err
			}
			if _, err := sources.AddListenerSource(r.q, l); err != nil {
				_ = l.Close()
				return err
			}
			r.printf("listening on %s\n", l.Addr())
			queue.OnGroup[sources.NetworkGroup](r.q, func(ev *event.Value) error {
				return r.handleNetwork(event.Extract[sources.Network](ev), echo)
			})
			return r.loop()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9002", "listen address")
	cmd.Flags().BoolVar(&echo, "echo", false, "write received data back to the peer")
	return cmd
}

func (r *runner) handleNetwork(n *sources.Network, echo bool) error {
	switch n.Kind {
	case sources.NewConnection:
		r.printf("connect %s:%d fd=%d\n", n.PeerAddress, n.PeerPort, n.Socket)
		return sources.AddSocketSource(r.q, n.Socket)
	case sources.SocketReady:
		buf := make([]byte, 4096)
		got, ok := readSocket(n.Socket, buf)
		if !ok {
			r.printf("disconnect %s:%d\n", n.PeerAddress, n.PeerPort)
			return r.q.RemoveNativeSource(n.Socket)
		}
		if got == 0 {
			return nil
		}
		r.printf("data %s:%d %q\n", n.PeerAddress, n.PeerPort, buf[:got])
		if echo {
			_, err := writeSocket(n.Socket, buf[:got])
			return err
		}
		return nil
	case sources.ConnectionClosed:
		r.printf("disconnect %s:%d\n", n.PeerAddress, n.PeerPort)
		return r.q.RemoveNativeSource(n.Socket)
	}
	return nil
}
