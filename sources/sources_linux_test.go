//go:build linux

package sources

import (
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-events/api"
	"github.com/momentics/hioload-events/core/event"
	"github.com/momentics/hioload-events/core/queue"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newQueue(t *testing.T) *queue.Queue {
	t.Helper()
	q, err := queue.New(queue.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

// waitUntil runs the wait loop until done reports true or the limit passes.
func waitUntil(t *testing.T, q *queue.Queue, limit time.Duration, done func() bool) {
	t.Helper()
	deadline := time.Now().Add(limit)
	for !done() {
		require.True(t, time.Now().Before(deadline), "condition not reached within %v", limit)
		_, err := q.Wait(50 * time.Millisecond)
		require.NoError(t, err)
	}
}

func TestTimerSourceFiniteRepeats(t *testing.T) {
	q := newQueue(t)
	var ticks []Tick
	queue.Handle(q, func(tk *Tick) error {
		ticks = append(ticks, *tk)
		return nil
	})
	fd, err := AddTimerSource(q, Timer{ID: 7, Interval: 10 * time.Millisecond, Repeats: 2})
	require.NoError(t, err)

	total := func() uint64 {
		var n uint64
		for _, tk := range ticks {
			n += tk.Expirations
		}
		return n
	}
	waitUntil(t, q, 2*time.Second, func() bool { return total() >= 3 })

	assert.Equal(t, uint64(3), total())
	last := ticks[len(ticks)-1]
	assert.True(t, last.LastTick)
	assert.Equal(t, 7, last.TimerID)
	for _, tk := range ticks[:len(ticks)-1] {
		assert.False(t, tk.LastTick)
	}

	n, err := q.Wait(40 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	require.NoError(t, q.RemoveNativeSource(fd))
}

func TestTimerSourceOneShotAndGroup(t *testing.T) {
	q := newQueue(t)
	system := 0
	queue.OnGroup[SystemGroup](q, func(ev *event.Value) error {
		system++
		tk, ok := event.TryExtract[Tick](ev)
		require.True(t, ok)
		assert.True(t, tk.LastTick)
		return nil
	})
	_, err := AddTimerSource(q, Timer{ID: 1, Interval: 5 * time.Millisecond})
	require.NoError(t, err)

	waitUntil(t, q, time.Second, func() bool { return system > 0 })
	assert.Equal(t, 1, system)
}

func TestTimerSourceRejectsBadInterval(t *testing.T) {
	q := newQueue(t)
	_, err := AddTimerSource(q, Timer{ID: 1})
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestSignalSource(t *testing.T) {
	q := newQueue(t)
	var got []Signal
	queue.Handle(q, func(s *Signal) error {
		got = append(got, *s)
		return nil
	})

	fd, err := AddSignalSource(q, syscall.SIGUSR1)
	require.NoError(t, err)

	_, err = AddSignalSource(q, syscall.SIGUSR2, syscall.SIGUSR1)
	assert.ErrorIs(t, err, api.ErrAlreadyExists)

	require.NoError(t, unix.Kill(os.Getpid(), unix.SIGUSR1))
	waitUntil(t, q, 2*time.Second, func() bool { return len(got) > 0 })
	assert.Equal(t, int(syscall.SIGUSR1), got[0].Number)
	assert.Equal(t, "SIGUSR1", got[0].Name)

	require.NoError(t, q.RemoveNativeSource(fd))

	// The failed call above must not have kept SIGUSR2, and removal
	// released SIGUSR1.
	fd, err = AddSignalSource(q, syscall.SIGUSR1, syscall.SIGUSR2)
	require.NoError(t, err)
	require.NoError(t, q.RemoveNativeSource(fd))
}

func TestSignalSourceArguments(t *testing.T) {
	q := newQueue(t)
	_, err := AddSignalSource(q)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
	_, err = AddSignalSource(q, os.Interrupt, os.Interrupt)
	assert.ErrorIs(t, err, api.ErrAlreadyExists)
}

func TestWatchSource(t *testing.T) {
	q := newQueue(t)
	dir := t.TempDir()
	target := filepath.Join(dir, "config.yaml")

	var changes []FileChange
	queue.Handle(q, func(c *FileChange) error {
		changes = append(changes, *c)
		return nil
	})
	groups := 0
	queue.OnGroup[FileSystemGroup](q, func(*event.Value) error {
		groups++
		return nil
	})

	w, err := AddWatchSource(q, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{dir}, w.Paths())

	require.NoError(t, os.WriteFile(target, []byte("a: 1\n"), 0o600))
	created := func() bool {
		for _, c := range changes {
			if c.Path == target && c.Op.Has(fsnotify.Create) {
				return true
			}
		}
		return false
	}
	waitUntil(t, q, 2*time.Second, created)
	assert.Equal(t, len(changes), groups)

	require.NoError(t, q.RemoveNativeSource(w.FD()))
}

func TestWatchSourceMissingPath(t *testing.T) {
	q := newQueue(t)
	_, err := AddWatchSource(q, filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, api.ErrCodeSystem, api.CodeOf(err))
}

func TestListenerAndSocketSources(t *testing.T) {
	q := newQueue(t)
	l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	var accepted []Network
	var socketEvents []Network
	queue.Handle(q, func(n *Network) error {
		if n.Kind == NewConnection {
			accepted = append(accepted, *n)
		} else {
			socketEvents = append(socketEvents, *n)
		}
		return nil
	})

	lfd, err := AddListenerSource(q, l)
	require.NoError(t, err)

	client, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	waitUntil(t, q, 2*time.Second, func() bool { return len(accepted) > 0 })
	conn := accepted[0]
	assert.Equal(t, "127.0.0.1", conn.PeerAddress)
	assert.Equal(t, uint16(client.LocalAddr().(*net.TCPAddr).Port), conn.PeerPort)
	require.Positive(t, conn.Socket)

	require.NoError(t, AddSocketSource(q, conn.Socket))

	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)
	waitUntil(t, q, 2*time.Second, func() bool { return len(socketEvents) > 0 })
	assert.Equal(t, SocketReady, socketEvents[0].Kind)
	assert.Equal(t, conn.Socket, socketEvents[0].Socket)

	buf := make([]byte, 4)
	n, err := unix.Read(conn.Socket, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))

	require.NoError(t, client.Close())
	socketEvents = nil
	waitUntil(t, q, 2*time.Second, func() bool { return len(socketEvents) > 0 })
	assert.Equal(t, ConnectionClosed, socketEvents[0].Kind)

	require.NoError(t, q.RemoveNativeSource(conn.Socket))
	require.NoError(t, q.RemoveNativeSource(lfd))

	_, err = l.Accept()
	assert.Error(t, err)
}

func TestNetworkSourcesCloseOnFailedRegistration(t *testing.T) {
	q := newQueue(t)
	require.NoError(t, q.Close())

	l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	_, err = AddListenerSource(q, l)
	require.ErrorIs(t, err, api.ErrQueueClosed)
	_, err = l.Accept()
	assert.ErrorIs(t, err, net.ErrClosed)

	sv, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	defer unix.Close(sv[1])
	require.ErrorIs(t, AddSocketSource(q, sv[0]), api.ErrQueueClosed)
	err = unix.Sendto(sv[1], []byte("x"), unix.MSG_NOSIGNAL, nil)
	assert.ErrorIs(t, err, unix.EPIPE, "peer end must be closed")
}

func TestNetworkKindString(t *testing.T) {
	assert.Equal(t, "new_connection", NewConnection.String())
	assert.Equal(t, "socket_ready", SocketReady.String())
	assert.Equal(t, "connection_closed", ConnectionClosed.String())
	assert.Equal(t, "unknown", NetworkKind(42).String())
}
