package queue_test

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-events/core/event"
	"github.com/momentics/hioload-events/core/queue"
	"github.com/momentics/hioload-events/fake"
)

const notifierFD = 1000

type reading struct {
	Sensor int
	Value  float64
}

func newFakeQueue(t *testing.T) (*queue.Queue, *fake.Multiplexer, *fake.Notifier) {
	t.Helper()
	mux := fake.NewMultiplexer()
	n := fake.NewNotifier(mux, notifierFD)
	q, err := queue.New(queue.WithLogger(zerolog.Nop()), queue.WithReactor(mux, n))
	require.NoError(t, err)
	return q, mux, n
}

func sensor(id int) func(int) *event.Value {
	return func(int) *event.Value { return event.New(reading{Sensor: id, Value: 1.5}) }
}

func TestInterruptedWaitsRestartUntilDeadline(t *testing.T) {
	q, mux, _ := newFakeQueue(t)
	defer q.Close()
	mux.Interrupt()
	mux.Interrupt()
	mux.Interrupt()

	start := time.Now()
	n, err := q.Wait(30 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.GreaterOrEqual(t, mux.Waits(), 4)
}

func TestInterruptThenReadinessDelivers(t *testing.T) {
	q, mux, _ := newFakeQueue(t)
	defer q.Close()
	require.NoError(t, q.AddNativeSource(5, sensor(5), nil))

	var got []int
	queue.Handle(q, func(r *reading) error {
		got = append(got, r.Sensor)
		return nil
	})
	mux.Interrupt()
	mux.Ready(5)

	n, err := q.Wait(queue.Infinite)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int{5}, got)
}

func TestMultiplexerFailureIsReturned(t *testing.T) {
	q, mux, _ := newFakeQueue(t)
	defer q.Close()
	boom := errors.New("epoll_wait failed")
	mux.Fail(boom)

	_, err := q.Wait(time.Second)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, queue.Idle, q.State())
}

func TestReadinessForUnknownDescriptorIsIgnored(t *testing.T) {
	q, mux, _ := newFakeQueue(t)
	defer q.Close()
	mux.Ready(77)

	n, err := q.Poll()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBatchDispatchesInReadyOrder(t *testing.T) {
	q, mux, _ := newFakeQueue(t)
	defer q.Close()
	for _, fd := range []int{3, 4, 6} {
		require.NoError(t, q.AddNativeSource(fd, sensor(fd), nil))
	}
	var got []int
	queue.Handle(q, func(r *reading) error {
		got = append(got, r.Sensor)
		return nil
	})
	mux.Ready(6, 3, 4)

	n, err := q.Poll()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{6, 3, 4}, got)
}

func TestSourceRemovedEarlierInBatchIsSkipped(t *testing.T) {
	q, mux, _ := newFakeQueue(t)
	defer q.Close()
	require.NoError(t, q.AddNativeSource(3, sensor(3), nil))
	require.NoError(t, q.AddNativeSource(4, sensor(4), nil))
	var got []int
	queue.Handle(q, func(r *reading) error {
		got = append(got, r.Sensor)
		if r.Sensor == 3 {
			return q.RemoveNativeSource(4)
		}
		return nil
	})
	mux.Ready(3, 4)

	n, err := q.Poll()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int{3}, got)
	assert.False(t, mux.Registered(4))
}

func TestCloseReleasesReactor(t *testing.T) {
	q, mux, n := newFakeQueue(t)
	require.NoError(t, q.AddNativeSource(9, sensor(9), nil))
	require.True(t, mux.Registered(notifierFD))

	require.NoError(t, q.Close())
	assert.True(t, mux.Closed())
	assert.True(t, n.Closed())
	assert.False(t, mux.Registered(9))
	assert.False(t, mux.Registered(notifierFD))
}

func TestSendThroughFakeNotifier(t *testing.T) {
	q, _, _ := newFakeQueue(t)
	defer q.Close()
	var got []int
	queue.Handle(q, func(r *reading) error {
		got = append(got, r.Sensor)
		return nil
	})
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = queue.Post(q, reading{Sensor: 42})
	}()

	n, err := q.Wait(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int{42}, got)
}
