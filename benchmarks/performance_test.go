// Package benchmarks
// Author: momentics <momentics@gmail.com>
//
// Performance benchmarks for hioload-events components.

package benchmarks

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-events/core/dispatch"
	"github.com/momentics/hioload-events/core/event"
	"github.com/momentics/hioload-events/core/queue"
	"github.com/momentics/hioload-events/facade"
	"github.com/momentics/hioload-events/fake"
)

type point struct {
	X, Y int32
	T    float64
}

type frame struct {
	Seq     uint64
	Payload []byte
}

// BenchmarkValueInline measures wrap, extract and destroy of a small payload.
func BenchmarkValueInline(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		v := event.New(point{X: int32(i), Y: 1, T: 0.5})
		_ = event.Extract[point](v).X
		v.Destroy()
	}
}

// BenchmarkValueHeap measures the same cycle for a pointerful payload.
func BenchmarkValueHeap(b *testing.B) {
	data := make([]byte, 64)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		v := event.New(frame{Seq: uint64(i), Payload: data})
		_ = event.Extract[frame](v).Seq
		v.Destroy()
	}
}

// BenchmarkValueMove tests move construction.
func BenchmarkValueMove(b *testing.B) {
	v := event.New(point{X: 1})
	defer func() { v.Destroy() }()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		v = v.Move()
	}
}

// BenchmarkKeyLookup tests the registered fast path.
func BenchmarkKeyLookup(b *testing.B) {
	event.KeyFor[point]()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = event.KeyFor[point]()
		}
	})
}

// BenchmarkDispatch tests registry dispatch to four callbacks.
func BenchmarkDispatch(b *testing.B) {
	r := dispatch.NewRegistry()
	for i := 0; i < 4; i++ {
		r.Bind(event.KeyFor[point](), func(*event.Value) error { return nil })
	}
	v := event.New(point{X: 1})
	defer v.Destroy()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = r.Dispatch(v)
	}
}

// BenchmarkPostWait tests the posted-event path through a real eventfd.
func BenchmarkPostWait(b *testing.B) {
	q, err := queue.New(queue.WithLogger(zerolog.Nop()))
	if err != nil {
		b.Skip(err)
	}
	defer q.Close()
	queue.On[point](q, func(*event.Value) error { return nil })

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := queue.Post(q, point{X: int32(i)}); err != nil {
			b.Fatal(err)
		}
		if _, err := q.Wait(time.Second); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkParallelSend tests Send contention with a single consumer.
func BenchmarkParallelSend(b *testing.B) {
	q, err := queue.New(queue.WithLogger(zerolog.Nop()))
	if err != nil {
		b.Skip(err)
	}
	defer q.Close()

	var stop atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		for !stop.Load() {
			_, _ = q.Wait(time.Millisecond)
		}
		_, _ = q.Poll()
	}()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = queue.Post(q, point{X: 1})
		}
	})
	stop.Store(true)
	<-done
}

// BenchmarkFakeReactorCycle tests the wait loop itself, without syscalls.
func BenchmarkFakeReactorCycle(b *testing.B) {
	mux := fake.NewMultiplexer()
	q, err := queue.New(queue.WithLogger(zerolog.Nop()), queue.WithReactor(mux, fake.NewNotifier(mux, 1000)))
	if err != nil {
		b.Fatal(err)
	}
	defer q.Close()
	if err := q.AddNativeSource(3, func(int) *event.Value { return event.New(point{X: 3}) }, nil); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mux.Ready(3)
		if _, err := q.Poll(); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkFacadePoll tests an empty poll of the default queue.
func BenchmarkFacadePoll(b *testing.B) {
	facade.Default()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = facade.Poll()
	}
}
