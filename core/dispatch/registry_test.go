package dispatch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-events/core/event"
)

type deviceGroup struct{}

type keyDown struct{ Code uint32 }

func (keyDown) EventGroup() event.GroupKey { return event.GroupFor[deviceGroup]() }

type plainEvent struct{ N int }

func TestDispatchOrderWithinKey(t *testing.T) {
	r := NewRegistry()
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		r.Bind(event.KeyFor[plainEvent](), func(*event.Value) error {
			order = append(order, i)
			return nil
		})
	}

	ev := event.New(plainEvent{N: 1})
	defer ev.Destroy()
	n, err := r.Dispatch(ev)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestTypeCallbacksRunBeforeGroupCallbacks(t *testing.T) {
	r := NewRegistry()
	var trace []string
	r.BindGroup(event.GroupFor[deviceGroup](), func(*event.Value) error {
		trace = append(trace, "group")
		return nil
	})
	r.Bind(event.KeyFor[keyDown](), func(ev *event.Value) error {
		trace = append(trace, "type")
		assert.Equal(t, uint32(30), event.Extract[keyDown](ev).Code)
		return nil
	})

	ev := event.New(keyDown{Code: 30})
	defer ev.Destroy()
	n, err := r.Dispatch(ev)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"type", "group"}, trace)
}

func TestUngroupedEventSkipsGroupCallbacks(t *testing.T) {
	r := NewRegistry()
	called := false
	r.BindGroup(event.GroupFor[deviceGroup](), func(*event.Value) error {
		called = true
		return nil
	})
	ev := event.New(plainEvent{})
	defer ev.Destroy()

	n, err := r.Dispatch(ev)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, called)
	assert.Nil(t, r.LookupGroup(event.NoGroup))
}

func TestUnbind(t *testing.T) {
	r := NewRegistry()
	count := 0
	cb := func(*event.Value) error { count++; return nil }
	b1 := r.Bind(event.KeyFor[plainEvent](), cb)
	b2 := r.Bind(event.KeyFor[plainEvent](), cb)
	g := r.BindGroup(event.GroupFor[deviceGroup](), cb)
	require.Equal(t, 3, r.Len())

	assert.True(t, r.Unbind(b1))
	assert.False(t, r.Unbind(b1))
	assert.False(t, r.Unbind(Binding{}))
	assert.True(t, r.Unbind(g))
	assert.Equal(t, 1, r.Len())
	assert.Len(t, r.Lookup(event.KeyFor[plainEvent]()), 1)

	ev := event.New(plainEvent{})
	defer ev.Destroy()
	_, _ = r.Dispatch(ev)
	assert.Equal(t, 1, count)

	assert.True(t, r.Unbind(b2))
	assert.Nil(t, r.Lookup(event.KeyFor[plainEvent]()))
}

func TestBindDuringDispatchAppliesNextTime(t *testing.T) {
	r := NewRegistry()
	late := 0
	r.Bind(event.KeyFor[plainEvent](), func(*event.Value) error {
		r.Bind(event.KeyFor[plainEvent](), func(*event.Value) error {
			late++
			return nil
		})
		return nil
	})

	ev := event.New(plainEvent{})
	defer ev.Destroy()
	n, _ := r.Dispatch(ev)
	assert.Equal(t, 1, n)
	assert.Zero(t, late)

	n, _ = r.Dispatch(ev)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, late)
	assert.Equal(t, 3, r.Len())
}

var errBoom = errors.New("boom")

func TestDispatchCollectsErrorsWithoutStopping(t *testing.T) {
	r := NewRegistry()
	ran := 0
	r.Bind(event.KeyFor[plainEvent](), func(*event.Value) error { ran++; return errBoom })
	r.Bind(event.KeyFor[plainEvent](), func(*event.Value) error { ran++; return nil })
	r.Bind(event.KeyFor[plainEvent](), func(*event.Value) error { ran++; return errors.New("second") })

	ev := event.New(plainEvent{})
	defer ev.Destroy()
	n, err := r.Dispatch(ev)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, ran)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)

	var de *Errors
	require.ErrorAs(t, err, &de)
	assert.Len(t, de.Errs, 2)
	assert.Contains(t, err.Error(), "plainEvent")
}

func TestMergeFlattens(t *testing.T) {
	a := errors.New("a")
	b := errors.New("b")
	c := errors.New("c")

	assert.Nil(t, Merge(nil, nil))
	assert.Equal(t, a, Merge(a, nil))
	assert.Equal(t, a, Merge(nil, a))

	merged := Merge(Merge(a, b), &Errors{Event: "x", Errs: []error{c}})
	var de *Errors
	require.ErrorAs(t, merged, &de)
	assert.Equal(t, []error{a, b, c}, de.Errs)
}

func TestNilCallbackPanics(t *testing.T) {
	r := NewRegistry()
	assert.Panics(t, func() { r.Bind(event.KeyFor[plainEvent](), nil) })
}
