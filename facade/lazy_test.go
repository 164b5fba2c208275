package facade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-events/api"
	"github.com/momentics/hioload-events/control"
	"github.com/momentics/hioload-events/core/queue"
)

func TestFailedBuildPanicsEveryTime(t *testing.T) {
	cfg := control.DefaultConfig()
	cfg.MaxEvents = 0

	var l lazyQueue
	require.NoError(t, l.configure([]queue.Option{queue.WithConfig(cfg)}))

	first := capturePanic(func() { l.get() })
	require.Error(t, first)
	assert.ErrorIs(t, first, api.ErrInvalidArgument)

	second := capturePanic(func() { l.get() })
	assert.Same(t, first, second)

	assert.ErrorIs(t, l.configure(nil), api.ErrAlreadyExists)
}

func capturePanic(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err, _ = r.(error)
		}
	}()
	fn()
	return nil
}
