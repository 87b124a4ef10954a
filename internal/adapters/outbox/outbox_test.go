package outbox_test

import (
	"testing"

	"github.com/dkeye/VoiceRelay/internal/adapters/outbox"
	"github.com/dkeye/VoiceRelay/internal/core"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutbox_Backpressure(t *testing.T) {
	o := outbox.New(2)
	require.NoError(t, o.TrySend(core.Payload("a")))
	require.NoError(t, o.TrySend(core.Payload("b")))
	assert.ErrorIs(t, o.TrySend(core.Payload("c")), core.ErrBackpressure)

	assert.Equal(t, core.Payload("a"), <-o.C())
	require.NoError(t, o.TrySend(core.Payload("c")))
}

func TestOutbox_CloseDrains(t *testing.T) {
	o := outbox.New(4)
	require.NoError(t, o.TrySend(core.Payload("a")))

	assert.True(t, o.Close())
	assert.False(t, o.Close(), "second close is a no-op")
	assert.ErrorIs(t, o.TrySend(core.Payload("b")), core.ErrClosed)

	var got []core.Payload
	for p := range o.C() {
		got = append(got, p)
	}
	assert.Equal(t, []core.Payload{core.Payload("a")}, got)
}

func TestOutbox_DefaultSize(t *testing.T) {
	o := outbox.New(0)
	for range outbox.DefaultSize {
		require.NoError(t, o.TrySend(nil))
	}
	assert.ErrorIs(t, o.TrySend(nil), core.ErrBackpressure)
}

func TestOutbox_ConcurrentSendAndClose(t *testing.T) {
	o := outbox.New(8)
	var wg conc.WaitGroup
	for range 16 {
		wg.Go(func() {
			for range 100 {
				_ = o.TrySend(core.Payload("x"))
			}
		})
	}
	wg.Go(func() { o.Close() })
	wg.Wait()

	assert.ErrorIs(t, o.TrySend(core.Payload("x")), core.ErrClosed)
}
