package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDelivers(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(Progress{Name: FNamePoolProgress, CurrentChunk: 1, TotalChunks: 3})
	bus.Publish(Progress{Name: FNamePoolProgress, CurrentChunk: 2, TotalChunks: 3})

	ev := <-ch
	assert.Equal(t, 1, ev.CurrentChunk)
	ev = <-ch
	assert.Equal(t, 2, ev.CurrentChunk)
}

func TestBusMultipleSubscribers(t *testing.T) {
	bus := NewBus()
	ch1, cancel1 := bus.Subscribe()
	defer cancel1()
	ch2, cancel2 := bus.Subscribe()
	defer cancel2()

	bus.Publish(Progress{Name: GUObjectArrayProgress, CurrentChunk: 1})

	assert.Equal(t, 1, (<-ch1).CurrentChunk)
	assert.Equal(t, 1, (<-ch2).CurrentChunk)
}

// A full subscriber loses the oldest events; the producer never blocks
// and the newest event always lands.
func TestBusDropOldest(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	total := subscriberBuffer + 16
	for i := 1; i <= total; i++ {
		bus.Publish(Progress{CurrentChunk: i})
	}

	var last int
	for {
		select {
		case ev := <-ch:
			last = ev.CurrentChunk
			continue
		default:
		}
		break
	}
	require.Equal(t, total, last)
}

func TestBusCancelClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel must not panic.
	bus.Publish(Progress{CurrentChunk: 1})
}
