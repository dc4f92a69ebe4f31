package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub(t *testing.T) {
	t.Run("delivers only to the matching topic", func(t *testing.T) {
		h := NewHub()
		a, cancelA := h.Subscribe("tenant-a")
		defer cancelA()
		b, cancelB := h.Subscribe("tenant-b")
		defer cancelB()

		h.Publish("tenant-a", Event{Type: EventDrawStarted})

		select {
		case ev := <-a:
			assert.Equal(t, EventDrawStarted, ev.Type)
		default:
			t.Fatal("expected an event on tenant-a")
		}
		select {
		case ev := <-b:
			t.Fatalf("unexpected event on tenant-b: %+v", ev)
		default:
		}
	})

	t.Run("unsubscribe closes the channel and is idempotent", func(t *testing.T) {
		h := NewHub()
		ch, cancel := h.Subscribe("tenant")
		require.Equal(t, 1, h.Subscribers("tenant"))

		cancel()
		cancel()

		_, open := <-ch
		assert.False(t, open)
		assert.Equal(t, 0, h.Subscribers("tenant"))
		h.Publish("tenant", Event{Type: EventDrawCompleted})
	})

	t.Run("slow subscribers do not block publishers", func(t *testing.T) {
		h := NewHub()
		ch, cancel := h.Subscribe("tenant")
		defer cancel()

		for i := 0; i < subscriberBuffer*2; i++ {
			h.Publish("tenant", Event{Type: EventDrawCompleted, Data: i})
		}
		assert.Len(t, ch, subscriberBuffer)
	})
}
