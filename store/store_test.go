package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidTransition(t *testing.T) {
	cases := []struct {
		name string
		from string
		to   string
		ok   bool
	}{
		{"request to approval", StatusRequest, StatusApproval, true},
		{"approval to completed", StatusApproval, StatusCompleted, true},
		{"request to completed", StatusRequest, StatusCompleted, true},
		{"same status", StatusApproval, StatusApproval, true},
		{"approval back to request", StatusApproval, StatusRequest, false},
		{"completed back to approval", StatusCompleted, StatusApproval, false},
		{"unknown from", "bogus", StatusApproval, false},
		{"unknown to", StatusRequest, "bogus", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.ok, ValidTransition(c.from, c.to))
		})
	}
}

func TestHub(t *testing.T) {
	t.Run("fan out to queue subscribers", func(t *testing.T) {
		hub := NewHub()
		pendingCh, cancelPending := hub.Subscribe(QueuePending)
		defer cancelPending()
		completedCh, cancelCompleted := hub.Subscribe(QueueCompleted)
		defer cancelCompleted()

		hub.Publish(Change{Queue: QueuePending, Event: &Event{ID: "a"}})

		select {
		case c := <-pendingCh:
			require.Equal(t, "a", c.Event.ID)
			require.False(t, c.Removed)
		case <-time.After(time.Second):
			t.Fatal("pending subscriber saw nothing")
		}
		select {
		case c := <-completedCh:
			t.Fatalf("completed subscriber saw change for %s", c.Queue)
		default:
		}
	})

	t.Run("cancel closes the channel", func(t *testing.T) {
		hub := NewHub()
		ch, cancel := hub.Subscribe(QueuePending)
		cancel()
		_, ok := <-ch
		require.False(t, ok)
		// second cancel is a no-op
		cancel()
	})

	t.Run("slow subscriber never blocks publish", func(t *testing.T) {
		hub := NewHub()
		_, cancel := hub.Subscribe(QueuePending)
		defer cancel()
		for i := 0; i < 100; i++ {
			hub.Publish(Change{Queue: QueuePending, Event: &Event{ID: "x"}})
		}
	})
}
