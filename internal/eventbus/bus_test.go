package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()

	id, ch := bus.Subscribe(4)
	defer bus.Unsubscribe(id)

	bus.PublishNew(MessageSent, "m1", map[string]string{"from": "a1"})

	select {
	case event := <-ch:
		assert.Equal(t, MessageSent, event.Type)
		assert.Equal(t, "m1", event.ResourceID)
		assert.Equal(t, "a1", event.Metadata["from"])
		assert.NotEmpty(t, event.ID)
	case <-time.After(time.Second):
		t.Fatal("expected an event")
	}
}

func TestBusDropsOnFullBuffer(t *testing.T) {
	bus := New()

	id, ch := bus.Subscribe(1)
	defer bus.Unsubscribe(id)

	// Second publish finds the buffer full and must not block.
	done := make(chan struct{})
	go func() {
		bus.PublishNew(TaskCreated, "t1", nil)
		bus.PublishNew(TaskCreated, "t2", nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	event := <-ch
	require.Equal(t, "t1", event.ResourceID)
	select {
	case extra := <-ch:
		t.Fatalf("expected the second event to be dropped, got %v", extra)
	default:
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := New()

	id, ch := bus.Subscribe(1)
	bus.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)

	// Publishing after unsubscribe reaches nobody and must not panic.
	bus.PublishNew(AgentOffline, "a1", nil)
}
