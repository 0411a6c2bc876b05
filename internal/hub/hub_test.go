package hub

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscriber) []byte {
	t.Helper()
	select {
	case payload, ok := <-sub.C():
		require.True(t, ok, "subscriber channel closed unexpectedly")
		return payload
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for payload")
		return nil
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	t.Parallel()

	h := New(4)
	userID := uuid.New()

	// Must not panic and must not buffer for later delivery.
	assert.Equal(t, 0, h.Publish(userID, []byte(`{"id":"x"}`)))

	sub := h.Subscribe(userID)
	defer h.Unsubscribe(sub)

	select {
	case payload := <-sub.C():
		t.Fatalf("late subscriber received buffered event: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishFansOutToAllStreams(t *testing.T) {
	t.Parallel()

	h := New(4)
	userID := uuid.New()

	first := h.Subscribe(userID)
	second := h.Subscribe(userID)
	defer h.Unsubscribe(first)
	defer h.Unsubscribe(second)

	assert.Equal(t, 2, h.Publish(userID, []byte("payload")))
	assert.Equal(t, "payload", string(receive(t, first)))
	assert.Equal(t, "payload", string(receive(t, second)))
}

func TestPublishIsScopedToUser(t *testing.T) {
	t.Parallel()

	h := New(4)
	alice := h.Subscribe(uuid.New())
	defer h.Unsubscribe(alice)

	assert.Equal(t, 0, h.Publish(uuid.New(), []byte("for someone else")))

	select {
	case payload := <-alice.C():
		t.Fatalf("received another user's event: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClosingOneStreamKeepsTheOtherAlive(t *testing.T) {
	t.Parallel()

	h := New(4)
	userID := uuid.New()

	first := h.Subscribe(userID)
	second := h.Subscribe(userID)
	h.Unsubscribe(first)

	assert.Equal(t, 1, h.Connections(userID))
	assert.Equal(t, 1, h.Publish(userID, []byte("still here")))
	assert.Equal(t, "still here", string(receive(t, second)))

	h.Unsubscribe(second)
	assert.Equal(t, 0, h.Connections(userID))
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	t.Parallel()

	h := New(4)
	sub := h.Subscribe(uuid.New())

	h.Unsubscribe(sub)
	h.Unsubscribe(sub) // second call must not panic on a closed channel

	_, ok := <-sub.C()
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestPerUserOrdering(t *testing.T) {
	t.Parallel()

	h := New(8)
	userID := uuid.New()
	sub := h.Subscribe(userID)
	defer h.Unsubscribe(sub)

	payloads := []string{"first", "second", "third"}
	for _, p := range payloads {
		h.Publish(userID, []byte(p))
	}
	for _, want := range payloads {
		assert.Equal(t, want, string(receive(t, sub)))
	}
}

func TestSlowSubscriberLosesEventsOthersDoNot(t *testing.T) {
	t.Parallel()

	h := New(1)
	userID := uuid.New()

	slow := h.Subscribe(userID)
	fast := h.Subscribe(userID)
	defer h.Unsubscribe(slow)
	defer h.Unsubscribe(fast)

	// Fill slow's one-slot queue, then publish again without draining it.
	assert.Equal(t, 2, h.Publish(userID, []byte("one")))
	receive(t, fast)

	// slow still holds "one"; the second publish drops for it but reaches fast.
	assert.Equal(t, 1, h.Publish(userID, []byte("two")))
	assert.Equal(t, "two", string(receive(t, fast)))
	assert.Equal(t, "one", string(receive(t, slow)))
}
