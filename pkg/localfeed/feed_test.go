package localfeed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAssignsIDAndUnreadState(t *testing.T) {
	t.Parallel()

	feed := New(NewMemStorage())
	item := feed.Add(Item{Title: "Position liquidated", Message: "ETH vault", Type: "warning"})

	assert.NotEmpty(t, item.ID)
	assert.False(t, item.Read)
	assert.Nil(t, item.ReadAt)
	assert.False(t, item.CreatedAt.IsZero())
	assert.Equal(t, 1, feed.Unread())
}

func TestNewestFirst(t *testing.T) {
	t.Parallel()

	feed := New(NewMemStorage())
	feed.Add(Item{Title: "older", Message: "m", Type: "info"})
	newest := feed.Add(Item{Title: "newer", Message: "m", Type: "info"})

	items := feed.Items()
	require.Len(t, items, 2)
	assert.Equal(t, newest.ID, items[0].ID)
}

func TestRoundTripThroughStorage(t *testing.T) {
	t.Parallel()

	store := NewMemStorage()
	feed := New(store)
	a := feed.Add(Item{Title: "a", Message: "m", Type: "info", Persistent: true})
	b := feed.Add(Item{Title: "b", Message: "m", Type: "error"})
	feed.MarkRead(a.ID)

	// A fresh feed over the same storage must reproduce ids, read flags
	// and timestamps.
	restored := New(store)
	items := restored.Items()
	require.Len(t, items, 2)

	byID := map[string]Item{items[0].ID: items[0], items[1].ID: items[1]}
	require.Contains(t, byID, a.ID)
	require.Contains(t, byID, b.ID)

	assert.True(t, byID[a.ID].Read)
	assert.NotNil(t, byID[a.ID].ReadAt)
	assert.False(t, byID[b.ID].Read)
	assert.True(t, byID[a.ID].CreatedAt.Equal(a.CreatedAt))
	assert.Equal(t, 1, restored.Unread())
}

func TestCorruptCacheFallsBackToEmpty(t *testing.T) {
	t.Parallel()

	store := NewMemStorage()
	require.NoError(t, store.Set(StorageKey, "{not json"))

	feed := New(store)
	assert.Empty(t, feed.Items())

	// The feed must still be usable afterwards.
	feed.Add(Item{Title: "fresh", Message: "m", Type: "info"})
	assert.Len(t, feed.Items(), 1)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	t.Parallel()

	feed := New(NewMemStorage())
	item := feed.Add(Item{Title: "t", Message: "m", Type: "info"})

	require.True(t, feed.MarkRead(item.ID))
	first := feed.Items()[0].ReadAt
	require.NotNil(t, first)

	time.Sleep(5 * time.Millisecond)
	require.True(t, feed.MarkRead(item.ID))
	assert.True(t, feed.Items()[0].ReadAt.Equal(*first), "second MarkRead must not move ReadAt")

	assert.False(t, feed.MarkRead("no-such-id"))
}

func TestMarkAllReadCountsOnlyFlipped(t *testing.T) {
	t.Parallel()

	feed := New(NewMemStorage())
	feed.Add(Item{Title: "a", Message: "m", Type: "info"})
	read := feed.Add(Item{Title: "b", Message: "m", Type: "info"})
	feed.MarkRead(read.ID)

	assert.Equal(t, 1, feed.MarkAllRead())
	assert.Equal(t, 0, feed.Unread())
	assert.Equal(t, 0, feed.MarkAllRead())
}

func TestClearKeepsPersistentItems(t *testing.T) {
	t.Parallel()

	feed := New(NewMemStorage())
	pinned := feed.Add(Item{Title: "pinned", Message: "m", Type: "system", Persistent: true})
	feed.Add(Item{Title: "ephemeral", Message: "m", Type: "info"})
	feed.Add(Item{Title: "another", Message: "m", Type: "info"})

	assert.Equal(t, 2, feed.Clear())

	items := feed.Items()
	require.Len(t, items, 1)
	assert.Equal(t, pinned.ID, items[0].ID)
}

func TestMergeReplacesAndInserts(t *testing.T) {
	t.Parallel()

	feed := New(NewMemStorage())
	local := feed.Add(Item{Title: "local", Message: "m", Type: "info"})

	serverCopy := local
	serverCopy.Read = true
	now := time.Now().UTC()
	serverCopy.ReadAt = &now

	feed.Merge([]Item{
		serverCopy,
		{ID: "srv-1", Title: "from server", Message: "m", Type: "success", CreatedAt: now.Add(time.Minute)},
	})

	items := feed.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "srv-1", items[0].ID, "newest first after merge")
	assert.True(t, items[1].Read, "server copy replaced the local one")
}

func TestFileStorageRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	_, ok, err := store.Get(StorageKey)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(StorageKey, `[{"id":"x"}]`))
	value, ok, err := store.Get(StorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"id":"x"}]`, value)

	require.NoError(t, store.Delete(StorageKey))
	require.NoError(t, store.Delete(StorageKey)) // deleting a missing key is fine
}
