// Package localfeed is the client-side notification cache: an ordered,
// reducer-style store mirrored to a Storage adapter after every mutation,
// so the UI has a list to show before the first server round-trip. It is
// eventually consistent with the server; the last write observed wins.
package localfeed

import (
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StorageKey is the fixed key the serialized list lives under.
const StorageKey = "riskpulse:notifications"

// Item is the cached shape of a notification.
type Item struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Type       string         `json:"type"`
	Priority   string         `json:"priority,omitempty"`
	Category   string         `json:"category,omitempty"`
	Read       bool           `json:"read"`
	ReadAt     *time.Time     `json:"read_at,omitempty"`
	Link       string         `json:"link,omitempty"`
	Persistent bool           `json:"persistent"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

type Feed struct {
	mu    sync.Mutex
	items []Item
	store Storage
}

// New hydrates a Feed from store. A corrupt or unreadable mirror is not
// fatal: the feed starts empty and logs a warning, matching what a UI
// would do rather than crashing on bad cached state.
func New(store Storage) *Feed {
	f := &Feed{store: store}

	raw, ok, err := store.Get(StorageKey)
	if err != nil {
		log.Printf("localfeed: failed to read cache: %v", err)
		return f
	}
	if !ok {
		return f
	}

	if err := json.Unmarshal([]byte(raw), &f.items); err != nil {
		log.Printf("localfeed: discarding unparseable cache: %v", err)
		f.items = nil
	}

	return f
}

// Add constructs a complete item from a partial one (assigns an id, marks
// it unread, stamps creation time), prepends it, and persists. It never
// contacts a server; use it for client-originated notices.
func (f *Feed) Add(item Item) Item {
	f.mu.Lock()
	defer f.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.Read = false
	item.ReadAt = nil
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	f.items = append([]Item{item}, f.items...)
	f.persist()
	return item
}

// Merge reconciles a server fetch into the cache: items with a known id
// replace the cached copy, unknown ones are inserted, and the list is
// re-sorted newest first.
func (f *Feed) Merge(incoming []Item) {
	f.mu.Lock()
	defer f.mu.Unlock()

	byID := make(map[string]int, len(f.items))
	for i, item := range f.items {
		byID[item.ID] = i
	}

	for _, item := range incoming {
		if i, ok := byID[item.ID]; ok {
			f.items[i] = item
		} else {
			f.items = append(f.items, item)
		}
	}

	sort.SliceStable(f.items, func(i, j int) bool {
		return f.items[i].CreatedAt.After(f.items[j].CreatedAt)
	})
	f.persist()
}

// MarkRead flips one item locally. Callers pair it with the server call;
// the feed itself performs no sync.
func (f *Feed) MarkRead(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.items {
		if f.items[i].ID != id {
			continue
		}
		if !f.items[i].Read {
			now := time.Now().UTC()
			f.items[i].Read = true
			f.items[i].ReadAt = &now
			f.persist()
		}
		return true
	}
	return false
}

func (f *Feed) MarkAllRead() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().UTC()
	flipped := 0
	for i := range f.items {
		if f.items[i].Read {
			continue
		}
		f.items[i].Read = true
		f.items[i].ReadAt = &now
		flipped++
	}
	if flipped > 0 {
		f.persist()
	}
	return flipped
}

func (f *Feed) Remove(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.items {
		if f.items[i].ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			f.persist()
			return true
		}
	}
	return false
}

// Clear drops every non-persistent item and reports how many went away.
func (f *Feed) Clear() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	kept := f.items[:0]
	removed := 0
	for _, item := range f.items {
		if item.Persistent {
			kept = append(kept, item)
		} else {
			removed++
		}
	}
	f.items = kept
	if removed > 0 {
		f.persist()
	}
	return removed
}

// Unread is derived, never stored.
func (f *Feed) Unread() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, item := range f.items {
		if !item.Read {
			count++
		}
	}
	return count
}

// Items returns a snapshot copy, newest first.
func (f *Feed) Items() []Item {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Item, len(f.items))
	copy(out, f.items)
	return out
}

// persist serializes the whole list. Callers hold f.mu.
func (f *Feed) persist() {
	data, err := json.Marshal(f.items)
	if err != nil {
		log.Printf("localfeed: failed to serialize cache: %v", err)
		return
	}
	if err := f.store.Set(StorageKey, string(data)); err != nil {
		log.Printf("localfeed: failed to write cache: %v", err)
	}
}
