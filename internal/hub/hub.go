// Package hub is the in-process delivery channel registry: it maps a user ID
// to the set of that user's open streaming connections and fans new
// notification payloads out to all of them. Registrations are ephemeral; a
// process restart drops every live connection and clients reconnect.
package hub

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

const defaultBuffer = 16

// Subscriber is one open streaming connection (SSE or WebSocket).
type Subscriber struct {
	userID uuid.UUID
	ch     chan []byte
}

// C returns the channel the connection handler reads payloads from. It is
// closed by Unsubscribe.
func (s *Subscriber) C() <-chan []byte {
	return s.ch
}

func (s *Subscriber) UserID() uuid.UUID {
	return s.userID
}

type Hub struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]map[*Subscriber]struct{}
	buffer int
}

func New(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		subs:   make(map[uuid.UUID]map[*Subscriber]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a new connection for userID. The caller must
// Unsubscribe when the connection closes.
func (h *Hub) Subscribe(userID uuid.UUID) *Subscriber {
	sub := &Subscriber{
		userID: userID,
		ch:     make(chan []byte, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subs[userID] = set
	}
	set[sub] = struct{}{}

	return sub
}

// Unsubscribe removes the connection from the registry and closes its
// channel. The user's entry is dropped entirely when the last connection
// goes away. Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[sub.userID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}

	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.userID)
	}
	close(sub.ch)
}

// Publish enqueues payload on every open connection for userID and returns
// how many received it. Zero subscribers is a no-op: there is no backlog, a
// client that connects later catches up via the list endpoint. A full queue
// means the client is too slow; the event is dropped for that connection
// only and the rest still receive it.
//
// Publishes are serialized under the hub lock, so every connection of a
// user observes events in the same order the creating requests completed.
func (h *Hub) Publish(userID uuid.UUID, payload []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for sub := range h.subs[userID] {
		select {
		case sub.ch <- payload:
			delivered++
		default:
			log.Printf("hub: dropping event for slow subscriber of user %s", userID)
		}
	}

	return delivered
}

// Connections reports the number of open streams for userID.
func (h *Hub) Connections(userID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}
