package hub

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const channelPrefix = "user_notifications:"

// Relay bridges notification publishes across processes through Redis
// pub/sub. Every process publishes to a per-user channel and feeds its own
// local hub from a pattern subscription, so a notification created on one
// instance reaches streams held open on another.
type Relay struct {
	rdb *redis.Client
	hub *Hub
}

func NewRelay(rdb *redis.Client, h *Hub) *Relay {
	return &Relay{rdb: rdb, hub: h}
}

// Publish sends payload to the user's Redis channel. Local delivery happens
// when Run receives the message back.
func (r *Relay) Publish(ctx context.Context, userID uuid.UUID, payload []byte) error {
	return r.rdb.Publish(ctx, channelPrefix+userID.String(), payload).Err()
}

// Run subscribes to all user channels and pushes received payloads into the
// local hub. It blocks until ctx is canceled; callers run it in a goroutine.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	// Wait for confirmation that subscription is created
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("relay: subscribe failed: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			userID, err := uuid.Parse(strings.TrimPrefix(msg.Channel, channelPrefix))
			if err != nil {
				log.Printf("relay: ignoring message on malformed channel %q", msg.Channel)
				continue
			}
			r.hub.Publish(userID, []byte(msg.Payload))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
