// Package notifier fans seat-status deltas out to the observers of a
// session.  Delivery is best-effort and at-most-once: nothing is
// persisted, a slow observer loses messages, and a (re)connecting
// observer must re-fetch current state to resynchronize.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-seat-reservation/internal/booking"
)

// subscriberBuffer bounds how far an observer may lag before deltas
// are dropped for it.
const subscriberBuffer = 16

// Delta is one seat-status change as delivered to observers.
type Delta struct {
	SeatID uint64 `json:"seat_id"`
	Status string `json:"status"`
}

// Subscription is an observer's handle on a session's delta stream.
// Receive from C until done, then pass the subscription back to
// Unsubscribe.
type Subscription struct {
	C         chan Delta
	sessionID uint64
}

// Registry keeps the per-session subscriber sets and performs the
// fanout.  When a Redis client is supplied, deltas travel through
// Redis Pub/Sub so that observers connected to other replicas see them
// too; without Redis the registry degrades to in-process fanout.
type Registry struct {
	mu   sync.RWMutex
	subs map[uint64]map[*Subscription]struct{}
	rdb  *redis.Client
}

// New constructs a Registry.  rdb may be nil.
func New(rdb *redis.Client) *Registry {
	return &Registry{
		subs: make(map[uint64]map[*Subscription]struct{}),
		rdb:  rdb,
	}
}

// Subscribe registers an observer for one session and returns its
// subscription handle.
func (n *Registry) Subscribe(sessionID uint64) *Subscription {
	sub := &Subscription{
		C:         make(chan Delta, subscriberBuffer),
		sessionID: sessionID,
	}
	n.mu.Lock()
	set, ok := n.subs[sessionID]
	if !ok {
		set = make(map[*Subscription]struct{})
		n.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	n.mu.Unlock()
	return sub
}

// Unsubscribe tears the observer down.  Safe to call more than once;
// no subscriber state survives a reconnect.
func (n *Registry) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	n.mu.Lock()
	if set, ok := n.subs[sub.sessionID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(n.subs, sub.sessionID)
		}
	}
	n.mu.Unlock()
}

// Publish broadcasts one seat delta to the session's observers.
// Implements booking.Notifier.  With Redis configured the delta is
// published to the session channel and delivered locally by the relay
// loop; publish failures fall back to local fanout so a broker outage
// degrades rather than silences this instance.
func (n *Registry) Publish(sessionID, seatID uint64, status booking.SeatStatus) {
	d := Delta{SeatID: seatID, Status: string(status)}
	if n.rdb != nil {
		payload, err := json.Marshal(d)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			err = n.rdb.Publish(ctx, sessionChannel(sessionID), payload).Err()
			cancel()
			if err == nil {
				return
			}
		}
		log.Printf("notifier: redis publish failed, delivering locally: %v", err)
	}
	n.deliver(sessionID, d)
}

// Run relays deltas published by any replica into the local subscriber
// sets.  Blocks until ctx is cancelled; call in a goroutine when Redis
// is configured.
func (n *Registry) Run(ctx context.Context) {
	if n.rdb == nil {
		return
	}
	pubsub := n.rdb.PSubscribe(ctx, sessionChannelPattern)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var sessionID uint64
			if _, err := fmt.Sscanf(msg.Channel, sessionChannelFormat, &sessionID); err != nil {
				continue
			}
			var d Delta
			if err := json.Unmarshal([]byte(msg.Payload), &d); err != nil {
				log.Printf("notifier: bad delta payload on %s: %v", msg.Channel, err)
				continue
			}
			n.deliver(sessionID, d)
		}
	}
}

// deliver fans out to local subscribers without blocking: a full
// buffer means the observer is too slow and the delta is dropped for
// it.
func (n *Registry) deliver(sessionID uint64, d Delta) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for sub := range n.subs[sessionID] {
		select {
		case sub.C <- d:
		default:
		}
	}
}

const (
	sessionChannelFormat  = "session.%d.seats"
	sessionChannelPattern = "session.*.seats"
)

func sessionChannel(sessionID uint64) string {
	return fmt.Sprintf(sessionChannelFormat, sessionID)
}
