// Package realtime is the in-process push hub: a registry of live client
// streams keyed by user, with fan-out, heartbeat keep-alive, and
// dead-connection pruning. Delivery is best-effort; the persisted store is
// the record the client will see on its next fetch regardless.
package realtime

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	EventConnected = "connected"
	EventHeartbeat = "heartbeat"

	// DefaultHeartbeatInterval paces the keep-alive that defeats
	// idle-connection timeouts in intermediary proxies. It carries no
	// payload semantics.
	DefaultHeartbeatInterval = 20 * time.Second
)

// Hub owns the subscription registry. Construct one at process start and
// inject it; there is no package-level instance.
type Hub struct {
	mu       sync.RWMutex
	subs     map[string]map[*Subscription]struct{}
	interval time.Duration
	eventID  atomic.Int64
}

func NewHub(heartbeatInterval time.Duration) *Hub {
	if heartbeatInterval <= 0 {
		heartbeatInterval = DefaultHeartbeatInterval
	}
	return &Hub{
		subs:     make(map[string]map[*Subscription]struct{}),
		interval: heartbeatInterval,
	}
}

// Subscribe opens a new live stream for the user and immediately queues the
// connected acknowledgment. The caller must Unsubscribe (or Close the
// subscription) when the transport ends.
func (h *Hub) Subscribe(userID string) *Subscription {
	sub := newSubscription(userID)

	h.mu.Lock()
	set := h.subs[userID]
	if set == nil {
		set = make(map[*Subscription]struct{})
		h.subs[userID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	sub.push(Event{ID: h.nextEventID(), Name: EventConnected, Payload: "ok"})

	// self-removal on whatever path closed the stream
	go func() {
		<-sub.done
		h.remove(sub)
	}()

	logrus.WithField("user_id", userID).Debug("live stream subscribed")
	return sub
}

// Unsubscribe closes the subscription and removes it from the registry.
// Double removal is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	sub.Close()
	h.remove(sub)
}

// Publish fans an event out to every live subscription of the user.
// Publishing to a user with no subscriptions is a no-op. Subscriptions whose
// write fails are pruned after the fan-out loop; the registry is never
// mutated while being iterated.
func (h *Hub) Publish(userID, event string, payload interface{}) {
	targets := h.snapshot(userID)
	if len(targets) == 0 {
		return
	}

	ev := Event{ID: h.nextEventID(), Name: event, Payload: payload}
	var dead []*Subscription
	for _, sub := range targets {
		if !sub.push(ev) {
			dead = append(dead, sub)
		}
	}
	h.prune(dead)
}

// PublishToMany is a convenience fan-out with no atomicity across
// recipients.
func (h *Hub) PublishToMany(userIDs []string, event string, payload interface{}) {
	for _, userID := range userIDs {
		h.Publish(userID, event, payload)
	}
}

// Run drives the heartbeat until the context is canceled. Start it once,
// in its own goroutine, alongside the HTTP server.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.heartbeat()
		}
	}
}

// SubscriberCount reports how many live subscriptions the user holds.
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// heartbeat pings every live subscription, pruning the dead ones the same
// way Publish does.
func (h *Hub) heartbeat() {
	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.subs))
	for _, set := range h.subs {
		for sub := range set {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	ev := Event{ID: h.nextEventID(), Name: EventHeartbeat, Payload: "ping"}
	var dead []*Subscription
	for _, sub := range targets {
		if !sub.push(ev) {
			dead = append(dead, sub)
		}
	}
	h.prune(dead)
}

func (h *Hub) snapshot(userID string) []*Subscription {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.subs[userID]
	if len(set) == 0 {
		return nil
	}
	targets := make([]*Subscription, 0, len(set))
	for sub := range set {
		targets = append(targets, sub)
	}
	return targets
}

func (h *Hub) prune(dead []*Subscription) {
	for _, sub := range dead {
		sub.Close()
		h.remove(sub)
		logrus.WithField("user_id", sub.UserID).Debug("pruned dead live stream")
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sub.UserID]
	if set == nil {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.UserID)
	}
}

func (h *Hub) nextEventID() string {
	return strconv.FormatInt(h.eventID.Add(1), 10)
}
