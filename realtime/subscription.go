package realtime

import "sync"

const subscriptionBuffer = 32

// Event is one unit pushed to a live client stream.
type Event struct {
	ID      string      `json:"id"`
	Name    string      `json:"event"`
	Payload interface{} `json:"data"`
}

// Subscription is one live client stream for one user. A user may hold any
// number of concurrent subscriptions (multiple devices or tabs). A
// subscription is open until Close; closing is terminal and idempotent.
type Subscription struct {
	UserID string

	events chan Event
	done   chan struct{}
	once   sync.Once
}

func newSubscription(userID string) *Subscription {
	return &Subscription{
		UserID: userID,
		events: make(chan Event, subscriptionBuffer),
		done:   make(chan struct{}),
	}
}

// Events is the stream the transport handler drains.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Done is closed when the subscription will deliver no further events.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close marks the subscription dead. Safe to call any number of times from
// any goroutine.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// push attempts non-blocking delivery. It reports false when the
// subscription is closed or the client has fallen too far behind, which the
// hub treats as a write failure and prunes.
func (s *Subscription) push(ev Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	default:
		return false
	}
}
