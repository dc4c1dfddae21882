package broker

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/handoff-sh/handoff/pkg/escalation"
	"github.com/handoff-sh/handoff/pkg/metrics"
)

// subscriberBuffer is the per-subscriber event buffer. A subscriber that
// falls this far behind is dropped rather than allowed to block broadcast.
const subscriberBuffer = 32

// Subscriber is one connected operator client. Events arrive on the channel
// returned by Events; the channel is closed when the subscriber is dropped or
// unsubscribed.
type Subscriber struct {
	id     uuid.UUID
	events chan Event
}

func (s *Subscriber) ID() uuid.UUID        { return s.id }
func (s *Subscriber) Events() <-chan Event { return s.events }

// Hub fans lifecycle events out to all connected operator subscribers.
// Delivery is best-effort per subscriber: one slow or dead subscriber never
// blocks or drops delivery to the others.
type Hub struct {
	log *zap.SugaredLogger

	mu   sync.Mutex
	subs map[uuid.UUID]*Subscriber
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		log:  log,
		subs: make(map[uuid.UUID]*Subscriber),
	}
}

// Subscribe registers a new subscriber. The snapshot function is invoked
// under the hub lock and its result delivered as the subscriber's first
// event, so no lifecycle event broadcast after registration can precede the
// initial_state frame.
func (h *Hub) Subscribe(snapshot func() []*escalation.Record) *Subscriber {
	sub := &Subscriber{
		id:     uuid.New(),
		events: make(chan Event, subscriberBuffer),
	}

	h.mu.Lock()
	sub.events <- Event{Type: EventInitialState, Escalations: snapshot()}
	h.subs[sub.id] = sub
	h.mu.Unlock()

	metrics.OperatorSubscribers.Inc()
	h.log.Debugw("Operator subscribed", "subscriber", sub.id)
	return sub
}

// Unsubscribe removes a subscriber and closes its event channel. Safe to call
// for an already-removed subscriber.
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(sub.events)
	}
	h.mu.Unlock()

	if ok {
		metrics.OperatorSubscribers.Dec()
		h.log.Debugw("Operator unsubscribed", "subscriber", id)
	}
}

// Broadcast delivers ev to every subscriber. A subscriber whose buffer is
// full is dropped and its channel closed; the broadcast continues to the
// remaining subscribers.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	var dropped []uuid.UUID
	for id, sub := range h.subs {
		select {
		case sub.events <- ev:
		default:
			delete(h.subs, id)
			close(sub.events)
			dropped = append(dropped, id)
		}
	}
	h.mu.Unlock()

	for _, id := range dropped {
		metrics.OperatorSubscribers.Dec()
		metrics.BroadcastDropped.Inc()
		h.log.Warnw("Dropping operator subscriber, event buffer full", "subscriber", id, "event", ev.Type)
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
