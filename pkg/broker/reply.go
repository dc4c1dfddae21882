package broker

import (
	"sync"

	"go.uber.org/zap"

	"github.com/handoff-sh/handoff/pkg/metrics"
)

// ReplyRouter maps an escalation id to the single agent connection waiting
// for its resolution. Each registered channel receives exactly one response
// and is then closed; delivering to an id with no registered channel is a
// silent no-op (the agent may have disconnected).
type ReplyRouter struct {
	log *zap.SugaredLogger

	mu      sync.Mutex
	waiting map[string]chan string
}

func NewReplyRouter(log *zap.SugaredLogger) *ReplyRouter {
	return &ReplyRouter{
		log:     log,
		waiting: make(map[string]chan string),
	}
}

// Register opens the reply channel for an escalation id. At most one
// registration is active per id: registering again closes the stale channel
// and replaces it, so a reconnecting agent always supersedes the previous
// connection.
func (rr *ReplyRouter) Register(id string) <-chan string {
	ch := make(chan string, 1)

	rr.mu.Lock()
	if stale, ok := rr.waiting[id]; ok {
		close(stale)
		rr.log.Debugw("Replacing stale agent reply channel", "escalation", id)
	}
	rr.waiting[id] = ch
	rr.mu.Unlock()

	return ch
}

// Deliver pushes the response to the registered channel, if any, then closes
// it and releases the mapping. Returns whether a channel was registered.
// The channel is buffered so delivery never blocks the resolving operation.
func (rr *ReplyRouter) Deliver(id, response string) bool {
	rr.mu.Lock()
	ch, ok := rr.waiting[id]
	if ok {
		delete(rr.waiting, id)
		ch <- response
		close(ch)
	}
	rr.mu.Unlock()

	if ok {
		metrics.ReplyDelivered.Inc()
	} else {
		metrics.ReplyMissed.Inc()
		rr.log.Debugw("No agent reply channel registered, response not pushed", "escalation", id)
	}
	return ok
}

// Close releases the mapping for id and closes the channel without delivering
// anything. Used when the escalation is deleted or the agent disconnects.
func (rr *ReplyRouter) Close(id string) {
	rr.mu.Lock()
	if ch, ok := rr.waiting[id]; ok {
		delete(rr.waiting, id)
		close(ch)
	}
	rr.mu.Unlock()
}

// CloseIfCurrent releases the mapping only when ch is still the registered
// channel for id. A disconnect handler for a superseded agent connection must
// not tear down the replacement's registration.
func (rr *ReplyRouter) CloseIfCurrent(id string, ch <-chan string) {
	rr.mu.Lock()
	if cur, ok := rr.waiting[id]; ok && (<-chan string)(cur) == ch {
		delete(rr.waiting, id)
		close(cur)
	}
	rr.mu.Unlock()
}

// CloseAll closes every open reply channel. Called on broker shutdown.
func (rr *ReplyRouter) CloseAll() {
	rr.mu.Lock()
	for id, ch := range rr.waiting {
		delete(rr.waiting, id)
		close(ch)
	}
	rr.mu.Unlock()
}

// Waiting returns the number of open reply channels.
func (rr *ReplyRouter) Waiting() int {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return len(rr.waiting)
}
