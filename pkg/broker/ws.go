package broker

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/handoff-sh/handoff/pkg/apiresponses"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The broker fronts trusted agent processes and the operator console;
	// origin checks belong to the deployment's ingress.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn serializes writes to a websocket connection. Events and pong frames
// originate from different goroutines and gorilla permits one writer at a
// time.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) writeEvent(ev Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return w.conn.WriteJSON(ev)
}

func (w *wsConn) close() {
	_ = w.conn.Close()
}

// handleOperatorStream upgrades an operator connection and streams the
// initial_state snapshot followed by live lifecycle events until disconnect.
func (ec *EscalationController) handleOperatorStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ec.log.Warnw("Failed to upgrade operator stream", "error", err)
		return
	}

	sub := ec.broker.SubscribeOperator()
	wc := &wsConn{conn: conn}
	done := make(chan struct{})

	// Read pump: answers pings, detects disconnect.
	go func() {
		defer close(done)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			ec.answerPing(wc, payload)
		}
	}()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				// dropped by the hub (buffer overrun)
				wc.close()
				<-done
				return
			}
			if err := wc.writeEvent(ev); err != nil {
				ec.log.Debugw("Operator stream write failed, dropping subscriber",
					"subscriber", sub.ID(), "error", err)
				ec.broker.UnsubscribeOperator(sub)
				wc.close()
				<-done
				return
			}
		case <-done:
			ec.broker.UnsubscribeOperator(sub)
			wc.close()
			return
		}
	}
}

// handleAgentStream upgrades the per-escalation agent connection, delivers
// exactly one response_received event when the escalation is resolved, then
// closes the stream.
func (ec *EscalationController) handleAgentStream(c *gin.Context) {
	id := c.Param("id")

	if _, err := ec.broker.Get(id); errors.Is(err, ErrNotFound) {
		apiresponses.RespondNotFound(c, "escalation", id)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ec.log.Warnw("Failed to upgrade agent stream", "escalation", id, "error", err)
		return
	}

	ch, err := ec.broker.RegisterAgentChannel(id)
	if err != nil {
		// deleted between the existence check and registration
		_ = conn.Close()
		return
	}

	wc := &wsConn{conn: conn}
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			ec.answerPing(wc, payload)
		}
	}()

	select {
	case response, ok := <-ch:
		if ok {
			if err := wc.writeEvent(Event{Type: EventResponseReceived, ID: id, Response: response}); err != nil {
				ec.log.Warnw("Failed to push response to agent", "escalation", id, "error", err)
			}
		}
		// Channel closed without a value means the escalation was deleted or
		// the registration superseded; either way the stream ends here.
		wc.close()
		<-done
	case <-done:
		ec.broker.CloseAgentChannel(id, ch)
		wc.close()
	}
}

// answerPing replies with a pong frame when payload is a ping event; any
// other inbound frame is ignored.
func (ec *EscalationController) answerPing(wc *wsConn, payload []byte) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return
	}
	if ev.Type != EventPing {
		return
	}
	if err := wc.writeEvent(Event{Type: EventPong}); err != nil {
		ec.log.Debugw("Failed to answer ping", "error", err)
	}
}
