package client

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/handoff-sh/handoff/pkg/broker"
)

const pingInterval = 30 * time.Second

// ErrStreamClosed is returned when a stream ends before delivering the
// awaited event.
var ErrStreamClosed = errors.New("stream closed")

// Stream is a live event feed from the broker. Events are delivered on
// Events() until the connection ends; the channel is then closed.
type Stream struct {
	conn      *websocket.Conn
	events    chan broker.Event
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// OperatorStream subscribes to the operator fan-out feed: an initial_state
// snapshot followed by lifecycle events for every escalation.
func (c *Client) OperatorStream(ctx context.Context) (*Stream, error) {
	return c.dialStream(ctx, "/api/escalation/ws")
}

// ReplyStream opens the per-escalation agent feed. It delivers at most one
// response_received event and then ends.
func (c *Client) ReplyStream(ctx context.Context, id string) (*Stream, error) {
	return c.dialStream(ctx, "/api/escalation/"+id+"/reply")
}

func (c *Client) dialStream(ctx context.Context, path string) (*Stream, error) {
	wsURL := *c.baseURL
	switch wsURL.Scheme {
	case "http":
		wsURL.Scheme = "ws"
	case "https":
		wsURL.Scheme = "wss"
	}
	wsURL.Path = path

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		TLSClientConfig:  c.tlsConfig,
	}
	header := http.Header{"User-Agent": []string{c.userAgent}}
	conn, resp, err := dialer.DialContext(ctx, wsURL.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, &HTTPError{StatusCode: resp.StatusCode, Message: "not found"}
		}
		return nil, errors.Wrapf(err, "failed to dial %s", wsURL.String())
	}

	s := &Stream{
		conn:   conn,
		events: make(chan broker.Event, 16),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	go s.pingLoop()
	return s, nil
}

func (s *Stream) readLoop() {
	defer close(s.events)
	for {
		var ev broker.Event
		if err := s.conn.ReadJSON(&ev); err != nil {
			return
		}
		if ev.Type == broker.EventPong {
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

// pingLoop keeps idle connections alive through intermediaries that cut
// silent streams.
func (s *Stream) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteJSON(broker.Event{Type: broker.EventPing})
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// Events returns the event feed. The channel closes when the stream ends.
func (s *Stream) Events() <-chan broker.Event {
	return s.events
}

// Close tears the connection down. Safe to call more than once.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// AwaitResponse blocks until a response_received event arrives, the stream
// ends, or ctx is done. Used on reply streams where at most one response
// will ever be delivered.
func (s *Stream) AwaitResponse(ctx context.Context) (string, error) {
	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				return "", ErrStreamClosed
			}
			if ev.Type == broker.EventResponseReceived {
				return ev.Response, nil
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}
