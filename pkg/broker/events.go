package broker

import "github.com/handoff-sh/handoff/pkg/escalation"

// EventType identifies a frame on the operator or agent stream.
type EventType string

const (
	// EventInitialState carries the pending snapshot sent to an operator
	// immediately after subscribing.
	EventInitialState EventType = "initial_state"
	// EventNewEscalation announces a freshly created escalation.
	EventNewEscalation EventType = "new_escalation"
	// EventEscalationResolved announces that an operator resolved an escalation.
	EventEscalationResolved EventType = "escalation_resolved"
	// EventEscalationDeleted announces that a pending escalation was deleted.
	EventEscalationDeleted EventType = "escalation_deleted"
	// EventResponseReceived carries the human response to the waiting agent.
	// It is the only event an agent stream ever receives; the server closes
	// the stream after sending it.
	EventResponseReceived EventType = "response_received"
	// EventPing and EventPong implement the application-level keepalive both
	// stream kinds support.
	EventPing EventType = "ping"
	EventPong EventType = "pong"
)

// Event is the JSON frame exchanged on both stream kinds. Fields are
// populated depending on Type.
type Event struct {
	Type        EventType            `json:"type"`
	Escalation  *escalation.Record   `json:"escalation,omitempty"`
	Escalations []*escalation.Record `json:"escalations,omitempty"`
	ID          string               `json:"id,omitempty"`
	Response    string               `json:"response,omitempty"`
}
