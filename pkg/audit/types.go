// SPDX-FileCopyrightText: 2026 handoff authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"time"

	"github.com/handoff-sh/handoff/pkg/escalation"
)

// EventType represents the type of audit event.
type EventType string

const (
	// === Escalation lifecycle events ===
	EventEscalationCreated  EventType = "escalation.created"
	EventEscalationResolved EventType = "escalation.resolved"
	EventEscalationDeleted  EventType = "escalation.deleted"

	// === System events ===
	EventSystemStartup  EventType = "system.startup"
	EventSystemShutdown EventType = "system.shutdown"
)

// Severity represents the severity level of an audit event
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event represents a single audit event
type Event struct {
	// ID is a unique identifier for this event
	ID string `json:"id"`

	// Type is the type of event
	Type EventType `json:"type"`

	// Severity indicates the importance of the event
	Severity Severity `json:"severity"`

	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// Escalation identifies the record the event is about. Empty for
	// system events.
	Escalation *EscalationRef `json:"escalation,omitempty"`

	// Details contains event-specific information
	Details map[string]interface{} `json:"details,omitempty"`
}

// EscalationRef carries the identifying fields of an escalation on the audit
// trail. The full conversation history is deliberately not included.
type EscalationRef struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId,omitempty"`
	RequesterID    string `json:"requesterId,omitempty"`
	Urgency        string `json:"urgency,omitempty"`
	Category       string `json:"category,omitempty"`
	Status         string `json:"status,omitempty"`
}

// RefFor builds the audit reference for a record.
func RefFor(rec *escalation.Record) *EscalationRef {
	if rec == nil {
		return nil
	}
	return &EscalationRef{
		ID:             rec.ID,
		ConversationID: rec.ConversationID,
		RequesterID:    rec.RequesterID,
		Urgency:        string(rec.Urgency),
		Category:       rec.Category,
		Status:         string(rec.Status),
	}
}

// SeverityForEvent returns the severity for an event about rec. Creation of a
// critical-urgency escalation is itself critical; everything else follows the
// event type.
func SeverityForEvent(eventType EventType, rec *escalation.Record) Severity {
	if eventType == EventEscalationCreated && rec != nil {
		switch rec.Urgency {
		case escalation.UrgencyCritical:
			return SeverityCritical
		case escalation.UrgencyHigh:
			return SeverityWarning
		}
	}
	if eventType == EventEscalationDeleted {
		return SeverityWarning
	}
	return SeverityInfo
}
