/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package escalation

import (
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// Status describes the lifecycle state of an escalation record.
// The only permitted transition is StatusPending -> StatusResolved.
type Status string

const (
	// StatusPending means the escalation awaits a human decision.
	StatusPending Status = "pending"
	// StatusResolved means a human has answered. Resolved records are
	// immutable history.
	StatusResolved Status = "resolved"
)

// Urgency is the broadcast/display priority of an escalation. It does not
// influence delivery order, only how operators sort pending work.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
)

// urgencyRank orders urgencies for display, most urgent first.
var urgencyRank = map[Urgency]int{
	UrgencyCritical: 0,
	UrgencyHigh:     1,
	UrgencyMedium:   2,
	UrgencyLow:      3,
}

// Rank returns the display rank of u; lower sorts first. Unknown urgencies
// sort last, though normalized records never carry one.
func (u Urgency) Rank() int {
	if r, ok := urgencyRank[u]; ok {
		return r
	}
	return len(urgencyRank)
}

// Valid reports whether u is a member of the urgency set.
func (u Urgency) Valid() bool {
	_, ok := urgencyRank[u]
	return ok
}

// NormalizeUrgency coerces free-form input to a member of the urgency set.
// Matching is case-insensitive; anything unrecognized falls back to def.
// Malformed urgencies are never an error, per the escalation API contract.
func NormalizeUrgency(raw string, def Urgency) Urgency {
	u := Urgency(strings.ToLower(strings.TrimSpace(raw)))
	if u.Valid() {
		return u
	}
	return def
}

// NormalizeCategory coerces free-form input to a member of the configured
// category set, falling back to def for unrecognized values. Like urgency,
// categories are normalized rather than rejected so that an agent hallucinating
// a novel decision type cannot fail the escalation it is trying to raise.
func NormalizeCategory(raw string, categories []string, def string) string {
	c := strings.ToLower(strings.TrimSpace(raw))
	if slices.Contains(categories, c) {
		return c
	}
	return def
}

// MaxHistoryTurns bounds the conversation snapshot carried by a record.
const MaxHistoryTurns = 5

// MaxReasonLength bounds the free-text reason supplied by the agent.
const MaxReasonLength = 2048

// Turn is a single conversation turn captured at escalation time.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Record is an escalation held by the broker registry.
//
// A record is created pending, mutated exactly once by resolution (which sets
// HumanResponse and ResolvedAt and flips Status), or deleted while still
// pending. RecentHistory is a snapshot taken at creation and never mutated.
type Record struct {
	ID             string  `json:"id"`
	ConversationID string  `json:"conversationId"`
	RequesterID    string  `json:"requesterId"`
	Reason         string  `json:"reason"`
	Urgency        Urgency `json:"urgency"`
	Category       string  `json:"category"`
	ContextDetails string  `json:"contextDetails,omitempty"`
	RecentHistory  []Turn  `json:"recentHistory,omitempty"`

	Status        Status     `json:"status"`
	HumanResponse string     `json:"humanResponse,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`
}

// Clone returns a deep copy of the record so callers can hand records out of
// the registry without exposing internal state to mutation.
func (r *Record) Clone() *Record {
	out := *r
	if r.RecentHistory != nil {
		out.RecentHistory = make([]Turn, len(r.RecentHistory))
		copy(out.RecentHistory, r.RecentHistory)
	}
	if r.ResolvedAt != nil {
		t := *r.ResolvedAt
		out.ResolvedAt = &t
	}
	return &out
}

// TruncateHistory returns the last n turns of history. Used both when
// snapshotting at creation (n = MaxHistoryTurns) and when grounding filler
// prompts (n = 3).
func TruncateHistory(turns []Turn, n int) []Turn {
	if n <= 0 || len(turns) == 0 {
		return nil
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// TruncateReason bounds the reason text to MaxReasonLength.
func TruncateReason(reason string) string {
	if len(reason) <= MaxReasonLength {
		return reason
	}
	return reason[:MaxReasonLength]
}
