package agent

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/handoff-sh/handoff/pkg/escalation"
)

// transcriptEntry is one captured conversation turn with its arrival time.
type transcriptEntry struct {
	Turn escalation.Turn
	At   time.Time
}

// Session holds the per-conversation state the coordinator operates on:
// the captured transcript, the sticky escalation gate and the dedup clock.
// Sessions are never shared between conversations.
type Session struct {
	mu sync.Mutex

	conversationID string
	requesterID    string
	startedAt      time.Time

	transcript []transcriptEntry

	// escalationTriggered is sticky: once an escalation has been raised the
	// gate stays closed for the life of the conversation unless
	// ResetEscalationGate is called.
	escalationTriggered bool
	lastEscalation      time.Time
}

func NewSession(conversationID, requesterID string) *Session {
	return &Session{
		conversationID: conversationID,
		requesterID:    requesterID,
		startedAt:      time.Now(),
	}
}

func (s *Session) ConversationID() string { return s.conversationID }
func (s *Session) RequesterID() string    { return s.requesterID }

// OnTurn records a conversation turn. Empty content is skipped. Safe to
// call from the engine's event loop; it never blocks beyond the lock.
func (s *Session) OnTurn(turn escalation.Turn) {
	if strings.TrimSpace(turn.Content) == "" {
		return
	}
	turn.Content = strings.TrimSpace(turn.Content)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, transcriptEntry{Turn: turn, At: time.Now()})
}

// RecentHistory returns the last n turns, oldest first.
func (s *Session) RecentHistory(n int) []escalation.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := len(s.transcript) - n
	if start < 0 {
		start = 0
	}
	out := make([]escalation.Turn, 0, len(s.transcript)-start)
	for _, e := range s.transcript[start:] {
		out = append(out, e.Turn)
	}
	return out
}

// TranscriptLen returns the number of captured turns.
func (s *Session) TranscriptLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcript)
}

// tryAcquireGate is the dedup guard: it closes the sticky gate and records
// the escalation time, or reports false when the gate is already closed or
// the previous escalation is within the cooldown window.
func (s *Session) tryAcquireGate(cooldown time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.escalationTriggered {
		return false
	}
	if !s.lastEscalation.IsZero() && time.Since(s.lastEscalation) < cooldown {
		return false
	}
	s.escalationTriggered = true
	s.lastEscalation = time.Now()
	return true
}

// releaseGate reopens the gate after a failed create so a later attempt can
// retry. The cooldown clock is cleared along with it.
func (s *Session) releaseGate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.escalationTriggered = false
	s.lastEscalation = time.Time{}
}

// EscalationTriggered reports whether the sticky gate is closed.
func (s *Session) EscalationTriggered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.escalationTriggered
}

// ResetEscalationGate reopens the sticky gate. The surrounding application
// decides when a conversation has moved on enough to allow another
// escalation; nothing resets the gate automatically.
func (s *Session) ResetEscalationGate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.escalationTriggered = false
}

// LogSummary writes the captured transcript and session duration to the
// log. Called when the conversation closes.
func (s *Session) LogSummary(log *zap.SugaredLogger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.transcript {
		log.Debugw("Transcript turn",
			"conversationID", s.conversationID,
			"at", e.At.Format(time.RFC3339),
			"role", e.Turn.Role,
			"content", e.Turn.Content)
	}
	log.Infow("Conversation closed",
		"conversationID", s.conversationID,
		"turns", len(s.transcript),
		"duration", time.Since(s.startedAt).Round(time.Second).String())
}
