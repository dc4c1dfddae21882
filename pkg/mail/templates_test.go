package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEscalationNotification(t *testing.T) {
	body, err := RenderEscalationNotification(EscalationMailParams{
		EscalationID:   "esc-42",
		ConversationID: "conv-7",
		RequesterID:    "user-123",
		Reason:         "Refund exceeds my approval limit",
		Urgency:        "critical",
		Category:       "financial",
		CreatedAt:      "2026-08-31 12:00:00 UTC",
		URL:            "https://handoff.example.com/escalations/esc-42",
		BrandingName:   "Acme Handoff",
	})
	require.NoError(t, err)

	assert.Contains(t, body, "esc-42")
	assert.Contains(t, body, "conv-7")
	assert.Contains(t, body, "user-123")
	assert.Contains(t, body, "Refund exceeds my approval limit")
	assert.Contains(t, body, "critical")
	assert.Contains(t, body, "financial")
	assert.Contains(t, body, "https://handoff.example.com/escalations/esc-42")
	assert.Contains(t, body, "Acme Handoff")
}

func TestRenderEscalationNotificationEscapesHTML(t *testing.T) {
	body, err := RenderEscalationNotification(EscalationMailParams{
		EscalationID: "esc-1",
		Reason:       "<script>alert('x')</script>",
	})
	require.NoError(t, err)

	assert.NotContains(t, body, "<script>")
}

func TestRenderEscalationNotificationWithoutOptionalFields(t *testing.T) {
	body, err := RenderEscalationNotification(EscalationMailParams{
		EscalationID: "esc-1",
		Urgency:      "high",
		Category:     "authorization",
	})
	require.NoError(t, err)

	// No console link without a URL, and the default product name is used.
	assert.NotContains(t, body, "Open the operator console")
	assert.Contains(t, body, "Handoff")
}
