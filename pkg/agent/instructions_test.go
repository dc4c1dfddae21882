package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handoff-sh/handoff/pkg/config"
	"github.com/handoff-sh/handoff/pkg/escalation"
)

func TestPersonaFromConfigDefaults(t *testing.T) {
	p := PersonaFromConfig(config.Persona{})

	assert.Equal(t, "Assistant", p.Name)
	assert.Equal(t, "helpful assistant", p.Role)
	assert.NotEmpty(t, p.Instructions)
	assert.NotEmpty(t, p.AuthorityLimits)
	assert.NotEmpty(t, p.EscalationTriggers)
	assert.NotEmpty(t, p.Greeting)
}

func TestPersonaFromConfigOverrides(t *testing.T) {
	p := PersonaFromConfig(config.Persona{
		Name:         "Concierge",
		Role:         "hotel concierge",
		Instructions: "You book rooms.",
	})

	assert.Equal(t, "Concierge", p.Name)
	assert.Equal(t, "hotel concierge", p.Role)
	assert.Equal(t, "You book rooms.", p.Instructions)
	// Unset fields still fall back.
	assert.NotEmpty(t, p.AuthorityLimits)
}

func TestBuildInstructionsSections(t *testing.T) {
	p := PersonaFromConfig(config.Persona{
		Instructions:       "Main briefing.",
		AuthorityLimits:    "No refunds.",
		EscalationTriggers: "Escalate on refunds.",
	})

	full := p.BuildInstructions()
	assert.Contains(t, full, "Main briefing.")
	assert.Contains(t, full, "YOUR AUTHORITY LIMITS:")
	assert.Contains(t, full, "No refunds.")
	assert.Contains(t, full, "ESCALATION TRIGGERS:")
	assert.Contains(t, full, "Escalate on refunds.")
}

func TestRenderFillerInstructions(t *testing.T) {
	history := []escalation.Turn{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "second"},
		{Role: "user", Content: "third"},
		{Role: "assistant", Content: "fourth"},
	}

	out, err := renderFillerInstructions("refund request", "amount $500", history)
	require.NoError(t, err)

	assert.Contains(t, out, "refund request")
	assert.Contains(t, out, "amount $500")
	// Only the last three turns ground the prompt.
	assert.NotContains(t, out, "first")
	assert.Contains(t, out, "second")
	assert.Contains(t, out, "third")
	assert.Contains(t, out, "fourth")
	assert.Contains(t, out, "Never mention waiting")
}

func TestRenderFillerInstructionsEmptyContext(t *testing.T) {
	out, err := renderFillerInstructions("", "", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Continue the conversation naturally")
	assert.NotContains(t, out, "Recent conversation:")
}

func TestRenderInjectionInstructions(t *testing.T) {
	out, err := renderInjectionInstructions("  approved up to $750  ")
	require.NoError(t, err)

	assert.Contains(t, out, `"approved up to $750"`)
	assert.Contains(t, out, "OVERRIDES")
}
