package agent

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/pkg/errors"

	"github.com/handoff-sh/handoff/pkg/config"
	"github.com/handoff-sh/handoff/pkg/escalation"
)

// fillerHistoryTurns bounds how much recent conversation grounds a stall
// prompt.
const fillerHistoryTurns = 3

const defaultInstructions = `You are a helpful assistant. Be conversational, knowledgeable, and focus on understanding the user's needs.

When you encounter situations that require human judgment, authorization, or decisions beyond your authority, raise an escalation.`

const defaultAuthorityLimits = `You can:
- Answer questions based on your knowledge
- Provide information and guidance
- Help with standard procedures

You CANNOT:
- Make decisions requiring authorization
- Approve exceptions to policies
- Commit to actions beyond your authority
- Make financial decisions without approval`

const defaultEscalationTriggers = `Escalate to a human when:
- The request requires authorization beyond your normal authority
- Financial decisions need approval
- Sensitive topics require human judgment
- The user explicitly asks to speak with a human
- Policy exceptions are needed
- Custom requests fall outside standard procedures`

const defaultGreeting = "Greet the user warmly and ask how you can help them today."

const fillerTemplate = `Continue the conversation naturally about the topic.
{{- if .Reason }} The current topic concerns: {{ .Reason | trim }}.{{ end }}
{{- if .ContextDetails }} Additional context: {{ .ContextDetails | trim }}.{{ end }}
{{- if .RecentTurns }}

Recent conversation:
{{- range .RecentTurns }}
{{ .Role | title }}: {{ .Content }}
{{- end }}
{{- end }}

Acknowledge their request and explore the topic further. Be conversational and genuine. Never mention waiting, checking with teams, or needing approval - just continue the conversation naturally while the matter is being reviewed.`

const injectionTemplate = `IMPORTANT: You have just received authorization: "{{ .Response | trim }}"

This authorization OVERRIDES your normal authority limits. Act on it IMMEDIATELY.

Respond right now with enthusiasm and confidence. Announce the approval or decision immediately. Be spontaneous and genuine. Act as if you just received this authorization and are excited to share it.

Respond RIGHT NOW with the authorized action or decision.`

// Persona is the agent identity handed to the model, resolved from config
// with generic assistant defaults.
type Persona struct {
	Name               string
	Role               string
	Personality        string
	Instructions       string
	AuthorityLimits    string
	EscalationTriggers string
	Greeting           string
}

// PersonaFromConfig fills empty persona fields with defaults.
func PersonaFromConfig(cfg config.Persona) Persona {
	p := Persona{
		Name:               cfg.Name,
		Role:               cfg.Role,
		Personality:        cfg.Personality,
		Instructions:       cfg.Instructions,
		AuthorityLimits:    cfg.AuthorityLimits,
		EscalationTriggers: cfg.EscalationTriggers,
		Greeting:           cfg.Greeting,
	}
	if p.Name == "" {
		p.Name = "Assistant"
	}
	if p.Role == "" {
		p.Role = "helpful assistant"
	}
	if p.Personality == "" {
		p.Personality = "friendly, knowledgeable, and professional"
	}
	if p.Instructions == "" {
		p.Instructions = defaultInstructions
	}
	if p.AuthorityLimits == "" {
		p.AuthorityLimits = defaultAuthorityLimits
	}
	if p.EscalationTriggers == "" {
		p.EscalationTriggers = defaultEscalationTriggers
	}
	if p.Greeting == "" {
		p.Greeting = defaultGreeting
	}
	return p
}

// BuildInstructions assembles the full model briefing from the persona
// sections.
func (p Persona) BuildInstructions() string {
	parts := []string{p.Instructions}
	if p.AuthorityLimits != "" {
		parts = append(parts, "\nYOUR AUTHORITY LIMITS:", p.AuthorityLimits)
	}
	if p.EscalationTriggers != "" {
		parts = append(parts, "\nESCALATION TRIGGERS:", p.EscalationTriggers)
	}
	return strings.Join(parts, "\n")
}

// fillerPromptData grounds one stall-content request.
type fillerPromptData struct {
	Reason         string
	ContextDetails string
	RecentTurns    []escalation.Turn
}

func renderTemplate(name, templateStr string, data any) (string, error) {
	tmpl, err := template.New(name).Funcs(sprig.TxtFuncMap()).Parse(templateStr)
	if err != nil {
		return "", errors.Wrapf(err, "failed to parse %s template", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "failed to execute %s template", name)
	}
	return buf.String(), nil
}

// renderFillerInstructions builds the stall prompt from the escalation's
// reason, details and the last few turns. The prompt instructs the model
// never to reveal that a human is being consulted.
func renderFillerInstructions(reason, contextDetails string, history []escalation.Turn) (string, error) {
	if len(history) > fillerHistoryTurns {
		history = history[len(history)-fillerHistoryTurns:]
	}
	return renderTemplate("filler", fillerTemplate, fillerPromptData{
		Reason:         reason,
		ContextDetails: contextDetails,
		RecentTurns:    history,
	})
}

// renderInjectionInstructions builds the prompt that surfaces the human's
// decision in the conversation.
func renderInjectionInstructions(response string) (string, error) {
	return renderTemplate("injection", injectionTemplate, struct{ Response string }{Response: response})
}
