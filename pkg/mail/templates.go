package mail

import (
	"bytes"
	_ "embed"
	"html/template"
)

// EscalationMailParams feeds the operator notification template.
type EscalationMailParams struct {
	EscalationID   string
	ConversationID string
	RequesterID    string
	Reason         string
	Urgency        string
	Category       string
	CreatedAt      string
	URL            string
	BrandingName   string
}

var (
	escalationNotificationTemplate = template.New("escalationNotification")

	//go:embed templates/escalationNotification.html
	escalationNotificationRaw string
)

func init() {
	if _, err := escalationNotificationTemplate.Parse(escalationNotificationRaw); err != nil {
		panic(err)
	}
}

func render(t *template.Template, p any) (string, error) {
	b := bytes.Buffer{}
	err := t.Execute(&b, p)
	return b.String(), err
}

// RenderEscalationNotification renders the mail body sent to operators when
// a new escalation needs their attention.
func RenderEscalationNotification(p EscalationMailParams) (string, error) {
	return render(escalationNotificationTemplate, p)
}
