package mail

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/handoff-sh/handoff/pkg/config"
	"github.com/handoff-sh/handoff/pkg/escalation"
)

// Service notifies operators by mail when an escalation with a configured
// urgency is created. It satisfies the broker's Notifier contract: all
// delivery happens through the async queue, so notifying never blocks or
// fails escalation creation.
type Service struct {
	queue           *Queue
	log             *zap.SugaredLogger
	addresses       []string
	notifyUrgencies []string
	baseURL         string
	brandingName    string
}

// NewService wires a sender and queue from the mail configuration. Returns
// nil when mail is disabled; a nil *Service is safe to use as a Notifier.
func NewService(log *zap.SugaredLogger, cfg config.Config) *Service {
	if !cfg.Mail.Enabled {
		log.Info("Mail notifications disabled")
		return nil
	}
	if len(cfg.Mail.OperatorAddresses) == 0 {
		log.Warn("Mail notifications enabled but no operator addresses configured, disabling")
		return nil
	}

	sender := NewSender(cfg, log)
	queue := NewQueue(sender, log, cfg.Mail.RetryCount, cfg.Mail.RetryBackoffMs, cfg.Mail.QueueSize)
	queue.Start()

	return &Service{
		queue:           queue,
		log:             log,
		addresses:       cfg.Mail.OperatorAddresses,
		notifyUrgencies: cfg.Mail.NotifyUrgencies,
		baseURL:         strings.TrimRight(cfg.Frontend.BaseURL, "/"),
		brandingName:    cfg.Frontend.BrandingName,
	}
}

// NewServiceWithQueue builds a Service on an existing queue. Used by tests.
func NewServiceWithQueue(queue *Queue, log *zap.SugaredLogger, cfg config.Config) *Service {
	return &Service{
		queue:           queue,
		log:             log,
		addresses:       cfg.Mail.OperatorAddresses,
		notifyUrgencies: cfg.Mail.NotifyUrgencies,
		baseURL:         strings.TrimRight(cfg.Frontend.BaseURL, "/"),
		brandingName:    cfg.Frontend.BrandingName,
	}
}

// EscalationCreated enqueues a notification mail when the record's urgency
// is in the configured notify set. Best-effort: failures are logged only.
func (s *Service) EscalationCreated(rec *escalation.Record) {
	if s == nil || rec == nil {
		return
	}
	if !slices.Contains(s.notifyUrgencies, string(rec.Urgency)) {
		return
	}

	url := ""
	if s.baseURL != "" {
		url = s.baseURL + "/escalations/" + rec.ID
	}
	body, err := RenderEscalationNotification(EscalationMailParams{
		EscalationID:   rec.ID,
		ConversationID: rec.ConversationID,
		RequesterID:    rec.RequesterID,
		Reason:         rec.Reason,
		Urgency:        string(rec.Urgency),
		Category:       rec.Category,
		CreatedAt:      rec.CreatedAt.Format("2006-01-02 15:04:05 MST"),
		URL:            url,
		BrandingName:   s.brandingName,
	})
	if err != nil {
		s.log.Errorw("Failed to render escalation notification mail",
			"escalationID", rec.ID, "error", err)
		return
	}

	subject := fmt.Sprintf("[%s] Escalation pending: %s", strings.ToUpper(string(rec.Urgency)), rec.Category)
	if err := s.queue.Enqueue(rec.ID, s.addresses, subject, body); err != nil {
		s.log.Errorw("Failed to enqueue escalation notification mail",
			"escalationID", rec.ID, "error", err)
	}
}

// Stop drains the underlying queue, bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.queue.Stop(ctx)
}
