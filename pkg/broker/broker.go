package broker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/handoff-sh/handoff/pkg/config"
	"github.com/handoff-sh/handoff/pkg/escalation"
	"github.com/handoff-sh/handoff/pkg/metrics"
)

var tracer = otel.Tracer("github.com/handoff-sh/handoff/pkg/broker")

// Notifier is told about newly created escalations so operators can be
// alerted out-of-band (mail). Notification is best-effort and must never
// fail the creating operation.
type Notifier interface {
	EscalationCreated(rec *escalation.Record)
}

// Auditor records escalation lifecycle events on the audit trail.
// Implementations must be non-blocking from the broker's perspective.
type Auditor interface {
	EscalationCreated(ctx context.Context, rec *escalation.Record)
	EscalationResolved(ctx context.Context, rec *escalation.Record)
	EscalationDeleted(ctx context.Context, rec *escalation.Record)
}

// CreateRequest carries the escalation fields supplied by an agent
// coordinator. Urgency and Category are free-form here; the broker
// normalizes them and never rejects a malformed value.
type CreateRequest struct {
	ConversationID string            `json:"conversationId"`
	RequesterID    string            `json:"requesterId"`
	Reason         string            `json:"reason"`
	Urgency        string            `json:"urgency"`
	Category       string            `json:"category"`
	ContextDetails string            `json:"contextDetails,omitempty"`
	RecentHistory  []escalation.Turn `json:"recentHistory,omitempty"`
}

// Broker combines the registry, the operator fan-out hub and the agent reply
// router behind the operations the REST and stream surfaces expose.
type Broker struct {
	log      *zap.SugaredLogger
	cfg      config.Broker
	registry *Registry
	hub      *Hub
	replies  *ReplyRouter
	notifier Notifier
	auditor  Auditor

	now func() time.Time
}

// Option configures optional broker collaborators.
type Option func(*Broker)

// WithNotifier attaches an out-of-band notifier for new escalations.
func WithNotifier(n Notifier) Option {
	return func(b *Broker) { b.notifier = n }
}

// WithAuditor attaches an audit trail recorder.
func WithAuditor(a Auditor) Option {
	return func(b *Broker) { b.auditor = a }
}

func New(log *zap.SugaredLogger, cfg config.Broker, opts ...Option) *Broker {
	b := &Broker{
		log:      log,
		cfg:      cfg,
		registry: NewRegistry(),
		hub:      NewHub(log),
		replies:  NewReplyRouter(log),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Create allocates a fresh id, normalizes urgency and category, stores the
// record pending and publishes new_escalation to all operator subscribers.
// Malformed urgency/category values are coerced, never rejected.
func (b *Broker) Create(ctx context.Context, req CreateRequest) *escalation.Record {
	ctx, span := tracer.Start(ctx, "broker.Create")
	defer span.End()

	urgency := escalation.NormalizeUrgency(req.Urgency, escalation.Urgency(b.cfg.DefaultUrgency))
	if string(urgency) != req.Urgency {
		metrics.UrgencyNormalized.Inc()
		b.log.Debugw("Normalized escalation urgency", "raw", req.Urgency, "normalized", urgency)
	}
	category := escalation.NormalizeCategory(req.Category, b.cfg.Categories, b.cfg.DefaultCategory)
	if category != req.Category {
		metrics.CategoryNormalized.Inc()
		b.log.Debugw("Normalized escalation category", "raw", req.Category, "normalized", category)
	}

	rec := &escalation.Record{
		ID:             uuid.New().String(),
		ConversationID: req.ConversationID,
		RequesterID:    req.RequesterID,
		Reason:         escalation.TruncateReason(req.Reason),
		Urgency:        urgency,
		Category:       category,
		ContextDetails: req.ContextDetails,
		RecentHistory:  escalation.TruncateHistory(req.RecentHistory, escalation.MaxHistoryTurns),
		Status:         escalation.StatusPending,
		CreatedAt:      b.now().UTC(),
	}

	span.SetAttributes(
		attribute.String("escalation.id", rec.ID),
		attribute.String("escalation.urgency", string(rec.Urgency)),
		attribute.String("escalation.category", rec.Category),
	)

	b.registry.Insert(rec)
	b.hub.Broadcast(Event{Type: EventNewEscalation, Escalation: rec})
	metrics.EscalationCreated.WithLabelValues(string(rec.Urgency), rec.Category).Inc()

	b.log.Infow("Escalation created",
		"escalation", rec.ID,
		"conversation", rec.ConversationID,
		"urgency", rec.Urgency,
		"category", rec.Category)

	if b.notifier != nil {
		b.notifier.EscalationCreated(rec)
	}
	if b.auditor != nil {
		b.auditor.EscalationCreated(ctx, rec)
	}
	return rec.Clone()
}

// ListPending returns the pending records in operator display order.
func (b *Broker) ListPending() []*escalation.Record {
	return b.registry.ListPending()
}

// Get returns the record for id or ErrNotFound.
func (b *Broker) Get(id string) (*escalation.Record, error) {
	return b.registry.Get(id)
}

// Resolve marks the escalation resolved, publishes escalation_resolved to the
// operator subscribers and pushes the response to the waiting agent channel
// if one is registered. The push is best-effort: a disconnected agent is not
// an error.
func (b *Broker) Resolve(ctx context.Context, id, response string) (*escalation.Record, error) {
	ctx, span := tracer.Start(ctx, "broker.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("escalation.id", id))

	rec, err := b.registry.Resolve(id, response, b.now().UTC())
	if err != nil {
		metrics.EscalationConflicts.WithLabelValues("resolve").Inc()
		span.RecordError(err)
		return nil, err
	}

	b.hub.Broadcast(Event{Type: EventEscalationResolved, Escalation: rec})
	delivered := b.replies.Deliver(id, response)
	metrics.EscalationResolved.WithLabelValues(string(rec.Urgency)).Inc()

	b.log.Infow("Escalation resolved",
		"escalation", id,
		"conversation", rec.ConversationID,
		"agentNotified", delivered)

	if b.auditor != nil {
		b.auditor.EscalationResolved(ctx, rec)
	}
	return rec, nil
}

// Delete removes a pending escalation, closes any open agent reply channel
// for it and publishes escalation_deleted. Resolved escalations are immutable
// history and cannot be deleted.
func (b *Broker) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "broker.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("escalation.id", id))

	rec, err := b.registry.Delete(id)
	if err != nil {
		metrics.EscalationConflicts.WithLabelValues("delete").Inc()
		span.RecordError(err)
		return err
	}

	b.replies.Close(id)
	b.hub.Broadcast(Event{Type: EventEscalationDeleted, ID: id})
	metrics.EscalationDeleted.WithLabelValues(string(rec.Urgency)).Inc()

	b.log.Infow("Escalation deleted", "escalation", id, "conversation", rec.ConversationID)

	if b.auditor != nil {
		b.auditor.EscalationDeleted(ctx, rec)
	}
	return nil
}

// SubscribeOperator registers a long-lived operator subscriber. Its first
// event is the current pending snapshot, followed by the live event stream.
func (b *Broker) SubscribeOperator() *Subscriber {
	return b.hub.Subscribe(b.registry.ListPending)
}

// UnsubscribeOperator drops an operator subscriber.
func (b *Broker) UnsubscribeOperator(sub *Subscriber) {
	b.hub.Unsubscribe(sub.ID())
}

// RegisterAgentChannel opens the reply channel for id. If the escalation was
// already resolved before the agent (re)connected, the stored response is
// delivered immediately so the agent does not wait forever on settled work.
// Returns ErrNotFound when no such escalation exists.
func (b *Broker) RegisterAgentChannel(id string) (<-chan string, error) {
	// Register before checking status so a resolution racing with this call
	// lands in the channel instead of falling into the no-subscriber gap.
	ch := b.replies.Register(id)

	rec, err := b.registry.Get(id)
	if err != nil {
		b.replies.CloseIfCurrent(id, ch)
		return nil, err
	}
	if rec.Status == escalation.StatusResolved {
		b.replies.Deliver(id, rec.HumanResponse)
	}
	return ch, nil
}

// CloseAgentChannel releases the reply registration for id, but only when ch
// is still the active registration (a reconnect may have superseded it).
func (b *Broker) CloseAgentChannel(id string, ch <-chan string) {
	b.replies.CloseIfCurrent(id, ch)
}

// Shutdown closes all open reply channels. Operator subscribers are dropped
// by their connection handlers.
func (b *Broker) Shutdown() {
	b.replies.CloseAll()
}
