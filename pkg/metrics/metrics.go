package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Escalation lifecycle metrics
	EscalationCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "handoff_escalation_created_total",
		Help: "Total number of escalations created",
	}, []string{"urgency", "category"})
	EscalationResolved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "handoff_escalation_resolved_total",
		Help: "Total number of escalations resolved by an operator",
	}, []string{"urgency"})
	EscalationDeleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "handoff_escalation_deleted_total",
		Help: "Total number of pending escalations deleted",
	}, []string{"urgency"})
	EscalationConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "handoff_escalation_conflicts_total",
		Help: "Total number of resolve/delete attempts rejected with a conflict",
	}, []string{"operation"})
	UrgencyNormalized = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "handoff_urgency_normalized_total",
		Help: "Total number of escalations whose urgency was coerced to the configured default",
	})
	CategoryNormalized = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "handoff_category_normalized_total",
		Help: "Total number of escalations whose category was coerced to the configured default",
	})

	// Stream metrics
	OperatorSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "handoff_operator_subscribers",
		Help: "Current number of connected operator subscribers",
	})
	BroadcastDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "handoff_broadcast_dropped_total",
		Help: "Total number of operator subscribers dropped due to failed or blocked delivery",
	})
	ReplyDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "handoff_reply_delivered_total",
		Help: "Total number of human responses delivered to a waiting agent channel",
	})
	ReplyMissed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "handoff_reply_missed_total",
		Help: "Total number of human responses with no registered agent channel",
	})

	// Mail metrics
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "handoff_mail_send_success_total",
		Help: "Total number of successful mail sends",
	}, []string{"host"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "handoff_mail_send_failure_total",
		Help: "Total number of failed mail sends",
	}, []string{"host"})
	MailQueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "handoff_mail_queued_total",
		Help: "Total number of mails enqueued for async sending",
	}, []string{"host"})
	MailQueueDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "handoff_mail_queue_dropped_total",
		Help: "Total number of mails dropped because the queue was full or shutting down",
	}, []string{"host"})
	MailRetryScheduled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "handoff_mail_retry_scheduled_total",
		Help: "Total number of mail send retries scheduled",
	}, []string{"host"})
	MailFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "handoff_mail_failed_total",
		Help: "Total number of mails abandoned after exhausting all retries",
	}, []string{"host"})

	// Audit metrics
	FillerMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "handoff_filler_messages_total",
		Help: "Total number of stall messages produced while waiting for a human decision",
	})
	EscalationsSuppressed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "handoff_escalations_suppressed_total",
		Help: "Total number of escalation attempts suppressed by the dedup guard",
	})
	AuditEventsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "handoff_audit_events_written_total",
		Help: "Total number of audit events written per sink",
	}, []string{"sink"})
	AuditEventsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "handoff_audit_events_failed_total",
		Help: "Total number of audit events that failed to write per sink",
	}, []string{"sink"})
	AuditEventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "handoff_audit_events_dropped_total",
		Help: "Total number of audit events dropped due to a full queue",
	}, []string{"sink"})
)

func init() {
	prometheus.MustRegister(EscalationCreated)
	prometheus.MustRegister(EscalationResolved)
	prometheus.MustRegister(EscalationDeleted)
	prometheus.MustRegister(EscalationConflicts)
	prometheus.MustRegister(UrgencyNormalized)
	prometheus.MustRegister(CategoryNormalized)
	prometheus.MustRegister(OperatorSubscribers)
	prometheus.MustRegister(BroadcastDropped)
	prometheus.MustRegister(ReplyDelivered)
	prometheus.MustRegister(ReplyMissed)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
	prometheus.MustRegister(MailQueued)
	prometheus.MustRegister(MailQueueDropped)
	prometheus.MustRegister(MailRetryScheduled)
	prometheus.MustRegister(MailFailed)
	prometheus.MustRegister(FillerMessages)
	prometheus.MustRegister(EscalationsSuppressed)
	prometheus.MustRegister(AuditEventsWritten)
	prometheus.MustRegister(AuditEventsFailed)
	prometheus.MustRegister(AuditEventsDropped)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
