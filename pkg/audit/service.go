// SPDX-FileCopyrightText: 2026 handoff authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/handoff-sh/handoff/pkg/config"
	"github.com/handoff-sh/handoff/pkg/escalation"
)

// Service records escalation lifecycle events on the audit trail. It satisfies
// the broker's Auditor interface; writes go through a queued sink and never
// block the calling operation.
type Service struct {
	sink Sink
	log  *zap.SugaredLogger
	now  func() time.Time
}

// NewService builds the audit service from configuration. The log sink is
// always active; the Kafka sink is added when enabled. All sinks are wrapped
// in a queue.
func NewService(logger *zap.Logger, cfg config.Audit) (*Service, error) {
	sinks := []Sink{NewLogSink(logger)}

	if cfg.Kafka.Enabled {
		ks, err := NewKafkaSink(cfg.Kafka, logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, ks)
	}

	var sink Sink = NewMultiSink(sinks, logger)
	sink = NewQueuedSink(sink, DefaultQueuedSinkConfig(), logger)

	return &Service{
		sink: sink,
		log:  logger.Sugar(),
		now:  time.Now,
	}, nil
}

// NewServiceWithSink builds a service writing to the given sink directly.
// Used by tests and embedded setups.
func NewServiceWithSink(logger *zap.Logger, sink Sink) *Service {
	return &Service{
		sink: sink,
		log:  logger.Sugar(),
		now:  time.Now,
	}
}

func (s *Service) record(ctx context.Context, eventType EventType, rec *escalation.Record, details map[string]interface{}) {
	ev := &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Severity:   SeverityForEvent(eventType, rec),
		Timestamp:  s.now().UTC(),
		Escalation: RefFor(rec),
		Details:    details,
	}
	if err := s.sink.Write(ctx, ev); err != nil {
		s.log.Warnw("Failed to record audit event",
			"eventType", eventType, "error", err)
	}
}

// EscalationCreated records a new escalation on the audit trail.
func (s *Service) EscalationCreated(ctx context.Context, rec *escalation.Record) {
	s.record(ctx, EventEscalationCreated, rec, map[string]interface{}{
		"reason": rec.Reason,
	})
}

// EscalationResolved records a human resolution. The response text is
// included: resolutions are the decisions this audit trail exists for.
func (s *Service) EscalationResolved(ctx context.Context, rec *escalation.Record) {
	s.record(ctx, EventEscalationResolved, rec, map[string]interface{}{
		"response": rec.HumanResponse,
	})
}

// EscalationDeleted records the removal of a pending escalation.
func (s *Service) EscalationDeleted(ctx context.Context, rec *escalation.Record) {
	s.record(ctx, EventEscalationDeleted, rec, nil)
}

// Startup records broker startup.
func (s *Service) Startup(ctx context.Context, listenAddress string) {
	s.record(ctx, EventSystemStartup, nil, map[string]interface{}{
		"listenAddress": listenAddress,
	})
}

// Shutdown records broker shutdown and closes the sinks, draining any queued
// events first.
func (s *Service) Shutdown(ctx context.Context) error {
	s.record(ctx, EventSystemShutdown, nil, nil)
	return s.sink.Close()
}
