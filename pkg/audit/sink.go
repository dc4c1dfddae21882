// SPDX-FileCopyrightText: 2026 handoff authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Sink defines the interface for audit event destinations.
type Sink interface {
	// Write sends an audit event to the sink.
	Write(ctx context.Context, event *Event) error

	// Close releases any resources held by the sink.
	Close() error

	// Name returns the sink's identifier.
	Name() string
}

// LogSink writes audit events to a structured logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a new LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("audit")}
}

// Write logs the audit event.
func (s *LogSink) Write(_ context.Context, event *Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("severity", string(event.Severity)),
		zap.Time("timestamp", event.Timestamp),
	}

	if ref := event.Escalation; ref != nil {
		fields = append(fields,
			zap.String("escalation", ref.ID),
			zap.String("conversation", ref.ConversationID),
			zap.String("urgency", ref.Urgency),
			zap.String("category", ref.Category))
		if ref.RequesterID != "" {
			fields = append(fields, zap.String("requester", ref.RequesterID))
		}
	}

	if len(event.Details) > 0 {
		if detailsJSON, err := json.Marshal(event.Details); err == nil {
			fields = append(fields, zap.String("details", string(detailsJSON)))
		}
	}

	s.logger.Info("audit_event", fields...)
	return nil
}

// Close is a no-op for LogSink.
func (s *LogSink) Close() error {
	return nil
}

// Name returns the sink identifier.
func (s *LogSink) Name() string {
	return "log"
}

// MultiSink writes to multiple sinks sequentially.
type MultiSink struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewMultiSink creates a sink that writes to multiple destinations.
func NewMultiSink(sinks []Sink, logger *zap.Logger) *MultiSink {
	return &MultiSink{
		sinks:  sinks,
		logger: logger,
	}
}

// Write sends the event to all sinks. A failing sink does not stop delivery
// to the remaining sinks; the last error is returned.
func (s *MultiSink) Write(ctx context.Context, event *Event) error {
	var lastErr error
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, event); err != nil {
			// string representation avoids noisy stacktraces for transient errors
			s.logger.Warn("audit sink write failed",
				zap.String("sink", sink.Name()),
				zap.String("error", err.Error()))
			lastErr = err
		}
	}
	return lastErr
}

// Close closes all sinks.
func (s *MultiSink) Close() error {
	var lastErr error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Name returns the sink identifier.
func (s *MultiSink) Name() string {
	return "multi"
}
