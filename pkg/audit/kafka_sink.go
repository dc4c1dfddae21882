// SPDX-FileCopyrightText: 2026 handoff authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
	"go.uber.org/zap"

	"github.com/handoff-sh/handoff/pkg/config"
)

// KafkaSink writes audit events to a Kafka topic.
type KafkaSink struct {
	name   string
	writer *kafka.Writer
	logger *zap.Logger
	mu     sync.Mutex
	closed bool

	messagesWritten atomic.Int64
	messagesFailed  atomic.Int64
}

// NewKafkaSink creates a new KafkaSink from the audit Kafka configuration.
func NewKafkaSink(cfg config.Kafka, logger *zap.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("Kafka topic is required")
	}

	transport := &kafka.Transport{}

	if cfg.SASLMechanism != "" {
		mechanism, err := buildSASLMechanism(cfg)
		if err != nil {
			logger.Error("failed to build Kafka SASL mechanism",
				zap.Error(err),
				zap.String("mechanism", cfg.SASLMechanism))
			return nil, errors.Wrap(err, "building SASL mechanism")
		}
		transport.SASL = mechanism
	}

	requiredAcks := cfg.RequiredAcks
	if requiredAcks == 0 {
		requiredAcks = -1 // all replicas
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           time.Duration(cfg.BatchTimeoutMs) * time.Millisecond,
		WriteTimeout:           time.Duration(cfg.WriteTimeoutMs) * time.Millisecond,
		RequiredAcks:           kafka.RequiredAcks(requiredAcks),
		Async:                  cfg.Async,
		Compression:            kafka.Snappy,
		Transport:              transport,
		AllowAutoTopicCreation: false,
	}

	sink := &KafkaSink{
		name:   "kafka",
		writer: writer,
		logger: logger.Named("kafka-audit"),
	}

	logger.Info("Kafka audit sink created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.Bool("sasl_enabled", cfg.SASLMechanism != ""))

	return sink, nil
}

// classifyKafkaError categorizes Kafka errors for logging.
func classifyKafkaError(err error) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}

	switch {
	case strings.Contains(errStr, "SASL") || strings.Contains(errStr, "authentication"):
		return "auth"
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		return "timeout"
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host"):
		return "network"
	case strings.Contains(errStr, "broker") || strings.Contains(errStr, "leader"):
		return "broker"
	case strings.Contains(errStr, "topic"):
		return "topic"
	default:
		return "other"
	}
}

// Write sends an audit event to Kafka.
func (s *KafkaSink) Write(ctx context.Context, event *Event) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("kafka sink is closed")
	}
	s.mu.Unlock()

	value, err := json.Marshal(event)
	if err != nil {
		s.messagesFailed.Add(1)
		return errors.Wrap(err, "marshaling audit event")
	}

	// Key by escalation id so all events for one escalation land on the same
	// partition and stay ordered.
	key := []byte(event.ID)
	if event.Escalation != nil {
		key = []byte(event.Escalation.ID)
	}

	headers := []kafka.Header{
		{Key: "event-type", Value: []byte(event.Type)},
		{Key: "severity", Value: []byte(event.Severity)},
		{Key: "timestamp", Value: []byte(event.Timestamp.Format(time.RFC3339))},
	}

	msg := kafka.Message{
		Key:     key,
		Value:   value,
		Headers: headers,
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		errorType := classifyKafkaError(err)
		s.messagesFailed.Add(1)

		logFields := []zap.Field{
			zap.Error(err),
			zap.String("error_type", errorType),
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
		}

		switch errorType {
		case "network", "timeout":
			s.logger.Warn("Kafka sink temporarily unavailable, event dropped", logFields...)
		case "auth":
			s.logger.Error("Kafka authentication failed", logFields...)
		default:
			s.logger.Error("failed to write audit event to Kafka", logFields...)
		}

		return errors.Wrapf(err, "writing to Kafka (%s)", errorType)
	}

	s.messagesWritten.Add(1)
	return nil
}

// Close closes the Kafka writer.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.logger.Info("closing Kafka audit sink",
		zap.Int64("messages_written", s.messagesWritten.Load()),
		zap.Int64("messages_failed", s.messagesFailed.Load()))

	if err := s.writer.Close(); err != nil {
		return errors.Wrap(err, "closing Kafka writer")
	}
	return nil
}

// Name returns the sink identifier.
func (s *KafkaSink) Name() string {
	return s.name
}

// MessageStats returns message statistics for monitoring.
func (s *KafkaSink) MessageStats() (written, failed int64) {
	return s.messagesWritten.Load(), s.messagesFailed.Load()
}

// buildSASLMechanism creates a SASL mechanism from the Kafka configuration.
func buildSASLMechanism(cfg config.Kafka) (sasl.Mechanism, error) {
	switch cfg.SASLMechanism {
	case "PLAIN":
		return plain.Mechanism{
			Username: cfg.SASLUsername,
			Password: cfg.SASLPassword,
		}, nil
	case "SCRAM-SHA-256":
		mechanism, err := scram.Mechanism(scram.SHA256, cfg.SASLUsername, cfg.SASLPassword)
		if err != nil {
			return nil, errors.Wrap(err, "creating SCRAM-SHA-256 mechanism")
		}
		return mechanism, nil
	case "SCRAM-SHA-512":
		mechanism, err := scram.Mechanism(scram.SHA512, cfg.SASLUsername, cfg.SASLPassword)
		if err != nil {
			return nil, errors.Wrap(err, "creating SCRAM-SHA-512 mechanism")
		}
		return mechanism, nil
	default:
		return nil, errors.Errorf("unsupported SASL mechanism: %s", cfg.SASLMechanism)
	}
}
