// SPDX-FileCopyrightText: 2026 handoff authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/handoff-sh/handoff/pkg/metrics"
)

// QueuedSinkConfig configures a QueuedSink.
type QueuedSinkConfig struct {
	// QueueSize is the size of the async event queue.
	// Default: 1000
	QueueSize int

	// WorkerCount is the number of async processing workers.
	// Default: 2
	WorkerCount int

	// WriteTimeout is the timeout for writing to the underlying sink.
	// Default: 5s
	WriteTimeout time.Duration
}

// DefaultQueuedSinkConfig returns sensible defaults for a queued sink.
func DefaultQueuedSinkConfig() QueuedSinkConfig {
	return QueuedSinkConfig{
		QueueSize:    1000,
		WorkerCount:  2,
		WriteTimeout: 5 * time.Second,
	}
}

// QueuedSink wraps a Sink with its own queue so audit writes never block the
// broker's request path. When the queue is full new events are dropped and
// counted, never blocked on.
type QueuedSink struct {
	sink   Sink
	queue  chan *Event
	config QueuedSinkConfig
	logger *zap.Logger

	droppedEvents   atomic.Int64
	processedEvents atomic.Int64
	failedEvents    atomic.Int64

	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewQueuedSink creates a new QueuedSink wrapper around an existing sink.
func NewQueuedSink(sink Sink, cfg QueuedSinkConfig, logger *zap.Logger) *QueuedSink {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	qs := &QueuedSink{
		sink:   sink,
		queue:  make(chan *Event, cfg.QueueSize),
		config: cfg,
		logger: logger.Named("queued-sink").With(zap.String("sink", sink.Name())),
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		qs.wg.Add(1)
		go qs.processQueue(i)
	}

	qs.logger.Info("queued audit sink started",
		zap.Int("queue_size", cfg.QueueSize),
		zap.Int("workers", cfg.WorkerCount),
		zap.Duration("write_timeout", cfg.WriteTimeout))

	return qs
}

// Write enqueues an event for async processing (non-blocking).
func (qs *QueuedSink) Write(_ context.Context, event *Event) error {
	if qs.closed.Load() {
		return errors.Errorf("queued sink %s is closed", qs.sink.Name())
	}

	select {
	case qs.queue <- event:
		return nil
	default:
		qs.droppedEvents.Add(1)
		metrics.AuditEventsDropped.WithLabelValues(qs.sink.Name()).Inc()
		qs.logger.Warn("audit queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID))
		return nil
	}
}

// processQueue is the worker goroutine that processes events from the queue.
func (qs *QueuedSink) processQueue(workerID int) {
	defer qs.wg.Done()

	for event := range qs.queue {
		ctx, cancel := context.WithTimeout(context.Background(), qs.config.WriteTimeout)
		err := qs.sink.Write(ctx, event)
		cancel()

		if err != nil {
			qs.failedEvents.Add(1)
			metrics.AuditEventsFailed.WithLabelValues(qs.sink.Name()).Inc()
			qs.logger.Error("failed to write audit event",
				zap.Int("worker", workerID),
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.String("error", err.Error()))
		} else {
			qs.processedEvents.Add(1)
			metrics.AuditEventsWritten.WithLabelValues(qs.sink.Name()).Inc()
		}
	}
}

// Stats returns processed, failed and dropped event counts.
func (qs *QueuedSink) Stats() (processed, failed, dropped int64) {
	return qs.processedEvents.Load(), qs.failedEvents.Load(), qs.droppedEvents.Load()
}

// QueueLength returns the number of events waiting in the queue.
func (qs *QueuedSink) QueueLength() int {
	return len(qs.queue)
}

// Close shuts down the queued sink gracefully, draining the queue first.
func (qs *QueuedSink) Close() error {
	if qs.closed.Swap(true) {
		return nil
	}

	close(qs.queue)
	qs.wg.Wait()

	return qs.sink.Close()
}

// Name returns the underlying sink's name.
func (qs *QueuedSink) Name() string {
	return qs.sink.Name()
}
