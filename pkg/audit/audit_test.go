package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/handoff-sh/handoff/pkg/config"
	"github.com/handoff-sh/handoff/pkg/escalation"
)

func kafkaConfig(brokers []string, topic string) config.Kafka {
	return config.Kafka{
		Enabled:        true,
		Brokers:        brokers,
		Topic:          topic,
		BatchSize:      100,
		BatchTimeoutMs: 1000,
		WriteTimeoutMs: 10000,
		RequiredAcks:   -1,
	}
}

func testRecord(urgency escalation.Urgency) *escalation.Record {
	return &escalation.Record{
		ID:             "e-1",
		ConversationID: "conv-1",
		RequesterID:    "user-1",
		Reason:         "needs approval",
		Urgency:        urgency,
		Category:       "authorization",
		Status:         escalation.StatusPending,
		CreatedAt:      time.Now(),
	}
}

func TestRefFor(t *testing.T) {
	assert.Nil(t, RefFor(nil))

	ref := RefFor(testRecord(escalation.UrgencyHigh))
	require.NotNil(t, ref)
	assert.Equal(t, "e-1", ref.ID)
	assert.Equal(t, "conv-1", ref.ConversationID)
	assert.Equal(t, "high", ref.Urgency)
	assert.Equal(t, "authorization", ref.Category)
}

func TestSeverityForEvent(t *testing.T) {
	assert.Equal(t, SeverityCritical, SeverityForEvent(EventEscalationCreated, testRecord(escalation.UrgencyCritical)))
	assert.Equal(t, SeverityWarning, SeverityForEvent(EventEscalationCreated, testRecord(escalation.UrgencyHigh)))
	assert.Equal(t, SeverityInfo, SeverityForEvent(EventEscalationCreated, testRecord(escalation.UrgencyLow)))
	assert.Equal(t, SeverityWarning, SeverityForEvent(EventEscalationDeleted, testRecord(escalation.UrgencyLow)))
	assert.Equal(t, SeverityInfo, SeverityForEvent(EventEscalationResolved, testRecord(escalation.UrgencyCritical)))
	assert.Equal(t, SeverityInfo, SeverityForEvent(EventSystemStartup, nil))
}

func TestLogSinkWritesStructuredEvent(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	err := sink.Write(context.Background(), &Event{
		ID:         "ev-1",
		Type:       EventEscalationCreated,
		Severity:   SeverityInfo,
		Timestamp:  time.Now(),
		Escalation: RefFor(testRecord(escalation.UrgencyMedium)),
		Details:    map[string]interface{}{"reason": "needs approval"},
	})
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "audit_event", entries[0].Message)
	ctxMap := entries[0].ContextMap()
	assert.Equal(t, "escalation.created", ctxMap["event_type"])
	assert.Equal(t, "e-1", ctxMap["escalation"])
	assert.Contains(t, ctxMap["details"], "needs approval")
}

// memorySink collects events for assertions.
type memorySink struct {
	mu     sync.Mutex
	events []*Event
	fail   atomic.Bool
}

func (m *memorySink) Write(_ context.Context, ev *Event) error {
	if m.fail.Load() {
		return errors.New("sink unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memorySink) Close() error { return nil }
func (m *memorySink) Name() string { return "memory" }

func (m *memorySink) all() []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Event(nil), m.events...)
}

func TestMultiSinkContinuesPastFailure(t *testing.T) {
	failing := &memorySink{}
	failing.fail.Store(true)
	healthy := &memorySink{}

	ms := NewMultiSink([]Sink{failing, healthy}, zap.NewNop())
	err := ms.Write(context.Background(), &Event{ID: "ev-1", Type: EventSystemStartup})

	assert.Error(t, err)
	assert.Len(t, healthy.all(), 1)
}

func TestQueuedSinkProcessesEvents(t *testing.T) {
	mem := &memorySink{}
	qs := NewQueuedSink(mem, DefaultQueuedSinkConfig(), zap.NewNop())

	for i := 0; i < 10; i++ {
		require.NoError(t, qs.Write(context.Background(), &Event{ID: "ev", Type: EventEscalationCreated}))
	}

	// Close drains the queue before returning
	require.NoError(t, qs.Close())
	assert.Len(t, mem.all(), 10)

	processed, failed, dropped := qs.Stats()
	assert.Equal(t, int64(10), processed)
	assert.Equal(t, int64(0), failed)
	assert.Equal(t, int64(0), dropped)
}

func TestQueuedSinkDropsWhenFull(t *testing.T) {
	blocking := make(chan struct{})
	slow := &slowSink{release: blocking}
	qs := NewQueuedSink(slow, QueuedSinkConfig{QueueSize: 1, WorkerCount: 1, WriteTimeout: time.Minute}, zap.NewNop())

	// first event occupies the worker, second fills the queue, third drops
	for i := 0; i < 3; i++ {
		require.NoError(t, qs.Write(context.Background(), &Event{ID: "ev", Type: EventEscalationCreated}))
	}

	require.Eventually(t, func() bool {
		_, _, dropped := qs.Stats()
		return dropped >= 1
	}, time.Second, 10*time.Millisecond)

	close(blocking)
	require.NoError(t, qs.Close())
}

func TestQueuedSinkRejectsAfterClose(t *testing.T) {
	mem := &memorySink{}
	qs := NewQueuedSink(mem, DefaultQueuedSinkConfig(), zap.NewNop())
	require.NoError(t, qs.Close())

	err := qs.Write(context.Background(), &Event{ID: "ev"})
	assert.Error(t, err)

	// double close is a no-op
	require.NoError(t, qs.Close())
}

type slowSink struct {
	release chan struct{}
}

func (s *slowSink) Write(ctx context.Context, _ *Event) error {
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *slowSink) Close() error { return nil }
func (s *slowSink) Name() string { return "slow" }

func TestServiceRecordsLifecycle(t *testing.T) {
	mem := &memorySink{}
	svc := NewServiceWithSink(zap.NewNop(), mem)
	ctx := context.Background()

	rec := testRecord(escalation.UrgencyCritical)
	svc.EscalationCreated(ctx, rec)

	rec.Status = escalation.StatusResolved
	rec.HumanResponse = "approved"
	svc.EscalationResolved(ctx, rec)
	svc.EscalationDeleted(ctx, testRecord(escalation.UrgencyLow))

	events := mem.all()
	require.Len(t, events, 3)

	assert.Equal(t, EventEscalationCreated, events[0].Type)
	assert.Equal(t, SeverityCritical, events[0].Severity)
	assert.Equal(t, "needs approval", events[0].Details["reason"])
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())

	assert.Equal(t, EventEscalationResolved, events[1].Type)
	assert.Equal(t, "approved", events[1].Details["response"])

	assert.Equal(t, EventEscalationDeleted, events[2].Type)
	assert.Equal(t, SeverityWarning, events[2].Severity)
}

func TestServiceStartupShutdown(t *testing.T) {
	mem := &memorySink{}
	svc := NewServiceWithSink(zap.NewNop(), mem)
	ctx := context.Background()

	svc.Startup(ctx, ":8080")
	require.NoError(t, svc.Shutdown(ctx))

	events := mem.all()
	require.Len(t, events, 2)
	assert.Equal(t, EventSystemStartup, events[0].Type)
	assert.Equal(t, ":8080", events[0].Details["listenAddress"])
	assert.Nil(t, events[0].Escalation)
	assert.Equal(t, EventSystemShutdown, events[1].Type)
}

func TestKafkaSinkConfigValidation(t *testing.T) {
	_, err := NewKafkaSink(kafkaConfig(nil, "audit"), zap.NewNop())
	assert.Error(t, err)

	_, err = NewKafkaSink(kafkaConfig([]string{"localhost:9092"}, ""), zap.NewNop())
	assert.Error(t, err)

	sink, err := NewKafkaSink(kafkaConfig([]string{"localhost:9092"}, "audit"), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "kafka", sink.Name())
	require.NoError(t, sink.Close())
	// writes after close are rejected
	assert.Error(t, sink.Write(context.Background(), &Event{ID: "ev"}))
}

func TestKafkaSinkRejectsUnknownSASLMechanism(t *testing.T) {
	cfg := kafkaConfig([]string{"localhost:9092"}, "audit")
	cfg.SASLMechanism = "GSSAPI"
	_, err := NewKafkaSink(cfg, zap.NewNop())
	assert.Error(t, err)
}
