package agent

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handoff-sh/handoff/pkg/broker"
	"github.com/handoff-sh/handoff/pkg/client"
	"github.com/handoff-sh/handoff/pkg/config"
	"github.com/handoff-sh/handoff/pkg/escalation"
	"github.com/handoff-sh/handoff/pkg/system"
)

func newCoordinatorFixture(t *testing.T, model Model) (*Coordinator, *client.Client, *broker.Broker) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := system.NewTestLogger()

	cfg := config.Config{}
	cfg.Defaults()
	cfg.Agent.Filler = config.Filler{
		InitialDelayMs: 10,
		MinIntervalMs:  10,
		MaxIntervalMs:  20,
		MaxMessages:    3,
	}

	b := broker.New(log, cfg.Broker)
	t.Cleanup(b.Shutdown)

	engine := gin.New()
	controller := broker.NewEscalationController(log, b)
	group := engine.Group("/api/" + controller.BasePath())
	require.NoError(t, controller.Register(group))
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	c, err := client.New(client.WithServer(srv.URL))
	require.NoError(t, err)

	session := NewSession("conv-1", "user-1")
	coord := NewCoordinator(log, cfg.Agent, c, model, session)
	t.Cleanup(coord.OnClose)
	return coord, c, b
}

func TestRaiseEscalationCreatesRecord(t *testing.T) {
	model := &fakeModel{}
	coord, c, _ := newCoordinatorFixture(t, model)

	coord.OnTurn(escalation.Turn{Role: "user", Content: "I need a bigger refund"})

	id, raised := coord.RaiseEscalation(context.Background(), RaiseRequest{
		Reason:   "refund above limit",
		Urgency:  "high",
		Category: "financial",
	})
	require.True(t, raised)
	require.NotEmpty(t, id)
	assert.True(t, coord.Waiting(id))

	rec, err := c.Escalations().Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "conv-1", rec.ConversationID)
	assert.Equal(t, "user-1", rec.RequesterID)
	assert.Equal(t, escalation.UrgencyHigh, rec.Urgency)
	require.Len(t, rec.RecentHistory, 1)
	assert.Equal(t, "I need a bigger refund", rec.RecentHistory[0].Content)
}

func TestRaiseEscalationDeduplicates(t *testing.T) {
	model := &fakeModel{}
	coord, c, _ := newCoordinatorFixture(t, model)

	_, raised := coord.RaiseEscalation(context.Background(), RaiseRequest{Reason: "first"})
	require.True(t, raised)

	_, raised = coord.RaiseEscalation(context.Background(), RaiseRequest{Reason: "second"})
	assert.False(t, raised)

	pending, err := c.Escalations().ListPending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestResolutionInjectsResponse(t *testing.T) {
	model := &fakeModel{}
	coord, c, _ := newCoordinatorFixture(t, model)

	id, raised := coord.RaiseEscalation(context.Background(), RaiseRequest{Reason: "refund", Urgency: "critical"})
	require.True(t, raised)

	_, err := c.Escalations().Resolve(context.Background(), id, "approved up to $750")
	require.NoError(t, err)

	waitForCondition(t, func() bool {
		for _, text := range model.spokenTexts() {
			if text == "injected response" {
				return true
			}
		}
		return false
	}, "human response was never injected")

	assert.Equal(t, 1, model.interruptCount())
	waitForCondition(t, func() bool { return !coord.Waiting(id) }, "escalation still tracked after resolution")

	// The filler is joined before injection; nothing may follow the answer.
	spoken := model.spokenTexts()
	assert.Equal(t, "injected response", spoken[len(spoken)-1])
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, len(spoken), len(model.spokenTexts()))
}

func TestDeletionEndsWaiting(t *testing.T) {
	model := &fakeModel{}
	coord, c, _ := newCoordinatorFixture(t, model)

	id, raised := coord.RaiseEscalation(context.Background(), RaiseRequest{Reason: "refund"})
	require.True(t, raised)

	require.NoError(t, c.Escalations().Delete(context.Background(), id))

	waitForCondition(t, func() bool { return !coord.Waiting(id) }, "deleted escalation still tracked")
	for _, text := range model.spokenTexts() {
		assert.NotEqual(t, "injected response", text)
	}
}

func TestOnCloseJoinsEverything(t *testing.T) {
	model := &fakeModel{}
	coord, _, _ := newCoordinatorFixture(t, model)

	id, raised := coord.RaiseEscalation(context.Background(), RaiseRequest{Reason: "refund"})
	require.True(t, raised)

	coord.OnClose()
	assert.False(t, coord.Waiting(id))

	spoken := len(model.spokenTexts())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, spoken, len(model.spokenTexts()), "background task survived OnClose")
}

func TestBrokerUnreachableReleasesGate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := system.NewTestLogger()
	cfg := config.Config{}
	cfg.Defaults()

	srv := httptest.NewServer(nil)
	srv.Close() // connection refused from here on

	c, err := client.New(client.WithServer(srv.URL))
	require.NoError(t, err)

	session := NewSession("conv-1", "user-1")
	coord := NewCoordinator(log, cfg.Agent, c, &fakeModel{}, session)
	defer coord.OnClose()

	_, raised := coord.RaiseEscalation(context.Background(), RaiseRequest{Reason: "refund"})
	assert.False(t, raised)
	assert.False(t, session.EscalationTriggered(), "failed create must reopen the gate")
}
