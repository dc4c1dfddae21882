package client

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handoff-sh/handoff/pkg/broker"
	"github.com/handoff-sh/handoff/pkg/config"
	"github.com/handoff-sh/handoff/pkg/escalation"
	"github.com/handoff-sh/handoff/pkg/system"
)

// newBrokerServer runs a real broker behind httptest so client calls hit
// the full REST and stream surface.
func newBrokerServer(t *testing.T) (*httptest.Server, *broker.Broker) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{}
	cfg.Defaults()
	log := system.NewTestLogger()

	b := broker.New(log, cfg.Broker)
	t.Cleanup(b.Shutdown)

	engine := gin.New()
	controller := broker.NewEscalationController(log, b)
	group := engine.Group("/api/" + controller.BasePath())
	require.NoError(t, controller.Register(group))

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv, b
}

func newTestClient(t *testing.T, server string) *Client {
	t.Helper()
	c, err := New(WithServer(server), WithUserAgent("handoffctl-test"))
	require.NoError(t, err)
	return c
}

func TestNewRequiresServer(t *testing.T) {
	_, err := New()
	assert.Error(t, err)

	_, err = New(WithServer(""))
	assert.Error(t, err)

	_, err = New(WithServer("ftp://example.com"))
	assert.Error(t, err)
}

func TestCreateAndGet(t *testing.T) {
	srv, _ := newBrokerServer(t)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	created, err := c.Escalations().Create(ctx, broker.CreateRequest{
		ConversationID: "conv-1",
		RequesterID:    "user-1",
		Reason:         "need approval",
		Urgency:        "high",
		Category:       "authorization",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "pending", created.Status)

	rec, err := c.Escalations().Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "conv-1", rec.ConversationID)
	assert.Equal(t, escalation.UrgencyHigh, rec.Urgency)
}

func TestGetNotFound(t *testing.T) {
	srv, _ := newBrokerServer(t)
	c := newTestClient(t, srv.URL)

	_, err := c.Escalations().Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))
}

func TestListPending(t *testing.T) {
	srv, _ := newBrokerServer(t)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	_, err := c.Escalations().Create(ctx, broker.CreateRequest{ConversationID: "conv-1", Urgency: "low"})
	require.NoError(t, err)
	created, err := c.Escalations().Create(ctx, broker.CreateRequest{ConversationID: "conv-2", Urgency: "critical"})
	require.NoError(t, err)

	records, err := c.Escalations().ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	// critical sorts ahead of low
	assert.Equal(t, created.ID, records[0].ID)
}

func TestResolveAndConflict(t *testing.T) {
	srv, _ := newBrokerServer(t)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	created, err := c.Escalations().Create(ctx, broker.CreateRequest{ConversationID: "conv-1"})
	require.NoError(t, err)

	rec, err := c.Escalations().Resolve(ctx, created.ID, "approved")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusResolved, rec.Status)
	assert.Equal(t, "approved", rec.HumanResponse)

	_, err = c.Escalations().Resolve(ctx, created.ID, "denied")
	require.Error(t, err)
	assert.True(t, IsConflict(err))
}

func TestDelete(t *testing.T) {
	srv, _ := newBrokerServer(t)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	created, err := c.Escalations().Create(ctx, broker.CreateRequest{ConversationID: "conv-1"})
	require.NoError(t, err)

	require.NoError(t, c.Escalations().Delete(ctx, created.ID))

	err = c.Escalations().Delete(ctx, created.ID)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}
