package cmd

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handoff-sh/handoff/pkg/broker"
	"github.com/handoff-sh/handoff/pkg/config"
	"github.com/handoff-sh/handoff/pkg/escalation"
	"github.com/handoff-sh/handoff/pkg/handoffctl/output"
	"github.com/handoff-sh/handoff/pkg/system"
)

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

func runCommand(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	root := NewRootCommand(Config{OutputWriter: &buf})
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append(args, "--server", server))
	err := root.Execute()
	return buf.String(), err
}

func createEscalation(t *testing.T, b *broker.Broker, reason string) *escalation.Record {
	t.Helper()
	return b.Create(context.Background(), broker.CreateRequest{
		ConversationID: "conv-1",
		RequesterID:    "user-1",
		Reason:         reason,
		Urgency:        "high",
		Category:       "financial",
	})
}

func TestListCommand(t *testing.T) {
	srv, b := newBrokerServer(t)
	rec := createEscalation(t, b, "refund above limit")

	out, err := runCommand(t, srv.URL, "list")
	require.NoError(t, err)
	assert.Contains(t, out, rec.ID)
	assert.Contains(t, out, "high")
	assert.Contains(t, out, "refund above limit")
}

func TestListCommandJSON(t *testing.T) {
	srv, b := newBrokerServer(t)
	rec := createEscalation(t, b, "refund above limit")

	out, err := runCommand(t, srv.URL, "list", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "`+rec.ID+`"`)
}

func TestGetCommand(t *testing.T) {
	srv, b := newBrokerServer(t)
	rec := createEscalation(t, b, "refund above limit")

	out, err := runCommand(t, srv.URL, "get", rec.ID)
	require.NoError(t, err)
	assert.Contains(t, out, rec.ID)
	assert.Contains(t, out, "refund above limit")
}

func TestGetCommandUnknownID(t *testing.T) {
	srv, _ := newBrokerServer(t)

	_, err := runCommand(t, srv.URL, "get", "missing")
	assert.Error(t, err)
}

func TestResolveCommand(t *testing.T) {
	srv, b := newBrokerServer(t)
	rec := createEscalation(t, b, "refund above limit")

	out, err := runCommand(t, srv.URL, "resolve", rec.ID, "approved", "up", "to", "$750")
	require.NoError(t, err)
	assert.Contains(t, out, "resolved")

	resolved, err := b.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusResolved, resolved.Status)
	assert.Equal(t, "approved up to $750", resolved.HumanResponse)
}

func TestResolveCommandConflict(t *testing.T) {
	srv, b := newBrokerServer(t)
	rec := createEscalation(t, b, "refund above limit")
	_, err := b.Resolve(context.Background(), rec.ID, "already done")
	require.NoError(t, err)

	_, err = runCommand(t, srv.URL, "resolve", rec.ID, "again")
	assert.Error(t, err)
}

func TestDeleteCommand(t *testing.T) {
	srv, b := newBrokerServer(t)
	rec := createEscalation(t, b, "refund above limit")

	out, err := runCommand(t, srv.URL, "delete", rec.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted")

	_, err = b.Get(rec.ID)
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "http://localhost:0", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "handoffctl")
}

func TestPrintEvent(t *testing.T) {
	var buf bytes.Buffer
	rt := &runtimeState{writer: &buf, outputFormat: string(output.FormatTable)}

	rec := &escalation.Record{ID: "esc-1", Urgency: escalation.UrgencyHigh, Category: "financial", Reason: "refund"}
	require.NoError(t, printEvent(rt, broker.Event{Type: broker.EventNewEscalation, Escalation: rec}))
	require.NoError(t, printEvent(rt, broker.Event{Type: broker.EventEscalationResolved, Escalation: rec}))
	require.NoError(t, printEvent(rt, broker.Event{Type: broker.EventEscalationDeleted, ID: "esc-1"}))

	out := buf.String()
	assert.Contains(t, out, "NEW      esc-1")
	assert.Contains(t, out, "RESOLVED esc-1")
	assert.Contains(t, out, "DELETED  esc-1")
}
