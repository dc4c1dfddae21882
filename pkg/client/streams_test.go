package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handoff-sh/handoff/pkg/broker"
)

func readEvent(t *testing.T, s *Stream) broker.Event {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		require.True(t, ok, "stream closed before event arrived")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for stream event")
		return broker.Event{}
	}
}

func TestOperatorStreamLifecycle(t *testing.T) {
	srv, _ := newBrokerServer(t)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	stream, err := c.OperatorStream(ctx)
	require.NoError(t, err)
	defer stream.Close()

	ev := readEvent(t, stream)
	assert.Equal(t, broker.EventInitialState, ev.Type)
	assert.Empty(t, ev.Escalations)

	created, err := c.Escalations().Create(ctx, broker.CreateRequest{ConversationID: "conv-1", Urgency: "high"})
	require.NoError(t, err)

	ev = readEvent(t, stream)
	assert.Equal(t, broker.EventNewEscalation, ev.Type)
	require.NotNil(t, ev.Escalation)
	assert.Equal(t, created.ID, ev.Escalation.ID)

	_, err = c.Escalations().Resolve(ctx, created.ID, "go ahead")
	require.NoError(t, err)

	ev = readEvent(t, stream)
	assert.Equal(t, broker.EventEscalationResolved, ev.Type)
}

func TestReplyStreamDeliversResponse(t *testing.T) {
	srv, _ := newBrokerServer(t)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	created, err := c.Escalations().Create(ctx, broker.CreateRequest{ConversationID: "conv-1"})
	require.NoError(t, err)

	stream, err := c.ReplyStream(ctx, created.ID)
	require.NoError(t, err)
	defer stream.Close()

	go func() {
		_, _ = c.Escalations().Resolve(ctx, created.ID, "approved")
	}()

	awaitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	response, err := stream.AwaitResponse(awaitCtx)
	require.NoError(t, err)
	assert.Equal(t, "approved", response)
}

func TestReplyStreamUnknownEscalation(t *testing.T) {
	srv, _ := newBrokerServer(t)
	c := newTestClient(t, srv.URL)

	_, err := c.ReplyStream(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestAwaitResponseStreamClosed(t *testing.T) {
	srv, _ := newBrokerServer(t)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	created, err := c.Escalations().Create(ctx, broker.CreateRequest{ConversationID: "conv-1"})
	require.NoError(t, err)

	stream, err := c.ReplyStream(ctx, created.ID)
	require.NoError(t, err)
	defer stream.Close()

	// Deleting the escalation ends the reply stream without a response.
	require.NoError(t, c.Escalations().Delete(ctx, created.ID))

	awaitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err = stream.AwaitResponse(awaitCtx)
	assert.ErrorIs(t, err, ErrStreamClosed)
}
