package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReplyRouterExactlyOnce(t *testing.T) {
	rr := NewReplyRouter(zap.NewNop().Sugar())

	ch := rr.Register("e-1")
	assert.True(t, rr.Deliver("e-1", "approved"))

	got, open := <-ch
	require.True(t, open)
	assert.Equal(t, "approved", got)

	// channel closes after the single delivery
	_, open = <-ch
	assert.False(t, open)

	// a second delivery finds no registration
	assert.False(t, rr.Deliver("e-1", "again"))
	assert.Equal(t, 0, rr.Waiting())
}

func TestReplyRouterDeliverWithoutRegistration(t *testing.T) {
	rr := NewReplyRouter(zap.NewNop().Sugar())
	assert.False(t, rr.Deliver("e-1", "nobody waiting"))
}

func TestReplyRouterReconnectSupersedes(t *testing.T) {
	rr := NewReplyRouter(zap.NewNop().Sugar())

	stale := rr.Register("e-1")
	fresh := rr.Register("e-1")

	// the stale channel closes without a value
	_, open := <-stale
	assert.False(t, open)

	require.True(t, rr.Deliver("e-1", "approved"))
	got := <-fresh
	assert.Equal(t, "approved", got)
}

func TestReplyRouterCloseIfCurrent(t *testing.T) {
	rr := NewReplyRouter(zap.NewNop().Sugar())

	stale := rr.Register("e-1")
	fresh := rr.Register("e-1")

	// the superseded connection's teardown must not disturb the replacement
	rr.CloseIfCurrent("e-1", stale)
	assert.Equal(t, 1, rr.Waiting())

	require.True(t, rr.Deliver("e-1", "approved"))
	assert.Equal(t, "approved", <-fresh)

	// closing the active registration does release it
	ch := rr.Register("e-2")
	rr.CloseIfCurrent("e-2", ch)
	assert.Equal(t, 0, rr.Waiting())
	_, open := <-ch
	assert.False(t, open)
}

func TestReplyRouterClose(t *testing.T) {
	rr := NewReplyRouter(zap.NewNop().Sugar())

	ch := rr.Register("e-1")
	rr.Close("e-1")
	_, open := <-ch
	assert.False(t, open)

	// no registration left to deliver to
	assert.False(t, rr.Deliver("e-1", "late"))

	// closing an unknown id is a no-op
	rr.Close("missing")
}

func TestReplyRouterCloseAll(t *testing.T) {
	rr := NewReplyRouter(zap.NewNop().Sugar())

	a := rr.Register("e-1")
	b := rr.Register("e-2")
	rr.CloseAll()

	_, open := <-a
	assert.False(t, open)
	_, open = <-b
	assert.False(t, open)
	assert.Equal(t, 0, rr.Waiting())
}
