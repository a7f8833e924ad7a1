package collab

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// typingTestRoom wires a broadcaster with two members and returns the
// pieces a typing test needs.
func typingTestRoom(t *testing.T, ttl time.Duration) (*TypingTracker, *Connection, *Connection, *testSink, *testSink) {
	t.Helper()

	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry)
	typing := NewTypingTracker(broadcaster, ttl)
	broadcaster.AttachTypingTracker(typing)

	connA, sinkA := registerConn(t, registry, "ca", "ua", "Alice")
	connB, sinkB := registerConn(t, registry, "cb", "ub", "Bob")
	broadcaster.Join(connA, "p1")
	broadcaster.Join(connB, "p1")

	return typing, connA, connB, sinkA, sinkB
}

func TestTypingStartEdgeTriggered(t *testing.T) {
	typing, connA, _, sinkA, sinkB := typingTestRoom(t, time.Minute)

	typing.Start("p1", connA)
	typing.Start("p1", connA)
	typing.Start("p1", connA)

	starts := eventsOfType(sinkB.events(t), EvtTypingStart)
	require.Len(t, starts, 1, "repeated starts collapse into one indicator")

	var typist MemberPayload
	decodePayload(t, starts[0], &typist)
	assert.Equal(t, "ua", typist.UserID)
	assert.Equal(t, "Alice", typist.DisplayName)

	assert.Empty(t, eventsOfType(sinkA.events(t), EvtTypingStart), "typer does not see its own indicator")
}

func TestTypingStopEdgeTriggered(t *testing.T) {
	typing, connA, _, _, sinkB := typingTestRoom(t, time.Minute)

	// Stop while idle is a no-op.
	typing.Stop("p1", connA)
	assert.Empty(t, eventsOfType(sinkB.events(t), EvtTypingStop))

	typing.Start("p1", connA)
	typing.Stop("p1", connA)
	typing.Stop("p1", connA)

	assert.Len(t, eventsOfType(sinkB.events(t), EvtTypingStop), 1, "only the typing→idle edge broadcasts")
}

func TestTypingExpiryBroadcastsExactlyOneStop(t *testing.T) {
	typing, connA, _, _, sinkB := typingTestRoom(t, 30*time.Millisecond)

	typing.Start("p1", connA)

	// Wait well past the TTL so the timer has certainly fired.
	assert.Eventually(t, func() bool {
		return len(eventsOfType(sinkB.events(t), EvtTypingStop)) == 1
	}, time.Second, 5*time.Millisecond, "expiry must force exactly one typing:stop")

	// No second stop arrives afterwards.
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, eventsOfType(sinkB.events(t), EvtTypingStop), 1)
	assert.Empty(t, typing.ActiveTypists("p1"))
}

func TestTypingRefreshResetsExpiry(t *testing.T) {
	typing, connA, _, _, sinkB := typingTestRoom(t, 60*time.Millisecond)

	typing.Start("p1", connA)

	// Keep refreshing inside the window; the indicator must survive.
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		typing.Start("p1", connA)
	}
	assert.Empty(t, eventsOfType(sinkB.events(t), EvtTypingStop), "refreshed indicator must not expire")
	assert.Len(t, typing.ActiveTypists("p1"), 1)

	// Once refreshes cease, exactly one expiry stop follows.
	assert.Eventually(t, func() bool {
		return len(eventsOfType(sinkB.events(t), EvtTypingStop)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestTypingStopAfterExpiryIsNoOp(t *testing.T) {
	typing, connA, _, _, sinkB := typingTestRoom(t, 20*time.Millisecond)

	typing.Start("p1", connA)

	require.Eventually(t, func() bool {
		return len(eventsOfType(sinkB.events(t), EvtTypingStop)) == 1
	}, time.Second, 5*time.Millisecond)

	// A client-sent stop arriving after expiry must not double-broadcast.
	typing.Stop("p1", connA)
	assert.Len(t, eventsOfType(sinkB.events(t), EvtTypingStop), 1)
}

func TestTypingClearUserAlwaysBroadcasts(t *testing.T) {
	typing, connA, _, sinkA, sinkB := typingTestRoom(t, time.Minute)

	typing.Start("p1", connA)
	typing.ClearUser("p1", "ua")

	// ClearUser bypasses the exclude-the-typer rule: the whole room,
	// including the typer's own connections, sees the stop.
	assert.Len(t, eventsOfType(sinkB.events(t), EvtTypingStop), 1)
	assert.Len(t, eventsOfType(sinkA.events(t), EvtTypingStop), 1)

	// Clearing an idle user broadcasts nothing.
	typing.ClearUser("p1", "ua")
	assert.Len(t, eventsOfType(sinkB.events(t), EvtTypingStop), 1)
}

func TestTypingActiveTypists(t *testing.T) {
	typing, connA, connB, _, _ := typingTestRoom(t, time.Minute)

	assert.Empty(t, typing.ActiveTypists("p1"))

	typing.Start("p1", connA)
	typing.Start("p1", connB)

	typists := typing.ActiveTypists("p1")
	require.Len(t, typists, 2)

	typing.Stop("p1", connA)
	typists = typing.ActiveTypists("p1")
	require.Len(t, typists, 1)
	assert.Equal(t, "ub", typists[0].UserID)
}

func TestTypingShutdownCancelsTimers(t *testing.T) {
	typing, connA, _, _, sinkB := typingTestRoom(t, 30*time.Millisecond)

	typing.Start("p1", connA)
	typing.Shutdown()

	// A cancelled timer must not fire a stale broadcast.
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, eventsOfType(sinkB.events(t), EvtTypingStop))
	assert.Empty(t, typing.ActiveTypists("p1"))
}
