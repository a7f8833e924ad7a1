package collab

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexcollab/internal/app/message"
	"lexcollab/internal/pkg/errs"
)

func TestHubConnectRequiresIdentity(t *testing.T) {
	hub, _ := newTestHub(t)

	_, customErr := hub.Connect("c1", "", "Nameless", &testSink{})
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrUnauthenticated, customErr.Code)
	assert.Equal(t, 0, hub.Registry().ConnectionCountFor(""))
}

func TestHubJoinLeaveNetEffect(t *testing.T) {
	hub, _ := newTestHub(t)
	connA, _ := connect(t, hub, "ca", "ua", "Alice")

	hub.Dispatch(connA, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))
	assert.True(t, hub.Registry().InRoom("ca", "p1"))

	hub.Dispatch(connA, frame(t, EvtProjectLeave, LeavePayload{RoomID: "p1"}))
	assert.False(t, hub.Registry().InRoom("ca", "p1"), "join then leave leaves no membership")
}

func TestHubJoinSendsRoomSnapshot(t *testing.T) {
	hub, _ := newTestHub(t)
	connA, _ := connect(t, hub, "ca", "ua", "Alice")
	connB, sinkB := connect(t, hub, "cb", "ub", "Bob")

	hub.Dispatch(connA, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))
	hub.Dispatch(connA, frame(t, EvtTypingStart, TypingPayload{RoomID: "p1"}))

	hub.Dispatch(connB, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))

	snapshots := eventsOfType(sinkB.events(t), EvtRoomState)
	require.Len(t, snapshots, 1)

	var state RoomStatePayload
	decodePayload(t, snapshots[0], &state)
	assert.Equal(t, "p1", state.RoomID)
	assert.Len(t, state.Members, 2, "snapshot lists both members")
	require.Len(t, state.Typists, 1, "snapshot carries the active typist")
	assert.Equal(t, "ua", state.Typists[0].UserID)

	// Idempotent re-join: no second snapshot.
	hub.Dispatch(connB, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))
	assert.Len(t, eventsOfType(sinkB.events(t), EvtRoomState), 1)
}

func TestHubSendPersistsThenBroadcasts(t *testing.T) {
	hub, store := newTestHub(t)
	connA, sinkA := connect(t, hub, "ca", "ua", "Alice")
	connB, sinkB := connect(t, hub, "cb", "ub", "Bob")

	hub.Dispatch(connA, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))
	hub.Dispatch(connB, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))

	hub.Dispatch(connA, frame(t, EvtMessageSend, SendPayload{RoomID: "p1", Content: "Hello"}))

	persisted, err := store.ListRecent(context.Background(), "p1", 10)
	require.NoError(t, err)
	require.Len(t, persisted, 1)

	// Sender and other members render from the same broadcast: identical
	// content, author, and server-assigned id/timestamp.
	for name, sink := range map[string]*testSink{"sender": sinkA, "receiver": sinkB} {
		newMsgs := eventsOfType(sink.events(t), EvtMessageNew)
		require.Lenf(t, newMsgs, 1, "%s must see the message", name)

		var msg message.Message
		decodePayload(t, newMsgs[0], &msg)
		assert.Equal(t, persisted[0].ID, msg.ID, name)
		assert.Equal(t, "Hello", msg.Content, name)
		assert.Equal(t, "ua", msg.AuthorID, name)
		assert.Equal(t, persisted[0].CreatedAt.UnixMilli(), msg.CreatedAt.UnixMilli(), name)
	}
}

func TestHubSendRejectsEmptyContent(t *testing.T) {
	hub, store := newTestHub(t)
	connA, sinkA := connect(t, hub, "ca", "ua", "Alice")
	connB, sinkB := connect(t, hub, "cb", "ub", "Bob")

	hub.Dispatch(connA, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))
	hub.Dispatch(connB, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))

	for _, content := range []string{"", "   ", "\n\t "} {
		hub.Dispatch(connA, frame(t, EvtMessageSend, SendPayload{RoomID: "p1", Content: content}))
	}

	errorsToSender := eventsOfType(sinkA.events(t), EvtMessageError)
	require.Len(t, errorsToSender, 3)

	var errPayload ErrorPayload
	decodePayload(t, errorsToSender[0], &errPayload)
	assert.Equal(t, errs.ErrInvalidMessage, errPayload.Code)

	assert.Empty(t, eventsOfType(sinkB.events(t), EvtMessageNew), "nothing is broadcast")
	assert.Empty(t, eventsOfType(sinkB.events(t), EvtMessageError), "errors go to the sender only")

	persisted, err := store.ListRecent(context.Background(), "p1", 10)
	require.NoError(t, err)
	assert.Empty(t, persisted, "nothing is persisted")
}

func TestHubSendRejectsOversizedContent(t *testing.T) {
	hub, _ := newTestHub(t)
	connA, sinkA := connect(t, hub, "ca", "ua", "Alice")
	hub.Dispatch(connA, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))

	huge := make([]byte, MaxContentBytes+1)
	for i := range huge {
		huge[i] = 'a'
	}
	hub.Dispatch(connA, frame(t, EvtMessageSend, SendPayload{RoomID: "p1", Content: string(huge)}))

	errorsToSender := eventsOfType(sinkA.events(t), EvtMessageError)
	require.Len(t, errorsToSender, 1)

	var errPayload ErrorPayload
	decodePayload(t, errorsToSender[0], &errPayload)
	assert.Equal(t, errs.ErrMessageTooLong, errPayload.Code)
}

func TestHubSendPersistFailure(t *testing.T) {
	hub, store := newTestHub(t)
	connA, sinkA := connect(t, hub, "ca", "ua", "Alice")
	connB, sinkB := connect(t, hub, "cb", "ub", "Bob")

	hub.Dispatch(connA, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))
	hub.Dispatch(connB, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))

	// A is typing when the store goes down mid-send.
	hub.Dispatch(connA, frame(t, EvtTypingStart, TypingPayload{RoomID: "p1"}))
	store.FailPersistWith(errors.New("storage down"))

	hub.Dispatch(connA, frame(t, EvtMessageSend, SendPayload{RoomID: "p1", Content: "Hello"}))

	errorsToSender := eventsOfType(sinkA.events(t), EvtMessageError)
	require.Len(t, errorsToSender, 1, "sender receives exactly one message:error")

	var errPayload ErrorPayload
	decodePayload(t, errorsToSender[0], &errPayload)
	assert.Equal(t, errs.ErrPersistence, errPayload.Code)

	bEvents := sinkB.events(t)
	assert.Empty(t, eventsOfType(bEvents, EvtMessageNew), "the room never sees a phantom message")
	assert.Empty(t, eventsOfType(bEvents, EvtMessageError))
	assert.Len(t, eventsOfType(bEvents, EvtTypingStop), 1,
		"failed send still stops the sender's typing indicator")

	// A subsequent successful send proceeds normally.
	store.FailPersistWith(nil)
	hub.Dispatch(connA, frame(t, EvtMessageSend, SendPayload{RoomID: "p1", Content: "Hello again"}))

	newMsgs := eventsOfType(sinkB.events(t), EvtMessageNew)
	require.Len(t, newMsgs, 1, "no stuck state from the prior failure")

	var msg message.Message
	decodePayload(t, newMsgs[0], &msg)
	assert.Equal(t, "Hello again", msg.Content)
}

func TestHubTypingThenSendOrdering(t *testing.T) {
	hub, _ := newTestHub(t)
	connA, _ := connect(t, hub, "ca", "ua", "Alice")
	connB, sinkB := connect(t, hub, "cb", "ub", "Bob")

	hub.Dispatch(connA, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))
	hub.Dispatch(connB, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))

	hub.Dispatch(connA, frame(t, EvtTypingStart, TypingPayload{RoomID: "p1"}))
	hub.Dispatch(connA, frame(t, EvtMessageSend, SendPayload{RoomID: "p1", Content: "Hello"}))

	// B observes, in order: typing:start, message:new, typing:stop. The
	// send implies the stop, with no lingering indicator.
	var observed []EventType
	for _, evt := range sinkB.events(t) {
		switch evt.Type {
		case EvtTypingStart, EvtTypingStop, EvtMessageNew:
			observed = append(observed, evt.Type)
		}
	}
	assert.Equal(t, []EventType{EvtTypingStart, EvtMessageNew, EvtTypingStop}, observed)
}

func TestHubDisconnectUnwindsEverything(t *testing.T) {
	hub, _ := newTestHub(t)
	connA, _ := connect(t, hub, "ca", "ua", "Alice")
	connB, sinkB := connect(t, hub, "cb", "ub", "Bob")

	hub.Dispatch(connA, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))
	hub.Dispatch(connB, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))
	hub.Dispatch(connA, frame(t, EvtTypingStart, TypingPayload{RoomID: "p1"}))

	// A drops without project:leave. B must see user:left and typing:stop
	// from the single disconnect pass, and the offline edge.
	hub.Disconnect("ca")

	bEvents := sinkB.events(t)
	assert.Len(t, eventsOfType(bEvents, EvtUserLeft), 1)
	assert.Len(t, eventsOfType(bEvents, EvtTypingStop), 1)
	assert.Len(t, presenceEventsFor(t, sinkB, EvtUserOffline, "ua"), 1)

	assert.False(t, hub.Registry().InRoom("ca", "p1"))
	assert.Equal(t, 0, hub.Registry().ConnectionCountFor("ua"))
}

func TestHubReadReceipt(t *testing.T) {
	hub, store := newTestHub(t)
	connA, sinkA := connect(t, hub, "ca", "ua", "Alice")
	connB, sinkB := connect(t, hub, "cb", "ub", "Bob")

	hub.Dispatch(connA, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))
	hub.Dispatch(connB, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))

	hub.Dispatch(connA, frame(t, EvtMessageSend, SendPayload{RoomID: "p1", Content: "Hello"}))

	persisted, err := store.ListRecent(context.Background(), "p1", 10)
	require.NoError(t, err)
	require.Len(t, persisted, 1)

	hub.Dispatch(connB, frame(t, EvtMessageRead, ReadPayload{MessageID: persisted[0].ID, RoomID: "p1"}))

	// The receipt reaches the whole room, reader included.
	for name, sink := range map[string]*testSink{"author": sinkA, "reader": sinkB} {
		receipts := eventsOfType(sink.events(t), EvtMessageRead)
		require.Lenf(t, receipts, 1, "%s must see the receipt", name)

		var receipt ReadReceiptPayload
		decodePayload(t, receipts[0], &receipt)
		assert.Equal(t, persisted[0].ID, receipt.MessageID)
		assert.Equal(t, "ub", receipt.ReaderID)
	}

	after, err := store.ListRecent(context.Background(), "p1", 10)
	require.NoError(t, err)
	assert.True(t, after[0].Read)
}

func TestHubReadReceiptUnknownMessageDropped(t *testing.T) {
	hub, _ := newTestHub(t)
	connA, sinkA := connect(t, hub, "ca", "ua", "Alice")
	connB, sinkB := connect(t, hub, "cb", "ub", "Bob")

	hub.Dispatch(connA, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))
	hub.Dispatch(connB, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))

	hub.Dispatch(connB, frame(t, EvtMessageRead, ReadPayload{MessageID: "stale-id", RoomID: "p1"}))

	// Stale receipts are non-fatal and invisible: no receipt broadcast, no
	// error to anyone.
	assert.Empty(t, eventsOfType(sinkA.events(t), EvtMessageRead))
	assert.Empty(t, eventsOfType(sinkB.events(t), EvtMessageRead))
	assert.Empty(t, eventsOfType(sinkB.events(t), EvtMessageError))
}

func TestHubDropsEventsFromNonMembers(t *testing.T) {
	hub, store := newTestHub(t)
	connA, sinkA := connect(t, hub, "ca", "ua", "Alice")
	connB, sinkB := connect(t, hub, "cb", "ub", "Bob")

	hub.Dispatch(connB, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))

	// A never joined p1: its send and typing events are dropped.
	hub.Dispatch(connA, frame(t, EvtMessageSend, SendPayload{RoomID: "p1", Content: "Hello"}))
	hub.Dispatch(connA, frame(t, EvtTypingStart, TypingPayload{RoomID: "p1"}))

	assert.Empty(t, eventsOfType(sinkB.events(t), EvtMessageNew))
	assert.Empty(t, eventsOfType(sinkB.events(t), EvtTypingStart))
	assert.Empty(t, eventsOfType(sinkA.events(t), EvtMessageNew))

	persisted, err := store.ListRecent(context.Background(), "p1", 10)
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestHubMalformedFramesAreDropped(t *testing.T) {
	hub, _ := newTestHub(t)
	connA, sinkA := connect(t, hub, "ca", "ua", "Alice")

	hub.Dispatch(connA, []byte("not json"))
	hub.Dispatch(connA, []byte(`{"type":"message:send","payload":"not an object"}`))
	hub.Dispatch(connA, frame(t, EventType("totally:unknown"), struct{}{}))

	// The connection survives and keeps working.
	hub.Dispatch(connA, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))
	assert.True(t, hub.Registry().InRoom("ca", "p1"))
	assert.Len(t, eventsOfType(sinkA.events(t), EvtRoomState), 1)
}

func TestHubShutdownUnwindsConnections(t *testing.T) {
	hub, _ := newTestHub(t)
	connA, sinkA := connect(t, hub, "ca", "ua", "Alice")
	_, sinkB := connect(t, hub, "cb", "ub", "Bob")

	hub.Dispatch(connA, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))

	hub.Shutdown()

	assert.Equal(t, 0, hub.Registry().ConnectionCountFor("ua"))
	assert.Equal(t, 0, hub.Registry().ConnectionCountFor("ub"))
	assert.False(t, hub.Registry().InRoom("ca", "p1"))
	assert.True(t, sinkA.isClosed(), "shutdown closes each connection's delivery path")
	assert.True(t, sinkB.isClosed())
}

func TestHubMultiTabLeaveKeepsOtherTab(t *testing.T) {
	hub, _ := newTestHub(t)
	tab1, _ := connect(t, hub, "ca1", "ua", "Alice")
	tab2, _ := connect(t, hub, "ca2", "ua", "Alice")
	connB, sinkB := connect(t, hub, "cb", "ub", "Bob")

	hub.Dispatch(tab1, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))
	hub.Dispatch(tab2, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))
	hub.Dispatch(connB, frame(t, EvtProjectJoin, JoinPayload{RoomID: "p1"}))

	hub.Disconnect("ca1")

	// Membership is keyed by connection: the second tab stays a member and
	// the user stays online.
	assert.True(t, hub.Registry().InRoom("ca2", "p1"))
	assert.Equal(t, 1, hub.Registry().ConnectionCountFor("ua"))
	assert.Empty(t, presenceEventsFor(t, sinkB, EvtUserOffline, "ua"))
}
