/*
Package collab implements the real-time collaboration core.

This file defines the Hub, the session coordinator. It owns the lifecycle
of every connection (connect → joined rooms → disconnect), routes inbound
client events to the registry, broadcaster, typing tracker, presence
tracker, and message store, and guarantees that disconnect unwinding runs
exactly once per connection no matter how many disconnect signals arrive.
*/
package collab

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lexcollab/internal/app/message"
	"lexcollab/internal/pkg/errs"
	"lexcollab/internal/pkg/logx"
)

const (
	// MaxContentBytes caps message text size.
	MaxContentBytes = 5000

	// persistTimeout bounds each message store call. A slow persist blocks
	// only the sending connection's own goroutine, never other rooms.
	persistTimeout = 5 * time.Second
)

// Hub wires the collaboration components together and dispatches inbound
// events. All state is process-local and owned here: the Hub is created at
// server start and torn down at server stop, and tests instantiate
// isolated hubs rather than sharing globals.
type Hub struct {
	registry *Registry
	rooms    *Broadcaster
	typing   *TypingTracker
	presence *PresenceTracker
	store    message.Store
	logger   zerolog.Logger
}

// NewHub constructs a Hub persisting through store, with typing indicators
// expiring after typingTTL.
func NewHub(store message.Store, typingTTL time.Duration) *Hub {
	registry := NewRegistry()
	rooms := NewBroadcaster(registry)
	typing := NewTypingTracker(rooms, typingTTL)
	rooms.AttachTypingTracker(typing)

	return &Hub{
		registry: registry,
		rooms:    rooms,
		typing:   typing,
		presence: NewPresenceTracker(registry),
		store:    store,
		logger:   logx.Logger().With().Str("component", "hub").Logger(),
	}
}

// Connect authenticates and registers a new connection. The transport
// layer has already validated the identity token; an empty user id here
// means the handshake carried no identity and the connection is refused
// before registration.
func (h *Hub) Connect(connID, userID, displayName string, sink Sink) (*Connection, *errs.CustomError) {
	if userID == "" {
		return nil, errs.NewError(errs.ErrUnauthenticated)
	}

	conn, connections, customErr := h.registry.Register(connID, userID, displayName, sink)
	if customErr != nil {
		return nil, customErr
	}

	h.presence.OnConnect(userID, displayName, connections)

	return conn, nil
}

// Disconnect unwinds a connection: registry, room membership, typing
// state, and the presence edge check, in one pass. The registry's
// idempotent unregister makes duplicate disconnect signals harmless. The
// unwinding runs even when the disconnect was itself caused by an error,
// so no stale presence or typing entry can survive a failed connection.
func (h *Hub) Disconnect(connID string) {
	conn, joinedRooms, remaining, ok := h.registry.Unregister(connID)
	if !ok {
		return
	}

	h.rooms.DisconnectAll(conn, joinedRooms)
	h.presence.OnDisconnect(conn.UserID, conn.DisplayName, remaining)
}

// Dispatch routes one inbound frame from a connection. Malformed frames
// and unknown event kinds are logged and dropped; they never tear down the
// connection.
func (h *Hub) Dispatch(conn *Connection, raw []byte) {
	var evt InboundEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		h.logger.Warn().Err(err).
			Str("conn_id", conn.ID).
			Msg("Client sent invalid JSON frame.")
		return
	}

	switch evt.Type {
	case EvtProjectJoin:
		var payload JoinPayload
		if !h.decode(conn, evt, &payload) {
			return
		}
		h.handleJoin(conn, payload)

	case EvtProjectLeave:
		var payload LeavePayload
		if !h.decode(conn, evt, &payload) {
			return
		}
		h.rooms.Leave(conn, payload.RoomID)

	case EvtMessageSend:
		var payload SendPayload
		if !h.decode(conn, evt, &payload) {
			return
		}
		h.handleSend(conn, payload)

	case EvtTypingStart:
		var payload TypingPayload
		if !h.decode(conn, evt, &payload) {
			return
		}
		if h.requireMembership(conn, payload.RoomID, evt.Type) {
			h.typing.Start(payload.RoomID, conn)
		}

	case EvtTypingStop:
		var payload TypingPayload
		if !h.decode(conn, evt, &payload) {
			return
		}
		if h.requireMembership(conn, payload.RoomID, evt.Type) {
			h.typing.Stop(payload.RoomID, conn)
		}

	case EvtMessageRead:
		var payload ReadPayload
		if !h.decode(conn, evt, &payload) {
			return
		}
		h.handleRead(conn, payload)

	default:
		h.logger.Warn().
			Str("conn_id", conn.ID).
			Str("event_type", string(evt.Type)).
			Msg("Client sent unsupported event type.")
	}
}

// Shutdown unwinds every live connection, closes its delivery path, and
// stops the hub's autonomous activity (typing expiry timers).
func (h *Hub) Shutdown() {
	for _, conn := range h.registry.Connections() {
		h.Disconnect(conn.ID)
		conn.Close()
	}

	h.typing.Shutdown()
	h.logger.Info().Msg("Hub shut down.")
}

// Registry exposes the connection registry to the transport layer.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// handleJoin adds the connection to the room and sends the joiner a room
// snapshot. A repeated join is idempotent: no notification, no snapshot.
func (h *Hub) handleJoin(conn *Connection, payload JoinPayload) {
	if payload.RoomID == "" {
		h.logger.Warn().Str("conn_id", conn.ID).Msg("Join request without room id.")
		return
	}

	if !h.rooms.Join(conn, payload.RoomID) {
		return
	}

	snapshot := NewEvent(EvtRoomState, payload.RoomID, RoomStatePayload{
		RoomID:  payload.RoomID,
		Members: h.rooms.Members(payload.RoomID),
		Typists: h.typing.ActiveTypists(payload.RoomID),
	})

	h.sendTo(conn, snapshot)
}

// handleSend validates, persists, and broadcasts a chat message. The
// message is always persisted before any member sees it; on persistence
// failure only the sender learns, via message:error, and the sender's
// typing indicator is stopped explicitly so other viewers don't watch a
// "typing" banner for a message that never arrived.
func (h *Hub) handleSend(conn *Connection, payload SendPayload) {
	if !h.requireMembership(conn, payload.RoomID, EvtMessageSend) {
		return
	}

	content := strings.TrimSpace(payload.Content)
	if content == "" {
		h.sendError(conn, payload.RoomID, errs.ErrInvalidMessage)
		return
	}

	if len(payload.Content) > MaxContentBytes {
		h.sendError(conn, payload.RoomID, errs.ErrMessageTooLong)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	msg, err := h.store.Persist(ctx, payload.RoomID, conn.UserID, conn.DisplayName, content, payload.AttachmentRef)
	if err != nil {
		h.logger.Error().Err(err).
			Str("conn_id", conn.ID).
			Str("room_id", payload.RoomID).
			Msg("Failed to persist message.")

		h.sendError(conn, payload.RoomID, errs.ErrPersistence)
		h.typing.ClearUser(payload.RoomID, conn.UserID)
		return
	}

	h.rooms.Broadcast(payload.RoomID, NewEvent(EvtMessageNew, payload.RoomID, msg))

	// Sending a message implies the composer is done typing.
	h.typing.ClearUser(payload.RoomID, conn.UserID)
}

// handleRead marks a message read and fans the receipt out to the room.
// A receipt for an unknown message is stale, not actionable: logged and
// dropped with no client-visible error.
func (h *Hub) handleRead(conn *Connection, payload ReadPayload) {
	if !h.requireMembership(conn, payload.RoomID, EvtMessageRead) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	err := h.store.MarkRead(ctx, payload.MessageID, conn.UserID)
	if errors.Is(err, message.ErrNotFound) {
		h.logger.Debug().
			Str("conn_id", conn.ID).
			Str("message_id", payload.MessageID).
			Msg("Read receipt for unknown message dropped.")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).
			Str("conn_id", conn.ID).
			Str("message_id", payload.MessageID).
			Msg("Failed to mark message read.")
		return
	}

	h.rooms.Broadcast(payload.RoomID, NewEvent(EvtMessageRead, payload.RoomID, ReadReceiptPayload{
		MessageID: payload.MessageID,
		ReaderID:  conn.UserID,
	}))
}

// decode unmarshals an inbound payload, logging and dropping frames whose
// payload doesn't match the declared event type.
func (h *Hub) decode(conn *Connection, evt InboundEvent, dst any) bool {
	if err := json.Unmarshal(evt.Payload, dst); err != nil {
		h.logger.Warn().Err(err).
			Str("conn_id", conn.ID).
			Str("event_type", string(evt.Type)).
			Msg("Client sent invalid payload.")
		return false
	}
	return true
}

// requireMembership drops room-scoped events from connections that never
// joined the room.
func (h *Hub) requireMembership(conn *Connection, roomID string, eventType EventType) bool {
	if roomID == "" || !h.registry.InRoom(conn.ID, roomID) {
		h.logger.Warn().
			Str("conn_id", conn.ID).
			Str("room_id", roomID).
			Str("event_type", string(eventType)).
			Msg("Event for room the connection has not joined. Dropping.")
		return false
	}
	return true
}

// sendError emits a message:error event to the sender only.
func (h *Hub) sendError(conn *Connection, roomID string, code int) {
	customErr := errs.NewError(code)

	h.sendTo(conn, NewEvent(EvtMessageError, roomID, ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	}))
}

// sendTo encodes and queues an event for a single connection.
func (h *Hub) sendTo(conn *Connection, event Event) {
	data, err := event.Encode()
	if err != nil {
		h.logger.Error().Err(err).
			Str("conn_id", conn.ID).
			Str("event_type", string(event.Type)).
			Msg("Failed to encode event.")
		return
	}

	if !conn.Queue(data) {
		h.logger.Warn().
			Str("conn_id", conn.ID).
			Str("event_type", string(event.Type)).
			Msg("Connection send buffer full, dropping event.")
	}
}
