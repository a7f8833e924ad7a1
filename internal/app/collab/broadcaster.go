/*
Package collab implements the real-time collaboration core.

This file defines the Room Broadcaster: the owner of room membership and
the fan-out path every room-scoped event takes. Membership is keyed by
connection, not by user, so multi-tab users occupy one slot per tab.
*/
package collab

import (
	"sync"

	"github.com/rs/zerolog"

	"lexcollab/internal/pkg/logx"
)

// Broadcaster maintains the room → member-connections mapping and delivers
// events to exactly that membership. Each fan-out queues to every member
// while holding the room lock, so all members observe a single event order
// per room.
type Broadcaster struct {
	// mu protects rooms. Held across each complete fan-out.
	mu sync.Mutex

	// rooms maps room id to its member connections, keyed by connection id.
	rooms map[string]map[string]*Connection

	registry *Registry

	// typing is notified on leave so no member departs with a live
	// indicator. Attached after construction; the two components reference
	// each other.
	typing *TypingTracker

	logger zerolog.Logger
}

// NewBroadcaster returns a Broadcaster over the given registry.
func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{
		rooms:    make(map[string]map[string]*Connection),
		registry: registry,
		logger:   logx.Logger().With().Str("component", "broadcaster").Logger(),
	}
}

// AttachTypingTracker wires the typing tracker used for leave cleanup.
func (b *Broadcaster) AttachTypingTracker(typing *TypingTracker) {
	b.typing = typing
}

// Join adds the connection to the room and notifies the other existing
// members. Joining twice is idempotent: the second call reports false and
// emits no duplicate notification.
func (b *Broadcaster) Join(conn *Connection, roomID string) bool {
	b.mu.Lock()

	members, ok := b.rooms[roomID]
	if !ok {
		members = make(map[string]*Connection)
		b.rooms[roomID] = members
	}

	if _, already := members[conn.ID]; already {
		b.mu.Unlock()
		return false
	}

	// The registry is the membership source of truth on disconnect: if it
	// no longer tracks the connection (an unregister raced this join), a
	// member entry here would never be unwound.
	if !b.registry.AddRoom(conn.ID, roomID) {
		if len(members) == 0 {
			delete(b.rooms, roomID)
		}
		b.mu.Unlock()

		b.logger.Warn().
			Str("room_id", roomID).
			Str("conn_id", conn.ID).
			Msg("Join for connection the registry no longer tracks. Ignoring.")
		return false
	}

	members[conn.ID] = conn

	event := NewEvent(EvtUserJoined, roomID, MemberPayload{
		UserID:      conn.UserID,
		DisplayName: conn.DisplayName,
	})
	b.queueLocked(roomID, event, conn.ID)

	memberCount := len(members)
	b.mu.Unlock()

	b.logger.Info().
		Str("room_id", roomID).
		Str("conn_id", conn.ID).
		Str("user_id", conn.UserID).
		Int("members", memberCount).
		Msg("Connection joined room.")

	return true
}

// Leave removes the connection from the room, notifies the remaining
// members, and clears any typing entry the departing user held there.
// Leaving a room the connection is not in is a no-op.
func (b *Broadcaster) Leave(conn *Connection, roomID string) {
	b.mu.Lock()

	members, ok := b.rooms[roomID]
	if !ok {
		b.mu.Unlock()
		return
	}

	if _, member := members[conn.ID]; !member {
		b.mu.Unlock()
		return
	}

	delete(members, conn.ID)
	b.registry.RemoveRoom(conn.ID, roomID)

	if len(members) == 0 {
		delete(b.rooms, roomID)
	} else {
		event := NewEvent(EvtUserLeft, roomID, MemberPayload{
			UserID:      conn.UserID,
			DisplayName: conn.DisplayName,
		})
		b.queueLocked(roomID, event, "")
	}

	b.mu.Unlock()

	b.logger.Info().
		Str("room_id", roomID).
		Str("conn_id", conn.ID).
		Str("user_id", conn.UserID).
		Msg("Connection left room.")

	// Unwind after releasing the lock: ClearUser broadcasts back through
	// this Broadcaster.
	if b.typing != nil {
		b.typing.ClearUser(roomID, conn.UserID)
	}
}

// Broadcast delivers an event to every connection currently in the room,
// the sender included. Senders render from the same broadcast as everyone
// else, so their view never diverges from what was actually persisted.
func (b *Broadcaster) Broadcast(roomID string, event Event) {
	b.mu.Lock()
	b.queueLocked(roomID, event, "")
	b.mu.Unlock()
}

// BroadcastExcept delivers an event to every room member except one
// connection. Used for join/left/typing notifications where the actor
// already knows what it did.
func (b *Broadcaster) BroadcastExcept(roomID, exceptConnID string, event Event) {
	b.mu.Lock()
	b.queueLocked(roomID, event, exceptConnID)
	b.mu.Unlock()
}

// DisconnectAll leaves every room the connection belonged to, driven by
// the room set the registry returned from Unregister.
func (b *Broadcaster) DisconnectAll(conn *Connection, roomIDs []string) {
	for _, roomID := range roomIDs {
		b.Leave(conn, roomID)
	}
}

// Members returns the distinct users currently in a room, for the join
// snapshot.
func (b *Broadcaster) Members(roomID string) []MemberPayload {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[string]struct{})
	members := make([]MemberPayload, 0, len(b.rooms[roomID]))

	for _, conn := range b.rooms[roomID] {
		if _, dup := seen[conn.UserID]; dup {
			continue
		}
		seen[conn.UserID] = struct{}{}
		members = append(members, MemberPayload{
			UserID:      conn.UserID,
			DisplayName: conn.DisplayName,
		})
	}

	return members
}

// MemberConnectionCount reports how many connections a room currently has.
func (b *Broadcaster) MemberConnectionCount(roomID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rooms[roomID])
}

// queueLocked encodes the event once and queues it to every member except
// exceptConnID. Callers must hold b.mu.
func (b *Broadcaster) queueLocked(roomID string, event Event, exceptConnID string) {
	members, ok := b.rooms[roomID]
	if !ok || len(members) == 0 {
		return
	}

	data, err := event.Encode()
	if err != nil {
		b.logger.Error().Err(err).
			Str("room_id", roomID).
			Str("event_type", string(event.Type)).
			Msg("Failed to encode event for broadcast.")
		return
	}

	for connID, conn := range members {
		if connID == exceptConnID {
			continue
		}
		if !conn.Queue(data) {
			b.logger.Warn().
				Str("room_id", roomID).
				Str("conn_id", connID).
				Str("event_type", string(event.Type)).
				Msg("Member send buffer full, dropping event.")
		}
	}
}
