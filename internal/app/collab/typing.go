/*
Package collab implements the real-time collaboration core.

This file defines the Typing Tracker: the per-room set of users currently
composing a message. Indicators are edge-triggered (one broadcast per
idle→typing transition, one per typing→idle) and every entry carries an
expiry timer so a crashed client can never leave an indicator stuck.
*/
package collab

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lexcollab/internal/pkg/logx"
)

// typingEntry is one user's live indicator in one room.
type typingEntry struct {
	displayName string
	timer       *time.Timer

	// gen invalidates stale expiry callbacks: each refresh bumps it, and a
	// callback that fires for an older generation does nothing.
	gen uint64
}

// TypingTracker owns typing state per (room, user) pair.
type TypingTracker struct {
	// mu protects rooms and every entry in it.
	mu sync.Mutex

	// rooms maps room id → user id → live entry.
	rooms map[string]map[string]*typingEntry

	broadcaster *Broadcaster

	// ttl is the window a typing entry survives without a refreshing start.
	ttl time.Duration

	logger zerolog.Logger
}

// NewTypingTracker returns a tracker broadcasting through b, expiring
// entries after ttl.
func NewTypingTracker(b *Broadcaster, ttl time.Duration) *TypingTracker {
	return &TypingTracker{
		rooms:       make(map[string]map[string]*typingEntry),
		broadcaster: b,
		ttl:         ttl,
		logger:      logx.Logger().With().Str("component", "typing").Logger(),
	}
}

// Start records that the user is composing in the room. The idle→typing
// edge broadcasts typing:start to the other members; a repeated start while
// already typing only refreshes the expiry timer, collapsing rapid
// keystroke-driven calls into one visible indicator.
func (t *TypingTracker) Start(roomID string, conn *Connection) {
	t.mu.Lock()

	users, ok := t.rooms[roomID]
	if !ok {
		users = make(map[string]*typingEntry)
		t.rooms[roomID] = users
	}

	if entry, typing := users[conn.UserID]; typing {
		entry.timer.Stop()
		entry.gen++
		entry.timer = t.newExpiryTimer(roomID, conn.UserID, entry.gen)
		t.mu.Unlock()
		return
	}

	entry := &typingEntry{displayName: conn.DisplayName}
	entry.timer = t.newExpiryTimer(roomID, conn.UserID, entry.gen)
	users[conn.UserID] = entry

	t.mu.Unlock()

	t.broadcaster.BroadcastExcept(roomID, conn.ID, NewEvent(EvtTypingStart, roomID, MemberPayload{
		UserID:      conn.UserID,
		DisplayName: conn.DisplayName,
	}))
}

// Stop ends the user's indicator. The typing→idle edge broadcasts
// typing:stop to the other members; stopping while idle is a no-op.
func (t *TypingTracker) Stop(roomID string, conn *Connection) {
	t.mu.Lock()

	entry, typing := t.lookupLocked(roomID, conn.UserID)
	if !typing {
		t.mu.Unlock()
		return
	}

	entry.timer.Stop()
	t.removeLocked(roomID, conn.UserID)
	t.mu.Unlock()

	t.broadcaster.BroadcastExcept(roomID, conn.ID, NewEvent(EvtTypingStop, roomID, MemberPayload{
		UserID:      conn.UserID,
		DisplayName: entry.displayName,
	}))
}

// ClearUser forces the user idle, used by leave, disconnect, and
// send-completion paths. Unlike Stop it is keyed by user alone and always
// broadcasts typing:stop to the whole room when the user was typing, since
// the triggering connection may already be gone.
func (t *TypingTracker) ClearUser(roomID, userID string) {
	t.mu.Lock()

	entry, typing := t.lookupLocked(roomID, userID)
	if !typing {
		t.mu.Unlock()
		return
	}

	entry.timer.Stop()
	t.removeLocked(roomID, userID)
	t.mu.Unlock()

	t.broadcaster.Broadcast(roomID, NewEvent(EvtTypingStop, roomID, MemberPayload{
		UserID:      userID,
		DisplayName: entry.displayName,
	}))
}

// ActiveTypists returns the users currently typing in a room, for the join
// snapshot.
func (t *TypingTracker) ActiveTypists(roomID string) []MemberPayload {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := t.rooms[roomID]
	typists := make([]MemberPayload, 0, len(users))
	for userID, entry := range users {
		typists = append(typists, MemberPayload{
			UserID:      userID,
			DisplayName: entry.displayName,
		})
	}
	return typists
}

// Shutdown stops every live expiry timer. Called once when the hub stops;
// no further broadcasts are wanted.
func (t *TypingTracker) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, users := range t.rooms {
		for _, entry := range users {
			entry.timer.Stop()
		}
	}
	t.rooms = make(map[string]map[string]*typingEntry)
}

// newExpiryTimer schedules the forced typing→idle transition for one entry
// generation. Callers must hold t.mu.
func (t *TypingTracker) newExpiryTimer(roomID, userID string, gen uint64) *time.Timer {
	return time.AfterFunc(t.ttl, func() {
		t.expire(roomID, userID, gen)
	})
}

// expire is the safety net against clients that crash or lose connectivity
// mid-keystroke: it forces the typing→idle transition and broadcasts the
// stop exactly once. A callback from a superseded generation lost the race
// against a refresh or stop and does nothing.
func (t *TypingTracker) expire(roomID, userID string, gen uint64) {
	t.mu.Lock()

	entry, typing := t.lookupLocked(roomID, userID)
	if !typing || entry.gen != gen {
		t.mu.Unlock()
		return
	}

	t.removeLocked(roomID, userID)
	t.mu.Unlock()

	t.logger.Debug().
		Str("room_id", roomID).
		Str("user_id", userID).
		Dur("ttl", t.ttl).
		Msg("Typing entry expired without refresh.")

	t.broadcaster.Broadcast(roomID, NewEvent(EvtTypingStop, roomID, MemberPayload{
		UserID:      userID,
		DisplayName: entry.displayName,
	}))
}

// lookupLocked fetches the entry for (room, user). Callers must hold t.mu.
func (t *TypingTracker) lookupLocked(roomID, userID string) (*typingEntry, bool) {
	users, ok := t.rooms[roomID]
	if !ok {
		return nil, false
	}
	entry, ok := users[userID]
	return entry, ok
}

// removeLocked deletes the entry and prunes the empty room map. Callers
// must hold t.mu.
func (t *TypingTracker) removeLocked(roomID, userID string) {
	users := t.rooms[roomID]
	delete(users, userID)
	if len(users) == 0 {
		delete(t.rooms, roomID)
	}
}
