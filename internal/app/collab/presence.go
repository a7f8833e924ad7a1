/*
Package collab implements the real-time collaboration core.

This file defines the Presence Tracker. A user is online iff at least one
of their connections exists in the registry, regardless of room. Presence
carries no stored history: it is recomputed from the live registry, so a
server restart naturally resets everyone to offline.
*/
package collab

import (
	"github.com/rs/zerolog"

	"lexcollab/internal/pkg/logx"
)

// PresenceTracker derives global online/offline status from the registry's
// per-user connection counts. Events are edge-triggered: online fires only
// on the 0→1 transition and offline only on 1→0, never on every
// connect/disconnect inside the plateau.
type PresenceTracker struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewPresenceTracker returns a tracker over the given registry.
func NewPresenceTracker(registry *Registry) *PresenceTracker {
	return &PresenceTracker{
		registry: registry,
		logger:   logx.Logger().With().Str("component", "presence").Logger(),
	}
}

// OnConnect runs after a connection registers. connections is the user's
// connection count as the registry recorded it under its lock; deciding on
// that captured value keeps the edge exactly-once when same-user
// registrations interleave across goroutines. Crossing the 0→1 edge
// broadcasts user:online to every connected client; presence is a
// cross-project concept, so the event is global rather than room-scoped.
func (p *PresenceTracker) OnConnect(userID, displayName string, connections int) {
	if connections != 1 {
		return
	}

	p.logger.Info().Str("user_id", userID).Msg("User came online.")

	p.broadcastGlobal(NewEvent(EvtUserOnline, "", MemberPayload{
		UserID:      userID,
		DisplayName: displayName,
	}))
}

// OnDisconnect runs after a connection unregisters, with the remaining
// connection count the registry captured under its lock. Crossing the 1→0
// edge broadcasts user:offline globally.
func (p *PresenceTracker) OnDisconnect(userID, displayName string, remaining int) {
	if remaining != 0 {
		return
	}

	p.logger.Info().Str("user_id", userID).Msg("User went offline.")

	p.broadcastGlobal(NewEvent(EvtUserOffline, "", MemberPayload{
		UserID:      userID,
		DisplayName: displayName,
	}))
}

// broadcastGlobal queues an event to every live connection.
func (p *PresenceTracker) broadcastGlobal(event Event) {
	data, err := event.Encode()
	if err != nil {
		p.logger.Error().Err(err).
			Str("event_type", string(event.Type)).
			Msg("Failed to encode presence event.")
		return
	}

	for _, conn := range p.registry.Connections() {
		if !conn.Queue(data) {
			p.logger.Warn().
				Str("conn_id", conn.ID).
				Str("event_type", string(event.Type)).
				Msg("Connection send buffer full, dropping presence event.")
		}
	}
}
