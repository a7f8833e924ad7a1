/*
Package collab implements the real-time collaboration core.

This file defines the Connection Registry: the single owner of every live
connection's identity and joined-room set, and the source of the per-user
connection counts that presence edges are derived from.
*/
package collab

import (
	"sync"

	"github.com/rs/zerolog"

	"lexcollab/internal/pkg/errs"
	"lexcollab/internal/pkg/logx"
)

// Sink queues encoded events for delivery to one connection. The websocket
// client implements it in production; tests use an in-memory recorder.
type Sink interface {
	// Queue enqueues an encoded frame. Returns false when the connection's
	// buffer is full or closed; callers treat that as a slow client, not an
	// error in the room.
	Queue(data []byte) bool

	// Close shuts the delivery path down. Idempotent; after Close no queued
	// frame is guaranteed to reach the client.
	Close()
}

// Connection is one live transport-level link and its authenticated user.
// Created on handshake, destroyed on disconnect; owned exclusively by the
// Registry. A user may hold several connections at once (multi-tab).
type Connection struct {
	// ID is the transport-assigned connection identifier.
	ID string

	// UserID identifies the authenticated account.
	UserID string

	// DisplayName is the name other members see.
	DisplayName string

	sink Sink
}

// Queue forwards an encoded frame to the connection's sink.
func (c *Connection) Queue(data []byte) bool {
	return c.sink.Queue(data)
}

// Close shuts down the connection's delivery path.
func (c *Connection) Close() {
	c.sink.Close()
}

// Registry tracks every live connection. Purely in-memory: it never calls
// out to storage or the network, and nothing mutates a Connection behind
// its back.
type Registry struct {
	// mu protects conns, rooms, and counts.
	mu sync.RWMutex

	// conns maps connection id to its Connection.
	conns map[string]*Connection

	// rooms maps connection id to the set of rooms it has joined.
	rooms map[string]map[string]struct{}

	// counts maps user id to its live connection count.
	counts map[string]int

	logger zerolog.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]*Connection),
		rooms:  make(map[string]map[string]struct{}),
		counts: make(map[string]int),
		logger: logx.Logger().With().Str("component", "registry").Logger(),
	}
}

// Register adds a connection and returns the user's connection count after
// the add, captured under the registry lock so presence edge decisions stay
// atomic with the mutation. Connection ids are transport-assigned and
// unique; a collision fails the new registration and leaves the existing
// connection untouched.
func (r *Registry) Register(connID, userID, displayName string, sink Sink) (*Connection, int, *errs.CustomError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[connID]; exists {
		r.logger.Error().
			Str("conn_id", connID).
			Str("user_id", userID).
			Msg("Connection id already registered. Rejecting new registration.")
		return nil, 0, errs.NewError(errs.ErrDuplicateConnection)
	}

	conn := &Connection{
		ID:          connID,
		UserID:      userID,
		DisplayName: displayName,
		sink:        sink,
	}

	r.conns[connID] = conn
	r.rooms[connID] = make(map[string]struct{})
	r.counts[userID]++

	r.logger.Info().
		Str("conn_id", connID).
		Str("user_id", userID).
		Int("user_connections", r.counts[userID]).
		Msg("Connection registered.")

	return conn, r.counts[userID], nil
}

// Unregister removes a connection, returning the rooms it had joined so
// the caller can unwind membership, plus the user's remaining connection
// count captured under the registry lock. Removing an unknown id is a
// no-op, not an error: duplicate disconnect signals are expected and must
// be tolerated.
func (r *Registry) Unregister(connID string) (*Connection, []string, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return nil, nil, 0, false
	}

	joined := make([]string, 0, len(r.rooms[connID]))
	for roomID := range r.rooms[connID] {
		joined = append(joined, roomID)
	}

	delete(r.conns, connID)
	delete(r.rooms, connID)

	if r.counts[conn.UserID] <= 1 {
		delete(r.counts, conn.UserID)
	} else {
		r.counts[conn.UserID]--
	}

	remaining := r.counts[conn.UserID]

	r.logger.Info().
		Str("conn_id", connID).
		Str("user_id", conn.UserID).
		Int("rooms_joined", len(joined)).
		Int("user_connections", remaining).
		Msg("Connection unregistered.")

	return conn, joined, remaining, true
}

// ConnectionCountFor returns the number of live connections for a user.
// Presence edges are decided on the counts Register and Unregister return,
// not on this read-side snapshot.
func (r *Registry) ConnectionCountFor(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counts[userID]
}

// Get returns the connection for an id.
func (r *Registry) Get(connID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connID]
	return conn, ok
}

// AddRoom records that a connection joined a room. Reports whether the
// room was newly added, letting callers keep joins idempotent.
func (r *Registry) AddRoom(connID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.rooms[connID]
	if !ok {
		return false
	}

	if _, already := joined[roomID]; already {
		return false
	}

	joined[roomID] = struct{}{}
	return true
}

// InRoom reports whether a connection has joined a room.
func (r *Registry) InRoom(connID, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined, ok := r.rooms[connID]
	if !ok {
		return false
	}
	_, in := joined[roomID]
	return in
}

// RemoveRoom records that a connection left a room.
func (r *Registry) RemoveRoom(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if joined, ok := r.rooms[connID]; ok {
		delete(joined, roomID)
	}
}

// Connections returns a snapshot of every live connection, used for global
// (non-room-scoped) presence broadcasts.
func (r *Registry) Connections() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}
