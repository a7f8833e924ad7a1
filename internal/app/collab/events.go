/*
Package collab implements the real-time collaboration core: per-project
rooms with durable chat, presence, typing indicators, and read receipts.

This file defines the wire-level event model. Inbound client frames and
outbound server frames share one envelope shape; inbound payloads are
decoded per event kind in the Hub's dispatch switch, keeping all transition
logic in one place instead of scattered per-event callbacks.
*/
package collab

import (
	"encoding/json"
	"time"
)

// EventType tags every frame exchanged with clients.
type EventType string

// Inbound event kinds.
const (
	EvtProjectJoin  EventType = "project:join"
	EvtProjectLeave EventType = "project:leave"
	EvtMessageSend  EventType = "message:send"
	EvtMessageRead  EventType = "message:read"
)

// Typing kinds flow both ways: inbound from the typist, outbound to the
// rest of the room.
const (
	EvtTypingStart EventType = "typing:start"
	EvtTypingStop  EventType = "typing:stop"
)

// Outbound event kinds.
const (
	EvtUserJoined   EventType = "user:joined"
	EvtUserLeft     EventType = "user:left"
	EvtMessageNew   EventType = "message:new"
	EvtMessageError EventType = "message:error"
	EvtRoomState    EventType = "room:state"
	EvtUserOnline   EventType = "user:online"
	EvtUserOffline  EventType = "user:offline"
)

// InboundEvent is the envelope clients send. The payload stays raw until
// the dispatch switch knows which shape to decode.
type InboundEvent struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is the envelope the server emits.
type Event struct {
	Type      EventType `json:"type"`
	RoomID    string    `json:"roomId,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewEvent builds an outbound event stamped with the current time.
func NewEvent(eventType EventType, roomID string, payload any) Event {
	return Event{
		Type:      eventType,
		RoomID:    roomID,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Encode marshals the event for transport. Events are encoded once per
// broadcast, not once per recipient.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// JoinPayload accompanies project:join.
type JoinPayload struct {
	RoomID string `json:"roomId"`
}

// LeavePayload accompanies project:leave.
type LeavePayload struct {
	RoomID string `json:"roomId"`
}

// SendPayload accompanies message:send.
type SendPayload struct {
	RoomID        string `json:"roomId"`
	Content       string `json:"content"`
	AttachmentRef string `json:"attachmentRef,omitempty"`
}

// TypingPayload accompanies inbound typing:start and typing:stop.
type TypingPayload struct {
	RoomID string `json:"roomId"`
}

// ReadPayload accompanies message:read.
type ReadPayload struct {
	MessageID string `json:"messageId"`
	RoomID    string `json:"roomId"`
}

// MemberPayload identifies a user in joined/left/presence/typing events.
type MemberPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// ErrorPayload carries a coded error back to a single connection.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ReadReceiptPayload fans a confirmed read out to the room.
type ReadReceiptPayload struct {
	MessageID string `json:"messageId"`
	ReaderID  string `json:"readerId"`
}

// RoomStatePayload is the snapshot sent to a connection that just joined:
// who is currently in the room and who is mid-keystroke.
type RoomStatePayload struct {
	RoomID  string          `json:"roomId"`
	Members []MemberPayload `json:"members"`
	Typists []MemberPayload `json:"typists"`
}
