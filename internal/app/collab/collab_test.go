package collab

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lexcollab/internal/app/message"
)

// testTypingTTL keeps expiry tests fast; behavior is asserted on edges,
// never on wall-clock values.
const testTypingTTL = 50 * time.Millisecond

// wireEvent mirrors the outbound envelope with the payload left raw so
// tests can decode it per event kind.
type wireEvent struct {
	Type      EventType       `json:"type"`
	RoomID    string          `json:"roomId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// testSink records every frame queued to a connection.
type testSink struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (s *testSink) Queue(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.frames = append(s.frames, data)
	return true
}

func (s *testSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *testSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// events decodes the recorded frames in delivery order.
func (s *testSink) events(t *testing.T) []wireEvent {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]wireEvent, 0, len(s.frames))
	for _, frame := range s.frames {
		var evt wireEvent
		require.NoError(t, json.Unmarshal(frame, &evt))
		events = append(events, evt)
	}
	return events
}

// eventsOfType filters decoded events by kind, preserving order.
func eventsOfType(events []wireEvent, eventType EventType) []wireEvent {
	var filtered []wireEvent
	for _, evt := range events {
		if evt.Type == eventType {
			filtered = append(filtered, evt)
		}
	}
	return filtered
}

// decodePayload unmarshals an event payload into dst.
func decodePayload(t *testing.T, evt wireEvent, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(evt.Payload, dst))
}

// newTestHub returns an isolated hub over an in-memory store.
func newTestHub(t *testing.T) (*Hub, *message.MemoryStore) {
	t.Helper()

	store := message.NewMemoryStore()
	return NewHub(store, testTypingTTL), store
}

// connect registers a connection on the hub, failing the test on error.
func connect(t *testing.T, hub *Hub, connID, userID, displayName string) (*Connection, *testSink) {
	t.Helper()

	sink := &testSink{}
	conn, customErr := hub.Connect(connID, userID, displayName, sink)
	require.Nil(t, customErr, "expected connect to succeed")
	return conn, sink
}

// frame builds an inbound client frame.
func frame(t *testing.T, eventType EventType, payload any) []byte {
	t.Helper()

	payloadBytes, err := json.Marshal(payload)
	require.NoError(t, err)

	data, err := json.Marshal(InboundEvent{Type: eventType, Payload: payloadBytes})
	require.NoError(t, err)
	return data
}
