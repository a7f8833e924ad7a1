package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexcollab/internal/pkg/errs"
)

func TestRegistryRegister(t *testing.T) {
	registry := NewRegistry()

	conn, connections, customErr := registry.Register("c1", "u1", "Alice", &testSink{})
	require.Nil(t, customErr)
	assert.Equal(t, "c1", conn.ID)
	assert.Equal(t, "u1", conn.UserID)
	assert.Equal(t, "Alice", conn.DisplayName)
	assert.Equal(t, 1, connections, "register reports the post-add count")
	assert.Equal(t, 1, registry.ConnectionCountFor("u1"))
}

func TestRegistryRegisterDuplicateConnection(t *testing.T) {
	registry := NewRegistry()

	_, _, customErr := registry.Register("c1", "u1", "Alice", &testSink{})
	require.Nil(t, customErr)

	// Same id again: fatal to the new registration, not the existing one.
	_, _, customErr = registry.Register("c1", "u2", "Bob", &testSink{})
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrDuplicateConnection, customErr.Code)

	existing, ok := registry.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "u1", existing.UserID, "existing registration must survive")
	assert.Equal(t, 1, registry.ConnectionCountFor("u1"))
	assert.Equal(t, 0, registry.ConnectionCountFor("u2"))
}

func TestRegistryUnregisterReturnsJoinedRooms(t *testing.T) {
	registry := NewRegistry()

	_, _, customErr := registry.Register("c1", "u1", "Alice", &testSink{})
	require.Nil(t, customErr)

	assert.True(t, registry.AddRoom("c1", "p1"))
	assert.True(t, registry.AddRoom("c1", "p2"))
	assert.False(t, registry.AddRoom("c1", "p1"), "re-adding a room is not a new join")

	conn, rooms, remaining, ok := registry.Unregister("c1")
	require.True(t, ok)
	assert.Equal(t, "u1", conn.UserID)
	assert.ElementsMatch(t, []string{"p1", "p2"}, rooms)
	assert.Equal(t, 0, remaining, "unregister reports the post-remove count")
	assert.Equal(t, 0, registry.ConnectionCountFor("u1"))
}

func TestRegistryUnregisterIdempotent(t *testing.T) {
	registry := NewRegistry()

	_, _, customErr := registry.Register("c1", "u1", "Alice", &testSink{})
	require.Nil(t, customErr)

	_, _, _, ok := registry.Unregister("c1")
	assert.True(t, ok)

	// Duplicate disconnect signals are tolerated, not errors.
	_, _, _, ok = registry.Unregister("c1")
	assert.False(t, ok)
	assert.Equal(t, 0, registry.ConnectionCountFor("u1"))
}

func TestRegistryConnectionCountMultiTab(t *testing.T) {
	registry := NewRegistry()

	for i, connID := range []string{"c1", "c2", "c3"} {
		_, connections, customErr := registry.Register(connID, "u1", "Alice", &testSink{})
		require.Nil(t, customErr)
		assert.Equal(t, i+1, connections)
	}
	assert.Equal(t, 3, registry.ConnectionCountFor("u1"))

	_, _, remaining, ok := registry.Unregister("c2")
	require.True(t, ok)
	assert.Equal(t, 2, remaining)
	assert.Equal(t, 2, registry.ConnectionCountFor("u1"))

	registry.Unregister("c1")
	registry.Unregister("c3")
	assert.Equal(t, 0, registry.ConnectionCountFor("u1"))
}

func TestRegistryInRoom(t *testing.T) {
	registry := NewRegistry()

	_, _, customErr := registry.Register("c1", "u1", "Alice", &testSink{})
	require.Nil(t, customErr)

	assert.False(t, registry.InRoom("c1", "p1"))

	registry.AddRoom("c1", "p1")
	assert.True(t, registry.InRoom("c1", "p1"))

	registry.RemoveRoom("c1", "p1")
	assert.False(t, registry.InRoom("c1", "p1"))

	assert.False(t, registry.InRoom("ghost", "p1"), "unknown connections are in no rooms")
}

func TestRegistryAddRoomUnknownConnection(t *testing.T) {
	registry := NewRegistry()

	assert.False(t, registry.AddRoom("ghost", "p1"), "unregistered connections cannot join rooms")
	assert.False(t, registry.InRoom("ghost", "p1"))
}
