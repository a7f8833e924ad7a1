/*
Package message defines the durable chat message model and the Store
gateway the collaboration core persists through.

The core never talks to the database directly: it depends on the Store
interface, implemented by PostgresStore in production and MemoryStore in
tests. A message is persisted before it is ever broadcast, and the read
flag is its only later mutation.
*/
package message

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by MarkRead when the message id does not exist.
// Callers treat it as non-fatal; any other error is a persistence failure.
var ErrNotFound = errors.New("message not found")

// Message is the one durable entity owned by the collaboration subsystem.
type Message struct {
	// ID is assigned by the store on persist.
	ID string `json:"id"`

	// ProjectID scopes the message to its room.
	ProjectID string `json:"projectId"`

	// AuthorID is the sending user's host-application identifier.
	AuthorID string `json:"authorId"`

	// AuthorName is the sender's display name at send time.
	AuthorName string `json:"authorName"`

	// Content is the message text.
	Content string `json:"content"`

	// AttachmentRef is an opaque reference to an uploaded file, or empty.
	AttachmentRef string `json:"attachmentRef,omitempty"`

	// CreatedAt is the server-assigned creation timestamp.
	CreatedAt time.Time `json:"createdAt"`

	// Read reports whether any recipient has acknowledged the message.
	Read bool `json:"read"`

	// ReadAt is set when the read flag first flips.
	ReadAt *time.Time `json:"readAt,omitempty"`
}

// Store is the gateway to durable message storage.
type Store interface {
	// Persist stores a new message and returns it with the server-assigned
	// id and timestamp. A message that fails to persist must never be
	// broadcast.
	Persist(ctx context.Context, projectID, authorID, authorName, content, attachmentRef string) (Message, error)

	// MarkRead flips the read flag for a message. Returns ErrNotFound when
	// the id is unknown.
	MarkRead(ctx context.Context, messageID, readerID string) error

	// ListRecent returns up to limit messages for a project, oldest first,
	// so reconnecting clients can backfill their view.
	ListRecent(ctx context.Context, projectID string, limit int) ([]Message, error)
}
