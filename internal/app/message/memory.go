package message

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by tests. It mirrors the
// PostgresStore contract, including server-assigned ids and timestamps,
// and supports injected persistence failures.
type MemoryStore struct {
	mu       sync.Mutex
	messages map[string]*Message

	// lastTs keeps timestamps strictly increasing so ordering by CreatedAt
	// is deterministic even for back-to-back persists.
	lastTs time.Time

	// failPersist, when non-nil, makes the next Persist calls fail with it.
	failPersist error
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: make(map[string]*Message)}
}

// FailPersistWith makes subsequent Persist calls fail with err. Pass nil to
// restore normal operation.
func (s *MemoryStore) FailPersistWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPersist = err
}

// Persist stores the message with a fresh id and timestamp.
func (s *MemoryStore) Persist(ctx context.Context, projectID, authorID, authorName, content, attachmentRef string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failPersist != nil {
		return Message{}, s.failPersist
	}

	now := time.Now().UTC()
	if !now.After(s.lastTs) {
		now = s.lastTs.Add(time.Microsecond)
	}
	s.lastTs = now

	msg := Message{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		AuthorID:      authorID,
		AuthorName:    authorName,
		Content:       content,
		AttachmentRef: attachmentRef,
		CreatedAt:     now,
	}

	stored := msg
	s.messages[msg.ID] = &stored

	return msg, nil
}

// MarkRead flips the read flag, returning ErrNotFound for unknown ids.
func (s *MemoryStore) MarkRead(ctx context.Context, messageID, readerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[messageID]
	if !ok {
		return ErrNotFound
	}

	if !msg.Read {
		now := time.Now().UTC()
		msg.Read = true
		msg.ReadAt = &now
	}

	return nil
}

// ListRecent returns up to limit messages for a project, oldest first.
func (s *MemoryStore) ListRecent(ctx context.Context, projectID string, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var messages []Message
	for _, msg := range s.messages {
		if msg.ProjectID == projectID {
			messages = append(messages, *msg)
		}
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	return messages, nil
}
