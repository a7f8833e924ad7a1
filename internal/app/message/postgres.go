package message

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns a Store backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Persist inserts the message and returns it with the database-assigned
// creation timestamp.
func (s *PostgresStore) Persist(ctx context.Context, projectID, authorID, authorName, content, attachmentRef string) (Message, error) {
	msg := Message{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		AuthorID:      authorID,
		AuthorName:    authorName,
		Content:       content,
		AttachmentRef: attachmentRef,
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO messages (id, project_id, author_id, author_name, content, attachment_ref)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		msg.ID, msg.ProjectID, msg.AuthorID, msg.AuthorName, msg.Content, msg.AttachmentRef,
	)

	if err := row.Scan(&msg.CreatedAt); err != nil {
		return Message{}, fmt.Errorf("persist message: %w", err)
	}

	return msg, nil
}

// MarkRead flips the read flag. The first read sets read_at; later reads
// keep the original timestamp.
func (s *PostgresStore) MarkRead(ctx context.Context, messageID, readerID string) error {
	if _, err := uuid.Parse(messageID); err != nil {
		return ErrNotFound
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE messages
		 SET is_read = TRUE, read_at = COALESCE(read_at, now())
		 WHERE id = $1`,
		messageID,
	)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ListRecent returns the newest limit messages for a project, oldest first.
func (s *PostgresStore) ListRecent(ctx context.Context, projectID string, limit int) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, author_id, author_name, content, attachment_ref, created_at, is_read, read_at
		 FROM (
		     SELECT * FROM messages
		     WHERE project_id = $1
		     ORDER BY created_at DESC
		     LIMIT $2
		 ) recent
		 ORDER BY created_at ASC`,
		projectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var readAt *time.Time

		if err := rows.Scan(&msg.ID, &msg.ProjectID, &msg.AuthorID, &msg.AuthorName,
			&msg.Content, &msg.AttachmentRef, &msg.CreatedAt, &msg.Read, &readAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		msg.ReadAt = readAt
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}
