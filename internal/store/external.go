package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Read-only access to tables owned by the product's CRUD layer. Any failure
// here is a read failure against an external collaborator, never a mutation.

func (s *Postgres) Conversation(ctx context.Context, id uuid.UUID) (uuid.UUID, int, error) {
	var userID uuid.UUID
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT c.user_id, count(m.id)
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		WHERE c.id = $1
		GROUP BY c.user_id`,
		id,
	).Scan(&userID, &count)
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("read conversation: %w", err)
	}
	return userID, count, nil
}

func (s *Postgres) Messages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT role, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Postgres) UserMessagesSince(ctx context.Context, conversationID uuid.UUID, afterIndex, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT content FROM (
			SELECT content, role, row_number() OVER (ORDER BY created_at) AS pos
			FROM messages
			WHERE conversation_id = $1
		) ranked
		WHERE role = 'user' AND pos > $2
		ORDER BY pos DESC
		LIMIT $3`,
		conversationID, afterIndex, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("read user messages: %w", err)
	}
	defer rows.Close()

	var contents []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan user message: %w", err)
		}
		contents = append(contents, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Query returns newest first so the LIMIT keeps the most recent; flip
	// back to oldest-first for callers.
	for i, j := 0, len(contents)-1; i < j; i, j = i+1, j-1 {
		contents[i], contents[j] = contents[j], contents[i]
	}
	return contents, nil
}

func (s *Postgres) ActiveSchemes(ctx context.Context) ([]Scheme, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name FROM schemes WHERE active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("read schemes: %w", err)
	}
	defer rows.Close()

	var schemes []Scheme
	for rows.Next() {
		var sc Scheme
		if err := rows.Scan(&sc.ID, &sc.Name); err != nil {
			return nil, fmt.Errorf("scan scheme: %w", err)
		}
		schemes = append(schemes, sc)
	}
	return schemes, rows.Err()
}
