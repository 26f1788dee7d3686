package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/classwork/internal/classroom/domain"
	"github.com/louisbranch/classwork/internal/classroom/storage"
)

// AppendMessage persists one chat message. Content is never updated after
// this insert.
func (s *Store) AppendMessage(ctx context.Context, message domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(message.ID) == "" {
		return fmt.Errorf("message id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO messages (message_id, sender_id, receiver_id, content, sent_at)
		 VALUES (?, ?, ?, ?, ?)`,
		message.ID,
		message.SenderID,
		message.ReceiverID,
		message.Content,
		toMillis(message.SentAt),
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// GetMessage returns one message by id.
func (s *Store) GetMessage(ctx context.Context, messageID string) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Message{}, err
	}
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return domain.Message{}, fmt.Errorf("message id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT message_id, sender_id, receiver_id, content, sent_at
		 FROM messages
		 WHERE message_id = ?`,
		messageID,
	)
	var message domain.Message
	var sentAt int64
	if err := row.Scan(&message.ID, &message.SenderID, &message.ReceiverID, &message.Content, &sentAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Message{}, storage.ErrNotFound
		}
		return domain.Message{}, fmt.Errorf("get message: %w", err)
	}
	message.SentAt = fromMillis(sentAt)
	return message, nil
}

// ListMessagesBetween returns every message exchanged between two
// participants, sorted by sent_at ascending.
func (s *Store) ListMessagesBetween(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	userA = strings.TrimSpace(userA)
	userB = strings.TrimSpace(userB)
	if userA == "" || userB == "" {
		return nil, fmt.Errorf("both participant ids are required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT message_id, sender_id, receiver_id, content, sent_at
		 FROM messages
		 WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		 ORDER BY sent_at ASC, message_id ASC`,
		userA, userB, userB, userA,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var message domain.Message
		var sentAt int64
		if err := rows.Scan(&message.ID, &message.SenderID, &message.ReceiverID, &message.Content, &sentAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		message.SentAt = fromMillis(sentAt)
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// DeleteMessage removes one message by id. Removal is the only mutation the
// message stream supports.
func (s *Store) DeleteMessage(ctx context.Context, messageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return fmt.Errorf("message id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM messages WHERE message_id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete message rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
