package service

import (
	"context"

	"github.com/louisbranch/classwork/internal/classroom/domain"
	apperrors "github.com/louisbranch/classwork/internal/errors"
	"github.com/louisbranch/classwork/internal/realtime"
)

// SendMessageInput is one chat message from sender to recipient. A non-empty
// ClientMessageID lets retries of the same send collapse into one message.
type SendMessageInput struct {
	SenderID        string
	RecipientID     string
	Content         string
	ClientMessageID string
}

// SendMessage appends a chat message and broadcasts it to both ends of the
// conversation. Chat is limited to a teacher and one of their students.
// Duplicate sends carrying the same ClientMessageID return the
// already-appended message instead of a second row.
func (s *Service) SendMessage(ctx context.Context, input SendMessageInput) (domain.Message, error) {
	if input.ClientMessageID != "" {
		if prior, ok := s.recentSend(input.SenderID, input.ClientMessageID); ok {
			return prior, nil
		}
	}
	if err := s.checkMessagePair(ctx, input.SenderID, input.RecipientID); err != nil {
		return domain.Message{}, err
	}

	message, err := domain.NewMessage(input.SenderID, input.RecipientID, input.Content, s.now, s.newID)
	if err != nil {
		return domain.Message{}, err
	}
	if err := s.store.AppendMessage(ctx, message); err != nil {
		return domain.Message{}, apperrors.Wrap(apperrors.CodePersistFailed, "persist message", err)
	}
	if input.ClientMessageID != "" {
		s.rememberSend(input.SenderID, input.ClientMessageID, message)
	}

	s.publish(realtime.MessagesForPair(message.SenderID, message.ReceiverID), realtime.Delta{
		Op:      realtime.OpInserted,
		Table:   realtime.TableMessages,
		RowID:   message.ID,
		Message: &message,
	})
	return message, nil
}

// DeleteMessage removes one of the requester's own messages and broadcasts
// the deletion to both ends of the conversation.
func (s *Service) DeleteMessage(ctx context.Context, messageID, requesterID string) error {
	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return mapStorageErr(err, "message not found")
	}
	if message.SenderID != requesterID {
		return apperrors.New(apperrors.CodeForbidden, "only the sender can delete a message")
	}
	if err := s.store.DeleteMessage(ctx, messageID); err != nil {
		return mapStorageErr(err, "message not found")
	}

	s.publish(realtime.MessagesForPair(message.SenderID, message.ReceiverID), realtime.Delta{
		Op:    realtime.OpDeleted,
		Table: realtime.TableMessages,
		RowID: message.ID,
	})
	return nil
}

// checkMessagePair verifies the two ends form a teacher/student pair linked
// through the student's profile.
func (s *Service) checkMessagePair(ctx context.Context, senderID, recipientID string) error {
	sender, err := s.store.GetProfile(ctx, senderID)
	if err != nil {
		return mapStorageErr(err, "sender profile not found")
	}
	recipient, err := s.store.GetProfile(ctx, recipientID)
	if err != nil {
		return mapStorageErr(err, "recipient profile not found")
	}
	switch {
	case sender.Role == domain.RoleTeacher && recipient.IsStudentOf(sender.ID):
		return nil
	case recipient.Role == domain.RoleTeacher && sender.IsStudentOf(recipient.ID):
		return nil
	}
	return apperrors.New(apperrors.CodeForbidden, "messages are limited to a teacher and their students")
}

// MessagesBetween returns the full conversation between two users ordered by
// send time ascending.
func (s *Service) MessagesBetween(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	return s.store.ListMessagesBetween(ctx, userA, userB)
}

func sendKey(senderID, clientMessageID string) string {
	return senderID + "\x00" + clientMessageID
}

func (s *Service) recentSend(senderID, clientMessageID string) (domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	message, ok := s.recentSends[sendKey(senderID, clientMessageID)]
	return message, ok
}

func (s *Service) rememberSend(senderID, clientMessageID string, message domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sendKey(senderID, clientMessageID)
	if _, ok := s.recentSends[key]; ok {
		return
	}
	s.recentSends[key] = message
	s.sendOrder = append(s.sendOrder, key)
	for len(s.sendOrder) > maxRecentSends {
		oldest := s.sendOrder[0]
		s.sendOrder = s.sendOrder[1:]
		delete(s.recentSends, oldest)
	}
}
