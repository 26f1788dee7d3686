package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/classwork/internal/errors"
	"github.com/louisbranch/classwork/internal/platform/id"
)

// ErrContentEmpty indicates a chat message without content.
var ErrContentEmpty = apperrors.New(apperrors.CodeMessageContentEmpty, "message content is required")

// Message is one chat entry between a teacher and a student. Messages are
// append-only; content never changes after creation and sent_at ascending is
// the ordering key.
type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	Content    string
	SentAt     time.Time
}

// NewMessage builds a message with a generated ID and the send timestamp.
func NewMessage(senderID, receiverID, content string, now func() time.Time, idGenerator func() (string, error)) (Message, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	senderID = strings.TrimSpace(senderID)
	receiverID = strings.TrimSpace(receiverID)
	if senderID == "" || receiverID == "" {
		return Message{}, apperrors.New(apperrors.CodeMissingField, "message sender and receiver are required")
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, ErrContentEmpty
	}

	messageID, err := idGenerator()
	if err != nil {
		return Message{}, fmt.Errorf("generate message id: %w", err)
	}

	return Message{
		ID:         messageID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		SentAt:     now().UTC(),
	}, nil
}
