// Package realtime normalizes provider change notifications into typed
// deltas and fans them out to subscribed sessions.
//
// The Hub is the server side of the feed. DecodeEvent and View are the
// client side of the same wire contract: a session decodes each frame back
// into a Delta and applies it to a local View, refetching into Reset after
// a reconnect.
package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/classwork/internal/classroom/domain"
	apperrors "github.com/louisbranch/classwork/internal/errors"
)

// Op is the kind of change a delta carries.
type Op string

const (
	// OpInserted announces a new row.
	OpInserted Op = "inserted"
	// OpUpdated announces a changed row.
	OpUpdated Op = "updated"
	// OpDeleted announces a removed row; only the row id travels.
	OpDeleted Op = "deleted"
)

// Table names a logical change-feed source.
type Table string

const (
	// TableAssignments feeds published assignments.
	TableAssignments Table = "assignments"
	// TableAnswers feeds submitted and graded answers.
	TableAnswers Table = "answers"
	// TableMessages feeds chat messages.
	TableMessages Table = "messages"
)

// Delta is one normalized change notification. Exactly one of Assignment,
// Answer, or Message is set for inserts and updates; deletes carry only RowID.
type Delta struct {
	Op         Op
	Table      Table
	RowID      string
	Assignment *domain.Assignment
	Answer     *domain.Answer
	Message    *domain.Message
}

// Event is the raw provider notification shape before decoding.
type Event struct {
	Type string          `json:"eventType"`
	New  json.RawMessage `json:"new,omitempty"`
	Old  json.RawMessage `json:"old,omitempty"`
}

// DecodeEvent validates a provider event for one table and produces a typed
// delta. Malformed payloads fail with a decode error the subscription
// boundary logs and drops; they never reach view state.
func DecodeEvent(table Table, event Event) (Delta, error) {
	var op Op
	switch strings.ToUpper(strings.TrimSpace(event.Type)) {
	case "INSERT":
		op = OpInserted
	case "UPDATE":
		op = OpUpdated
	case "DELETE":
		op = OpDeleted
	default:
		return Delta{}, apperrors.New(apperrors.CodeDeltaDecodeFailed,
			fmt.Sprintf("unknown event type %q", event.Type))
	}

	if op == OpDeleted {
		rowID, err := decodeRowID(event.Old)
		if err != nil {
			return Delta{}, err
		}
		return Delta{Op: OpDeleted, Table: table, RowID: rowID}, nil
	}

	delta := Delta{Op: op, Table: table}
	if len(event.New) == 0 {
		return Delta{}, apperrors.New(apperrors.CodeDeltaDecodeFailed, "event row payload is missing")
	}

	switch table {
	case TableAssignments:
		var row assignmentRow
		if err := json.Unmarshal(event.New, &row); err != nil {
			return Delta{}, apperrors.Wrap(apperrors.CodeDeltaDecodeFailed, "decode assignment row", err)
		}
		assignment := row.toDomain()
		if assignment.ID == "" {
			return Delta{}, apperrors.New(apperrors.CodeDeltaDecodeFailed, "assignment row has no id")
		}
		delta.Assignment = &assignment
		delta.RowID = assignment.ID
	case TableAnswers:
		var row answerRow
		if err := json.Unmarshal(event.New, &row); err != nil {
			return Delta{}, apperrors.Wrap(apperrors.CodeDeltaDecodeFailed, "decode answer row", err)
		}
		answer := row.toDomain()
		if answer.ID == "" {
			return Delta{}, apperrors.New(apperrors.CodeDeltaDecodeFailed, "answer row has no id")
		}
		delta.Answer = &answer
		delta.RowID = answer.ID
	case TableMessages:
		var row messageRow
		if err := json.Unmarshal(event.New, &row); err != nil {
			return Delta{}, apperrors.Wrap(apperrors.CodeDeltaDecodeFailed, "decode message row", err)
		}
		message := row.toDomain()
		if message.ID == "" {
			return Delta{}, apperrors.New(apperrors.CodeDeltaDecodeFailed, "message row has no id")
		}
		delta.Message = &message
		delta.RowID = message.ID
	default:
		return Delta{}, apperrors.New(apperrors.CodeDeltaDecodeFailed,
			fmt.Sprintf("unknown table %q", table))
	}
	return delta, nil
}

func decodeRowID(raw json.RawMessage) (string, error) {
	var row struct {
		ID string `json:"id"`
	}
	if len(raw) == 0 {
		return "", apperrors.New(apperrors.CodeDeltaDecodeFailed, "delete event has no old row")
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		return "", apperrors.Wrap(apperrors.CodeDeltaDecodeFailed, "decode deleted row id", err)
	}
	if strings.TrimSpace(row.ID) == "" {
		return "", apperrors.New(apperrors.CodeDeltaDecodeFailed, "deleted row has no id")
	}
	return row.ID, nil
}

type assignmentRow struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Subject     string    `json:"subject"`
	Deadline    time.Time `json:"deadline"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r assignmentRow) toDomain() domain.Assignment {
	return domain.Assignment{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Subject:     r.Subject,
		Deadline:    r.Deadline,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
	}
}

type answerRow struct {
	ID            string    `json:"id"`
	AssignmentID  string    `json:"assignment_id"`
	CreatedBy     string    `json:"created_by"`
	ImageURL      string    `json:"image_url"`
	SubmittedAt   time.Time `json:"submitted_at"`
	ExtractedText string    `json:"extracted_text"`
	AIGrade       *int      `json:"ai_grade"`
	TeacherGrade  *int      `json:"teacher_grade"`
	Feedback      string    `json:"feedback"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func (r answerRow) toDomain() domain.Answer {
	return domain.Answer{
		ID:            r.ID,
		AssignmentID:  r.AssignmentID,
		CreatedBy:     r.CreatedBy,
		ImageURL:      r.ImageURL,
		SubmittedAt:   r.SubmittedAt,
		ExtractedText: r.ExtractedText,
		AIGrade:       r.AIGrade,
		TeacherGrade:  r.TeacherGrade,
		Feedback:      r.Feedback,
		Status:        domain.AnswerStatus(r.Status),
		CreatedAt:     r.CreatedAt,
	}
}

type messageRow struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"sent_at"`
}

func (r messageRow) toDomain() domain.Message {
	return domain.Message{
		ID:         r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Content:    r.Content,
		SentAt:     r.SentAt,
	}
}
