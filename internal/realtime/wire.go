package realtime

import (
	"encoding/json"
	"fmt"
)

type wireDelta struct {
	Op    Op              `json:"op"`
	Table Table           `json:"table"`
	RowID string          `json:"id"`
	Row   json.RawMessage `json:"row,omitempty"`
}

// MarshalJSON renders the delta in its wire shape: op, table, row id, and the
// row payload for inserts and updates.
func (d Delta) MarshalJSON() ([]byte, error) {
	frame := wireDelta{Op: d.Op, Table: d.Table, RowID: d.RowID}

	var payload any
	switch {
	case d.Assignment != nil:
		row := *d.Assignment
		payload = assignmentRow{
			ID:          row.ID,
			Title:       row.Title,
			Description: row.Description,
			Subject:     row.Subject,
			Deadline:    row.Deadline,
			CreatedBy:   row.CreatedBy,
			CreatedAt:   row.CreatedAt,
		}
	case d.Answer != nil:
		row := *d.Answer
		payload = answerRow{
			ID:            row.ID,
			AssignmentID:  row.AssignmentID,
			CreatedBy:     row.CreatedBy,
			ImageURL:      row.ImageURL,
			SubmittedAt:   row.SubmittedAt,
			ExtractedText: row.ExtractedText,
			AIGrade:       row.AIGrade,
			TeacherGrade:  row.TeacherGrade,
			Feedback:      row.Feedback,
			Status:        string(row.Status),
			CreatedAt:     row.CreatedAt,
		}
	case d.Message != nil:
		row := *d.Message
		payload = messageRow{
			ID:         row.ID,
			SenderID:   row.SenderID,
			ReceiverID: row.ReceiverID,
			Content:    row.Content,
			SentAt:     row.SentAt,
		}
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal delta row: %w", err)
		}
		frame.Row = raw
	}
	return json.Marshal(frame)
}

// UnmarshalJSON parses the wire shape back into a typed delta.
func (d *Delta) UnmarshalJSON(data []byte) error {
	var frame wireDelta
	if err := json.Unmarshal(data, &frame); err != nil {
		return fmt.Errorf("unmarshal delta frame: %w", err)
	}
	decoded := Delta{Op: frame.Op, Table: frame.Table, RowID: frame.RowID}
	if len(frame.Row) > 0 {
		switch frame.Table {
		case TableAssignments:
			var row assignmentRow
			if err := json.Unmarshal(frame.Row, &row); err != nil {
				return fmt.Errorf("unmarshal assignment row: %w", err)
			}
			assignment := row.toDomain()
			decoded.Assignment = &assignment
		case TableAnswers:
			var row answerRow
			if err := json.Unmarshal(frame.Row, &row); err != nil {
				return fmt.Errorf("unmarshal answer row: %w", err)
			}
			answer := row.toDomain()
			decoded.Answer = &answer
		case TableMessages:
			var row messageRow
			if err := json.Unmarshal(frame.Row, &row); err != nil {
				return fmt.Errorf("unmarshal message row: %w", err)
			}
			message := row.toDomain()
			decoded.Message = &message
		default:
			return fmt.Errorf("unknown delta table %q", frame.Table)
		}
	}
	*d = decoded
	return nil
}
