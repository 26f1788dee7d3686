// Package domain holds the classroom data model and the submission state
// machine shared by the pipeline, reconciliation, and read paths.
package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/classwork/internal/errors"
	"github.com/louisbranch/classwork/internal/platform/id"
)

var (
	// ErrTitleEmpty indicates a missing assignment title.
	ErrTitleEmpty = apperrors.New(apperrors.CodeAssignmentTitleEmpty, "assignment title is required")
	// ErrDeadlineZero indicates a missing assignment deadline.
	ErrDeadlineZero = apperrors.New(apperrors.CodeAssignmentDeadlineZero, "assignment deadline is required")
)

// Assignment is a task a teacher publishes with a deadline. Assignments are
// immutable once created.
type Assignment struct {
	ID          string
	Title       string
	Description string
	Subject     string
	Deadline    time.Time
	CreatedBy   string
	CreatedAt   time.Time
}

// CreateAssignmentInput describes the metadata needed to publish an assignment.
type CreateAssignmentInput struct {
	Title       string
	Description string
	Subject     string
	Deadline    time.Time
	CreatedBy   string
}

// CreateAssignment creates a new assignment with a generated ID and timestamps.
func CreateAssignment(input CreateAssignmentInput, now func() time.Time, idGenerator func() (string, error)) (Assignment, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateAssignmentInput(input)
	if err != nil {
		return Assignment{}, err
	}

	assignmentID, err := idGenerator()
	if err != nil {
		return Assignment{}, fmt.Errorf("generate assignment id: %w", err)
	}

	return Assignment{
		ID:          assignmentID,
		Title:       normalized.Title,
		Description: normalized.Description,
		Subject:     normalized.Subject,
		Deadline:    normalized.Deadline.UTC(),
		CreatedBy:   normalized.CreatedBy,
		CreatedAt:   now().UTC(),
	}, nil
}

// NormalizeCreateAssignmentInput trims and validates assignment metadata.
func NormalizeCreateAssignmentInput(input CreateAssignmentInput) (CreateAssignmentInput, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Subject = strings.TrimSpace(input.Subject)
	input.CreatedBy = strings.TrimSpace(input.CreatedBy)
	if input.Title == "" {
		return CreateAssignmentInput{}, ErrTitleEmpty
	}
	if input.Deadline.IsZero() {
		return CreateAssignmentInput{}, ErrDeadlineZero
	}
	if input.CreatedBy == "" {
		return CreateAssignmentInput{}, apperrors.New(apperrors.CodeMissingField, "assignment creator is required")
	}
	return input, nil
}
