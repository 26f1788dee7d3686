package domain

import (
	"time"

	apperrors "github.com/louisbranch/classwork/internal/errors"
)

// AnswerStatus tracks where an answer sits in the grading workflow.
type AnswerStatus string

const (
	// StatusSubmitted marks an answer persisted by a completed pipeline run.
	StatusSubmitted AnswerStatus = "submitted"
	// StatusGraded marks an answer finalized by teacher reconciliation.
	StatusGraded AnswerStatus = "graded"
)

// Grade bounds for both AI and teacher grades.
const (
	GradeMin = 2
	GradeMax = 5
)

// ErrGradeOutOfRange indicates a grade outside the 2..5 scale.
var ErrGradeOutOfRange = apperrors.New(apperrors.CodeGradeOutOfRange, "grade must be between 2 and 5")

// Answer is one student's submission against one assignment. A row exists
// only after a complete, successful pipeline run; reconciliation is the only
// transition to graded.
type Answer struct {
	ID            string
	AssignmentID  string
	CreatedBy     string
	ImageURL      string
	SubmittedAt   time.Time
	ExtractedText string
	AIGrade       *int
	TeacherGrade  *int
	Feedback      string
	Status        AnswerStatus
	CreatedAt     time.Time
}

// ValidGrade reports whether grade sits on the 2..5 scale.
func ValidGrade(grade int) bool {
	return grade >= GradeMin && grade <= GradeMax
}

// CheckGrade validates a grade value against the 2..5 scale.
func CheckGrade(grade int) error {
	if !ValidGrade(grade) {
		return ErrGradeOutOfRange
	}
	return nil
}
