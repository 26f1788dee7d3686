// Package storage defines persistence contracts for classroom state.
package storage

import (
	"context"
	"errors"

	"github.com/louisbranch/classwork/internal/classroom/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrStaleWrite indicates a conditional update observed a different record
// state than the caller expected.
var ErrStaleWrite = errors.New("record state changed since read")

// AssignmentStore persists published assignments.
type AssignmentStore interface {
	PutAssignment(ctx context.Context, assignment domain.Assignment) error
	GetAssignment(ctx context.Context, assignmentID string) (domain.Assignment, error)
	ListAssignmentsByTeacher(ctx context.Context, teacherID string) ([]domain.Assignment, error)
}

// FinalizeGradeInput carries the reconciliation write for one answer.
type FinalizeGradeInput struct {
	AnswerID     string
	TeacherGrade int
	Feedback     string
	// ExpectStatus is the optimistic precondition: the update applies only
	// while the stored status still matches, otherwise ErrStaleWrite.
	ExpectStatus domain.AnswerStatus
}

// AnswerStore persists submitted answers.
type AnswerStore interface {
	InsertAnswer(ctx context.Context, answer domain.Answer) error
	GetAnswer(ctx context.Context, answerID string) (domain.Answer, error)
	// LatestAnswerFor returns the most recent answer for one
	// (assignment, student) pair, or ErrNotFound. Duplicate rows for the same
	// pair are legal at the schema level and disambiguated by recency here.
	LatestAnswerFor(ctx context.Context, assignmentID, studentID string) (domain.Answer, error)
	ListAnswersByAssignment(ctx context.Context, assignmentID string) ([]domain.Answer, error)
	ListAnswersByStudent(ctx context.Context, studentID string) ([]domain.Answer, error)
	FinalizeGrade(ctx context.Context, input FinalizeGradeInput) (domain.Answer, error)
}

// MessageStore persists the append-only chat stream.
type MessageStore interface {
	AppendMessage(ctx context.Context, message domain.Message) error
	GetMessage(ctx context.Context, messageID string) (domain.Message, error)
	// ListMessagesBetween returns every message exchanged between the two
	// participants, sorted by sent_at ascending.
	ListMessagesBetween(ctx context.Context, userA, userB string) ([]domain.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
}

// ProfileStore persists classroom accounts.
type ProfileStore interface {
	PutProfile(ctx context.Context, profile domain.Profile) error
	GetProfile(ctx context.Context, profileID string) (domain.Profile, error)
	ListStudentsOfTeacher(ctx context.Context, teacherID string) ([]domain.Profile, error)
}

// Store aggregates every classroom persistence contract.
type Store interface {
	AssignmentStore
	AnswerStore
	MessageStore
	ProfileStore
}
