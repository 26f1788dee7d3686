package domain

import "time"

// SubmissionState describes one student's relationship to one assignment.
type SubmissionState int

const (
	// StateNotStarted means no answer exists and the deadline has not passed.
	StateNotStarted SubmissionState = iota
	// StateSubmitted means a pipeline run persisted an answer.
	StateSubmitted
	// StateGraded means reconciliation finalized the answer. Terminal.
	StateGraded
	// StateMissed means the deadline passed with no answer. Terminal.
	StateMissed
)

// String returns the lowercase state name.
func (s SubmissionState) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateSubmitted:
		return "submitted"
	case StateGraded:
		return "graded"
	case StateMissed:
		return "missed"
	}
	return "unknown"
}

// StateFor derives the submission state for one (assignment, student) pair.
// answer is the student's answer for the assignment, or nil when none exists.
func StateFor(assignment Assignment, answer *Answer, now time.Time) SubmissionState {
	if answer != nil {
		if answer.Status == StatusGraded {
			return StateGraded
		}
		return StateSubmitted
	}
	if now.UTC().After(assignment.Deadline.UTC()) {
		return StateMissed
	}
	return StateNotStarted
}

// CanSubmit reports whether a submission is legal: no answer exists yet and
// the deadline has not passed. The exact deadline instant is still eligible.
// Only the submission pipeline's terminal write moves the state forward, so
// callers must check eligibility before invoking the pipeline.
func CanSubmit(assignment Assignment, answer *Answer, now time.Time) bool {
	return StateFor(assignment, answer, now) == StateNotStarted
}
