package domain

import (
	"testing"
	"time"
)

func testAssignment(deadline time.Time) Assignment {
	return Assignment{
		ID:        "asg1",
		Title:     "Fractions",
		Subject:   "math",
		Deadline:  deadline,
		CreatedBy: "teacher1",
	}
}

func TestStateForDerivation(t *testing.T) {
	deadline := time.Date(2025, 1, 25, 23, 59, 59, 0, time.UTC)
	submitted := &Answer{ID: "ans1", Status: StatusSubmitted}
	graded := &Answer{ID: "ans1", Status: StatusGraded}

	tests := []struct {
		name   string
		answer *Answer
		now    time.Time
		want   SubmissionState
	}{
		{"no answer before deadline", nil, deadline.Add(-24 * time.Hour), StateNotStarted},
		{"no answer at exact deadline", nil, deadline, StateNotStarted},
		{"no answer one second late", nil, deadline.Add(time.Second), StateMissed},
		{"submitted answer", submitted, deadline.Add(-time.Hour), StateSubmitted},
		{"submitted answer after deadline stays submitted", submitted, deadline.Add(time.Hour), StateSubmitted},
		{"graded answer", graded, deadline.Add(time.Hour), StateGraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StateFor(testAssignment(deadline), tt.answer, tt.now)
			if got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCanSubmitBoundary(t *testing.T) {
	deadline := time.Date(2025, 1, 25, 0, 0, 0, 0, time.UTC)
	assignment := testAssignment(deadline)

	if !CanSubmit(assignment, nil, deadline) {
		t.Fatal("expected exact deadline instant to be eligible")
	}
	if CanSubmit(assignment, nil, deadline.Add(time.Second)) {
		t.Fatal("expected one second past deadline to be ineligible")
	}
	if CanSubmit(assignment, &Answer{Status: StatusSubmitted}, deadline.Add(-time.Hour)) {
		t.Fatal("expected existing answer to block resubmission")
	}
}
