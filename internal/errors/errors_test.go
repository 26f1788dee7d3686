package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCauseChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeTranscriptionFailed, "transcribe image", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause in chain")
	}
	if got := err.Error(); got != "transcribe image: connection refused" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeNotFound, "answer missing"))
	if !errors.Is(err, New(CodeNotFound, "")) {
		t.Fatal("expected code match through wrapping")
	}
	if errors.Is(err, New(CodePersistFailed, "")) {
		t.Fatal("expected no match for different code")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("outer: %w", New(CodeGradingMalformed, "bad json"))); got != CodeGradingMalformed {
		t.Fatalf("expected grading malformed code, got %q", got)
	}
	if got := CodeOf(errors.New("plain")); got != CodeUnknown {
		t.Fatalf("expected unknown code, got %q", got)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeGradeOutOfRange, http.StatusBadRequest},
		{CodeDeadlinePassed, http.StatusConflict},
		{CodeAlreadySubmitted, http.StatusConflict},
		{CodeReconcileConflict, http.StatusConflict},
		{CodeNotFound, http.StatusNotFound},
		{CodeUnauthenticated, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeGradingFailed, http.StatusBadGateway},
		{CodePersistFailed, http.StatusInternalServerError},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Fatalf("code %s: expected %d, got %d", tt.code, tt.want, got)
		}
	}
}
