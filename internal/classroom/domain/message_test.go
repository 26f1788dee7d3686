package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewMessage(t *testing.T) {
	fixedTime := time.Date(2025, 1, 24, 15, 30, 0, 0, time.UTC)
	msg, err := NewMessage("student1", "teacher1", "when is the retake?", func() time.Time {
		return fixedTime
	}, func() (string, error) {
		return "msg123", nil
	})
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	if msg.ID != "msg123" {
		t.Fatalf("expected id msg123, got %q", msg.ID)
	}
	if !msg.SentAt.Equal(fixedTime) {
		t.Fatalf("expected sent at fixed time, got %v", msg.SentAt)
	}
}

func TestNewMessageValidation(t *testing.T) {
	if _, err := NewMessage("student1", "teacher1", "   ", nil, nil); !errors.Is(err, ErrContentEmpty) {
		t.Fatalf("expected content error, got %v", err)
	}
	if _, err := NewMessage("", "teacher1", "hello", nil, nil); err == nil {
		t.Fatal("expected error for missing sender")
	}
}
