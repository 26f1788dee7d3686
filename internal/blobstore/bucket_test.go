package blobstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "github.com/louisbranch/classwork/internal/errors"
)

func TestSubmissionPath(t *testing.T) {
	now := time.Date(2025, 1, 24, 12, 0, 0, 0, time.UTC)
	got := SubmissionPath(now, "my answer (1).png")
	want := "1737720000000-my_answer__1_.png"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if SubmissionPath(now, "  ") != "1737720000000-upload" {
		t.Fatalf("expected fallback filename, got %q", SubmissionPath(now, "  "))
	}
}

func TestBucketClientUpload(t *testing.T) {
	var gotPath, gotAuth, gotType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewBucketClient(BucketConfig{
		BaseURL: server.URL + "/storage/v1",
		Bucket:  "answers",
		APIKey:  "secret",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	err = client.Upload(context.Background(), "123-answer.png", "image/png", strings.NewReader("pixels"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if gotPath != "/storage/v1/object/answers/123-answer.png" {
		t.Fatalf("unexpected upload path %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected authorization %q", gotAuth)
	}
	if gotType != "image/png" {
		t.Fatalf("unexpected content type %q", gotType)
	}
	if string(gotBody) != "pixels" {
		t.Fatalf("unexpected body %q", gotBody)
	}
}

func TestBucketClientUploadRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bucket quota exceeded", http.StatusForbidden)
	}))
	defer server.Close()

	client, err := NewBucketClient(BucketConfig{BaseURL: server.URL, Bucket: "answers"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	err = client.Upload(context.Background(), "p.png", "image/png", strings.NewReader("x"))
	if err == nil {
		t.Fatal("expected upload error")
	}
	if !errors.Is(err, apperrors.New(apperrors.CodeUploadFailed, "")) {
		t.Fatalf("expected upload failed code, got %v", err)
	}
	if !strings.Contains(err.Error(), "quota") {
		t.Fatalf("expected provider detail preserved, got %v", err)
	}
}

func TestBucketClientPublicURL(t *testing.T) {
	client, err := NewBucketClient(BucketConfig{
		BaseURL: "https://store.example/storage/v1/",
		Bucket:  "answers",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	got := client.PublicURL("123-answer.png")
	want := "https://store.example/storage/v1/object/public/answers/123-answer.png"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestBucketClientRemove(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewBucketClient(BucketConfig{BaseURL: server.URL, Bucket: "answers"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Remove(context.Background(), "123-answer.png"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Fatalf("expected DELETE, got %s", gotMethod)
	}
	if gotPath != "/object/answers/123-answer.png" {
		t.Fatalf("unexpected remove path %q", gotPath)
	}
}
