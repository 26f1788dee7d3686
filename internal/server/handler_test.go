package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/classwork/internal/classroom/domain"
	"github.com/louisbranch/classwork/internal/classroom/service"
	"github.com/louisbranch/classwork/internal/classroom/storage/sqlite"
	"github.com/louisbranch/classwork/internal/grading"
	"github.com/louisbranch/classwork/internal/realtime"
)

type stubUploader struct{}

func (stubUploader) Upload(_ context.Context, _, _ string, body io.Reader) error {
	_, err := io.Copy(io.Discard, body)
	return err
}

func (stubUploader) PublicURL(path string) string { return "https://cdn.test/" + path }

func (stubUploader) Remove(context.Context, string) error { return nil }

type stubTranscriber struct{}

func (stubTranscriber) ExtractText(context.Context, string) (string, error) {
	return "the mitochondria is the powerhouse of the cell", nil
}

type stubGrader struct{}

func (stubGrader) Grade(context.Context, grading.Request) (grading.Result, error) {
	return grading.Result{Score: 4, Feedback: "good recall"}, nil
}

type testAPI struct {
	handler    http.Handler
	hub        *realtime.Hub
	authorizer *Authorizer
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "classwork.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	hub := realtime.NewHub()
	svc, err := service.New(service.Config{
		Store:       store,
		Uploader:    stubUploader{},
		Transcriber: stubTranscriber{},
		Grader:      stubGrader{},
		Broadcaster: hub,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	authorizer, err := NewAuthorizer([]byte("test-secret"))
	if err != nil {
		t.Fatalf("new authorizer: %v", err)
	}

	return &testAPI{
		handler:    NewHandler(svc, hub, authorizer),
		hub:        hub,
		authorizer: authorizer,
	}
}

func (api *testAPI) token(t *testing.T, userID string, role domain.Role) string {
	t.Helper()
	token, err := api.authorizer.IssueToken(Identity{UserID: userID, Role: role}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (api *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	api.handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(recorder.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", recorder.Body.String(), err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	api := newTestAPI(t)
	recorder := api.do(t, http.MethodGet, "/up", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	api := newTestAPI(t)
	recorder := api.do(t, http.MethodGet, "/api/assignments", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", recorder.Code)
	}
}

func TestBadTokenRejected(t *testing.T) {
	api := newTestAPI(t)
	recorder := api.do(t, http.MethodGet, "/api/assignments", "not-a-token", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", recorder.Code)
	}
}

func TestStudentCannotCreateAssignments(t *testing.T) {
	api := newTestAPI(t)
	token := api.token(t, "student-1", domain.RoleStudent)
	recorder := api.do(t, http.MethodPost, "/api/assignments", token, map[string]any{
		"title":    "Sneaky",
		"deadline": time.Now().Add(time.Hour),
	})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", recorder.Code)
	}
}

func (api *testAPI) submitMultipart(t *testing.T, assignmentID, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", "essay.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("fake image bytes")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/assignments/%s/answers", assignmentID), &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	recorder := httptest.NewRecorder()
	api.handler.ServeHTTP(recorder, req)
	return recorder
}

func TestAssignmentLifecycle(t *testing.T) {
	api := newTestAPI(t)
	teacherToken := api.token(t, "teacher-1", domain.RoleTeacher)
	studentToken := api.token(t, "student-1", domain.RoleStudent)

	api.linkProfiles(t, teacherToken, studentToken, "teacher-1")

	created := api.do(t, http.MethodPost, "/api/assignments", teacherToken, map[string]any{
		"title":       "Cell biology essay",
		"description": "Describe the role of mitochondria.",
		"subject":     "Biology",
		"deadline":    time.Now().Add(24 * time.Hour).UTC(),
	})
	if created.Code != http.StatusCreated {
		t.Fatalf("create assignment: %d %s", created.Code, created.Body.String())
	}
	assignment := decodeBody[assignmentResponse](t, created)
	if assignment.ID == "" {
		t.Fatal("assignment id is empty")
	}

	listed := api.do(t, http.MethodGet, "/api/assignments", studentToken, nil)
	if listed.Code != http.StatusOK {
		t.Fatalf("list assignments: %d %s", listed.Code, listed.Body.String())
	}
	assignments := decodeBody[[]assignmentResponse](t, listed)
	if len(assignments) != 1 || assignments[0].ID != assignment.ID {
		t.Fatalf("assignments = %+v", assignments)
	}

	statusRec := api.do(t, http.MethodGet, "/api/assignments/"+assignment.ID+"/status", studentToken, nil)
	if got := decodeBody[map[string]string](t, statusRec)["state"]; got != "not_started" {
		t.Fatalf("state = %q, want not_started", got)
	}

	submitted := api.submitMultipart(t, assignment.ID, studentToken)
	if submitted.Code != http.StatusCreated {
		t.Fatalf("submit: %d %s", submitted.Code, submitted.Body.String())
	}
	answer := decodeBody[answerResponse](t, submitted)
	if answer.AIGrade == nil || *answer.AIGrade != 4 {
		t.Fatalf("ai_grade = %v, want 4", answer.AIGrade)
	}
	if answer.Status != string(domain.StatusSubmitted) {
		t.Fatalf("status = %q, want submitted", answer.Status)
	}
	if !strings.HasPrefix(answer.ImageURL, "https://cdn.test/") {
		t.Fatalf("image_url = %q", answer.ImageURL)
	}

	if rec := api.submitMultipart(t, assignment.ID, studentToken); rec.Code != http.StatusConflict {
		t.Fatalf("second submit: %d, want 409", rec.Code)
	}

	review := api.do(t, http.MethodGet, "/api/assignments/"+assignment.ID+"/answers", teacherToken, nil)
	answers := decodeBody[[]answerResponse](t, review)
	if len(answers) != 1 || answers[0].ID != answer.ID {
		t.Fatalf("answers = %+v", answers)
	}

	override := 5
	graded := api.do(t, http.MethodPost, "/api/answers/"+answer.ID+"/grade", teacherToken, map[string]any{
		"teacher_grade": override,
		"feedback":      "well argued",
	})
	if graded.Code != http.StatusOK {
		t.Fatalf("grade: %d %s", graded.Code, graded.Body.String())
	}
	final := decodeBody[answerResponse](t, graded)
	if final.TeacherGrade == nil || *final.TeacherGrade != override {
		t.Fatalf("teacher_grade = %v, want %d", final.TeacherGrade, override)
	}
	if final.Status != string(domain.StatusGraded) {
		t.Fatalf("status = %q, want graded", final.Status)
	}

	if rec := api.do(t, http.MethodPost, "/api/answers/"+answer.ID+"/grade", teacherToken, map[string]any{}); rec.Code != http.StatusConflict {
		t.Fatalf("regrade: %d, want 409", rec.Code)
	}

	statusRec = api.do(t, http.MethodGet, "/api/assignments/"+assignment.ID+"/status", studentToken, nil)
	if got := decodeBody[map[string]string](t, statusRec)["state"]; got != "graded" {
		t.Fatalf("state = %q, want graded", got)
	}
}

// linkProfiles registers a teacher profile and a student profile pointing at
// teacherID, the relation that scopes chat and review access.
func (api *testAPI) linkProfiles(t *testing.T, teacherToken, studentToken, teacherID string) {
	t.Helper()
	if rec := api.do(t, http.MethodPut, "/api/profile", teacherToken, map[string]any{
		"full_name": "Ms. Rivera",
	}); rec.Code != http.StatusOK {
		t.Fatalf("teacher profile: %d %s", rec.Code, rec.Body.String())
	}
	if rec := api.do(t, http.MethodPut, "/api/profile", studentToken, map[string]any{
		"full_name":  "Sam Stone",
		"teacher_id": teacherID,
	}); rec.Code != http.StatusOK {
		t.Fatalf("student profile: %d %s", rec.Code, rec.Body.String())
	}
}

func TestMessagesEndpoints(t *testing.T) {
	api := newTestAPI(t)
	teacherToken := api.token(t, "teacher-1", domain.RoleTeacher)
	studentToken := api.token(t, "student-1", domain.RoleStudent)
	api.linkProfiles(t, teacherToken, studentToken, "teacher-1")

	sent := api.do(t, http.MethodPost, "/api/messages", studentToken, map[string]any{
		"recipient_id": "teacher-1",
		"content":      "can I get an extension?",
	})
	if sent.Code != http.StatusCreated {
		t.Fatalf("send: %d %s", sent.Code, sent.Body.String())
	}
	reply := api.do(t, http.MethodPost, "/api/messages", teacherToken, map[string]any{
		"recipient_id": "student-1",
		"content":      "one extra day, no more",
	})
	if reply.Code != http.StatusCreated {
		t.Fatalf("reply: %d %s", reply.Code, reply.Body.String())
	}

	listed := api.do(t, http.MethodGet, "/api/messages?peer=student-1", teacherToken, nil)
	messages := decodeBody[[]messageResponse](t, listed)
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(messages))
	}
	if messages[0].Content != "can I get an extension?" {
		t.Fatalf("messages out of order: %+v", messages)
	}

	if rec := api.do(t, http.MethodGet, "/api/messages", studentToken, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing peer: %d, want 400", rec.Code)
	}

	first := messages[0]
	if rec := api.do(t, http.MethodDelete, "/api/messages/"+first.ID, teacherToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("delete by non-sender: %d, want 403", rec.Code)
	}
	if rec := api.do(t, http.MethodDelete, "/api/messages/"+first.ID, studentToken, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d, want 204", rec.Code)
	}
	listed = api.do(t, http.MethodGet, "/api/messages?peer=student-1", teacherToken, nil)
	if remaining := decodeBody[[]messageResponse](t, listed); len(remaining) != 1 {
		t.Fatalf("messages after delete = %d, want 1", len(remaining))
	}
}

func TestTeacherCannotReachOtherClassroom(t *testing.T) {
	api := newTestAPI(t)
	ownerToken := api.token(t, "teacher-owner", domain.RoleTeacher)
	otherTeacherToken := api.token(t, "teacher-2", domain.RoleTeacher)
	studentToken := api.token(t, "student-1", domain.RoleStudent)
	api.linkProfiles(t, ownerToken, studentToken, "teacher-owner")
	if rec := api.do(t, http.MethodPut, "/api/profile", otherTeacherToken, map[string]any{
		"full_name": "Mr. Lang",
	}); rec.Code != http.StatusOK {
		t.Fatalf("second teacher profile: %d %s", rec.Code, rec.Body.String())
	}

	created := api.do(t, http.MethodPost, "/api/assignments", ownerToken, map[string]any{
		"title":    "Geometry proofs",
		"deadline": time.Now().Add(time.Hour).UTC(),
	})
	assignment := decodeBody[assignmentResponse](t, created)

	submitted := api.submitMultipart(t, assignment.ID, studentToken)
	if submitted.Code != http.StatusCreated {
		t.Fatalf("submit: %d %s", submitted.Code, submitted.Body.String())
	}
	answer := decodeBody[answerResponse](t, submitted)

	if rec := api.do(t, http.MethodGet, "/api/assignments/"+assignment.ID+"/answers", otherTeacherToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("review list from another teacher: %d, want 403", rec.Code)
	}
	grade := 5
	if rec := api.do(t, http.MethodPost, "/api/answers/"+answer.ID+"/grade", otherTeacherToken, map[string]any{
		"teacher_grade": grade,
	}); rec.Code != http.StatusForbidden {
		t.Fatalf("grade from another teacher: %d %s, want 403", rec.Code, rec.Body.String())
	}
	if rec := api.do(t, http.MethodPost, "/api/messages", otherTeacherToken, map[string]any{
		"recipient_id": "student-1",
		"content":      "switch to my class",
	}); rec.Code != http.StatusForbidden {
		t.Fatalf("message to another teacher's student: %d, want 403", rec.Code)
	}

	// the owning teacher is unaffected
	review := api.do(t, http.MethodGet, "/api/assignments/"+assignment.ID+"/answers", ownerToken, nil)
	if review.Code != http.StatusOK {
		t.Fatalf("owner review list: %d %s", review.Code, review.Body.String())
	}
	if answers := decodeBody[[]answerResponse](t, review); len(answers) != 1 || answers[0].TeacherGrade != nil {
		t.Fatalf("answers = %+v, want one ungraded", answers)
	}
}
