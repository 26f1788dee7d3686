package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/louisbranch/classwork/internal/classroom/domain"
	"github.com/louisbranch/classwork/internal/realtime"
)

type wsTestDelta struct {
	Op    string          `json:"op"`
	Table string          `json:"table"`
	ID    string          `json:"id"`
	Row   json.RawMessage `json:"row"`
}

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWSStreamsMessageDeltas(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	teacherToken := api.token(t, "teacher-1", domain.RoleTeacher)
	studentToken := api.token(t, "student-1", domain.RoleStudent)
	api.linkProfiles(t, teacherToken, studentToken, "teacher-1")

	conn := dialWS(t, srv, "/ws?feed=messages&peer=student-1&access_token="+teacherToken)

	// give the subscription a moment to register before publishing
	deadline := time.Now().Add(2 * time.Second)
	for api.hub.SubscriberCount(realtime.MessagesForPair("teacher-1", "student-1")) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	sent := api.do(t, http.MethodPost, "/api/messages", studentToken, map[string]any{
		"recipient_id": "teacher-1",
		"content":      "did you see my essay?",
	})
	if sent.Code != http.StatusCreated {
		t.Fatalf("send: %d %s", sent.Code, sent.Body.String())
	}
	message := decodeBody[messageResponse](t, sent)

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	var delta wsTestDelta
	if err := json.NewDecoder(conn).Decode(&delta); err != nil {
		t.Fatalf("read delta: %v", err)
	}
	if delta.Op != "inserted" || delta.Table != "messages" {
		t.Fatalf("delta = %+v", delta)
	}
	if delta.ID != message.ID {
		t.Fatalf("delta id = %q, want %q", delta.ID, message.ID)
	}
}

func TestWSStreamsAnswerDeltasToStudent(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	teacherToken := api.token(t, "teacher-1", domain.RoleTeacher)
	studentToken := api.token(t, "student-1", domain.RoleStudent)

	created := api.do(t, http.MethodPost, "/api/assignments", teacherToken, map[string]any{
		"title":    "Reading log",
		"deadline": time.Now().Add(time.Hour).UTC(),
	})
	assignment := decodeBody[assignmentResponse](t, created)

	conn := dialWS(t, srv, "/ws?feed=answers&access_token="+studentToken)

	deadline := time.Now().Add(2 * time.Second)
	for api.hub.SubscriberCount(realtime.AnswersByStudent("student-1")) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	submitted := api.submitMultipart(t, assignment.ID, studentToken)
	if submitted.Code != http.StatusCreated {
		t.Fatalf("submit: %d %s", submitted.Code, submitted.Body.String())
	}
	answer := decodeBody[answerResponse](t, submitted)

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	var delta wsTestDelta
	if err := json.NewDecoder(conn).Decode(&delta); err != nil {
		t.Fatalf("read delta: %v", err)
	}
	if delta.Table != "answers" || delta.ID != answer.ID {
		t.Fatalf("delta = %+v", delta)
	}
}

func TestWSRequiresToken(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ws?feed=messages&peer=x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestWSRejectsOtherTeachersAnswerFeed(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	ownerToken := api.token(t, "teacher-owner", domain.RoleTeacher)
	created := api.do(t, http.MethodPost, "/api/assignments", ownerToken, map[string]any{
		"title":    "Reading log",
		"deadline": time.Now().Add(time.Hour).UTC(),
	})
	assignment := decodeBody[assignmentResponse](t, created)

	otherTeacherToken := api.token(t, "teacher-2", domain.RoleTeacher)
	resp, err := http.Get(srv.URL + "/ws?feed=answers&assignment=" + assignment.ID + "&access_token=" + otherTeacherToken)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestWSRejectsUnknownFeed(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	token := api.token(t, "teacher-1", domain.RoleTeacher)
	resp, err := http.Get(srv.URL + "/ws?feed=everything&access_token=" + token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
