package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"golang.org/x/net/websocket"

	"github.com/louisbranch/classwork/internal/classroom/domain"
	apperrors "github.com/louisbranch/classwork/internal/errors"
	"github.com/louisbranch/classwork/internal/realtime"
)

// serveWS upgrades the connection and streams the requested feed's deltas.
// The feed query parameter picks the table; scope is derived from the caller
// so a client can only subscribe to rows it is allowed to see.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
		return
	}
	identity, err := h.authorizer.Authenticate(token)
	if err != nil {
		writeError(w, err)
		return
	}

	topic, err := h.topicForRequest(r, identity)
	if err != nil {
		writeError(w, err)
		return
	}

	websocket.Handler(func(conn *websocket.Conn) {
		h.streamDeltas(conn, topic)
	}).ServeHTTP(w, r)
}

func (h *Handler) topicForRequest(r *http.Request, identity Identity) (realtime.Topic, error) {
	query := r.URL.Query()
	feed := strings.TrimSpace(query.Get("feed"))
	switch feed {
	case "assignments":
		if identity.Role == domain.RoleTeacher {
			return realtime.AssignmentsByTeacher(identity.UserID), nil
		}
		teacherID, err := h.svc.TeacherOf(r.Context(), identity.UserID)
		if err != nil {
			return realtime.Topic{}, err
		}
		return realtime.AssignmentsByTeacher(teacherID), nil
	case "answers":
		if identity.Role == domain.RoleStudent {
			return realtime.AnswersByStudent(identity.UserID), nil
		}
		assignmentID := strings.TrimSpace(query.Get("assignment"))
		if assignmentID == "" {
			return realtime.Topic{}, apperrors.New(apperrors.CodeMissingField, "assignment is required")
		}
		if _, err := h.svc.AssignmentOwnedBy(r.Context(), assignmentID, identity.UserID); err != nil {
			return realtime.Topic{}, err
		}
		return realtime.AnswersByAssignment(assignmentID), nil
	case "messages":
		peer := strings.TrimSpace(query.Get("peer"))
		if peer == "" {
			return realtime.Topic{}, apperrors.New(apperrors.CodeMissingField, "peer is required")
		}
		return realtime.MessagesForPair(identity.UserID, peer), nil
	}
	return realtime.Topic{}, apperrors.New(apperrors.CodeMissingField, "unknown feed")
}

// streamDeltas forwards hub deltas to the client until either side closes.
// A reader goroutine drains the connection so client close is noticed even
// when the feed is quiet.
func (h *Handler) streamDeltas(conn *websocket.Conn, topic realtime.Topic) {
	defer func() { _ = conn.Close() }()

	sub := h.hub.Subscribe(topic)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 256)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	encoder := json.NewEncoder(conn)
	for {
		select {
		case delta, ok := <-sub.C():
			if !ok {
				return
			}
			if err := encoder.Encode(delta); err != nil {
				if err != io.EOF {
					log.Printf("write ws delta: %v", err)
				}
				return
			}
		case <-done:
			return
		}
	}
}
