package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/classwork/internal/classroom/domain"
	"github.com/louisbranch/classwork/internal/classroom/service"
	apperrors "github.com/louisbranch/classwork/internal/errors"
	"github.com/louisbranch/classwork/internal/realtime"
)

// maxUploadBytes caps one submission image.
const maxUploadBytes = 10 << 20

// Handler exposes the classroom API over HTTP and websocket.
type Handler struct {
	svc        *service.Service
	hub        *realtime.Hub
	authorizer *Authorizer
}

// NewHandler builds the API routes.
func NewHandler(svc *service.Service, hub *realtime.Hub, authorizer *Authorizer) http.Handler {
	h := &Handler{svc: svc, hub: hub, authorizer: authorizer}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("POST /api/assignments", h.authenticated(h.createAssignment))
	mux.HandleFunc("GET /api/assignments", h.authenticated(h.listAssignments))
	mux.HandleFunc("GET /api/assignments/{id}/status", h.authenticated(h.submissionStatus))
	mux.HandleFunc("GET /api/assignments/{id}/answers", h.authenticated(h.listAnswersForAssignment))
	mux.HandleFunc("POST /api/assignments/{id}/answers", h.authenticated(h.submitAnswer))
	mux.HandleFunc("GET /api/answers", h.authenticated(h.listOwnAnswers))
	mux.HandleFunc("POST /api/answers/{id}/grade", h.authenticated(h.finalizeGrade))
	mux.HandleFunc("PUT /api/profile", h.authenticated(h.upsertProfile))
	mux.HandleFunc("GET /api/students", h.authenticated(h.listStudents))
	mux.HandleFunc("GET /api/messages", h.authenticated(h.listMessages))
	mux.HandleFunc("POST /api/messages", h.authenticated(h.sendMessage))
	mux.HandleFunc("DELETE /api/messages/{id}", h.authenticated(h.deleteMessage))
	mux.HandleFunc("GET /ws", h.serveWS)
	return mux
}

type authedHandler func(w http.ResponseWriter, r *http.Request, identity Identity)

func (h *Handler) authenticated(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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
		next(w, r, identity)
	}
}

func requireRole(identity Identity, role domain.Role) error {
	if identity.Role != role {
		return apperrors.New(apperrors.CodeForbidden, "operation not allowed for this role")
	}
	return nil
}

type assignmentResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	Deadline    time.Time `json:"deadline"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

func toAssignmentResponse(a domain.Assignment) assignmentResponse {
	return assignmentResponse{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		Subject:     a.Subject,
		Deadline:    a.Deadline,
		CreatedBy:   a.CreatedBy,
		CreatedAt:   a.CreatedAt,
	}
}

type answerResponse struct {
	ID            string    `json:"id"`
	AssignmentID  string    `json:"assignment_id"`
	CreatedBy     string    `json:"created_by"`
	ImageURL      string    `json:"image_url"`
	SubmittedAt   time.Time `json:"submitted_at"`
	ExtractedText string    `json:"extracted_text,omitempty"`
	AIGrade       *int      `json:"ai_grade,omitempty"`
	TeacherGrade  *int      `json:"teacher_grade,omitempty"`
	Feedback      string    `json:"feedback,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func toAnswerResponse(a domain.Answer) answerResponse {
	return answerResponse{
		ID:            a.ID,
		AssignmentID:  a.AssignmentID,
		CreatedBy:     a.CreatedBy,
		ImageURL:      a.ImageURL,
		SubmittedAt:   a.SubmittedAt,
		ExtractedText: a.ExtractedText,
		AIGrade:       a.AIGrade,
		TeacherGrade:  a.TeacherGrade,
		Feedback:      a.Feedback,
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt,
	}
}

type messageResponse struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"sent_at"`
}

func toMessageResponse(m domain.Message) messageResponse {
	return messageResponse{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		SentAt:     m.SentAt,
	}
}

type createAssignmentRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Subject     string    `json:"subject"`
	Deadline    time.Time `json:"deadline"`
}

func (h *Handler) createAssignment(w http.ResponseWriter, r *http.Request, identity Identity) {
	if err := requireRole(identity, domain.RoleTeacher); err != nil {
		writeError(w, err)
		return
	}
	var req createAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeMissingField, "invalid request body", err))
		return
	}
	assignment, err := h.svc.CreateAssignment(r.Context(), domain.CreateAssignmentInput{
		Title:       req.Title,
		Description: req.Description,
		Subject:     req.Subject,
		Deadline:    req.Deadline,
		CreatedBy:   identity.UserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentResponse(assignment))
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request, identity Identity) {
	var (
		assignments []domain.Assignment
		err         error
	)
	switch identity.Role {
	case domain.RoleTeacher:
		assignments, err = h.svc.AssignmentsForTeacher(r.Context(), identity.UserID)
	default:
		assignments, err = h.svc.AssignmentsForStudent(r.Context(), identity.UserID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]assignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, toAssignmentResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) submissionStatus(w http.ResponseWriter, r *http.Request, identity Identity) {
	state, err := h.svc.SubmissionStatus(r.Context(), r.PathValue("id"), identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": state.String()})
}

func (h *Handler) listAnswersForAssignment(w http.ResponseWriter, r *http.Request, identity Identity) {
	if err := requireRole(identity, domain.RoleTeacher); err != nil {
		writeError(w, err)
		return
	}
	answers, err := h.svc.AnswersForAssignment(r.Context(), r.PathValue("id"), identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]answerResponse, 0, len(answers))
	for _, a := range answers {
		out = append(out, toAnswerResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request, identity Identity) {
	if err := requireRole(identity, domain.RoleStudent); err != nil {
		writeError(w, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeMissingField, "image file is required", err))
		return
	}
	defer func() { _ = file.Close() }()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	answer, err := h.svc.Submit(r.Context(), service.SubmitInput{
		AssignmentID: r.PathValue("id"),
		StudentID:    identity.UserID,
		Filename:     header.Filename,
		ContentType:  contentType,
		File:         file,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAnswerResponse(answer))
}

func (h *Handler) listOwnAnswers(w http.ResponseWriter, r *http.Request, identity Identity) {
	answers, err := h.svc.AnswersForStudent(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]answerResponse, 0, len(answers))
	for _, a := range answers {
		out = append(out, toAnswerResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

type finalizeGradeRequest struct {
	TeacherGrade *int    `json:"teacher_grade"`
	Feedback     *string `json:"feedback"`
}

func (h *Handler) finalizeGrade(w http.ResponseWriter, r *http.Request, identity Identity) {
	if err := requireRole(identity, domain.RoleTeacher); err != nil {
		writeError(w, err)
		return
	}
	var req finalizeGradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeMissingField, "invalid request body", err))
		return
	}
	answer, err := h.svc.FinalizeGrade(r.Context(), service.FinalizeGradeInput{
		AnswerID:     r.PathValue("id"),
		TeacherID:    identity.UserID,
		TeacherGrade: req.TeacherGrade,
		Feedback:     req.Feedback,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnswerResponse(answer))
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request, identity Identity) {
	peer := strings.TrimSpace(r.URL.Query().Get("peer"))
	if peer == "" {
		writeError(w, apperrors.New(apperrors.CodeMissingField, "peer is required"))
		return
	}
	messages, err := h.svc.MessagesBetween(r.Context(), identity.UserID, peer)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, toMessageResponse(m))
	}
	writeJSON(w, http.StatusOK, out)
}

type sendMessageRequest struct {
	RecipientID     string `json:"recipient_id"`
	Content         string `json:"content"`
	ClientMessageID string `json:"client_message_id"`
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request, identity Identity) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeMissingField, "invalid request body", err))
		return
	}
	message, err := h.svc.SendMessage(r.Context(), service.SendMessageInput{
		SenderID:        identity.UserID,
		RecipientID:     req.RecipientID,
		Content:         req.Content,
		ClientMessageID: req.ClientMessageID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMessageResponse(message))
}

func (h *Handler) deleteMessage(w http.ResponseWriter, r *http.Request, identity Identity) {
	if err := h.svc.DeleteMessage(r.Context(), r.PathValue("id"), identity.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type profileRequest struct {
	FullName  string `json:"full_name"`
	TeacherID string `json:"teacher_id"`
	AvatarURL string `json:"avatar_url"`
}

type profileResponse struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Role      string `json:"role"`
	TeacherID string `json:"teacher_id,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func toProfileResponse(p domain.Profile) profileResponse {
	return profileResponse{
		ID:        p.ID,
		FullName:  p.FullName,
		Role:      string(p.Role),
		TeacherID: p.TeacherID,
		AvatarURL: p.AvatarURL,
	}
}

// upsertProfile stores the caller's classroom profile. The id and role come
// from the token, never from the body.
func (h *Handler) upsertProfile(w http.ResponseWriter, r *http.Request, identity Identity) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeMissingField, "invalid request body", err))
		return
	}
	teacherID := req.TeacherID
	if identity.Role == domain.RoleTeacher {
		teacherID = ""
	}
	profile := domain.Profile{
		ID:        identity.UserID,
		FullName:  req.FullName,
		Role:      identity.Role,
		TeacherID: teacherID,
		AvatarURL: req.AvatarURL,
	}
	if err := h.svc.UpsertProfile(r.Context(), profile); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

func (h *Handler) listStudents(w http.ResponseWriter, r *http.Request, identity Identity) {
	if err := requireRole(identity, domain.RoleTeacher); err != nil {
		writeError(w, err)
		return
	}
	students, err := h.svc.StudentsOfTeacher(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]profileResponse, 0, len(students))
	for _, p := range students {
		out = append(out, toProfileResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}
