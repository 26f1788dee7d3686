// Package service orchestrates the classroom workflows: the submission
// pipeline, grade reconciliation, chat, and the read paths behind each
// dashboard. All collaborators are injected so tests can substitute fakes.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/classwork/internal/blobstore"
	"github.com/louisbranch/classwork/internal/classroom/domain"
	"github.com/louisbranch/classwork/internal/classroom/storage"
	apperrors "github.com/louisbranch/classwork/internal/errors"
	"github.com/louisbranch/classwork/internal/grading"
	"github.com/louisbranch/classwork/internal/platform/id"
	"github.com/louisbranch/classwork/internal/realtime"
	"github.com/louisbranch/classwork/internal/transcribe"
)

// Broadcaster fans one delta out to every subscriber of a topic.
type Broadcaster interface {
	Publish(topic realtime.Topic, delta realtime.Delta)
}

// Config wires the service's collaborators.
type Config struct {
	Store       storage.Store
	Uploader    blobstore.Uploader
	Transcriber transcribe.Transcriber
	Grader      grading.Grader
	Broadcaster Broadcaster

	// KeepOrphanedUploads disables removal of the uploaded object when a
	// later pipeline stage fails. The default policy deletes the orphan.
	KeepOrphanedUploads bool

	// Now and NewID exist for tests; nil selects the real implementations.
	Now   func() time.Time
	NewID func() (string, error)
}

// Service runs the classroom workflows.
type Service struct {
	store       storage.Store
	uploader    blobstore.Uploader
	transcriber transcribe.Transcriber
	grader      grading.Grader
	broadcaster Broadcaster

	keepOrphans bool
	now         func() time.Time
	newID       func() (string, error)

	mu          sync.Mutex
	recentSends map[string]domain.Message
	sendOrder   []string
}

// maxRecentSends bounds the message dedupe record.
const maxRecentSends = 256

// New builds a service from its collaborators.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Uploader == nil {
		return nil, fmt.Errorf("uploader is required")
	}
	if cfg.Transcriber == nil {
		return nil, fmt.Errorf("transcriber is required")
	}
	if cfg.Grader == nil {
		return nil, fmt.Errorf("grader is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = id.NewID
	}
	return &Service{
		store:       cfg.Store,
		uploader:    cfg.Uploader,
		transcriber: cfg.Transcriber,
		grader:      cfg.Grader,
		broadcaster: cfg.Broadcaster,
		keepOrphans: cfg.KeepOrphanedUploads,
		now:         cfg.Now,
		newID:       cfg.NewID,
		recentSends: make(map[string]domain.Message),
	}, nil
}

func (s *Service) publish(topic realtime.Topic, delta realtime.Delta) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish(topic, delta)
}

func mapStorageErr(err error, notFoundMessage string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.Wrap(apperrors.CodeNotFound, notFoundMessage, err)
	}
	return err
}

// CreateAssignment publishes a new assignment and broadcasts it to the
// teacher's subscribed students.
func (s *Service) CreateAssignment(ctx context.Context, input domain.CreateAssignmentInput) (domain.Assignment, error) {
	assignment, err := domain.CreateAssignment(input, s.now, s.newID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if err := s.store.PutAssignment(ctx, assignment); err != nil {
		return domain.Assignment{}, apperrors.Wrap(apperrors.CodePersistFailed, "persist assignment", err)
	}

	s.publish(realtime.AssignmentsByTeacher(assignment.CreatedBy), realtime.Delta{
		Op:         realtime.OpInserted,
		Table:      realtime.TableAssignments,
		RowID:      assignment.ID,
		Assignment: &assignment,
	})
	return assignment, nil
}

// AssignmentsForTeacher lists a teacher's published assignments.
func (s *Service) AssignmentsForTeacher(ctx context.Context, teacherID string) ([]domain.Assignment, error) {
	return s.store.ListAssignmentsByTeacher(ctx, teacherID)
}

// AssignmentsForStudent lists the assignments visible to a student: those
// published by the teacher the student's profile references.
func (s *Service) AssignmentsForStudent(ctx context.Context, studentID string) ([]domain.Assignment, error) {
	profile, err := s.store.GetProfile(ctx, studentID)
	if err != nil {
		return nil, mapStorageErr(err, "student profile not found")
	}
	if profile.TeacherID == "" {
		return nil, nil
	}
	return s.store.ListAssignmentsByTeacher(ctx, profile.TeacherID)
}

// UpsertProfile stores a classroom profile. Identity itself is issued
// elsewhere; the profile only carries the classroom-facing fields.
func (s *Service) UpsertProfile(ctx context.Context, profile domain.Profile) error {
	if strings.TrimSpace(profile.ID) == "" {
		return apperrors.New(apperrors.CodeMissingField, "profile id is required")
	}
	if err := s.store.PutProfile(ctx, profile); err != nil {
		return apperrors.Wrap(apperrors.CodePersistFailed, "persist profile", err)
	}
	return nil
}

// Profile returns one classroom profile.
func (s *Service) Profile(ctx context.Context, profileID string) (domain.Profile, error) {
	profile, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return domain.Profile{}, mapStorageErr(err, "profile not found")
	}
	return profile, nil
}

// StudentsOfTeacher lists the students whose profiles reference teacherID.
func (s *Service) StudentsOfTeacher(ctx context.Context, teacherID string) ([]domain.Profile, error) {
	return s.store.ListStudentsOfTeacher(ctx, teacherID)
}

// TeacherOf resolves the teacher a student's profile references.
func (s *Service) TeacherOf(ctx context.Context, studentID string) (string, error) {
	profile, err := s.store.GetProfile(ctx, studentID)
	if err != nil {
		return "", mapStorageErr(err, "student profile not found")
	}
	if profile.TeacherID == "" {
		return "", apperrors.New(apperrors.CodeNotFound, "student has no teacher")
	}
	return profile.TeacherID, nil
}

// SubmissionStatus reports one student's state for one assignment.
func (s *Service) SubmissionStatus(ctx context.Context, assignmentID, studentID string) (domain.SubmissionState, error) {
	assignment, err := s.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return 0, mapStorageErr(err, "assignment not found")
	}
	answer, err := s.latestAnswer(ctx, assignmentID, studentID)
	if err != nil {
		return 0, err
	}
	return domain.StateFor(assignment, answer, s.now()), nil
}

// AssignmentOwnedBy returns the assignment only when teacherID published it.
// Review reads and grade writes go through this check so one teacher cannot
// reach into another teacher's classroom.
func (s *Service) AssignmentOwnedBy(ctx context.Context, assignmentID, teacherID string) (domain.Assignment, error) {
	assignment, err := s.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return domain.Assignment{}, mapStorageErr(err, "assignment not found")
	}
	if assignment.CreatedBy != teacherID {
		return domain.Assignment{}, apperrors.New(apperrors.CodeForbidden, "assignment belongs to another teacher")
	}
	return assignment, nil
}

// AnswersForAssignment lists every submission against one assignment for the
// owning teacher's review dashboard.
func (s *Service) AnswersForAssignment(ctx context.Context, assignmentID, teacherID string) ([]domain.Answer, error) {
	if _, err := s.AssignmentOwnedBy(ctx, assignmentID, teacherID); err != nil {
		return nil, err
	}
	return s.store.ListAnswersByAssignment(ctx, assignmentID)
}

// AnswersForStudent lists one student's submissions.
func (s *Service) AnswersForStudent(ctx context.Context, studentID string) ([]domain.Answer, error) {
	return s.store.ListAnswersByStudent(ctx, studentID)
}

func (s *Service) latestAnswer(ctx context.Context, assignmentID, studentID string) (*domain.Answer, error) {
	answer, err := s.store.LatestAnswerFor(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &answer, nil
}
