package service

import (
	"context"
	"io"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/classwork/internal/blobstore"
	"github.com/louisbranch/classwork/internal/classroom/domain"
	apperrors "github.com/louisbranch/classwork/internal/errors"
	"github.com/louisbranch/classwork/internal/grading"
	"github.com/louisbranch/classwork/internal/realtime"
)

// SubmitInput carries one handwritten submission through the pipeline.
type SubmitInput struct {
	AssignmentID string
	StudentID    string
	Filename     string
	ContentType  string
	File         io.Reader
}

// Submit runs the submission pipeline: eligibility check, image upload,
// transcription, AI grading, and a single persisted row that is broadcast to
// live subscribers. No answer row exists until every stage has succeeded, so
// a failure anywhere leaves the student eligible to retry.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (domain.Answer, error) {
	tracer := otel.Tracer("classwork/submission")
	ctx, span := tracer.Start(ctx, "submission.pipeline", trace.WithAttributes(
		attribute.String("assignment.id", input.AssignmentID),
	))
	defer span.End()

	assignment, err := s.store.GetAssignment(ctx, input.AssignmentID)
	if err != nil {
		return domain.Answer{}, mapStorageErr(err, "assignment not found")
	}

	now := s.now()
	existing, err := s.latestAnswer(ctx, input.AssignmentID, input.StudentID)
	if err != nil {
		return domain.Answer{}, err
	}
	if existing != nil {
		return domain.Answer{}, apperrors.New(apperrors.CodeAlreadySubmitted, "assignment already submitted")
	}
	if !domain.CanSubmit(assignment, existing, now) {
		return domain.Answer{}, apperrors.New(apperrors.CodeDeadlinePassed, "assignment deadline has passed")
	}

	path := blobstore.SubmissionPath(now, input.Filename)
	imageURL, err := s.upload(ctx, tracer, path, input)
	if err != nil {
		return domain.Answer{}, err
	}

	answer, err := s.transcribeAndGrade(ctx, tracer, assignment, input, imageURL)
	if err != nil {
		s.cleanupUpload(ctx, path)
		return domain.Answer{}, err
	}

	if err := s.persistAnswer(ctx, tracer, &answer); err != nil {
		s.cleanupUpload(ctx, path)
		return domain.Answer{}, err
	}

	delta := realtime.Delta{
		Op:     realtime.OpInserted,
		Table:  realtime.TableAnswers,
		RowID:  answer.ID,
		Answer: &answer,
	}
	s.publish(realtime.AnswersByStudent(answer.CreatedBy), delta)
	s.publish(realtime.AnswersByAssignment(answer.AssignmentID), delta)
	return answer, nil
}

func (s *Service) upload(ctx context.Context, tracer trace.Tracer, path string, input SubmitInput) (string, error) {
	ctx, span := tracer.Start(ctx, "submission.upload")
	defer span.End()

	if err := s.uploader.Upload(ctx, path, input.ContentType, input.File); err != nil {
		return "", err
	}
	return s.uploader.PublicURL(path), nil
}

func (s *Service) transcribeAndGrade(ctx context.Context, tracer trace.Tracer, assignment domain.Assignment, input SubmitInput, imageURL string) (domain.Answer, error) {
	ctx, span := tracer.Start(ctx, "submission.transcribe")
	text, err := s.transcriber.ExtractText(ctx, imageURL)
	span.End()
	if err != nil {
		return domain.Answer{}, err
	}

	ctx, span = tracer.Start(ctx, "submission.grade")
	verdict, err := s.grader.Grade(ctx, grading.Request{
		ExtractedText:   text,
		Question:        assignment.Description,
		AssignmentTitle: assignment.Title,
		Subject:         assignment.Subject,
	})
	span.End()
	if err != nil {
		return domain.Answer{}, err
	}

	answerID, err := s.newID()
	if err != nil {
		return domain.Answer{}, apperrors.Wrap(apperrors.CodePersistFailed, "generate answer id", err)
	}
	now := s.now().UTC()
	aiGrade := verdict.Score
	return domain.Answer{
		ID:            answerID,
		AssignmentID:  assignment.ID,
		CreatedBy:     input.StudentID,
		ImageURL:      imageURL,
		SubmittedAt:   now,
		ExtractedText: text,
		AIGrade:       &aiGrade,
		Feedback:      verdict.Feedback,
		Status:        domain.StatusSubmitted,
		CreatedAt:     now,
	}, nil
}

func (s *Service) persistAnswer(ctx context.Context, tracer trace.Tracer, answer *domain.Answer) error {
	ctx, span := tracer.Start(ctx, "submission.persist")
	defer span.End()

	if err := s.store.InsertAnswer(ctx, *answer); err != nil {
		return apperrors.Wrap(apperrors.CodePersistFailed, "persist answer", err)
	}
	return nil
}

// cleanupUpload removes the uploaded object after a later stage failed, so
// no orphaned image accumulates in the bucket. Removal failures are logged
// and swallowed: the submission error is the one the caller needs.
func (s *Service) cleanupUpload(ctx context.Context, path string) {
	if s.keepOrphans {
		return
	}
	if err := s.uploader.Remove(ctx, path); err != nil {
		log.Printf("remove orphaned upload %s: %v", path, err)
	}
}
