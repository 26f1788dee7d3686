package service

import (
	"context"
	"errors"

	"github.com/louisbranch/classwork/internal/classroom/domain"
	"github.com/louisbranch/classwork/internal/classroom/storage"
	apperrors "github.com/louisbranch/classwork/internal/errors"
	"github.com/louisbranch/classwork/internal/realtime"
)

// FinalizeGradeInput carries a teacher's review of one answer. A nil
// TeacherGrade confirms the AI grade as final; a nil Feedback keeps the
// AI feedback.
type FinalizeGradeInput struct {
	AnswerID     string
	TeacherID    string
	TeacherGrade *int
	Feedback     *string
}

// FinalizeGrade applies teacher review to a submitted answer. Only the
// teacher who published the assignment may finalize. The teacher's
// grade always wins over the AI grade; absent an override the AI grade is
// confirmed as final. The write carries a status precondition so a
// concurrent finalization loses cleanly instead of silently overwriting.
func (s *Service) FinalizeGrade(ctx context.Context, input FinalizeGradeInput) (domain.Answer, error) {
	answer, err := s.store.GetAnswer(ctx, input.AnswerID)
	if err != nil {
		return domain.Answer{}, mapStorageErr(err, "answer not found")
	}
	if _, err := s.AssignmentOwnedBy(ctx, answer.AssignmentID, input.TeacherID); err != nil {
		return domain.Answer{}, err
	}
	if answer.Status != domain.StatusSubmitted {
		return domain.Answer{}, apperrors.New(apperrors.CodeGradeNotEditable, "answer grade is already final")
	}
	if answer.AIGrade == nil {
		return domain.Answer{}, apperrors.New(apperrors.CodeGradeNotEditable, "answer has no grade to finalize")
	}

	final := *answer.AIGrade
	if input.TeacherGrade != nil {
		final = *input.TeacherGrade
	}
	if err := domain.CheckGrade(final); err != nil {
		return domain.Answer{}, err
	}
	feedback := answer.Feedback
	if input.Feedback != nil {
		feedback = *input.Feedback
	}

	updated, err := s.store.FinalizeGrade(ctx, storage.FinalizeGradeInput{
		AnswerID:     input.AnswerID,
		TeacherGrade: final,
		Feedback:     feedback,
		ExpectStatus: domain.StatusSubmitted,
	})
	switch {
	case errors.Is(err, storage.ErrStaleWrite):
		return domain.Answer{}, apperrors.Wrap(apperrors.CodeReconcileConflict, "answer was finalized concurrently", err)
	case errors.Is(err, storage.ErrNotFound):
		return domain.Answer{}, apperrors.Wrap(apperrors.CodeNotFound, "answer not found", err)
	case err != nil:
		return domain.Answer{}, apperrors.Wrap(apperrors.CodePersistFailed, "finalize grade", err)
	}

	delta := realtime.Delta{
		Op:     realtime.OpUpdated,
		Table:  realtime.TableAnswers,
		RowID:  updated.ID,
		Answer: &updated,
	}
	s.publish(realtime.AnswersByStudent(updated.CreatedBy), delta)
	s.publish(realtime.AnswersByAssignment(updated.AssignmentID), delta)
	return updated, nil
}
