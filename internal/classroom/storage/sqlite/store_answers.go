package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/louisbranch/classwork/internal/classroom/domain"
	"github.com/louisbranch/classwork/internal/classroom/storage"
)

const answerColumns = `answer_id, assignment_id, created_by, image_url, submitted_at,
	extracted_text, ai_grade, teacher_grade, feedback, status, created_at`

// InsertAnswer persists one completed submission. This is the pipeline's
// single terminal write.
func (s *Store) InsertAnswer(ctx context.Context, answer domain.Answer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(answer.ID) == "" {
		return fmt.Errorf("answer id is required")
	}
	if strings.TrimSpace(answer.AssignmentID) == "" {
		return fmt.Errorf("assignment id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO answers (`+answerColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		answer.ID,
		answer.AssignmentID,
		answer.CreatedBy,
		answer.ImageURL,
		toMillis(answer.SubmittedAt),
		answer.ExtractedText,
		toNullGrade(answer.AIGrade),
		toNullGrade(answer.TeacherGrade),
		answer.Feedback,
		string(answer.Status),
		toMillis(answer.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

// GetAnswer returns one answer by id.
func (s *Store) GetAnswer(ctx context.Context, answerID string) (domain.Answer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Answer{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Answer{}, err
	}
	answerID = strings.TrimSpace(answerID)
	if answerID == "" {
		return domain.Answer{}, fmt.Errorf("answer id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+answerColumns+` FROM answers WHERE answer_id = ?`,
		answerID,
	)
	return scanAnswer(row)
}

// LatestAnswerFor returns the most recent answer for one (assignment, student)
// pair. Duplicate rows for a pair are possible and resolved by recency.
func (s *Store) LatestAnswerFor(ctx context.Context, assignmentID, studentID string) (domain.Answer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Answer{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Answer{}, err
	}
	assignmentID = strings.TrimSpace(assignmentID)
	studentID = strings.TrimSpace(studentID)
	if assignmentID == "" || studentID == "" {
		return domain.Answer{}, fmt.Errorf("assignment id and student id are required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+answerColumns+`
		 FROM answers
		 WHERE assignment_id = ? AND created_by = ?
		 ORDER BY submitted_at DESC, answer_id DESC
		 LIMIT 1`,
		assignmentID,
		studentID,
	)
	return scanAnswer(row)
}

// ListAnswersByAssignment returns every answer submitted against one
// assignment, newest first.
func (s *Store) ListAnswersByAssignment(ctx context.Context, assignmentID string) ([]domain.Answer, error) {
	return s.listAnswers(ctx, "assignment_id", assignmentID)
}

// ListAnswersByStudent returns every answer one student submitted, newest
// first.
func (s *Store) ListAnswersByStudent(ctx context.Context, studentID string) ([]domain.Answer, error) {
	return s.listAnswers(ctx, "created_by", studentID)
}

func (s *Store) listAnswers(ctx context.Context, column, value string) ([]domain.Answer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%s is required", column)
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+answerColumns+`
		 FROM answers
		 WHERE `+column+` = ?
		 ORDER BY submitted_at DESC, answer_id DESC`,
		value,
	)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var answers []domain.Answer
	for rows.Next() {
		answer, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, answer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	return answers, nil
}

// FinalizeGrade applies the reconciliation write under an optimistic status
// precondition. A concurrent finalize that already moved the answer makes the
// second write observe zero affected rows and fail with ErrStaleWrite.
func (s *Store) FinalizeGrade(ctx context.Context, input storage.FinalizeGradeInput) (domain.Answer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Answer{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Answer{}, err
	}
	answerID := strings.TrimSpace(input.AnswerID)
	if answerID == "" {
		return domain.Answer{}, fmt.Errorf("answer id is required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE answers
		 SET teacher_grade = ?, feedback = ?, status = ?
		 WHERE answer_id = ? AND status = ?`,
		input.TeacherGrade,
		input.Feedback,
		string(domain.StatusGraded),
		answerID,
		string(input.ExpectStatus),
	)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("finalize grade: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Answer{}, fmt.Errorf("finalize grade rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing answer from a stale precondition.
		if _, getErr := s.GetAnswer(ctx, answerID); getErr != nil {
			return domain.Answer{}, getErr
		}
		return domain.Answer{}, storage.ErrStaleWrite
	}
	return s.GetAnswer(ctx, answerID)
}

func scanAnswer(row rowScanner) (domain.Answer, error) {
	var answer domain.Answer
	var submittedAt, createdAt int64
	var aiGrade, teacherGrade sql.NullInt64
	var status string
	err := row.Scan(
		&answer.ID,
		&answer.AssignmentID,
		&answer.CreatedBy,
		&answer.ImageURL,
		&submittedAt,
		&answer.ExtractedText,
		&aiGrade,
		&teacherGrade,
		&answer.Feedback,
		&status,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return domain.Answer{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Answer{}, fmt.Errorf("scan answer: %w", err)
	}
	answer.SubmittedAt = fromMillis(submittedAt)
	answer.CreatedAt = fromMillis(createdAt)
	answer.AIGrade = fromNullGrade(aiGrade)
	answer.TeacherGrade = fromNullGrade(teacherGrade)
	answer.Status = domain.AnswerStatus(status)
	return answer, nil
}
