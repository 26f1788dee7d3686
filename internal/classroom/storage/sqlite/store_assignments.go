package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/louisbranch/classwork/internal/classroom/domain"
	"github.com/louisbranch/classwork/internal/classroom/storage"
)

// PutAssignment inserts one published assignment.
func (s *Store) PutAssignment(ctx context.Context, assignment domain.Assignment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(assignment.ID) == "" {
		return fmt.Errorf("assignment id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO assignments (assignment_id, title, description, subject, deadline, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		assignment.ID,
		assignment.Title,
		assignment.Description,
		assignment.Subject,
		toMillis(assignment.Deadline),
		assignment.CreatedBy,
		toMillis(assignment.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put assignment: %w", err)
	}
	return nil
}

// GetAssignment returns one assignment by id.
func (s *Store) GetAssignment(ctx context.Context, assignmentID string) (domain.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Assignment{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Assignment{}, err
	}
	assignmentID = strings.TrimSpace(assignmentID)
	if assignmentID == "" {
		return domain.Assignment{}, fmt.Errorf("assignment id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT assignment_id, title, description, subject, deadline, created_by, created_at
		 FROM assignments
		 WHERE assignment_id = ?`,
		assignmentID,
	)
	return scanAssignment(row)
}

// ListAssignmentsByTeacher returns every assignment a teacher published,
// newest first.
func (s *Store) ListAssignmentsByTeacher(ctx context.Context, teacherID string) ([]domain.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	teacherID = strings.TrimSpace(teacherID)
	if teacherID == "" {
		return nil, fmt.Errorf("teacher id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT assignment_id, title, description, subject, deadline, created_by, created_at
		 FROM assignments
		 WHERE created_by = ?
		 ORDER BY created_at DESC, assignment_id`,
		teacherID,
	)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []domain.Assignment
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return assignments, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (domain.Assignment, error) {
	var assignment domain.Assignment
	var deadline, createdAt int64
	err := row.Scan(
		&assignment.ID,
		&assignment.Title,
		&assignment.Description,
		&assignment.Subject,
		&deadline,
		&assignment.CreatedBy,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return domain.Assignment{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("scan assignment: %w", err)
	}
	assignment.Deadline = fromMillis(deadline)
	assignment.CreatedAt = fromMillis(createdAt)
	return assignment, nil
}
