package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/louisbranch/classwork/internal/classroom/domain"
	"github.com/louisbranch/classwork/internal/classroom/storage"
)

// PutProfile upserts one classroom account.
func (s *Store) PutProfile(ctx context.Context, profile domain.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(profile.ID) == "" {
		return fmt.Errorf("profile id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO profiles (profile_id, full_name, role, teacher_id, avatar_url)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(profile_id) DO UPDATE SET
		   full_name = excluded.full_name,
		   role = excluded.role,
		   teacher_id = excluded.teacher_id,
		   avatar_url = excluded.avatar_url`,
		profile.ID,
		profile.FullName,
		string(profile.Role),
		profile.TeacherID,
		profile.AvatarURL,
	)
	if err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	return nil
}

// GetProfile returns one profile by id.
func (s *Store) GetProfile(ctx context.Context, profileID string) (domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return domain.Profile{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Profile{}, err
	}
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return domain.Profile{}, fmt.Errorf("profile id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT profile_id, full_name, role, teacher_id, avatar_url
		 FROM profiles
		 WHERE profile_id = ?`,
		profileID,
	)
	var profile domain.Profile
	var role string
	err := row.Scan(&profile.ID, &profile.FullName, &role, &profile.TeacherID, &profile.AvatarURL)
	if err == sql.ErrNoRows {
		return domain.Profile{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("scan profile: %w", err)
	}
	profile.Role = domain.Role(role)
	return profile, nil
}

// ListStudentsOfTeacher returns every student profile assigned to a teacher.
func (s *Store) ListStudentsOfTeacher(ctx context.Context, teacherID string) ([]domain.Profile, error) {
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
		`SELECT profile_id, full_name, role, teacher_id, avatar_url
		 FROM profiles
		 WHERE teacher_id = ? AND role = ?
		 ORDER BY full_name, profile_id`,
		teacherID,
		string(domain.RoleStudent),
	)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var profile domain.Profile
		var role string
		if err := rows.Scan(&profile.ID, &profile.FullName, &role, &profile.TeacherID, &profile.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profile.Role = domain.Role(role)
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return profiles, nil
}
