package domain

// Role distinguishes the two classroom participants.
type Role string

const (
	// RoleStudent marks an account that submits answers.
	RoleStudent Role = "student"
	// RoleTeacher marks an account that publishes assignments and grades.
	RoleTeacher Role = "teacher"
)

// Profile describes a classroom account. A student's TeacherID is the sole
// access-scoping relation: it decides which assignments the student sees and
// which answers a teacher can review.
type Profile struct {
	ID        string
	FullName  string
	Role      Role
	TeacherID string // empty for teachers
	AvatarURL string
}

// IsStudentOf reports whether this profile is a student assigned to teacherID.
func (p Profile) IsStudentOf(teacherID string) bool {
	return p.Role == RoleStudent && p.TeacherID != "" && p.TeacherID == teacherID
}
