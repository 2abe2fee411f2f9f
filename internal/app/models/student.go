package models

import "time"

// Student is any account holding a credential: students and instructors share
// the table and are told apart by Role.
type Student struct {
	ID               int64     `json:"id" db:"id"`
	Enrollment       string    `json:"enrollment" db:"enrollment"` // Unique, upper case
	FullName         string    `json:"fullName" db:"full_name"`
	Role             RoleType  `json:"role" db:"role"`
	PasswordHash     string    `json:"-" db:"password_hash"`
	SecurityCodeHash *string   `json:"-" db:"security_code_hash"` // Instructors only
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
}

// IsInstructor reports whether the account may post grades.
func (s *Student) IsInstructor() bool {
	return s.Role == RoleInstructor
}
