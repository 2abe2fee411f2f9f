package models

import "strings"

// RoleType defines the user role type
type RoleType string

const (
	RoleStudent    RoleType = "student"
	RoleInstructor RoleType = "instructor"
)

// ParseRole accepts the role names used by the login form and the token
// claims, in any case. Unknown values return false.
func ParseRole(s string) (RoleType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "student":
		return RoleStudent, true
	case "instructor", "professor", "teacher":
		return RoleInstructor, true
	}
	return "", false
}

// NormalizeEnrollment canonicalises an enrollment code. Codes are
// case-insensitive and stored upper case.
func NormalizeEnrollment(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
