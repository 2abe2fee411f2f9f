package models

import "strings"

// Course is a subject taught in one semester. (Name, Semester) is unique.
type Course struct {
	ID       int64    `json:"id" db:"id"`
	Name     string   `json:"name" db:"name"`
	Semester int      `json:"semester" db:"semester"`
	Category Category `json:"category" db:"category"`
}

// NormalizeCourseName collapses runs of whitespace. Lookups by name are case
// insensitive on top of this.
func NormalizeCourseName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
