package dto

import (
	"github.com/academia/gradebot/internal/app/grading"
	"github.com/academia/gradebot/internal/app/models"
)

// HistoryEntry is one course line of the academic history.
type HistoryEntry struct {
	Semester int             `json:"semester"`
	Course   string          `json:"course"`
	Category models.Category `json:"category"`
	Partial1 *float64        `json:"partial1"`
	Partial2 *float64        `json:"partial2"`
	// Average is the persisted average, or one computed for display when
	// nothing is persisted yet. For project courses it is the project score.
	Average         *float64       `json:"average"`
	AverageComputed bool           `json:"averageComputed,omitempty"`
	Absences        *int           `json:"absences"`
	Completed       *bool          `json:"completed,omitempty"`
	Status          grading.Status `json:"status,omitempty"`
}

// SemesterSummary lists the project score used for a semester.
type SemesterSummary struct {
	Semester     int      `json:"semester"`
	ProjectScore *float64 `json:"projectScore"`
}

// HistoryResponse is the complete academic history of one student.
type HistoryResponse struct {
	Enrollment string            `json:"enrollment"`
	FullName   string            `json:"fullName"`
	Cutoff     float64           `json:"cutoff"`
	Formula    string            `json:"formula"`
	Semesters  []SemesterSummary `json:"semesters"`
	Entries    []HistoryEntry    `json:"entries"`
}
