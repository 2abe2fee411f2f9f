package dto

import (
	"time"

	"github.com/academia/gradebot/internal/app/grading"
	"github.com/academia/gradebot/internal/app/models"
)

// PostPartialRequest posts one partial score. Partial accepts "partial1",
// "p2", "np1" and similar.
type PostPartialRequest struct {
	Partial string   `json:"partial" binding:"required"`
	Score   *float64 `json:"score" binding:"required"`
}

// PostProjectScoreRequest posts the semester project score.
type PostProjectScoreRequest struct {
	Score *float64 `json:"score" binding:"required"`
}

// PostAbsencesRequest sets the absence count.
type PostAbsencesRequest struct {
	Absences *int `json:"absences" binding:"required"`
}

// SetCompletionRequest marks a completion-only activity done or not done.
type SetCompletionRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

// PartialResult is returned after a partial is posted or cleared.
type PartialResult struct {
	Enrollment string         `json:"enrollment"`
	Course     string         `json:"course"`
	Partial    string         `json:"partial"`
	Score      *float64       `json:"score"`
	Average    *float64       `json:"average"`
	Pending    bool           `json:"pending"`
	Status     grading.Status `json:"status"`
}

// ProjectScoreResult is returned after a project score is posted.
type ProjectScoreResult struct {
	Enrollment string  `json:"enrollment"`
	Course     string  `json:"course"`
	Semester   int     `json:"semester"`
	Score      float64 `json:"score"`
	Recomputed int     `json:"recomputed"`
}

// AbsencesResult is returned after absences are set.
type AbsencesResult struct {
	Enrollment string `json:"enrollment"`
	Course     string `json:"course"`
	Absences   int    `json:"absences"`
}

// CompletionResult is returned after a completion flag is set.
type CompletionResult struct {
	Enrollment string         `json:"enrollment"`
	Course     string         `json:"course"`
	Completed  bool           `json:"completed"`
	Status     grading.Status `json:"status"`
}

// RecomputeResult reports a manual recalculation.
type RecomputeResult struct {
	Enrollment string   `json:"enrollment"`
	Course     string   `json:"course,omitempty"`
	Semester   int      `json:"semester,omitempty"`
	Average    *float64 `json:"average,omitempty"`
	Recomputed int      `json:"recomputed"`
}

// GradeChange is pushed to a connected student when one of their records
// changes.
type GradeChange struct {
	Enrollment string          `json:"enrollment"`
	Course     string          `json:"course"`
	Category   models.Category `json:"category"`
	Field      string          `json:"field"`
	Semester   int             `json:"semester"`
	ChangedAt  time.Time       `json:"changedAt"`
}
