package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/academia/gradebot/internal/app/grading"
	"github.com/academia/gradebot/internal/app/models"
	"github.com/academia/gradebot/internal/app/models/dto"
	"github.com/academia/gradebot/internal/app/repositories"
	"github.com/academia/gradebot/internal/pkg/apperrors"
	"github.com/rs/zerolog"
)

// HistoryService reads a student's academic history. It never writes:
// averages missing from storage are computed for display only.
type HistoryService interface {
	GetHistory(ctx context.Context, enrollment string) (*dto.HistoryResponse, error)
}

type historyServiceImpl struct {
	store  repositories.GradeStore
	policy grading.Policy
	calc   *grading.Calculator
	logger zerolog.Logger
}

// NewHistoryService creates a HistoryService.
func NewHistoryService(store repositories.GradeStore, policy grading.Policy, logger zerolog.Logger) HistoryService {
	return &historyServiceImpl{
		store:  store,
		policy: policy,
		calc:   policy.Calculator(),
		logger: logger,
	}
}

func (s *historyServiceImpl) GetHistory(ctx context.Context, enrollment string) (*dto.HistoryResponse, error) {
	student, err := s.store.GetStudent(ctx, enrollment)
	if errors.Is(err, apperrors.ErrStudentNotFound) {
		return nil, apperrors.NotFound(apperrors.ErrStudentNotFound,
			fmt.Sprintf("No student with enrollment %s", models.NormalizeEnrollment(enrollment)))
	}
	if err != nil {
		s.logger.Error().Err(err).Str("enrollment", enrollment).Msg("Failed to load student")
		return nil, err
	}

	records, err := s.store.ListAllRecords(ctx, student.Enrollment)
	if err != nil {
		s.logger.Error().Err(err).Str("enrollment", student.Enrollment).Msg("Failed to list records")
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperrors.NoRecords(fmt.Sprintf("%s has no academic records yet", student.FullName))
	}

	sortForHistory(records)

	projectScores := make(map[int]*float64)
	var semesters []dto.SemesterSummary
	for _, rec := range records {
		if _, seen := projectScores[rec.Semester]; !seen {
			projectScores[rec.Semester] = nil
			semesters = append(semesters, dto.SemesterSummary{Semester: rec.Semester})
		}
		if rec.Category == models.CategoryProject && rec.Average != nil && projectScores[rec.Semester] == nil {
			projectScores[rec.Semester] = rec.Average
		}
	}
	for i := range semesters {
		semesters[i].ProjectScore = projectScores[semesters[i].Semester]
	}

	entries := make([]dto.HistoryEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, s.entry(rec, projectScores[rec.Semester]))
	}

	return &dto.HistoryResponse{
		Enrollment: student.Enrollment,
		FullName:   student.FullName,
		Cutoff:     s.policy.Cutoff,
		Formula:    s.policy.FormulaNote(),
		Semesters:  semesters,
		Entries:    entries,
	}, nil
}

func (s *historyServiceImpl) entry(rec *models.AcademicRecord, project *float64) dto.HistoryEntry {
	e := dto.HistoryEntry{
		Semester: rec.Semester,
		Course:   rec.CourseName,
		Category: rec.Category,
		Partial1: rec.Partial1,
		Partial2: rec.Partial2,
		Absences: rec.Absences,
	}

	rules := rec.Category.Rules()
	switch {
	case rules.ComputesAverage:
		e.Average = rec.Average
		if e.Average == nil {
			e.Average = s.calc.Compute(rec.Partial1, rec.Partial2, project)
			e.AverageComputed = e.Average != nil
		}
		if rules.UsesCutoff {
			e.Status = s.policy.Approval(e.Average)
		}
	case rules.ProjectSource:
		e.Average = rec.Average
	case rules.CompletionOnly:
		completed := rec.Completed
		e.Completed = &completed
		e.Status = grading.Completion(completed)
	}
	return e
}

// sortForHistory orders by semester, then category rank, then course name.
func sortForHistory(records []*models.AcademicRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Semester != b.Semester {
			return a.Semester < b.Semester
		}
		if ra, rb := a.Category.Rules().DisplayRank, b.Category.Rules().DisplayRank; ra != rb {
			return ra < rb
		}
		return a.CourseName < b.CourseName
	})
}
