package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/academia/gradebot/internal/app/grading"
	"github.com/academia/gradebot/internal/app/models"
	"github.com/academia/gradebot/internal/app/repositories"
	"github.com/academia/gradebot/internal/pkg/apperrors"
	"github.com/rs/zerolog"
)

// RecalculationService re-derives and persists final averages whenever one of
// their inputs changes.
type RecalculationService interface {
	// RecomputeOne recomputes a single standard record and returns the stored
	// average, nil when an input is still missing.
	RecomputeOne(ctx context.Context, enrollment, courseName string) (*float64, error)
	// RecomputeSemester recomputes every standard record of the student in the
	// semester and returns how many were written.
	RecomputeSemester(ctx context.Context, enrollment string, semester int) (int, error)
	// In returns the same engine running against store, usually an open
	// transaction.
	In(store repositories.GradeStore) RecalculationService
}

type recalculationServiceImpl struct {
	store  repositories.GradeStore
	calc   *grading.Calculator
	logger zerolog.Logger
}

// NewRecalculationService creates the engine using policy weights.
func NewRecalculationService(store repositories.GradeStore, policy grading.Policy, logger zerolog.Logger) RecalculationService {
	return &recalculationServiceImpl{
		store:  store,
		calc:   policy.Calculator(),
		logger: logger,
	}
}

func (s *recalculationServiceImpl) In(store repositories.GradeStore) RecalculationService {
	c := *s
	c.store = store
	return &c
}

func (s *recalculationServiceImpl) RecomputeOne(ctx context.Context, enrollment, courseName string) (*float64, error) {
	var average *float64
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, tx repositories.GradeStore) error {
		rec, err := getRecord(ctx, tx, enrollment, courseName)
		if err != nil {
			return err
		}
		if rec.Category != models.CategoryStandard {
			return apperrors.NewCustomError(apperrors.ErrNotApplicable,
				fmt.Sprintf("%s is a %s course and has no computed average", rec.CourseName, rec.Category))
		}
		if err := tx.LockSemester(ctx, rec.Enrollment, rec.Semester); err != nil {
			return err
		}

		project, err := tx.GetProjectScore(ctx, rec.Enrollment, rec.Semester)
		if err != nil {
			return err
		}
		average, err = s.persist(ctx, tx, rec, project)
		return err
	})
	if err != nil {
		return nil, err
	}
	return average, nil
}

func (s *recalculationServiceImpl) RecomputeSemester(ctx context.Context, enrollment string, semester int) (int, error) {
	var count int
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, tx repositories.GradeStore) error {
		enrollment := models.NormalizeEnrollment(enrollment)
		if err := tx.LockSemester(ctx, enrollment, semester); err != nil {
			return err
		}

		project, err := tx.GetProjectScore(ctx, enrollment, semester)
		if err != nil {
			return err
		}
		records, err := tx.ListStandardRecords(ctx, enrollment, semester)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if _, err := s.persist(ctx, tx, rec, project); err != nil {
				return err
			}
		}
		count = len(records)
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug().
		Str("enrollment", enrollment).
		Int("semester", semester).
		Int("recomputed", count).
		Msg("Semester recomputed")
	return count, nil
}

// persist writes the computed average, including NULL to clear a stale one.
func (s *recalculationServiceImpl) persist(ctx context.Context, tx repositories.GradeStore, rec *models.AcademicRecord, project *float64) (*float64, error) {
	average := s.calc.Compute(rec.Partial1, rec.Partial2, project)
	if err := tx.UpdateRecord(ctx, rec.ID, models.RecordUpdate{Average: models.SetPtr(average)}); err != nil {
		return nil, err
	}
	return average, nil
}

// getRecord resolves a student-course pair, telling an unknown student apart
// from an unknown course.
func getRecord(ctx context.Context, store repositories.GradeStore, enrollment, courseName string) (*models.AcademicRecord, error) {
	rec, err := store.GetRecord(ctx, enrollment, courseName)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, apperrors.ErrRecordNotFound) {
		return nil, err
	}

	exists, existsErr := store.StudentExists(ctx, enrollment)
	if existsErr != nil {
		return nil, existsErr
	}
	if !exists {
		return nil, apperrors.NotFound(apperrors.ErrStudentNotFound,
			fmt.Sprintf("No student with enrollment %s", models.NormalizeEnrollment(enrollment)))
	}
	return nil, apperrors.NotFound(apperrors.ErrRecordNotFound,
		fmt.Sprintf("Course %q not found for student %s", models.NormalizeCourseName(courseName), models.NormalizeEnrollment(enrollment)))
}
