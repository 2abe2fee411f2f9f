package services

import (
	"context"
	"fmt"
	"time"

	"github.com/academia/gradebot/internal/app/grading"
	"github.com/academia/gradebot/internal/app/models"
	"github.com/academia/gradebot/internal/app/models/dto"
	"github.com/academia/gradebot/internal/app/repositories"
	"github.com/academia/gradebot/internal/pkg/apperrors"
	"github.com/rs/zerolog"
)

// GradeNotifier is told about every committed grade change.
type GradeNotifier interface {
	NotifyGradeChange(change dto.GradeChange)
}

// GradeService holds the grade mutations. Each one validates its arguments
// before touching storage and runs its write plus any recalculation in one
// transaction.
type GradeService interface {
	PostPartial(ctx context.Context, enrollment, courseName, partial string, score float64) (*dto.PartialResult, error)
	ClearPartial(ctx context.Context, enrollment, courseName, partial string) (*dto.PartialResult, error)
	PostProjectScore(ctx context.Context, enrollment, courseName string, score float64) (*dto.ProjectScoreResult, error)
	PostAbsences(ctx context.Context, enrollment, courseName string, count int) (*dto.AbsencesResult, error)
	SetCompletion(ctx context.Context, enrollment, courseName string, completed bool) (*dto.CompletionResult, error)
}

type gradeServiceImpl struct {
	store    repositories.GradeStore
	recalc   RecalculationService
	policy   grading.Policy
	notifier GradeNotifier
	logger   zerolog.Logger
}

// NewGradeService creates a GradeService. notifier may be nil.
func NewGradeService(
	store repositories.GradeStore,
	recalc RecalculationService,
	policy grading.Policy,
	notifier GradeNotifier,
	logger zerolog.Logger,
) GradeService {
	return &gradeServiceImpl{
		store:    store,
		recalc:   recalc,
		policy:   policy,
		notifier: notifier,
		logger:   logger,
	}
}

func validateScore(score float64) error {
	if !grading.ValidScore(score) {
		return apperrors.InvalidArgument(apperrors.ErrScoreOutOfRange,
			fmt.Sprintf("Score %v is invalid, it must be between 0.0 and 10.0", score))
	}
	return nil
}

func parsePartial(text string) (models.Partial, error) {
	p, ok := models.ParsePartial(text)
	if !ok {
		return 0, apperrors.InvalidArgument(apperrors.ErrUnknownPartial,
			fmt.Sprintf("Unknown partial %q, use partial1 or partial2", text))
	}
	return p, nil
}

func requireCategory(rec *models.AcademicRecord, want models.Category, action string) error {
	if rec.Category == want {
		return nil
	}
	return apperrors.InvalidArgument(apperrors.ErrWrongCategory,
		fmt.Sprintf("%s is a %s course, %s only applies to %s courses", rec.CourseName, rec.Category, action, want))
}

func (s *gradeServiceImpl) PostPartial(ctx context.Context, enrollment, courseName, partial string, score float64) (*dto.PartialResult, error) {
	if err := validateScore(score); err != nil {
		return nil, err
	}
	which, err := parsePartial(partial)
	if err != nil {
		return nil, err
	}
	rounded := grading.Round2(score)
	return s.writePartial(ctx, enrollment, courseName, which, &rounded)
}

func (s *gradeServiceImpl) ClearPartial(ctx context.Context, enrollment, courseName, partial string) (*dto.PartialResult, error) {
	which, err := parsePartial(partial)
	if err != nil {
		return nil, err
	}
	return s.writePartial(ctx, enrollment, courseName, which, nil)
}

// writePartial stores score (nil clears) and recomputes only that record.
func (s *gradeServiceImpl) writePartial(ctx context.Context, enrollment, courseName string, which models.Partial, score *float64) (*dto.PartialResult, error) {
	var (
		rec     *models.AcademicRecord
		average *float64
	)
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, tx repositories.GradeStore) error {
		var err error
		if rec, err = getRecord(ctx, tx, enrollment, courseName); err != nil {
			return err
		}
		if err := requireCategory(rec, models.CategoryStandard, "partial scores"); err != nil {
			return err
		}
		if err := tx.LockSemester(ctx, rec.Enrollment, rec.Semester); err != nil {
			return err
		}
		if err := tx.UpdateRecord(ctx, rec.ID, models.WithPartial(which, score)); err != nil {
			return err
		}
		average, err = s.recalc.In(tx).RecomputeOne(ctx, rec.Enrollment, rec.CourseName)
		return err
	})
	if err != nil {
		return nil, s.fail(err, "write_partial", enrollment, courseName)
	}

	s.logger.Info().
		Str("enrollment", rec.Enrollment).
		Str("course", rec.CourseName).
		Str("partial", which.String()).
		Bool("cleared", score == nil).
		Msg("Partial score written")
	s.notify(rec, which.String())

	return &dto.PartialResult{
		Enrollment: rec.Enrollment,
		Course:     rec.CourseName,
		Partial:    which.String(),
		Score:      score,
		Average:    average,
		Pending:    average == nil,
		Status:     s.policy.Approval(average),
	}, nil
}

func (s *gradeServiceImpl) PostProjectScore(ctx context.Context, enrollment, courseName string, score float64) (*dto.ProjectScoreResult, error) {
	if err := validateScore(score); err != nil {
		return nil, err
	}
	rounded := grading.Round2(score)

	var (
		rec   *models.AcademicRecord
		count int
	)
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, tx repositories.GradeStore) error {
		var err error
		if rec, err = getRecord(ctx, tx, enrollment, courseName); err != nil {
			return err
		}
		if err := requireCategory(rec, models.CategoryProject, "the project score"); err != nil {
			return err
		}
		if err := tx.LockSemester(ctx, rec.Enrollment, rec.Semester); err != nil {
			return err
		}
		if err := tx.UpdateRecord(ctx, rec.ID, models.RecordUpdate{Average: models.SetTo(rounded)}); err != nil {
			return err
		}
		count, err = s.recalc.In(tx).RecomputeSemester(ctx, rec.Enrollment, rec.Semester)
		return err
	})
	if err != nil {
		return nil, s.fail(err, "post_project_score", enrollment, courseName)
	}

	s.logger.Info().
		Str("enrollment", rec.Enrollment).
		Str("course", rec.CourseName).
		Int("semester", rec.Semester).
		Int("recomputed", count).
		Msg("Project score written")
	s.notify(rec, "project")

	return &dto.ProjectScoreResult{
		Enrollment: rec.Enrollment,
		Course:     rec.CourseName,
		Semester:   rec.Semester,
		Score:      rounded,
		Recomputed: count,
	}, nil
}

func (s *gradeServiceImpl) PostAbsences(ctx context.Context, enrollment, courseName string, count int) (*dto.AbsencesResult, error) {
	if count < 0 {
		return nil, apperrors.InvalidArgument(apperrors.ErrNegativeCount,
			fmt.Sprintf("Absence count %d is invalid, it cannot be negative", count))
	}

	var rec *models.AcademicRecord
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, tx repositories.GradeStore) error {
		var err error
		if rec, err = getRecord(ctx, tx, enrollment, courseName); err != nil {
			return err
		}
		return tx.UpdateRecord(ctx, rec.ID, models.RecordUpdate{Absences: models.SetTo(count)})
	})
	if err != nil {
		return nil, s.fail(err, "post_absences", enrollment, courseName)
	}

	s.notify(rec, "absences")
	return &dto.AbsencesResult{Enrollment: rec.Enrollment, Course: rec.CourseName, Absences: count}, nil
}

func (s *gradeServiceImpl) SetCompletion(ctx context.Context, enrollment, courseName string, completed bool) (*dto.CompletionResult, error) {
	var rec *models.AcademicRecord
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, tx repositories.GradeStore) error {
		var err error
		if rec, err = getRecord(ctx, tx, enrollment, courseName); err != nil {
			return err
		}
		if err := requireCategory(rec, models.CategorySupplementary, "completion"); err != nil {
			return err
		}
		return tx.UpdateRecord(ctx, rec.ID, models.RecordUpdate{Completed: models.SetTo(completed)})
	})
	if err != nil {
		return nil, s.fail(err, "set_completion", enrollment, courseName)
	}

	s.notify(rec, "completed")
	return &dto.CompletionResult{
		Enrollment: rec.Enrollment,
		Course:     rec.CourseName,
		Completed:  completed,
		Status:     grading.Completion(completed),
	}, nil
}

// fail logs err. Errors are returned unchanged: the store already hid its
// causes behind store_unavailable.
func (s *gradeServiceImpl) fail(err error, op, enrollment, courseName string) error {
	event := s.logger.Debug()
	if kind := apperrors.KindOf(err); kind == apperrors.KindStoreUnavailable || kind == apperrors.KindInternal {
		event = s.logger.Error()
	}
	event.Err(err).
		Str("op", op).
		Str("enrollment", enrollment).
		Str("course", courseName).
		Msg("Grade operation failed")
	return err
}

func (s *gradeServiceImpl) notify(rec *models.AcademicRecord, field string) {
	if s.notifier == nil || rec == nil {
		return
	}
	s.notifier.NotifyGradeChange(dto.GradeChange{
		Enrollment: rec.Enrollment,
		Course:     rec.CourseName,
		Category:   rec.Category,
		Field:      field,
		Semester:   rec.Semester,
		ChangedAt:  time.Now().UTC(),
	})
}
