package services

import (
	"context"
	"math"
	"testing"

	"github.com/academia/gradebot/internal/app/grading"
	"github.com/academia/gradebot/internal/app/models"
	"github.com/academia/gradebot/internal/pkg/apperrors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradeScenarios(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		p1, p2   float64
		project  float64
		want     float64
		wantStat grading.Status
	}{
		{name: "below cutoff", p1: 7, p2: 6, project: 8, want: 6.8, wantStat: grading.StatusFailed},
		{name: "approved", p1: 8, p2: 8, project: 8, want: 8, wantStat: grading.StatusApproved},
		{name: "exactly at cutoff", p1: 7, p2: 7, project: 7, want: 7, wantStat: grading.StatusApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServices(t)

			res, err := ts.grades.PostPartial(ctx, "S100", "Algorithms", "partial1", tt.p1)
			require.NoError(t, err)
			assert.True(t, res.Pending)
			assert.Equal(t, grading.StatusUndefined, res.Status)

			res, err = ts.grades.PostPartial(ctx, "S100", "Algorithms", "partial2", tt.p2)
			require.NoError(t, err)
			assert.True(t, res.Pending)

			proj, err := ts.grades.PostProjectScore(ctx, "S100", "Project I", tt.project)
			require.NoError(t, err)
			assert.Equal(t, 3, proj.Recomputed)

			rec := getRecordT(t, ts.store, "S100", "Algorithms")
			require.NotNil(t, rec.Average)
			assert.Equal(t, tt.want, *rec.Average)
			assert.Equal(t, tt.wantStat, grading.DefaultPolicy().Approval(rec.Average))
		})
	}
}

func TestPostPartialAfterProject(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()

	_, err := ts.grades.PostProjectScore(ctx, "S100", "Project I", 8)
	require.NoError(t, err)
	_, err = ts.grades.PostPartial(ctx, "S100", "Databases", "partial1", 8)
	require.NoError(t, err)

	res, err := ts.grades.PostPartial(ctx, "S100", "Databases", "partial2", 8)
	require.NoError(t, err)
	assert.False(t, res.Pending)
	require.NotNil(t, res.Average)
	assert.Equal(t, 8.0, *res.Average)
	assert.Equal(t, grading.StatusApproved, res.Status)

	// Partial writes recompute only their own record.
	assert.Nil(t, getRecordT(t, ts.store, "S100", "Algorithms").Average)
}

func TestPostPartialRoundsAndNormalizes(t *testing.T) {
	ts := newTestServices(t)

	res, err := ts.grades.PostPartial(context.Background(), " s100 ", "  algorithms ", "Partial1", 7.005)
	require.NoError(t, err)
	assert.Equal(t, "S100", res.Enrollment)
	assert.Equal(t, "Algorithms", res.Course)
	require.NotNil(t, res.Score)
	assert.Equal(t, 7.01, *res.Score)
	assert.Equal(t, fp(7.01), getRecordT(t, ts.store, "S100", "Algorithms").Partial1)
}

func TestProjectScoreFanOutStaysInSemester(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	setRecord(t, ts.store, "S100", "Algorithms", partials(9, 9))
	setRecord(t, ts.store, "S100", "Networks", partials(9, 9))
	setRecord(t, ts.store, "S200", "Algorithms", partials(9, 9))

	res, err := ts.grades.PostProjectScore(ctx, "S100", "Project I", 9)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Semester)
	assert.Equal(t, 3, res.Recomputed)

	assert.Equal(t, fp(9.0), getRecordT(t, ts.store, "S100", "Algorithms").Average)
	assert.Equal(t, fp(9.0), getRecordT(t, ts.store, "S100", "Project I").Average)
	assert.Nil(t, getRecordT(t, ts.store, "S100", "Networks").Average)
	assert.Nil(t, getRecordT(t, ts.store, "S200", "Algorithms").Average)
}

func TestClearPartialInvalidatesAverage(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()

	_, err := ts.grades.PostPartial(ctx, "S100", "Algorithms", "partial1", 8)
	require.NoError(t, err)
	_, err = ts.grades.PostPartial(ctx, "S100", "Algorithms", "partial2", 8)
	require.NoError(t, err)
	_, err = ts.grades.PostProjectScore(ctx, "S100", "Project I", 8)
	require.NoError(t, err)
	require.NotNil(t, getRecordT(t, ts.store, "S100", "Algorithms").Average)

	res, err := ts.grades.ClearPartial(ctx, "S100", "Algorithms", "partial2")
	require.NoError(t, err)
	assert.Nil(t, res.Score)
	assert.Nil(t, res.Average)
	assert.True(t, res.Pending)

	rec := getRecordT(t, ts.store, "S100", "Algorithms")
	assert.Nil(t, rec.Partial2)
	assert.Nil(t, rec.Average)
	assert.Equal(t, fp(8.0), rec.Partial1)
}

func TestGradeValidationTouchesNothing(t *testing.T) {
	ctx := context.Background()
	ts := newTestServices(t)
	// A store that fails every call proves validation runs first.
	grades := NewGradeService(brokenStore{}, ts.recalc, grading.DefaultPolicy(), nil, zerolog.Nop())

	tests := []struct {
		name string
		call func() error
	}{
		{"score above range", func() error {
			_, err := grades.PostPartial(ctx, "S100", "Algorithms", "partial1", 10.5)
			return err
		}},
		{"negative score", func() error {
			_, err := grades.PostPartial(ctx, "S100", "Algorithms", "partial1", -0.1)
			return err
		}},
		{"NaN score", func() error {
			_, err := grades.PostPartial(ctx, "S100", "Algorithms", "partial1", math.NaN())
			return err
		}},
		{"unknown partial", func() error {
			_, err := grades.PostPartial(ctx, "S100", "Algorithms", "partial3", 5)
			return err
		}},
		{"unknown partial on clear", func() error {
			_, err := grades.ClearPartial(ctx, "S100", "Algorithms", "final")
			return err
		}},
		{"project score above range", func() error {
			_, err := grades.PostProjectScore(ctx, "S100", "Project I", 11)
			return err
		}},
		{"negative absences", func() error {
			_, err := grades.PostAbsences(ctx, "S100", "Algorithms", -1)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))
		})
	}
}

func TestGradeWrongCategory(t *testing.T) {
	ctx := context.Background()
	ts := newTestServices(t)

	_, err := ts.grades.PostPartial(ctx, "S100", "Project I", "partial1", 8)
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))
	assert.ErrorIs(t, err, apperrors.ErrWrongCategory)

	_, err = ts.grades.PostPartial(ctx, "S100", "Study Skills", "partial1", 8)
	assert.ErrorIs(t, err, apperrors.ErrWrongCategory)

	_, err = ts.grades.PostProjectScore(ctx, "S100", "Algorithms", 8)
	assert.ErrorIs(t, err, apperrors.ErrWrongCategory)

	_, err = ts.grades.SetCompletion(ctx, "S100", "Algorithms", true)
	assert.ErrorIs(t, err, apperrors.ErrWrongCategory)

	rec := getRecordT(t, ts.store, "S100", "Algorithms")
	assert.Nil(t, rec.Average)
	assert.False(t, rec.Completed)
}

func TestGradeNotFound(t *testing.T) {
	ctx := context.Background()
	ts := newTestServices(t)

	_, err := ts.grades.PostPartial(ctx, "S999", "Algorithms", "partial1", 8)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "S999")

	_, err = ts.grades.PostAbsences(ctx, "S100", "Alchemy", 2)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "Alchemy")

	assert.Empty(t, ts.notifier.all())
}

func TestPostAbsences(t *testing.T) {
	ctx := context.Background()
	ts := newTestServices(t)
	setRecord(t, ts.store, "S100", "Algorithms", models.RecordUpdate{Average: models.SetTo(5.5)})

	for _, course := range []string{"Algorithms", "Study Skills", "Project I"} {
		res, err := ts.grades.PostAbsences(ctx, "S100", course, 3)
		require.NoError(t, err, course)
		assert.Equal(t, 3, res.Absences)
		absences := getRecordT(t, ts.store, "S100", course).Absences
		require.NotNil(t, absences)
		assert.Equal(t, 3, *absences)
	}

	// No recalculation: the stale value survives an absence update.
	assert.Equal(t, fp(5.5), getRecordT(t, ts.store, "S100", "Algorithms").Average)
}

func TestSetCompletion(t *testing.T) {
	ctx := context.Background()
	ts := newTestServices(t)

	res, err := ts.grades.SetCompletion(ctx, "S100", "Study Skills", true)
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, grading.StatusCompleted, res.Status)
	assert.True(t, getRecordT(t, ts.store, "S100", "Study Skills").Completed)

	res, err = ts.grades.SetCompletion(ctx, "S100", "Study Skills", false)
	require.NoError(t, err)
	assert.Equal(t, grading.StatusNotCompleted, res.Status)
}

func TestGradeStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	ts := newTestServices(t)
	grades := NewGradeService(brokenStore{}, ts.recalc.In(brokenStore{}), grading.DefaultPolicy(), ts.notifier, zerolog.Nop())

	_, err := grades.PostPartial(ctx, "S100", "Algorithms", "partial1", 8)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindStoreUnavailable, apperrors.KindOf(err))
	assert.NotContains(t, err.Error(), "db.internal")
	assert.NotContains(t, apperrors.Message(err), "db.internal")
	assert.Empty(t, ts.notifier.all())
}

func TestGradeMutationRollsBack(t *testing.T) {
	ctx := context.Background()
	ts := newTestServices(t)
	store := failingUpdates{ts.store}
	policy := grading.DefaultPolicy()
	grades := NewGradeService(store, NewRecalculationService(store, policy, zerolog.Nop()), policy, ts.notifier, zerolog.Nop())

	_, err := grades.PostPartial(ctx, "S100", "Algorithms", "partial1", 8)
	assert.Equal(t, apperrors.KindStoreUnavailable, apperrors.KindOf(err))

	assert.Nil(t, getRecordT(t, ts.store, "S100", "Algorithms").Partial1)
	assert.Empty(t, ts.notifier.all())
}

func TestGradeNotifier(t *testing.T) {
	ctx := context.Background()
	ts := newTestServices(t)

	_, err := ts.grades.PostPartial(ctx, "s100", "Algorithms", "partial2", 6)
	require.NoError(t, err)
	_, err = ts.grades.PostProjectScore(ctx, "S100", "Project I", 6)
	require.NoError(t, err)

	changes := ts.notifier.all()
	require.Len(t, changes, 2)
	assert.Equal(t, "S100", changes[0].Enrollment)
	assert.Equal(t, "Algorithms", changes[0].Course)
	assert.Equal(t, "partial2", changes[0].Field)
	assert.Equal(t, models.CategoryProject, changes[1].Category)
	assert.Equal(t, "project", changes[1].Field)
	assert.Equal(t, 1, changes[1].Semester)
}
